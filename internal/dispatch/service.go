// Package dispatch turns validated domain events into persisted notifications
// and best-effort external deliveries. Persistence is authoritative: a writer
// error fails the event so the queue redelivers it. External channels are
// contained per recipient; their outcomes are aggregated into a report and
// logged here, never propagated.
package dispatch

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/heraldhq/herald/internal/deliver"
	"github.com/heraldhq/herald/internal/event"
	"github.com/heraldhq/herald/internal/fanout"
	"github.com/heraldhq/herald/internal/metrics"
	"github.com/heraldhq/herald/internal/payload"
	"github.com/heraldhq/herald/internal/store"
	"github.com/heraldhq/herald/internal/stream"
)

// NotificationWriter persists notifications and handles referential cleanup.
type NotificationWriter interface {
	Create(ctx context.Context, notif *store.Notification) (bool, error)
	DeleteMentions(ctx context.Context, mentionIDs []int64) (int64, error)
}

// SettingsReader returns a user's delivery toggles.
type SettingsReader interface {
	Get(ctx context.Context, userID int64) (store.Setting, error)
}

// Deliverer attempts external delivery to one recipient per call.
type Deliverer interface {
	Push(ctx context.Context, userID int64, note deliver.Note) deliver.Result
	Email(ctx context.Context, userID int64, to, subject, body string) deliver.Result
}

// StreamPublisher emits created-notification records. May be nil.
type StreamPublisher interface {
	Publish(ctx context.Context, msg stream.Message) (string, error)
}

// Service is the dispatch pipeline: resolve recipients, build the payload,
// write a notification per recipient, then attempt external delivery for the
// recipients whose settings allow it.
type Service struct {
	notifications NotificationWriter
	settings      SettingsReader
	deliverer     Deliverer
	stream        StreamPublisher
	logger        *zap.Logger
}

// New creates a dispatch service. stream may be nil to disable the
// notification stream.
func New(notifications NotificationWriter, settings SettingsReader, deliverer Deliverer, stream StreamPublisher, logger *zap.Logger) *Service {
	return &Service{
		notifications: notifications,
		settings:      settings,
		deliverer:     deliverer,
		stream:        stream,
		logger:        logger,
	}
}

// Handle routes an event to its dispatch path. Satisfies the queue worker's
// handler contract.
func (s *Service) Handle(ctx context.Context, env *event.Envelope) error {
	switch env.Kind {
	case event.KindNewComment:
		return s.NewComment(ctx, env.Comment)
	case event.KindNewMention:
		return s.NewMention(ctx, env.Mention)
	case event.KindTagAdjustment:
		return s.TagAdjustment(ctx, env.TagAdjustment)
	case event.KindSubforemChange:
		return s.SubforemChange(ctx, env.SubforemChange)
	case event.KindMentionCleanup:
		return s.MentionCleanup(ctx, env.MentionCleanup)
	}
	return fmt.Errorf("no dispatch path for event kind %q", env.Kind)
}

// NewComment dispatches a new-comment event: one notification per resolved
// recipient, then push and email for user recipients whose settings allow
// comment delivery. Organizations get the in-app row only.
func (s *Service) NewComment(ctx context.Context, c *event.Comment) error {
	recipients := fanout.NewComment(c)
	if len(recipients) == 0 {
		return nil
	}

	data := payload.Comment(c)
	ref := event.Ref{Kind: event.NotifiableComment, ID: c.ID}

	// Snapshots carry the email addresses; no user lookup at dispatch time.
	emails := map[int64]string{c.Article.Author.ID: c.Article.Author.Email}
	for _, a := range c.AncestorAuthors {
		emails[a.ID] = a.Email
	}

	note := deliver.Note{
		Title: fmt.Sprintf("%s commented on %s", c.Author.Name, c.Article.Title),
		Body:  payload.Truncate(payload.StripHTML(c.BodyHTML), deliver.PushBodyLimit),
		URL:   c.Article.Path,
	}

	var report deliver.Report
	for _, rcpt := range recipients {
		created, err := s.create(ctx, rcpt, ref, nil, data)
		if err != nil {
			return err
		}
		if !created || rcpt.UserID == nil {
			continue
		}

		userID := *rcpt.UserID
		setting := s.settingFor(ctx, userID)

		if setting.MobileCommentNotifications {
			report.Add(s.deliverer.Push(ctx, userID, note))
		}
		if setting.EmailCommentNotifications {
			subject := fmt.Sprintf("New comment on %s", c.Article.Title)
			report.Add(s.deliverer.Email(ctx, userID, emails[userID], subject, note.Body))
		}
	}

	s.finish("new_comment", &report)
	return nil
}

// NewMention dispatches a new-mention event. A negative mentionable score or
// a self-mention resolves to no recipients and is a silent no-op.
func (s *Service) NewMention(ctx context.Context, m *event.Mention) error {
	recipients := fanout.NewMention(m)
	if len(recipients) == 0 {
		return nil
	}

	data := payload.Mention(m)
	ref := event.Ref{Kind: event.NotifiableMention, ID: m.ID}

	note := deliver.Note{
		Title: fmt.Sprintf("%s mentioned you", m.Author.Name),
		Body:  payload.Truncate(payload.StripHTML(m.CommentText), deliver.PushBodyLimit),
	}
	if m.Article != nil {
		note.URL = m.Article.Path
	}

	var report deliver.Report
	for _, rcpt := range recipients {
		created, err := s.create(ctx, rcpt, ref, nil, data)
		if err != nil {
			return err
		}
		if !created || rcpt.UserID == nil {
			continue
		}

		userID := *rcpt.UserID
		if s.settingFor(ctx, userID).MobileMentionNotifications {
			report.Add(s.deliverer.Push(ctx, userID, note))
		}
	}

	s.finish("new_mention", &report)
	return nil
}

// TagAdjustment dispatches a tag moderation event to the article's author.
// In-app only; moderation events never page devices.
func (s *Service) TagAdjustment(ctx context.Context, adj *event.TagAdjustment) error {
	recipients := fanout.TagAdjustment(adj)
	if len(recipients) == 0 {
		return nil
	}

	data := payload.TagAdjustment(adj)
	ref := event.Ref{Kind: event.NotifiableTagAdjustment, ID: adj.ID}
	action := adj.AdjustmentType

	for _, rcpt := range recipients {
		if _, err := s.create(ctx, rcpt, ref, &action, data); err != nil {
			return err
		}
	}
	return nil
}

// SubforemChange dispatches a community-move event to the article's author.
// In-app only.
func (s *Service) SubforemChange(ctx context.Context, sc *event.SubforemChange) error {
	recipients := fanout.SubforemChange(sc)
	if len(recipients) == 0 {
		return nil
	}

	data := payload.SubforemChange(sc)
	ref := event.Ref{Kind: event.NotifiableArticle, ID: sc.Article.ID}

	// The action carries the destination so each move has its own identity:
	// replaying one move is a no-op, a later move of the same article
	// creates a fresh notification.
	action := fmt.Sprintf("%s:%d", event.KindSubforemChange, sc.Article.SubforemID)

	for _, rcpt := range recipients {
		if _, err := s.create(ctx, rcpt, ref, &action, data); err != nil {
			return err
		}
	}
	return nil
}

// MentionCleanup removes notifications whose mention rows were deleted by an
// edit.
func (s *Service) MentionCleanup(ctx context.Context, mc *event.MentionCleanup) error {
	removed, err := s.notifications.DeleteMentions(ctx, mc.RemovedMentionIDs)
	if err != nil {
		return fmt.Errorf("mention cleanup: %w", err)
	}
	s.logger.Info("mention cleanup complete",
		zap.Int("mention_ids", len(mc.RemovedMentionIDs)),
		zap.Int64("removed", removed),
	)
	return nil
}

// create writes one notification row. Duplicates are counted and reported as
// created=false so the caller skips external delivery for that recipient.
func (s *Service) create(ctx context.Context, rcpt fanout.Recipient, ref event.Ref, action *string, data []byte) (bool, error) {
	notif := &store.Notification{
		ID:             uuid.New(),
		UserID:         rcpt.UserID,
		OrganizationID: rcpt.OrganizationID,
		NotifiableType: ref.Kind,
		NotifiableID:   ref.ID,
		Action:         action,
		JSONData:       data,
	}

	created, err := s.notifications.Create(ctx, notif)
	if err != nil {
		return false, fmt.Errorf("create notification for %s: %w", ref, err)
	}

	if !created {
		metrics.RecordNotificationDuplicate(string(ref.Kind))
		return false, nil
	}

	metrics.RecordNotificationCreated(string(ref.Kind))

	if s.stream != nil {
		if _, err := s.stream.Publish(ctx, stream.FromNotification(notif)); err != nil {
			// Stream is advisory; a publish failure never fails dispatch.
			s.logger.Warn("failed to publish notification to stream",
				zap.Error(err),
				zap.String("notification_id", notif.ID.String()),
			)
		}
	}

	return true, nil
}

// settingFor reads a user's toggles, falling back to the all-enabled defaults
// when the read fails. A settings outage must not hold notifications hostage.
func (s *Service) settingFor(ctx context.Context, userID int64) store.Setting {
	setting, err := s.settings.Get(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to read notification settings, using defaults",
			zap.Error(err),
			zap.Int64("user_id", userID),
		)
		return store.DefaultSetting(userID)
	}
	return setting
}

// finish records delivery metrics and logs the failures from one dispatch.
func (s *Service) finish(kind string, report *deliver.Report) {
	for _, r := range report.Results {
		switch {
		case r.Skipped:
			metrics.RecordDelivery(r.Channel, metrics.OutcomeSkipped)
		case r.Err != nil:
			metrics.RecordDelivery(r.Channel, metrics.OutcomeFailed)
		default:
			metrics.RecordDelivery(r.Channel, metrics.OutcomeDelivered)
		}
	}

	for _, f := range report.Failures() {
		s.logger.Warn("external delivery failed",
			zap.String("event_kind", kind),
			zap.String("channel", f.Channel),
			zap.Int64("user_id", f.UserID),
			zap.Error(f.Err),
		)
	}

	if n := report.DeliveredCount(); n > 0 {
		s.logger.Info("external deliveries complete",
			zap.String("event_kind", kind),
			zap.Int("delivered", n),
			zap.Int("failed", len(report.Failures())),
		)
	}
}
