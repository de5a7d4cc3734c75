// Package event defines the domain events that drive notification dispatch
// and the denormalized entity snapshots they carry. The platform's relational
// store is an external collaborator; events expose exactly the fields the
// pipeline needs so that dispatch never reads back into platform tables.
package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies the type of domain event.
type Kind string

const (
	KindNewComment     Kind = "new_comment"
	KindNewMention     Kind = "new_mention"
	KindTagAdjustment  Kind = "tag_adjustment"
	KindSubforemChange Kind = "subforem_change"
	KindMentionCleanup Kind = "mention_cleanup"
)

// Valid reports whether k is a known event kind.
func (k Kind) Valid() bool {
	switch k {
	case KindNewComment, KindNewMention, KindTagAdjustment, KindSubforemChange, KindMentionCleanup:
		return true
	}
	return false
}

// NotifiableKind tags the entity a notification refers to.
type NotifiableKind string

const (
	NotifiableComment       NotifiableKind = "Comment"
	NotifiableMention       NotifiableKind = "Mention"
	NotifiableArticle       NotifiableKind = "Article"
	NotifiableTagAdjustment NotifiableKind = "TagAdjustment"
)

// Ref is a typed reference to a notifiable entity.
type Ref struct {
	Kind NotifiableKind `json:"kind"`
	ID   int64          `json:"id"`
}

func (r Ref) String() string {
	return fmt.Sprintf("%s/%d", r.Kind, r.ID)
}

// User is the snapshot of a platform user carried on events.
type User struct {
	ID                   int64  `json:"id"`
	Name                 string `json:"name"`
	Username             string `json:"username"`
	ProfileImageURL      string `json:"profile_image_url,omitempty"`
	Email                string `json:"email,omitempty"`
	ReceiveNotifications bool   `json:"receive_notifications"`
}

// Organization is the snapshot of an organization that owns an article.
type Organization struct {
	ID                   int64  `json:"id"`
	Name                 string `json:"name"`
	Slug                 string `json:"slug"`
	ReceiveNotifications bool   `json:"receive_notifications"`
}

// Subforem identifies a community an article is published in.
type Subforem struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

// Article is the snapshot of the commentable/mentionable article.
type Article struct {
	ID           int64         `json:"id"`
	Title        string        `json:"title"`
	Path         string        `json:"path"`
	Score        int           `json:"score"`
	Author       User          `json:"author"`
	Organization *Organization `json:"organization,omitempty"`
	SubforemID   int64         `json:"subforem_id,omitempty"`
}

// Comment is the new_comment event source. AncestorAuthors holds the authors
// of every comment above this one in the thread, commentable owner excluded.
type Comment struct {
	ID              int64    `json:"id"`
	BodyHTML        string   `json:"body_html"`
	Author          User     `json:"author"`
	Article         *Article `json:"article"`
	AncestorAuthors []User   `json:"ancestor_authors,omitempty"`
}

// Mention is the new_mention event source. Score is the score of the
// mentionable entity the mention occurred on.
type Mention struct {
	ID          int64    `json:"id"`
	Mentioned   User     `json:"mentioned"`
	Mentionable Ref      `json:"mentionable"`
	Score       int      `json:"score"`
	Author      User     `json:"author"`
	Article     *Article `json:"article,omitempty"`
	CommentText string   `json:"comment_text,omitempty"`
}

// Adjustment types for tag moderation.
const (
	AdjustmentAddition = "addition"
	AdjustmentRemoval  = "removal"
)

// TagAdjustment is the tag_adjustment event source. The moderator's
// tag_moderator role is verified upstream, before the event is emitted.
type TagAdjustment struct {
	ID             int64    `json:"id"`
	TagName        string   `json:"tag_name"`
	AdjustmentType string   `json:"adjustment_type"`
	Reason         string   `json:"reason,omitempty"`
	Article        *Article `json:"article"`
}

// SubforemChange is emitted when moderation moves an article between
// communities.
type SubforemChange struct {
	Article     *Article  `json:"article"`
	OldSubforem *Subforem `json:"old_subforem"`
	NewSubforem *Subforem `json:"new_subforem"`
}

// MentionCleanup carries the ids of mention rows removed by an edit; any
// notifications referencing them must be deleted.
type MentionCleanup struct {
	RemovedMentionIDs []int64 `json:"removed_mention_ids"`
}

// Envelope is the wire format for events in transit through the queue.
// Exactly one of the event pointers is set, matching Kind.
type Envelope struct {
	Kind           Kind            `json:"kind"`
	Comment        *Comment        `json:"comment,omitempty"`
	Mention        *Mention        `json:"mention,omitempty"`
	TagAdjustment  *TagAdjustment  `json:"tag_adjustment,omitempty"`
	SubforemChange *SubforemChange `json:"subforem_change,omitempty"`
	MentionCleanup *MentionCleanup `json:"mention_cleanup,omitempty"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

// Validate checks that the envelope carries the payload its kind promises.
func (e *Envelope) Validate() error {
	if !e.Kind.Valid() {
		return fmt.Errorf("unknown event kind: %q", e.Kind)
	}
	switch e.Kind {
	case KindNewComment:
		if e.Comment == nil {
			return fmt.Errorf("%s event missing comment", e.Kind)
		}
	case KindNewMention:
		if e.Mention == nil {
			return fmt.Errorf("%s event missing mention", e.Kind)
		}
	case KindTagAdjustment:
		if e.TagAdjustment == nil {
			return fmt.Errorf("%s event missing tag_adjustment", e.Kind)
		}
		if t := e.TagAdjustment.AdjustmentType; t != AdjustmentAddition && t != AdjustmentRemoval {
			return fmt.Errorf("invalid adjustment_type: %q", t)
		}
	case KindSubforemChange:
		if e.SubforemChange == nil {
			return fmt.Errorf("%s event missing subforem_change", e.Kind)
		}
	case KindMentionCleanup:
		if e.MentionCleanup == nil || len(e.MentionCleanup.RemovedMentionIDs) == 0 {
			return fmt.Errorf("%s event missing removed mention ids", e.Kind)
		}
	}
	return nil
}

// Fingerprint returns a stable dedup key for the event. Two enqueues of the
// same domain occurrence produce the same fingerprint.
func (e *Envelope) Fingerprint() string {
	switch e.Kind {
	case KindNewComment:
		if e.Comment != nil {
			return fmt.Sprintf("%s:%d", e.Kind, e.Comment.ID)
		}
	case KindNewMention:
		if e.Mention != nil {
			return fmt.Sprintf("%s:%d", e.Kind, e.Mention.ID)
		}
	case KindTagAdjustment:
		if e.TagAdjustment != nil {
			return fmt.Sprintf("%s:%d", e.Kind, e.TagAdjustment.ID)
		}
	case KindSubforemChange:
		if e.SubforemChange != nil && e.SubforemChange.Article != nil {
			return fmt.Sprintf("%s:%d:%d", e.Kind, e.SubforemChange.Article.ID, e.SubforemChange.Article.SubforemID)
		}
	case KindMentionCleanup:
		if e.MentionCleanup != nil {
			ids, _ := json.Marshal(e.MentionCleanup.RemovedMentionIDs)
			return fmt.Sprintf("%s:%s", e.Kind, ids)
		}
	}
	return string(e.Kind)
}
