// Package fanout computes the recipient set for a domain event. Resolvers
// are pure functions over event snapshots: they apply the exclusion rules
// (author exclusion, opt-out, negative-score suppression) and deduplicate,
// but never touch storage. A missing related entity yields an empty set —
// notification fan-out is best-effort and must not fail the operation that
// triggered it.
package fanout

import "github.com/heraldhq/herald/internal/event"

// Reasons recorded on resolved recipients.
const (
	ReasonAncestorCommenter = "ancestor_commenter"
	ReasonCommentableOwner  = "commentable_owner"
	ReasonOrganization      = "organization"
	ReasonMentionedUser     = "mentioned_user"
	ReasonArticleAuthor     = "article_author"
)

// Recipient is a resolved notification target. Exactly one of UserID and
// OrganizationID is set. Organizations never receive push delivery.
type Recipient struct {
	UserID         *int64
	OrganizationID *int64
	Reason         string
}

func userRecipient(id int64, reason string) Recipient {
	return Recipient{UserID: &id, Reason: reason}
}

func orgRecipient(id int64, reason string) Recipient {
	return Recipient{OrganizationID: &id, Reason: reason}
}

// NewComment resolves recipients for a new comment: every ancestor commenter
// in the thread who opted into notifications, plus the article owner if opted
// in, minus the comment's own author. When the article belongs to an
// organization that opted in, the organization is added as a recipient.
func NewComment(c *event.Comment) []Recipient {
	if c == nil || c.Article == nil {
		return nil
	}

	seen := map[int64]bool{c.Author.ID: true} // never notify the author
	var out []Recipient

	for _, ancestor := range c.AncestorAuthors {
		if seen[ancestor.ID] || !ancestor.ReceiveNotifications {
			continue
		}
		seen[ancestor.ID] = true
		out = append(out, userRecipient(ancestor.ID, ReasonAncestorCommenter))
	}

	owner := c.Article.Author
	if !seen[owner.ID] && owner.ReceiveNotifications {
		seen[owner.ID] = true
		out = append(out, userRecipient(owner.ID, ReasonCommentableOwner))
	}

	if org := c.Article.Organization; org != nil && org.ReceiveNotifications {
		out = append(out, orgRecipient(org.ID, ReasonOrganization))
	}

	return out
}

// NewMention resolves the recipient for a mention. A negative mentionable
// score suppresses the mention entirely: no notification, no push.
func NewMention(m *event.Mention) []Recipient {
	if m == nil {
		return nil
	}
	if m.Score < 0 {
		return nil
	}
	if m.Mentioned.ID == m.Author.ID {
		return nil
	}
	return []Recipient{userRecipient(m.Mentioned.ID, ReasonMentionedUser)}
}

// TagAdjustment resolves the recipient for a tag moderation event: the
// article's author. The moderator's role on the tag is checked upstream.
func TagAdjustment(adj *event.TagAdjustment) []Recipient {
	if adj == nil || adj.Article == nil {
		return nil
	}
	return []Recipient{userRecipient(adj.Article.Author.ID, ReasonArticleAuthor)}
}

// SubforemChange resolves the recipient for a community move: the article's
// author.
func SubforemChange(sc *event.SubforemChange) []Recipient {
	if sc == nil || sc.Article == nil {
		return nil
	}
	return []Recipient{userRecipient(sc.Article.Author.ID, ReasonArticleAuthor)}
}
