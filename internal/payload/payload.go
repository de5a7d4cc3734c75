// Package payload builds the denormalized json_data blobs stored on
// notifications. A blob must render in a feed without any further lookups,
// so everything a reader needs is copied in at build time. Builders are pure
// functions; a payload is built fresh per event and never cached.
package payload

import (
	"encoding/json"
	"fmt"

	"github.com/heraldhq/herald/internal/event"
)

// CommentBodyLimit bounds the comment text copied into json_data.
const CommentBodyLimit = 250

// UserData is the minimal user snapshot embedded in payloads.
type UserData struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Username        string `json:"username"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
}

// ArticleData is the minimal article snapshot embedded in payloads.
type ArticleData struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Path  string `json:"path"`
}

// CommentData carries the comment text plus enough of the article to link to.
type CommentData struct {
	ID           int64  `json:"id"`
	Text         string `json:"text"`
	ArticleTitle string `json:"article_title"`
	ArticlePath  string `json:"article_path"`
}

// SubforemData identifies a community in subforem-change payloads.
type SubforemData struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

// User builds the user snapshot. Optional profile fields may be absent.
func User(u event.User) UserData {
	return UserData{
		ID:              u.ID,
		Name:            u.Name,
		Username:        u.Username,
		ProfileImageURL: u.ProfileImageURL,
	}
}

// Article builds the article snapshot.
func Article(a *event.Article) ArticleData {
	if a == nil {
		return ArticleData{}
	}
	return ArticleData{ID: a.ID, Title: a.Title, Path: a.Path}
}

// Comment builds the json_data blob for a new-comment notification.
func Comment(c *event.Comment) json.RawMessage {
	data := CommentData{ID: c.ID, Text: Truncate(StripHTML(c.BodyHTML), CommentBodyLimit)}
	if c.Article != nil {
		data.ArticleTitle = c.Article.Title
		data.ArticlePath = c.Article.Path
	}

	return marshal(map[string]any{
		"user":    User(c.Author),
		"comment": data,
	})
}

// Mention builds the json_data blob for a new-mention notification.
func Mention(m *event.Mention) json.RawMessage {
	blob := map[string]any{
		"user":        User(m.Author),
		"mentionable": m.Mentionable,
	}
	if m.Article != nil {
		blob["article"] = Article(m.Article)
	}
	if m.CommentText != "" {
		blob["comment_text"] = Truncate(StripHTML(m.CommentText), CommentBodyLimit)
	}
	return marshal(blob)
}

// TagAdjustment builds the json_data blob for a tag moderation notification.
// adjustment_type reflects the adjustment passed in on every call.
func TagAdjustment(adj *event.TagAdjustment) json.RawMessage {
	blob := map[string]any{
		"adjustment": map[string]any{
			"tag_name":        adj.TagName,
			"adjustment_type": adj.AdjustmentType,
			"reason":          adj.Reason,
		},
	}
	if adj.Article != nil {
		blob["article"] = Article(adj.Article)
	}
	return marshal(blob)
}

// SubforemChange builds the json_data blob for a community-move notification,
// including a human-readable explanation of what moved where.
func SubforemChange(sc *event.SubforemChange) json.RawMessage {
	blob := map[string]any{
		"article": Article(sc.Article),
	}
	if sc.OldSubforem != nil {
		blob["old_subforem"] = SubforemData(*sc.OldSubforem)
	}
	if sc.NewSubforem != nil {
		blob["new_subforem"] = SubforemData(*sc.NewSubforem)
	}
	if sc.Article != nil && sc.OldSubforem != nil && sc.NewSubforem != nil {
		blob["explanation"] = fmt.Sprintf(
			"Your post %q was moved from %s to %s.",
			sc.Article.Title, sc.OldSubforem.Name, sc.NewSubforem.Name,
		)
	}
	return marshal(blob)
}

func marshal(v any) json.RawMessage {
	// Inputs are plain structs and strings; marshaling cannot fail.
	b, _ := json.Marshal(v)
	return b
}
