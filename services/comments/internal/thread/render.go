package thread

import (
	"strings"
	"time"

	"github.com/example/quotation-comments/services/comments/internal/store"
)

// AnonymousAuthor labels comments without an author name.
const AnonymousAuthor = "Anonymous"

// DisplayAuthor is the name shown for c.
func DisplayAuthor(c store.Comment) string {
	if c.AuthorName == nil {
		return AnonymousAuthor
	}
	if name := strings.TrimSpace(*c.AuthorName); name != "" {
		return name
	}
	return AnonymousAuthor
}

// Edited reports whether c was changed after it was created.
func Edited(c store.Comment) bool {
	return !c.UpdatedAt.Equal(c.CreatedAt)
}

// ViewNode is the render-ready form of a Node.
type ViewNode struct {
	ID        string     `json:"id"`
	ParentID  *string    `json:"parent_id,omitempty"`
	Author    string     `json:"author"`
	Text      string     `json:"text"`
	CreatedAt time.Time  `json:"created_at"`
	Edited    bool       `json:"edited"`
	Replies   []ViewNode `json:"replies"`
}

// View projects nodes for display.
func View(nodes []Node) []ViewNode {
	out := make([]ViewNode, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, ViewNode{
			ID:        n.Comment.ID,
			ParentID:  n.Comment.ParentID,
			Author:    DisplayAuthor(n.Comment),
			Text:      n.Comment.Text,
			CreatedAt: n.Comment.CreatedAt,
			Edited:    Edited(n.Comment),
			Replies:   View(n.Replies),
		})
	}
	return out
}
