// Package extract turns raw social posts into restaurant candidates.
// Extraction quality is not a goal here; extractors are replaceable and the
// runner only guarantees bounded, rate-limited, failure-isolated batches.
package extract

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/iris-familiar/bay-area-food-map-sub001/internal/domain"
)

// Post is one scraped social post.
type Post struct {
	ID           string
	Title        string
	Desc         string
	Comments     []string
	CommentCount float64
	Time         time.Time
}

type rawComment struct {
	Content string `json:"content"`
	Text    string `json:"text"`
}

type rawPost struct {
	ID           json.RawMessage `json:"id"`
	NoteID       json.RawMessage `json:"noteId"`
	NoteIDSnake  json.RawMessage `json:"note_id"`
	Title        string          `json:"title"`
	Desc         string          `json:"desc"`
	Content      string          `json:"content"`
	Comments     []rawComment    `json:"comments"`
	InteractInfo struct {
		CommentCount domain.Number `json:"commentCount"`
	} `json:"interactInfo"`
	Time int64 `json:"time"`
}

// ParsePost decodes a raw post document.
func ParsePost(data []byte) (Post, error) {
	var raw rawPost
	if err := json.Unmarshal(data, &raw); err != nil {
		return Post{}, fmt.Errorf("%w: post: %v", domain.ErrMalformedInput, err)
	}

	p := Post{
		ID:           firstID(raw.ID, raw.NoteID, raw.NoteIDSnake),
		Title:        raw.Title,
		Desc:         raw.Desc,
		CommentCount: raw.InteractInfo.CommentCount.Float(),
	}
	if p.Desc == "" {
		p.Desc = raw.Content
	}
	for _, c := range raw.Comments {
		text := c.Content
		if text == "" {
			text = c.Text
		}
		if text != "" {
			p.Comments = append(p.Comments, text)
		}
	}
	if raw.Time > 0 {
		p.Time = time.UnixMilli(raw.Time).UTC()
	}
	return p, nil
}

func firstID(candidates ...json.RawMessage) string {
	for _, raw := range candidates {
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s != "" {
				return s
			}
			continue
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			return n.String()
		}
	}
	return ""
}

// Text joins title, body and comments.
func (p Post) Text() string {
	parts := make([]string, 0, 2+len(p.Comments))
	parts = append(parts, p.Title, p.Desc)
	parts = append(parts, p.Comments...)
	return strings.Join(parts, "\n")
}

// Date is the publication day as YYYY-MM-DD, empty when unknown.
func (p Post) Date() string {
	if p.Time.IsZero() {
		return ""
	}
	return p.Time.Format(time.DateOnly)
}

// ShortTitle is the title cut to 80 runes, or the body when untitled.
func (p Post) ShortTitle() string {
	title := p.Title
	if title == "" {
		title = p.Desc
	}
	r := []rune(title)
	if len(r) > 80 {
		r = r[:80]
	}
	return string(r)
}

var bayAreaSignals = []string{
	"Cupertino", "Milpitas", "Fremont", "Mountain View", "Sunnyvale",
	"San Jose", "Palo Alto", "Santa Clara", "San Mateo", "Foster City",
	"Redwood City", "Menlo Park", "Union City", "Newark", "Hayward",
	"SF", "San Francisco", "South Bay", "East Bay", "Peninsula", "Bay Area",
	"南湾", "东湾", "湾区", "旧金山", "圣荷西", "硅谷",
	"库柏蒂诺", "米比达斯", "弗里蒙特", "山景城", "桑尼维尔",
}

// IsBayArea reports whether the post mentions a Bay Area place.
func (p Post) IsBayArea() bool {
	text := p.Text()
	for _, s := range bayAreaSignals {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}

// candidate builds a Candidate attributed to p.
func (p Post) candidate(name string) domain.Candidate {
	return domain.Candidate{
		Name:           strings.TrimSpace(name),
		SourcePostID:   p.ID,
		SourceTitle:    p.ShortTitle(),
		SourcePostDate: p.Date(),
		Engagement:     domain.Number(p.CommentCount),
	}
}
