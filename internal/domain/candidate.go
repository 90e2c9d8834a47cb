package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Candidate is one restaurant mention extracted from a social post.
type Candidate struct {
	Name           string    `json:"name"`
	NameEN         string    `json:"name_en,omitempty"`
	SourcePostID   string    `json:"source_post_id"`
	SourceTitle    string    `json:"source_title,omitempty"`
	SourcePostDate string    `json:"source_post_date,omitempty"`
	Engagement     Number    `json:"engagement"`
	Dishes         []string  `json:"dishes,omitempty"`
	Sentiment      Sentiment `json:"sentiment,omitempty"`
	GooglePlaceID  string    `json:"google_place_id,omitempty"`
	City           string    `json:"city,omitempty"`
	Cuisine        string    `json:"cuisine,omitempty"`
	PriceRange     string    `json:"price_range,omitempty"`
}

// Key is the normalized name used for matching.
func (c Candidate) Key() string { return NormalizeName(c.Name) }

// Validate checks the fields every stage relies on.
func (c Candidate) Validate() error {
	var errs []FieldError
	if strings.TrimSpace(c.Name) == "" || c.Key() == "" {
		errs = append(errs, FieldError{Field: "name", Message: "required"})
	}
	if c.Engagement < 0 {
		errs = append(errs, FieldError{Field: "engagement", Message: fmt.Sprintf("must be >= 0 (got %v)", c.Engagement)})
	}
	if c.Sentiment != "" && !c.Sentiment.IsValid() {
		errs = append(errs, FieldError{Field: "sentiment", Message: fmt.Sprintf("unknown value %q", c.Sentiment)})
	}
	if len(errs) > 0 {
		return NewValidationErrors(errs)
	}
	return nil
}

// NameLength is the trimmed display length of the name in runes.
func (c Candidate) NameLength() int { return utf8.RuneCountInString(strings.TrimSpace(c.Name)) }
