package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
)

// Record is one restaurant in the record store.
//
// Only the fields the pipeline reads or writes are typed. Every other stored
// key (cuisine, address, google_rating, ...) is kept in Extra and written back
// unchanged.
type Record struct {
	ID              string
	Name            string
	NameEN          string
	MentionCount    int
	TotalEngagement float64
	Sources         []string
	PostDetails     []PostDetail
	Timeseries      []TimeseriesPoint
	Recommendations []Dish
	SentimentScore  *float64
	Status          Status
	MergedInto      string
	GooglePlaceID   string
	MergeInfo       *MergeInfo
	UpdatedAt       string

	// LegacyTimeseries holds a stored timeseries value that is not a list.
	// It is written back as is until the record is migrated.
	LegacyTimeseries json.RawMessage
	Extra            map[string]json.RawMessage
}

// PostDetail is one social post attributed to a record.
type PostDetail struct {
	PostID             string
	Title              string
	Date               string
	Engagement         float64
	AdjustedEngagement *float64
	Sentiment          Sentiment
	Extra              map[string]json.RawMessage
}

// TimeseriesPoint aggregates mentions for one calendar month (YYYY-MM).
type TimeseriesPoint struct {
	Month      string  `json:"month"`
	Mentions   int     `json:"mentions"`
	Engagement float64 `json:"engagement"`
}

// MergeInfo records how a record entered the store.
type MergeInfo struct {
	AddedDate   string
	Source      string
	SourcePost  string
	NeedsReview bool
	Extra       map[string]json.RawMessage
}

// Dish is a recommended dish. Older stores keep recommendations as objects
// ({"name": ...} or {"dish": ...}); those are written back in their
// original shape.
type Dish struct {
	Name string
	Raw  json.RawMessage
}

// IsMerged reports whether the record was retired as a duplicate.
func (r *Record) IsMerged() bool { return r.Status == StatusDuplicateMerged }

// IsActive reports whether the record is neither merged nor rejected.
func (r *Record) IsActive() bool {
	return r.Status == "" || r.Status == StatusActive
}

// NeedsReview reports whether the record awaits manual review.
func (r *Record) NeedsReview() bool { return r.MergeInfo != nil && r.MergeInfo.NeedsReview }

// HasSource reports whether postID is already attributed to the record.
func (r *Record) HasSource(postID string) bool { return slices.Contains(r.Sources, postID) }

// AddSource appends postID unless it is empty or already present.
func (r *Record) AddSource(postID string) bool {
	if postID == "" || r.HasSource(postID) {
		return false
	}
	r.Sources = append(r.Sources, postID)
	return true
}

// NeedsTimeseriesMigration reports whether the stored timeseries is missing
// or not a list.
func (r *Record) NeedsTimeseriesMigration() bool { return r.Timeseries == nil }

// MigrateTimeseries replaces a missing or legacy timeseries with an empty
// list and drops the legacy trend_30d field.
func (r *Record) MigrateTimeseries() {
	r.Timeseries = []TimeseriesPoint{}
	r.LegacyTimeseries = nil
	delete(r.Extra, "trend_30d")
}

// AddToMonth adds mentions and engagement to the month bucket, creating it
// when absent, then sorts ascending and keeps the newest maxMonths buckets.
func (r *Record) AddToMonth(month string, mentions int, engagement float64, maxMonths int) {
	found := false
	for i := range r.Timeseries {
		if r.Timeseries[i].Month == month {
			r.Timeseries[i].Mentions += mentions
			r.Timeseries[i].Engagement += engagement
			found = true
			break
		}
	}
	if !found {
		r.Timeseries = append(r.Timeseries, TimeseriesPoint{Month: month, Mentions: mentions, Engagement: engagement})
	}
	r.Timeseries = TrimTimeseries(r.Timeseries, maxMonths)
}

// HasDish reports whether a dish with the same normalized name exists.
func (r *Record) HasDish(name string) bool {
	key := NormalizeName(name)
	for _, d := range r.Recommendations {
		if NormalizeName(d.Name) == key {
			return true
		}
	}
	return false
}

// RecommendationNames returns the dish names in stored order.
func (r *Record) RecommendationNames() []string {
	names := make([]string, 0, len(r.Recommendations))
	for _, d := range r.Recommendations {
		names = append(names, d.Name)
	}
	return names
}

// TrimTimeseries sorts points ascending by month and keeps the newest max.
func TrimTimeseries(points []TimeseriesPoint, max int) []TimeseriesPoint {
	sort.SliceStable(points, func(i, j int) bool { return points[i].Month < points[j].Month })
	if max > 0 && len(points) > max {
		points = points[len(points)-max:]
	}
	return points
}

// SortPostDetails orders details by weight, highest first, and keeps at most max.
func SortPostDetails(details []PostDetail, max int) []PostDetail {
	sort.SliceStable(details, func(i, j int) bool { return details[i].Weight() > details[j].Weight() })
	if max > 0 && len(details) > max {
		details = details[:max]
	}
	return details
}

// Weight is the adjusted engagement when known, otherwise raw engagement.
func (p PostDetail) Weight() float64 {
	if p.AdjustedEngagement != nil {
		return *p.AdjustedEngagement
	}
	return p.Engagement
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 { return math.Round(v*100) / 100 }

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }

// ---------------------------------------------------------------------------
// JSON
// ---------------------------------------------------------------------------

func (r *Record) UnmarshalJSON(data []byte) error {
	obj, err := decodeObject(data)
	if err != nil {
		return err
	}

	var (
		id       looseString
		mentions Number
		total    Number
		out      Record
	)
	errs := []error{
		obj.take("id", &id),
		obj.take("name", &out.Name),
		obj.take("name_en", &out.NameEN),
		obj.take("mention_count", &mentions),
		obj.take("total_engagement", &total),
		obj.take("sources", &out.Sources),
		obj.take("post_details", &out.PostDetails),
		obj.take("recommendations", &out.Recommendations),
		obj.take("sentiment_score", &out.SentimentScore),
		obj.take("_status", &out.Status),
		obj.take("merged_into", &out.MergedInto),
		obj.take("google_place_id", &out.GooglePlaceID),
		obj.take("merge_info", &out.MergeInfo),
		obj.take("updated_at", &out.UpdatedAt),
	}

	if ts := obj.takeRaw("timeseries"); ts != nil {
		if t := bytes.TrimSpace(ts); len(t) > 0 && t[0] == '[' {
			if err := json.Unmarshal(t, &out.Timeseries); err != nil {
				errs = append(errs, fmt.Errorf("timeseries: %w", err))
			}
			if out.Timeseries == nil {
				out.Timeseries = []TimeseriesPoint{}
			}
		} else {
			out.LegacyTimeseries = ts
		}
	}

	out.ID = string(id)
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("record %q: %w", out.ID, err)
	}

	out.MentionCount = int(math.Round(mentions.Float()))
	out.TotalEngagement = total.Float()
	out.Extra = obj.rest()
	*r = out
	return nil
}

func (r Record) MarshalJSON() ([]byte, error) {
	w := newObjectWriter()
	w.field("id", r.ID)
	w.field("name", r.Name)
	if r.NameEN != "" {
		w.field("name_en", r.NameEN)
	}
	w.field("mention_count", r.MentionCount)
	w.field("total_engagement", r.TotalEngagement)
	if r.Sources != nil {
		w.field("sources", r.Sources)
	}
	if r.PostDetails != nil {
		w.field("post_details", r.PostDetails)
	}
	switch {
	case r.LegacyTimeseries != nil:
		w.raw("timeseries", r.LegacyTimeseries)
	case r.Timeseries != nil:
		w.field("timeseries", r.Timeseries)
	}
	if r.Recommendations != nil {
		w.field("recommendations", r.Recommendations)
	}
	if r.SentimentScore != nil {
		w.field("sentiment_score", *r.SentimentScore)
	}
	if r.Status != "" {
		w.field("_status", r.Status)
	}
	if r.MergedInto != "" {
		w.field("merged_into", r.MergedInto)
	}
	if r.GooglePlaceID != "" {
		w.field("google_place_id", r.GooglePlaceID)
	}
	if r.MergeInfo != nil {
		w.field("merge_info", r.MergeInfo)
	}
	if r.UpdatedAt != "" {
		w.field("updated_at", r.UpdatedAt)
	}
	w.extras(r.Extra)
	return w.bytes()
}

func (p *PostDetail) UnmarshalJSON(data []byte) error {
	obj, err := decodeObject(data)
	if err != nil {
		return err
	}

	var (
		id         looseString
		engagement Number
		adjusted   *Number
		out        PostDetail
	)
	if err := errors.Join(
		obj.take("post_id", &id),
		obj.take("title", &out.Title),
		obj.take("date", &out.Date),
		obj.take("engagement", &engagement),
		obj.take("adjusted_engagement", &adjusted),
		obj.take("sentiment", &out.Sentiment),
	); err != nil {
		return fmt.Errorf("post detail: %w", err)
	}

	out.PostID = string(id)
	out.Engagement = engagement.Float()
	if adjusted != nil {
		out.AdjustedEngagement = Float64(adjusted.Float())
	}
	out.Extra = obj.rest()
	*p = out
	return nil
}

func (p PostDetail) MarshalJSON() ([]byte, error) {
	w := newObjectWriter()
	w.field("post_id", p.PostID)
	if p.Title != "" {
		w.field("title", p.Title)
	}
	if p.Date != "" {
		w.field("date", p.Date)
	}
	w.field("engagement", p.Engagement)
	if p.AdjustedEngagement != nil {
		w.field("adjusted_engagement", *p.AdjustedEngagement)
	}
	if p.Sentiment != "" {
		w.field("sentiment", p.Sentiment)
	}
	w.extras(p.Extra)
	return w.bytes()
}

func (m *MergeInfo) UnmarshalJSON(data []byte) error {
	obj, err := decodeObject(data)
	if err != nil {
		return err
	}
	var out MergeInfo
	if err := errors.Join(
		obj.take("added_date", &out.AddedDate),
		obj.take("source", &out.Source),
		obj.take("source_post", &out.SourcePost),
		obj.take("needs_review", &out.NeedsReview),
	); err != nil {
		return fmt.Errorf("merge info: %w", err)
	}
	out.Extra = obj.rest()
	*m = out
	return nil
}

func (m MergeInfo) MarshalJSON() ([]byte, error) {
	w := newObjectWriter()
	if m.AddedDate != "" {
		w.field("added_date", m.AddedDate)
	}
	if m.Source != "" {
		w.field("source", m.Source)
	}
	if m.SourcePost != "" {
		w.field("source_post", m.SourcePost)
	}
	w.field("needs_review", m.NeedsReview)
	w.extras(m.Extra)
	return w.bytes()
}

func (d *Dish) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var name string
		if err := json.Unmarshal(trimmed, &name); err != nil {
			return err
		}
		*d = Dish{Name: name}
		return nil
	}

	out := Dish{Raw: append(json.RawMessage(nil), trimmed...)}
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var obj struct {
			Name string `json:"name"`
			Dish string `json:"dish"`
		}
		if err := json.Unmarshal(trimmed, &obj); err == nil {
			out.Name = obj.Name
			if out.Name == "" {
				out.Name = obj.Dish
			}
		}
	}
	*d = out
	return nil
}

func (d Dish) MarshalJSON() ([]byte, error) {
	if d.Raw != nil {
		return d.Raw, nil
	}
	return json.Marshal(d.Name)
}

// String returns the dish name.
func (d Dish) String() string { return strings.TrimSpace(d.Name) }
