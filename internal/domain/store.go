package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Store is the full record store document.
type Store struct {
	UpdatedAt        string
	VerifiedAt       string
	TotalRestaurants int
	Restaurants      []Record

	// Meta holds the remaining header keys (version, scoring_version, ...).
	Meta map[string]json.RawMessage
}

// TimeFormat is the timestamp layout used for updated_at and verified_at.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// FormatTime renders t in UTC using TimeFormat.
func FormatTime(t time.Time) string { return t.UTC().Format(TimeFormat) }

// MonthKey renders the calendar month of t in UTC as YYYY-MM.
func MonthKey(t time.Time) string { return t.UTC().Format("2006-01") }

// DecodeStore parses a record store document.
// Invalid JSON yields ErrMalformedStore; a missing or non-list restaurants
// key yields ErrRestaurantsNotList.
func DecodeStore(data []byte) (*Store, error) {
	obj, err := decodeObject(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedStore, err)
	}

	raw := bytes.TrimSpace(obj.takeRaw("restaurants"))
	if len(raw) == 0 || raw[0] != '[' {
		return nil, ErrRestaurantsNotList
	}

	var s Store
	if err := json.Unmarshal(raw, &s.Restaurants); err != nil {
		return nil, fmt.Errorf("%w: restaurants: %v", ErrMalformedStore, err)
	}
	if s.Restaurants == nil {
		s.Restaurants = []Record{}
	}

	var total Number
	if err := obj.take("total_restaurants", &total); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedStore, err)
	}
	s.TotalRestaurants = int(math.Round(total.Float()))

	var updated, verified looseString
	if err := obj.take("updated_at", &updated); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedStore, err)
	}
	if err := obj.take("verified_at", &verified); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedStore, err)
	}
	s.UpdatedAt, s.VerifiedAt = string(updated), string(verified)
	s.Meta = obj.rest()

	return &s, nil
}

// EncodeStore renders the store as indented JSON, the on-disk format.
func EncodeStore(s *Store) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode store: %w", err)
	}
	return append(data, '\n'), nil
}

func (s Store) MarshalJSON() ([]byte, error) {
	w := newObjectWriter()
	meta := make(map[string]json.RawMessage, len(s.Meta))
	for k, v := range s.Meta {
		meta[k] = v
	}
	if v, ok := meta["version"]; ok {
		w.raw("version", v)
		delete(meta, "version")
	}
	if s.UpdatedAt != "" {
		w.field("updated_at", s.UpdatedAt)
	}
	if s.VerifiedAt != "" {
		w.field("verified_at", s.VerifiedAt)
	}
	w.field("total_restaurants", s.TotalRestaurants)
	w.extras(meta)

	restaurants := s.Restaurants
	if restaurants == nil {
		restaurants = []Record{}
	}
	w.field("restaurants", restaurants)
	return w.bytes()
}

// Version returns the encoded version header, or nil when absent.
func (s *Store) Version() json.RawMessage { return s.Meta["version"] }

// SetMeta stores a header value.
func (s *Store) SetMeta(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store meta %s: %w", key, err)
	}
	if s.Meta == nil {
		s.Meta = make(map[string]json.RawMessage)
	}
	s.Meta[key] = data
	return nil
}

// Count is the number of records, merged ones included.
func (s *Store) Count() int { return len(s.Restaurants) }

// Find returns the record with the given id.
func (s *Store) Find(id string) (*Record, bool) {
	for i := range s.Restaurants {
		if s.Restaurants[i].ID == id {
			return &s.Restaurants[i], true
		}
	}
	return nil, false
}

// Touch stamps the store header with t.
func (s *Store) Touch(t time.Time) { s.UpdatedAt = FormatTime(t) }
