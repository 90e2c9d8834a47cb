package domain

import "encoding/json"

// SlimIndex is the serving document produced from the record store.
type SlimIndex struct {
	Version          json.RawMessage `json:"version,omitempty"`
	UpdatedAt        string          `json:"updated_at"`
	TotalRestaurants int             `json:"total_restaurants"`
	Restaurants      []SlimRecord    `json:"restaurants"`
}

// SlimRecord is the allow-listed projection of a Record. Pass-through fields
// keep their stored encoding; they and the collections are omitted when the
// record lacks them.
type SlimRecord struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	NameEN          string            `json:"name_en,omitempty"`
	Cuisine         json.RawMessage   `json:"cuisine,omitempty"`
	Region          json.RawMessage   `json:"region,omitempty"`
	City            json.RawMessage   `json:"city,omitempty"`
	PriceRange      json.RawMessage   `json:"price_range,omitempty"`
	GoogleRating    json.RawMessage   `json:"google_rating,omitempty"`
	Verified        json.RawMessage   `json:"verified,omitempty"`
	TotalEngagement float64           `json:"total_engagement"`
	MentionCount    int               `json:"mention_count"`
	SentimentScore  *float64          `json:"sentiment_score,omitempty"`
	Address         json.RawMessage   `json:"address,omitempty"`
	SemanticTags    json.RawMessage   `json:"semantic_tags,omitempty"`
	Recommendations []Dish            `json:"recommendations,omitempty"`
	Timeseries      []TimeseriesPoint `json:"timeseries,omitempty"`
	PostDetails     []SlimPostDetail  `json:"post_details,omitempty"`
}

// SlimPostDetail is a post detail stripped to its serving fields.
type SlimPostDetail struct {
	PostID             string   `json:"post_id"`
	Title              string   `json:"title,omitempty"`
	Date               string   `json:"date,omitempty"`
	Engagement         float64  `json:"engagement"`
	AdjustedEngagement *float64 `json:"adjusted_engagement,omitempty"`
}
