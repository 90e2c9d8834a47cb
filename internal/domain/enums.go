package domain

// Status is the lifecycle marker of a record. Records are never physically
// removed; duplicates and bad entries are retired by status.
type Status string

const (
	StatusActive          Status = "active"
	StatusDuplicateMerged Status = "duplicate_merged"
	StatusRejected        Status = "rejected"
)

func (s Status) String() string { return string(s) }

// IsValid reports whether s is a known status. The empty status is treated
// as active.
func (s Status) IsValid() bool {
	switch s {
	case "", StatusActive, StatusDuplicateMerged, StatusRejected:
		return true
	}
	return false
}

// Sentiment is the polarity label attached to a mention.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

func (s Sentiment) String() string { return string(s) }

func (s Sentiment) IsValid() bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

// Value maps the label onto the [0,1] sentiment scale.
// Unknown labels count as neutral.
func (s Sentiment) Value() float64 {
	switch s {
	case SentimentPositive:
		return 1.0
	case SentimentNegative:
		return 0.0
	default:
		return 0.5
	}
}

// SentimentFromScore infers a label from an aggregate score.
func SentimentFromScore(score float64) Sentiment {
	switch {
	case score >= 0.7:
		return SentimentPositive
	case score <= 0.3:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}
