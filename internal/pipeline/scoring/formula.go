package scoring

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/iris-familiar/bay-area-food-map-sub001/internal/domain"
)

// Formula names accepted in configuration.
const (
	SentimentEWMA     = "ewma-v1"
	SentimentWeighted = "weighted-v2"
	SentimentSmoothed = "smoothed-v3"

	EngagementRaw     = "raw"
	EngagementLogSqrt = "log-sqrt-v1"
)

// SentimentFormula derives a record's sentiment score from its post details.
// ok is false when the details carry no usable signal; the stored score is
// then left as is.
type SentimentFormula interface {
	Name() string
	Score(r *domain.Record) (score float64, ok bool)
}

// EngagementFormula rewrites adjusted engagement across the active records.
// It returns the number of records whose total changed.
type EngagementFormula interface {
	Name() string
	Adjust(records []*domain.Record) int
}

// NewSentimentFormula returns the formula registered under name.
func NewSentimentFormula(name string) (SentimentFormula, error) {
	switch name {
	case SentimentEWMA:
		return ewma{weight: 0.1}, nil
	case SentimentWeighted, "":
		return weighted{}, nil
	case SentimentSmoothed:
		return smoothed{}, nil
	}
	return nil, domain.NewValidationError("sentiment_formula", fmt.Sprintf("unknown formula %q", name))
}

// NewEngagementFormula returns the formula registered under name.
func NewEngagementFormula(name string) (EngagementFormula, error) {
	switch name {
	case EngagementRaw:
		return raw{}, nil
	case EngagementLogSqrt, "":
		return logSqrt{}, nil
	}
	return nil, domain.NewValidationError("engagement_formula", fmt.Sprintf("unknown formula %q", name))
}

// ---------------------------------------------------------------------------
// Sentiment
// ---------------------------------------------------------------------------

// ewma replays the running nudge of the metrics updater over the post
// details in date order, starting from neutral.
type ewma struct{ weight float64 }

func (ewma) Name() string { return SentimentEWMA }

func (f ewma) Score(r *domain.Record) (float64, bool) {
	details := append([]domain.PostDetail(nil), r.PostDetails...)
	sort.SliceStable(details, func(i, j int) bool { return details[i].Date < details[j].Date })

	score, seen := 0.5, false
	for _, p := range details {
		if p.Sentiment == domain.SentimentPositive || p.Sentiment == domain.SentimentNegative {
			score = domain.Round2(score*(1-f.weight) + p.Sentiment.Value()*f.weight)
			seen = true
		}
	}
	return score, seen
}

// weighted is the engagement-weighted mean of the labelled post details.
type weighted struct{}

func (weighted) Name() string { return SentimentWeighted }

func (weighted) Score(r *domain.Record) (float64, bool) {
	var sum, total float64
	for _, p := range r.PostDetails {
		if !p.Sentiment.IsValid() {
			continue
		}
		w := p.Weight()
		if w <= 0 {
			continue
		}
		sum += p.Sentiment.Value() * w
		total += w
	}
	if total == 0 {
		return 0, false
	}
	return domain.Round2(sum / total), true
}

// smoothed is a Laplace-smoothed positive share mapped onto [0.3, 1.0].
type smoothed struct{}

func (smoothed) Name() string { return SentimentSmoothed }

func (smoothed) Score(r *domain.Record) (float64, bool) {
	var pos, neg int
	for _, p := range r.PostDetails {
		switch p.Sentiment {
		case domain.SentimentPositive:
			pos++
		case domain.SentimentNegative:
			neg++
		}
	}
	if pos+neg == 0 {
		return 0, false
	}
	return domain.Round2(0.3 + 0.7*float64(pos+1)/float64(pos+neg+2)), true
}

// ---------------------------------------------------------------------------
// Engagement
// ---------------------------------------------------------------------------

type raw struct{}

func (raw) Name() string { return EngagementRaw }

func (raw) Adjust([]*domain.Record) int { return 0 }

// logSqrt dampens viral posts and splits a post's weight between every
// restaurant it mentions: adjusted = ln(engagement+1) / sqrt(N).
type logSqrt struct{}

func (logSqrt) Name() string { return EngagementLogSqrt }

const restaurantCountKey = "restaurant_count_in_post"

func (logSqrt) Adjust(records []*domain.Record) int {
	citing := make(map[string]int)
	for _, r := range records {
		for _, id := range postIDs(r) {
			citing[id]++
		}
	}

	changed := 0
	for _, r := range records {
		if len(r.PostDetails) == 0 {
			continue
		}
		var total float64
		for i := range r.PostDetails {
			p := &r.PostDetails[i]
			n := citing[p.PostID]
			if n < 1 {
				n = 1
			}
			adj := domain.Round2(math.Log(p.Engagement+1) / math.Sqrt(float64(n)))
			p.AdjustedEngagement = domain.Float64(adj)
			if p.Extra == nil {
				p.Extra = make(map[string]json.RawMessage)
			}
			p.Extra[restaurantCountKey] = json.RawMessage(strconv.Itoa(n))
			total += adj
		}
		r.PostDetails = domain.SortPostDetails(r.PostDetails, 0)
		if r.TotalEngagement != total {
			r.TotalEngagement = total
			changed++
		}
	}
	return changed
}

// postIDs returns the distinct non-empty post ids in r's post details.
func postIDs(r *domain.Record) []string {
	seen := make(map[string]struct{}, len(r.PostDetails))
	out := make([]string, 0, len(r.PostDetails))
	for _, p := range r.PostDetails {
		if p.PostID == "" {
			continue
		}
		if _, ok := seen[p.PostID]; ok {
			continue
		}
		seen[p.PostID] = struct{}{}
		out = append(out, p.PostID)
	}
	return out
}
