package rest

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/iris-familiar/bay-area-food-map-sub001/internal/domain"
)

type snapshotSource interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// Sort orders accepted by the list endpoint. Engagement is the default.
const (
	SortEngagement = "engagement"
	SortMentions   = "mentions"
	SortSentiment  = "sentiment"
)

const defaultPageSize = 20

// RestaurantHandler serves the read-only restaurant API.
type RestaurantHandler struct {
	log     *slog.Logger
	catalog snapshotSource
	maxPage int
}

// NewRestaurantHandler creates a RestaurantHandler. maxPage caps limit.
func NewRestaurantHandler(log *slog.Logger, catalog snapshotSource, maxPage int) *RestaurantHandler {
	if maxPage < 1 {
		maxPage = defaultPageSize
	}
	return &RestaurantHandler{log: log, catalog: catalog, maxPage: maxPage}
}

// ListResponse is one page of restaurants.
type ListResponse struct {
	UpdatedAt   string              `json:"updated_at"`
	Total       int                 `json:"total"`
	Limit       int                 `json:"limit"`
	Offset      int                 `json:"offset"`
	Restaurants []domain.SlimRecord `json:"restaurants"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

type listQuery struct {
	limit, offset int
	q             searchTerm
	sort          string
}

// searchTerm is the q parameter in both normalized forms: nameKey for names,
// text for word matching in cuisine.
type searchTerm struct {
	nameKey string
	text    string
}

func newSearchTerm(q string) searchTerm {
	return searchTerm{nameKey: domain.NormalizeName(q), text: domain.NormalizeText(q)}
}

func (s searchTerm) matches(rec domain.SlimRecord) bool {
	if s.nameKey == "" {
		return true
	}
	return strings.Contains(domain.NormalizeName(rec.Name), s.nameKey) ||
		strings.Contains(domain.NormalizeName(rec.NameEN), s.nameKey) ||
		strings.Contains(cuisineText(rec.Cuisine), s.text)
}

// cuisineText flattens a cuisine value stored as a string or a list of
// strings. Other shapes match nothing.
func cuisineText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return domain.NormalizeText(one)
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return domain.NormalizeText(strings.Join(many, " "))
	}
	return ""
}

// List handles GET /api/restaurants?limit&offset&q&sort.
// q matches name and name_en after name normalization, or cuisine words.
func (h *RestaurantHandler) List(w http.ResponseWriter, r *http.Request) {
	query, err := h.parseList(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	matches := filterRecords(snap.Index.Restaurants, query.q)
	sortRecords(matches, query.sort)

	page := []domain.SlimRecord{}
	if query.offset < len(matches) {
		end := min(query.offset+query.limit, len(matches))
		page = matches[query.offset:end]
	}

	writeJSON(w, http.StatusOK, ListResponse{
		UpdatedAt:   snap.Index.UpdatedAt,
		Total:       len(matches),
		Limit:       query.limit,
		Offset:      query.offset,
		Restaurants: page,
	})
}

// Get handles GET /api/restaurants/{id}.
func (h *RestaurantHandler) Get(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	rec, found := snap.Find(r.PathValue("id"))
	if !found {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "restaurant not found"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *RestaurantHandler) snapshot(w http.ResponseWriter, r *http.Request) (*Snapshot, bool) {
	snap, err := h.catalog.Snapshot(r.Context())
	if err != nil {
		h.log.ErrorContext(r.Context(), "index unavailable", slog.String("error", err.Error()))
		status := http.StatusServiceUnavailable
		if !errors.Is(err, domain.ErrMalformedStore) && !isNotExist(err) {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, ErrorResponse{Error: "index unavailable"})
		return nil, false
	}
	return snap, true
}

func (h *RestaurantHandler) parseList(r *http.Request) (listQuery, error) {
	v := r.URL.Query()
	q := listQuery{limit: min(defaultPageSize, h.maxPage), q: newSearchTerm(v.Get("q")), sort: v.Get("sort")}

	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return q, errors.New("limit must be a positive integer")
		}
		q.limit = min(n, h.maxPage)
	}
	if s := v.Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return q, errors.New("offset must be a non-negative integer")
		}
		q.offset = n
	}
	switch q.sort {
	case "":
		q.sort = SortEngagement
	case SortEngagement, SortMentions, SortSentiment:
	default:
		return q, errors.New("sort must be one of engagement, mentions, sentiment")
	}
	return q, nil
}

func filterRecords(all []domain.SlimRecord, q searchTerm) []domain.SlimRecord {
	out := make([]domain.SlimRecord, 0, len(all))
	for _, rec := range all {
		if q.matches(rec) {
			out = append(out, rec)
		}
	}
	return out
}

func sortRecords(recs []domain.SlimRecord, by string) {
	switch by {
	case SortEngagement:
		slices.SortStableFunc(recs, func(a, b domain.SlimRecord) int {
			return cmp.Compare(b.TotalEngagement, a.TotalEngagement)
		})
	case SortMentions:
		slices.SortStableFunc(recs, func(a, b domain.SlimRecord) int {
			return cmp.Compare(b.MentionCount, a.MentionCount)
		})
	case SortSentiment:
		score := func(r domain.SlimRecord) float64 {
			if r.SentimentScore == nil {
				return -1
			}
			return *r.SentimentScore
		}
		slices.SortStableFunc(recs, func(a, b domain.SlimRecord) int {
			return cmp.Compare(score(b), score(a))
		})
	}
}
