package extract

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/iris-familiar/bay-area-food-map-sub001/internal/domain"
)

// Extractor finds restaurant mentions in a post.
type Extractor interface {
	Extract(ctx context.Context, post Post) ([]domain.Candidate, error)
}

var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`《([^》]{2,20})》`),
	regexp.MustCompile(`【([^】]{2,20})】`),
	regexp.MustCompile(`「([^」]{2,20})」`),
	regexp.MustCompile(`📍\s*([^\n,，。！？]{2,25})`),
	regexp.MustCompile(`店名[：:]\s*([^\n,，。！？]{2,20})`),
	regexp.MustCompile(`(?:打卡|探店|推荐)\s*[了的]?\s*([^\n,，。！？()（）]{2,20})(?:餐厅|饭店|小馆|食府)`),
}

var (
	allDigits     = regexp.MustCompile(`^\d+$`)
	genericPrefix = regexp.MustCompile(`^(今天|这家|那家|一家|这里|那里|附近|好吃|推荐|必吃)`)
)

const (
	minPatternName = 2
	maxPatternName = 25
)

// PatternExtractor recognizes names in the bracket and pin conventions of
// Chinese food posts. Posts without a Bay Area signal yield nothing.
type PatternExtractor struct{}

// Extract never fails.
func (PatternExtractor) Extract(_ context.Context, post Post) ([]domain.Candidate, error) {
	if !post.IsBayArea() {
		return nil, nil
	}

	text := post.Text()
	var out []domain.Candidate
	for _, re := range namePatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			name := strings.TrimSpace(m[1])
			if !plausibleName(name) {
				continue
			}
			out = append(out, post.candidate(name))
		}
	}
	return out, nil
}

func plausibleName(name string) bool {
	n := utf8.RuneCountInString(name)
	if n < minPatternName || n > maxPatternName {
		return false
	}
	return !allDigits.MatchString(name) && !genericPrefix.MatchString(name)
}
