package config

import (
	"fmt"
	"slices"
)

// Accepted values for enumerated settings.
var (
	StoreBackends      = []string{"file", "postgres"}
	DedupeKeys         = []string{"google_place_id", "name"}
	SentimentFormulas  = []string{"ewma-v1", "weighted-v2", "smoothed-v3"}
	EngagementFormulas = []string{"raw", "log-sqrt-v1"}
	PublishTargets     = []string{"none", "file", "s3"}
	ExtractModes       = []string{"pattern", "llm"}
)

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if !slices.Contains(StoreBackends, c.Store.Backend) {
		return fmt.Errorf("store.backend must be one of %v (got %q)", StoreBackends, c.Store.Backend)
	}
	if c.Store.Backend == "file" && c.Store.Path == "" {
		return fmt.Errorf("store.path is required for the file backend")
	}
	if c.Store.Backend == "postgres" && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for the postgres backend")
	}

	if c.Backup.Keep < 1 {
		return fmt.Errorf("backup.keep must be >= 1 (got %d)", c.Backup.Keep)
	}

	if err := c.Limits.validate(); err != nil {
		return fmt.Errorf("limits: %w", err)
	}

	if c.Metrics.SentimentWeight < 0 || c.Metrics.SentimentWeight > 1 {
		return fmt.Errorf("metrics.sentiment_weight must be within [0,1] (got %v)", c.Metrics.SentimentWeight)
	}

	if !slices.Contains(DedupeKeys, c.Dedupe.Key) {
		return fmt.Errorf("dedupe.key must be one of %v (got %q)", DedupeKeys, c.Dedupe.Key)
	}

	if !slices.Contains(SentimentFormulas, c.Scoring.SentimentFormula) {
		return fmt.Errorf("scoring.sentiment_formula must be one of %v (got %q)", SentimentFormulas, c.Scoring.SentimentFormula)
	}
	if !slices.Contains(EngagementFormulas, c.Scoring.EngagementFormula) {
		return fmt.Errorf("scoring.engagement_formula must be one of %v (got %q)", EngagementFormulas, c.Scoring.EngagementFormula)
	}

	if c.Index.RecommendationsMax < 0 || c.Index.PostDetailsMax < 0 {
		return fmt.Errorf("index limits must be >= 0")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be within [1,65535] (got %d)", c.Server.Port)
	}
	if c.Server.MaxPageSize < 1 {
		return fmt.Errorf("server.max_page_size must be >= 1 (got %d)", c.Server.MaxPageSize)
	}

	if err := c.Publish.validate(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	if err := c.Extract.validate(); err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	return nil
}

func (l *LimitsConfig) validate() error {
	if l.TimeseriesMonths <= 0 {
		return fmt.Errorf("timeseries_months must be > 0 (got %d)", l.TimeseriesMonths)
	}
	if l.PostDetails <= 0 {
		return fmt.Errorf("post_details must be > 0 (got %d)", l.PostDetails)
	}
	return nil
}

func (p *PublishConfig) validate() error {
	if !slices.Contains(PublishTargets, p.Target) {
		return fmt.Errorf("target must be one of %v (got %q)", PublishTargets, p.Target)
	}
	switch p.Target {
	case "file":
		if p.Dir == "" {
			return fmt.Errorf("dir is required for the file target")
		}
	case "s3":
		if p.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket is required for the s3 target")
		}
	}
	return nil
}

func (e *ExtractConfig) validate() error {
	if !slices.Contains(ExtractModes, e.Mode) {
		return fmt.Errorf("mode must be one of %v (got %q)", ExtractModes, e.Mode)
	}
	if e.MaxPosts <= 0 {
		return fmt.Errorf("max_posts must be > 0 (got %d)", e.MaxPosts)
	}
	if e.Delay < 0 || e.ItemTimeout <= 0 {
		return fmt.Errorf("delay must be >= 0 and item_timeout > 0")
	}
	if e.Mode == "llm" && e.LLMAPIKey == "" {
		return fmt.Errorf("llm_api_key is required for llm mode")
	}
	return nil
}
