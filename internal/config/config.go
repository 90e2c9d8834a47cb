package config

import "time"

// Config is the root application configuration shared by every command.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Store    StoreConfig    `yaml:"store"`
	Database DatabaseConfig `yaml:"database"`
	Backup   BackupConfig   `yaml:"backup"`
	Limits   LimitsConfig   `yaml:"limits"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Dedupe   DedupeConfig   `yaml:"dedupe"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	Index    IndexConfig    `yaml:"index"`
	Publish  PublishConfig  `yaml:"publish"`
	Extract  ExtractConfig  `yaml:"extract"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Server   ServerConfig   `yaml:"server"`
	CORS     CORSConfig     `yaml:"cors"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// StoreConfig selects the record store backend.
type StoreConfig struct {
	Backend string `yaml:"backend" env:"STORE_BACKEND" env-default:"file"`
	Path    string `yaml:"path"    env:"STORE_PATH"    env-default:"data/restaurant_database.json"`
}

// DatabaseConfig holds PostgreSQL connection settings. Only used when
// store.backend is "postgres".
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"5"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"1"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
	AutoMigrate     bool          `yaml:"auto_migrate"       env:"DATABASE_AUTO_MIGRATE"`
}

// BackupConfig controls pre-mutation snapshots.
type BackupConfig struct {
	Dir  string `yaml:"dir"  env:"BACKUP_DIR"  env-default:"data/backups"`
	Keep int    `yaml:"keep" env:"BACKUP_KEEP" env-default:"20"`
}

// LimitsConfig bounds the per-record collections.
type LimitsConfig struct {
	TimeseriesMonths int `yaml:"timeseries_months" env:"LIMITS_TIMESERIES_MONTHS" env-default:"24"`
	PostDetails      int `yaml:"post_details"      env:"LIMITS_POST_DETAILS"      env-default:"10"`
}

// MetricsConfig tunes the metrics updater.
type MetricsConfig struct {
	// AllowRepeatSources applies a candidate even when its post is already
	// attributed to the record.
	AllowRepeatSources bool    `yaml:"allow_repeat_sources" env:"METRICS_ALLOW_REPEAT_SOURCES"`
	SkipPostDetails    bool    `yaml:"skip_post_details"    env:"METRICS_SKIP_POST_DETAILS"`
	MinDishLength      int     `yaml:"min_dish_length"      env:"METRICS_MIN_DISH_LENGTH"      env-default:"2"`
	SentimentWeight    float64 `yaml:"sentiment_weight"     env:"METRICS_SENTIMENT_WEIGHT"     env-default:"0.1"`
}

// DedupeConfig tunes the merger.
type DedupeConfig struct {
	Key string `yaml:"key" env:"DEDUPE_KEY" env-default:"google_place_id"`
}

// ScoringConfig selects the versioned recompute formulas.
type ScoringConfig struct {
	SentimentFormula  string `yaml:"sentiment_formula"  env:"SCORING_SENTIMENT_FORMULA"  env-default:"weighted-v2"`
	EngagementFormula string `yaml:"engagement_formula" env:"SCORING_ENGAGEMENT_FORMULA" env-default:"log-sqrt-v1"`
}

// IndexConfig controls the slim serving index.
type IndexConfig struct {
	Path               string `yaml:"path"                env:"INDEX_PATH"                env-default:"data/serving/restaurants_index.json"`
	RecommendationsMax int    `yaml:"recommendations_max" env:"INDEX_RECOMMENDATIONS_MAX" env-default:"3"`
	PostDetailsMax     int    `yaml:"post_details_max"    env:"INDEX_POST_DETAILS_MAX"    env-default:"5"`
}

// PublishConfig selects where the slim index is published.
type PublishConfig struct {
	Target string   `yaml:"target" env:"PUBLISH_TARGET" env-default:"none"`
	Dir    string   `yaml:"dir"    env:"PUBLISH_DIR"    env-default:"data/public"`
	S3     S3Config `yaml:"s3"`
}

// S3Config holds settings for any S3-compatible bucket.
type S3Config struct {
	Bucket       string `yaml:"bucket"         env:"PUBLISH_S3_BUCKET"`
	Prefix       string `yaml:"prefix"         env:"PUBLISH_S3_PREFIX"`
	Region       string `yaml:"region"         env:"PUBLISH_S3_REGION"         env-default:"us-east-1"`
	Endpoint     string `yaml:"endpoint"       env:"PUBLISH_S3_ENDPOINT"`
	AccessKey    string `yaml:"access_key"     env:"PUBLISH_S3_ACCESS_KEY"`
	SecretKey    string `yaml:"secret_key"     env:"PUBLISH_S3_SECRET_KEY"`
	UsePathStyle bool   `yaml:"use_path_style" env:"PUBLISH_S3_USE_PATH_STYLE"`
}

// ExtractConfig controls candidate extraction from raw posts.
type ExtractConfig struct {
	Mode        string        `yaml:"mode"         env:"EXTRACT_MODE"         env-default:"pattern"`
	RawDir      string        `yaml:"raw_dir"      env:"EXTRACT_RAW_DIR"      env-default:"data/raw"`
	Output      string        `yaml:"output"       env:"EXTRACT_OUTPUT"       env-default:"data/candidates.json"`
	MaxPosts    int           `yaml:"max_posts"    env:"MAX_POSTS"            env-default:"100"`
	Delay       time.Duration `yaml:"delay"        env:"EXTRACT_DELAY"        env-default:"200ms"`
	ItemTimeout time.Duration `yaml:"item_timeout" env:"EXTRACT_ITEM_TIMEOUT" env-default:"60s"`
	LLMAPIKey   string        `yaml:"llm_api_key"  env:"ANTHROPIC_API_KEY"`
	LLMModel    string        `yaml:"llm_model"    env:"EXTRACT_LLM_MODEL"    env-default:"claude-sonnet-4-5"`
	MaxTokens   int64         `yaml:"max_tokens"   env:"EXTRACT_MAX_TOKENS"   env-default:"1024"`
}

// PipelineConfig controls the orchestrated run.
type PipelineConfig struct {
	CandidatesPath string `yaml:"candidates_path" env:"PIPELINE_CANDIDATES_PATH" env-default:"data/candidates.json"`
	SkipIntake     bool   `yaml:"skip_intake"     env:"PIPELINE_SKIP_INTAKE"`
	SkipDedupe     bool   `yaml:"skip_dedupe"     env:"PIPELINE_SKIP_DEDUPE"`
	SkipRecompute  bool   `yaml:"skip_recompute"  env:"PIPELINE_SKIP_RECOMPUTE"`
}

// ServerConfig holds HTTP server settings for the serving API.
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            int           `yaml:"port"             env:"SERVER_PORT"             env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
	MaxPageSize     int           `yaml:"max_page_size"    env:"SERVER_MAX_PAGE_SIZE"    env-default:"100"`
	RateLimit       int           `yaml:"rate_limit"       env:"SERVER_RATE_LIMIT"       env-default:"300"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins   string `yaml:"allowed_origins"   env:"CORS_ALLOWED_ORIGINS"   env-default:"*"`
	AllowedMethods   string `yaml:"allowed_methods"   env:"CORS_ALLOWED_METHODS"   env-default:"GET,OPTIONS"`
	AllowedHeaders   string `yaml:"allowed_headers"   env:"CORS_ALLOWED_HEADERS"   env-default:"Content-Type"`
	AllowCredentials bool   `yaml:"allow_credentials" env:"CORS_ALLOW_CREDENTIALS"`
	MaxAge           int    `yaml:"max_age"           env:"CORS_MAX_AGE"           env-default:"86400"`
}
