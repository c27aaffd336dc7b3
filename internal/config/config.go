// Package config provides configuration loading for paperwatch.
//
// Configuration is loaded from a YAML file and overridden by
// environment variables, with hardcoded defaults underneath. Secrets
// (the LLM API key) are only ever read from the environment.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete paperwatch configuration.
type Config struct {
	LLM       LLMConfig       `koanf:"llm"`
	Fetch     FetchConfig     `koanf:"fetch"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Report    ReportConfig    `koanf:"report"`
	Cache     CacheConfig     `koanf:"cache"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// LLMConfig holds settings for the OpenAI-compatible LLM endpoint.
// The cheap model classifies relevance; the expensive model performs
// full paper analysis.
type LLMConfig struct {
	BaseURL              string  `koanf:"base_url"`
	APIKey               Secret  `koanf:"api_key"`
	CheapModel           string  `koanf:"cheap_model"`
	ExpensiveModel       string  `koanf:"expensive_model"`
	CheapTemperature     float64 `koanf:"cheap_temperature"`
	ExpensiveTemperature float64 `koanf:"expensive_temperature"`
}

// FetchConfig controls the preprint sources.
type FetchConfig struct {
	// Sources enables individual sources: arxiv, biorxiv, medrxiv,
	// chemrxiv.
	Sources []string `koanf:"sources"`

	// ArxivCategories are the arXiv category codes queried.
	ArxivCategories []string `koanf:"arxiv_categories"`

	// Window is how far back from the run time to look for papers.
	Window Duration `koanf:"window"`

	// MaxResults caps candidates per source.
	MaxResults int `koanf:"max_results"`

	// RequestsPerSecond rate-limits each source's API calls.
	RequestsPerSecond float64 `koanf:"requests_per_second"`

	// Timeout bounds a single source API request.
	Timeout Duration `koanf:"timeout"`
}

// PipelineConfig tunes the orchestration core.
type PipelineConfig struct {
	// Concurrency caps in-flight items within a fan-out stage.
	Concurrency int `koanf:"concurrency"`

	// MaxAttempts is the per-item retry budget for transient errors.
	MaxAttempts int `koanf:"max_attempts"`

	// CheapTimeout bounds one filter-stage attempt.
	CheapTimeout Duration `koanf:"cheap_timeout"`

	// ExpensiveTimeout bounds one analyze-stage attempt.
	ExpensiveTimeout Duration `koanf:"expensive_timeout"`

	// InitialBackoff is the first retry delay; it doubles per retry up
	// to MaxBackoff.
	InitialBackoff Duration `koanf:"initial_backoff"`
	MaxBackoff     Duration `koanf:"max_backoff"`

	// AllowEmptyReport renders the empty report instead of aborting
	// when no paper survives analysis.
	AllowEmptyReport bool `koanf:"allow_empty_report"`
}

// ReportConfig controls report synthesis output.
type ReportConfig struct {
	// Title is the report's top-level heading.
	Title string `koanf:"title"`

	// OutputDir is where report and run artifacts are written.
	OutputDir string `koanf:"output_dir"`
}

// CacheConfig controls the processed-paper-ID cache.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// LoggingConfig is the logging section of the file/env config. It is
// translated into the logging package's Config at startup.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig is the telemetry section of the file/env config. It
// is translated into the telemetry package's Config at startup.
type TelemetryConfig struct {
	Enabled        bool     `koanf:"enabled"`
	Endpoint       string   `koanf:"endpoint"`
	Protocol       string   `koanf:"protocol"`
	Insecure       bool     `koanf:"insecure"`
	ServiceName    string   `koanf:"service_name"`
	SamplingRate   float64  `koanf:"sampling_rate"`
	MetricsEnabled bool     `koanf:"metrics_enabled"`
	ExportInterval Duration `koanf:"export_interval"`
}

// NewDefaultConfig returns the built-in defaults. They describe a run
// against the public preprint APIs with an AI-for-Science relevance
// filter, writing reports to the current directory.
func NewDefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			BaseURL:              "https://api.openai.com/v1",
			CheapModel:           "gpt-4o-mini",
			ExpensiveModel:       "gpt-4o",
			CheapTemperature:     0,
			ExpensiveTemperature: 0.2,
		},
		Fetch: FetchConfig{
			Sources:           []string{"arxiv", "biorxiv", "medrxiv", "chemrxiv"},
			ArxivCategories:   []string{"cs.AI", "cs.LG", "cs.CL", "cs.CV", "cs.NE", "stat.ML"},
			Window:            Duration(24 * time.Hour),
			MaxResults:        100,
			RequestsPerSecond: 1,
			Timeout:           Duration(30 * time.Second),
		},
		Pipeline: PipelineConfig{
			Concurrency:      8,
			MaxAttempts:      3,
			CheapTimeout:     Duration(30 * time.Second),
			ExpensiveTimeout: Duration(5 * time.Minute),
			InitialBackoff:   Duration(1 * time.Second),
			MaxBackoff:       Duration(30 * time.Second),
			AllowEmptyReport: false,
		},
		Report: ReportConfig{
			Title:     "AI4Science Daily Paper Report",
			OutputDir: ".",
		},
		Cache: CacheConfig{
			Enabled: true,
			Path:    "processed_papers_cache.json",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Enabled:        false,
			Endpoint:       "localhost:4317",
			Protocol:       "grpc",
			ServiceName:    "paperwatch",
			SamplingRate:   1.0,
			MetricsEnabled: true,
			ExportInterval: Duration(15 * time.Second),
		},
	}
}

// knownSources are the source names Validate accepts.
var knownSources = map[string]bool{
	"arxiv":    true,
	"biorxiv":  true,
	"medrxiv":  true,
	"chemrxiv": true,
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	var errs []error

	if c.LLM.BaseURL == "" {
		errs = append(errs, errors.New("llm.base_url is required"))
	}
	if c.LLM.CheapModel == "" || c.LLM.ExpensiveModel == "" {
		errs = append(errs, errors.New("llm.cheap_model and llm.expensive_model are required"))
	}

	if len(c.Fetch.Sources) == 0 {
		errs = append(errs, errors.New("fetch.sources must name at least one source"))
	}
	for _, s := range c.Fetch.Sources {
		if !knownSources[s] {
			errs = append(errs, fmt.Errorf("fetch.sources: unknown source %q", s))
		}
	}
	if c.Fetch.Window.Duration() <= 0 {
		errs = append(errs, errors.New("fetch.window must be positive"))
	}
	if c.Fetch.MaxResults <= 0 {
		errs = append(errs, errors.New("fetch.max_results must be positive"))
	}
	if c.Fetch.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("fetch.requests_per_second must be positive"))
	}

	if c.Pipeline.Concurrency <= 0 {
		errs = append(errs, errors.New("pipeline.concurrency must be positive"))
	}
	if c.Pipeline.MaxAttempts <= 0 {
		errs = append(errs, errors.New("pipeline.max_attempts must be positive"))
	}

	if c.Report.OutputDir == "" {
		errs = append(errs, errors.New("report.output_dir is required"))
	}
	if c.Cache.Enabled && c.Cache.Path == "" {
		errs = append(errs, errors.New("cache.path is required when the cache is enabled"))
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			errs = append(errs, errors.New("telemetry.endpoint is required when telemetry is enabled"))
		}
		if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
			errs = append(errs, errors.New("telemetry.sampling_rate must be between 0 and 1"))
		}
	}

	return errors.Join(errs...)
}
