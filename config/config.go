// Package config loads the YAML configuration shared by the enrich and
// evaluate commands. Values may reference environment variables as ${NAME}.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("config: invalid configuration")

const (
	ModeParallel = "parallel"
	ModeSerial   = "serial"

	CheckpointNone  = "none"
	CheckpointFile  = "file"
	CheckpointRedis = "redis"

	CompareHTTP   = "http"
	CompareReplay = "replay"
	CompareLocal  = "local"

	ProviderBedrock = "bedrock"
	ProviderGemini  = "gemini"
	ProviderOllama  = "ollama"
)

type Config struct {
	AWS        AWS        `yaml:"aws"`
	Enrich     Enrich     `yaml:"enrich"`
	Checkpoint Checkpoint `yaml:"checkpoint"`
	Evaluate   Evaluate   `yaml:"evaluate"`
	Compare    Compare    `yaml:"compare"`
	Judge      Model      `yaml:"judge"`
	Generator  Model      `yaml:"generator"`
	Embedder   Embedder   `yaml:"embedder"`
	Log        Log        `yaml:"log"`
	// MetricsAddr serves /metrics while a run is in progress when set.
	MetricsAddr string `yaml:"metrics_addr"`
}

type AWS struct {
	Region  string `yaml:"region"`
	Profile string `yaml:"profile"`
}

type Enrich struct {
	FunctionName       string        `yaml:"function_name"`
	Mode               string        `yaml:"mode"`
	Workers            int           `yaml:"workers"`
	MaxRetries         int           `yaml:"max_retries"`
	RetryDelay         time.Duration `yaml:"retry_delay"`
	ExponentialBackoff bool          `yaml:"exponential_backoff"`
	MaxRetryDelay      time.Duration `yaml:"max_retry_delay"`
	Cooldown           time.Duration `yaml:"cooldown"`
	RateInterval       time.Duration `yaml:"rate_interval"`
	RetryUnresolved    bool          `yaml:"retry_unresolved"`
	ProductColumn      string        `yaml:"product_column"`
	CategoryColumn     string        `yaml:"category_column"`
	OutputColumn       string        `yaml:"output_column"`
	Description        string        `yaml:"description"`
}

type Checkpoint struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
	Redis   Redis  `yaml:"redis"`
}

type Redis struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Key      string        `yaml:"key"`
	TTL      time.Duration `yaml:"ttl"`
}

type Evaluate struct {
	Limit  int    `yaml:"limit"`
	Output string `yaml:"output"`
	// Report is the base path of the Markdown and HTML report. Empty skips it.
	Report string `yaml:"report"`
}

type Compare struct {
	Backend     string            `yaml:"backend"`
	URL         string            `yaml:"url"`
	Headers     map[string]string `yaml:"headers"`
	Cookies     map[string]string `yaml:"cookies"`
	Timeout     time.Duration     `yaml:"timeout"`
	MaxAttempts int               `yaml:"max_attempts"`
	ReplayFile  string            `yaml:"replay_file"`
	RecordDir   string            `yaml:"record_dir"`
	Local       Local             `yaml:"local"`
}

// Local configures the in-process comparison pipeline.
type Local struct {
	QdrantURL  string `yaml:"qdrant_url"`
	Collection string `yaml:"collection"`
	APIKey     string `yaml:"api_key"`
	FilterKey  string `yaml:"filter_key"`
}

type Model struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	ServerURL   string  `yaml:"server_url"`
	APIKey      string  `yaml:"api_key"`
}

type Embedder struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	BatchSize int    `yaml:"batch_size"`
	ServerURL string `yaml:"server_url"`
	APIKey    string `yaml:"api_key"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		AWS: AWS{Region: "us-east-1"},
		Enrich: Enrich{
			FunctionName:  "product-handler",
			Mode:          ModeParallel,
			Workers:       100,
			MaxRetries:    3,
			RetryDelay:    5 * time.Second,
			MaxRetryDelay: time.Minute,
			Cooldown:      30 * time.Second,
			Description:   "N/A",
		},
		Checkpoint: Checkpoint{
			Backend: CheckpointFile,
			Path:    "enrich_checkpoint.json",
			Redis:   Redis{Addr: "localhost:6379", Key: "ragbench:checkpoint", TTL: 7 * 24 * time.Hour},
		},
		Evaluate: Evaluate{Limit: 100, Output: "rag_evaluation_results.csv"},
		Compare: Compare{
			Backend:     CompareHTTP,
			URL:         "http://localhost:3000/api/getProductQueryTest",
			Timeout:     60 * time.Second,
			MaxAttempts: 3,
			Local: Local{
				QdrantURL:  "http://localhost:6334",
				Collection: "reddit_posts",
				FilterKey:  "name",
			},
		},
		Judge: Model{
			Provider:    ProviderBedrock,
			Model:       "us.amazon.nova-lite-v1:0",
			Temperature: 0.1,
			MaxTokens:   4096,
		},
		Generator: Model{
			Provider:    ProviderBedrock,
			Model:       "us.amazon.nova-lite-v1:0",
			Temperature: 0.1,
			MaxTokens:   4096,
		},
		Embedder: Embedder{
			Provider:  ProviderBedrock,
			Model:     "amazon.titan-embed-text-v1",
			BatchSize: 16,
		},
		Log: Log{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	if err := cfg.Decode(f); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Decode merges YAML from r into c after expanding environment variables.
// Unknown keys are rejected.
func (c *Config) Decode(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader([]byte(os.ExpandEnv(string(raw)))))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}

	e := c.Enrich
	check(e.Mode == ModeParallel || e.Mode == ModeSerial, "enrich.mode %q", e.Mode)
	check(e.FunctionName != "", "enrich.function_name is required")
	check(e.Workers > 0, "enrich.workers must be positive")
	check(e.MaxRetries > 0, "enrich.max_retries must be positive")
	check(e.RetryDelay >= 0 && e.Cooldown >= 0 && e.RateInterval >= 0, "enrich delays must not be negative")
	check(!e.ExponentialBackoff || e.MaxRetryDelay >= e.RetryDelay, "enrich.max_retry_delay is below enrich.retry_delay")

	switch c.Checkpoint.Backend {
	case CheckpointNone:
	case CheckpointFile:
		check(c.Checkpoint.Path != "", "checkpoint.path is required")
	case CheckpointRedis:
		check(c.Checkpoint.Redis.Addr != "" && c.Checkpoint.Redis.Key != "", "checkpoint.redis needs addr and key")
	default:
		check(false, "checkpoint.backend %q", c.Checkpoint.Backend)
	}

	check(c.Evaluate.Output != "", "evaluate.output is required")

	switch c.Compare.Backend {
	case CompareHTTP:
		check(c.Compare.URL != "", "compare.url is required")
		check(c.Compare.Timeout > 0, "compare.timeout must be positive")
		check(c.Compare.MaxAttempts > 0, "compare.max_attempts must be positive")
	case CompareReplay:
		check(c.Compare.ReplayFile != "", "compare.replay_file is required")
	case CompareLocal:
		check(c.Compare.Local.Collection != "", "compare.local.collection is required")
		check(validProvider(c.Generator.Provider), "generator.provider %q", c.Generator.Provider)
		check(validProvider(c.Embedder.Provider), "embedder.provider %q", c.Embedder.Provider)
	default:
		check(false, "compare.backend %q", c.Compare.Backend)
	}

	check(validProvider(c.Judge.Provider), "judge.provider %q", c.Judge.Provider)
	check(c.Log.Format == "text" || c.Log.Format == "json", "log.format %q", c.Log.Format)

	return errors.Join(errs...)
}

func validProvider(p string) bool {
	return p == ProviderBedrock || p == ProviderGemini || p == ProviderOllama
}
