package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/paddocklabs/docmirror/pkg/logging"
)

// Config is the complete pipeline configuration. Every endpoint, path and
// timeout lives here so tests can substitute fakes without touching globals.
type Config struct {
	Source struct {
		PageURL        string `yaml:"page_url"`
		Origin         string `yaml:"origin"` // derived from page_url when empty
		UserAgent      string `yaml:"user_agent"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"source"`

	Paths struct {
		OutputDir string `yaml:"output_dir"` // root of the published site
		PDFDir    string `yaml:"pdf_dir"`
		HTMLDir   string `yaml:"html_dir"`
		StateDir  string `yaml:"state_dir"` // known/processed JSON files
	} `yaml:"paths"`

	Download struct {
		MaxAttempts      int     `yaml:"max_attempts"`
		RetryWaitSeconds int     `yaml:"retry_wait_seconds"`
		RateLimit        float64 `yaml:"rate_limit"` // requests per second
		TimeoutSeconds   int     `yaml:"timeout_seconds"`
	} `yaml:"download"`

	Convert struct {
		RendererBinary         string `yaml:"renderer_binary"`
		GrobidURL              string `yaml:"grobid_url"`
		MinContentLength       int    `yaml:"min_content_length"`
		StrategyTimeoutSeconds int    `yaml:"strategy_timeout_seconds"`
	} `yaml:"convert"`

	Logging *logging.LogConfig `yaml:"logging"`
}

// Load reads a YAML config file, merges environment overrides and fills in
// defaults. An empty path tries the default locations and falls back to a
// pure default configuration.
func Load(path string) (*Config, error) {
	if path == "" {
		for _, loc := range []string{"docmirror.yaml", "docmirror.yml"} {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	config := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	mergeWithEnv(config)
	applyDefaults(config)

	if err := validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

// Default returns the configuration used when no file and no environment
// overrides are present.
func Default() *Config {
	config := &Config{}
	applyDefaults(config)
	return config
}

func applyDefaults(config *Config) {
	if config.Source.PageURL == "" {
		config.Source.PageURL = "https://www.fia.com/documents/championships/fia-formula-one-world-championship-14/"
	}
	if config.Source.Origin == "" {
		if u, err := url.Parse(config.Source.PageURL); err == nil && u.Scheme != "" {
			config.Source.Origin = u.Scheme + "://" + u.Host
		}
	}
	if config.Source.UserAgent == "" {
		config.Source.UserAgent = "docmirror/1.0"
	}
	if config.Source.TimeoutSeconds == 0 {
		config.Source.TimeoutSeconds = 30
	}

	if config.Paths.OutputDir == "" {
		config.Paths.OutputDir = "docs"
	}
	if config.Paths.PDFDir == "" {
		config.Paths.PDFDir = config.Paths.OutputDir + "/pdf"
	}
	if config.Paths.HTMLDir == "" {
		config.Paths.HTMLDir = config.Paths.OutputDir + "/html"
	}
	if config.Paths.StateDir == "" {
		config.Paths.StateDir = "state"
	}

	if config.Download.MaxAttempts == 0 {
		config.Download.MaxAttempts = 3
	}
	if config.Download.RetryWaitSeconds == 0 {
		config.Download.RetryWaitSeconds = 2
	}
	if config.Download.RateLimit == 0 {
		config.Download.RateLimit = 2
	}
	if config.Download.TimeoutSeconds == 0 {
		config.Download.TimeoutSeconds = 60
	}

	if config.Convert.RendererBinary == "" {
		config.Convert.RendererBinary = "pdf2htmlEX"
	}
	if config.Convert.GrobidURL == "" {
		config.Convert.GrobidURL = "http://localhost:8070"
	}
	if config.Convert.MinContentLength == 0 {
		config.Convert.MinContentLength = 200
	}
	if config.Convert.StrategyTimeoutSeconds == 0 {
		config.Convert.StrategyTimeoutSeconds = 120
	}

	if config.Logging == nil {
		config.Logging = logging.DefaultLogConfig()
	}
}

func mergeWithEnv(config *Config) {
	if pageURL := os.Getenv("DOCMIRROR_PAGE_URL"); pageURL != "" {
		config.Source.PageURL = pageURL
		config.Source.Origin = ""
	}
	if outputDir := os.Getenv("DOCMIRROR_OUTPUT_DIR"); outputDir != "" {
		config.Paths.OutputDir = outputDir
		config.Paths.PDFDir = ""
		config.Paths.HTMLDir = ""
	}
	if grobidURL := os.Getenv("GROBID_URL"); grobidURL != "" {
		config.Convert.GrobidURL = grobidURL
	}
}

func validate(config *Config) error {
	u, err := url.Parse(config.Source.PageURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("source.page_url %q is not an absolute URL", config.Source.PageURL)
	}
	if config.Download.MaxAttempts < 1 {
		return fmt.Errorf("download.max_attempts must be at least 1")
	}
	return nil
}

// SourceTimeout returns the page fetch timeout as a duration.
func (c *Config) SourceTimeout() time.Duration {
	return time.Duration(c.Source.TimeoutSeconds) * time.Second
}

// DownloadTimeout returns the per-download timeout as a duration.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Download.TimeoutSeconds) * time.Second
}

// RetryWait returns the fixed delay between download attempts.
func (c *Config) RetryWait() time.Duration {
	return time.Duration(c.Download.RetryWaitSeconds) * time.Second
}

// StrategyTimeout returns the per-conversion-strategy timeout.
func (c *Config) StrategyTimeout() time.Duration {
	return time.Duration(c.Convert.StrategyTimeoutSeconds) * time.Second
}
