package config

import (
	"flag"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds application configuration. Precedence, lowest to highest:
// built-in defaults, TOML config file, environment (including .env), flags.
type Config struct {
	StorePath    string        `toml:"store_path"`
	JournalPath  string        `toml:"journal_path"`
	DocumentsDir string        `toml:"documents_dir"`
	ProfilePath  string        `toml:"profile_path"`
	Port         int           `toml:"port"`
	PollInterval time.Duration `toml:"-"`
	RetryDelay   time.Duration `toml:"-"`
	MaxAttempts  int           `toml:"max_attempts"`
	DryRun       bool          `toml:"dry_run"`

	// Durations live in the file as strings ("45m").
	PollIntervalText string `toml:"poll_interval"`
	RetryDelayText   string `toml:"retry_delay"`
}

// DefaultStorePath returns the default snapshot path under XDG_DATA_HOME.
func DefaultStorePath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "appcron", "state.json")
}

// DefaultJournalPath returns the default journal database path.
func DefaultJournalPath() string {
	return filepath.Join(filepath.Dir(DefaultStorePath()), "journal.db")
}

func defaults() *Config {
	return &Config{
		StorePath:    DefaultStorePath(),
		JournalPath:  DefaultJournalPath(),
		DocumentsDir: "generated_documents",
		Port:         8080,
		PollInterval: 5 * time.Minute,
		RetryDelay:   45 * time.Minute,
	}
}

// Load builds the Config from the given flag set and arguments.
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	var configPath string
	fs.StringVar(&configPath, "config", os.Getenv("APPCRON_CONFIG"), "TOML config file path")
	fs.StringVar(&cfg.StorePath, "store", cfg.StorePath, "Snapshot store path")
	fs.StringVar(&cfg.JournalPath, "journal", cfg.JournalPath, "Attempt journal database path (empty disables)")
	fs.StringVar(&cfg.DocumentsDir, "documents-dir", cfg.DocumentsDir, "Generated documents directory")
	fs.StringVar(&cfg.ProfilePath, "profile", cfg.ProfilePath, "YAML profile seed file")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port (serve command)")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Worker poll interval")
	fs.DurationVar(&cfg.RetryDelay, "retry-delay", cfg.RetryDelay, "Backoff after a failed attempt")
	fs.IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "Retry cap per task (0 = unlimited)")
	fs.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "Do not actually submit applications")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// File under flags: parse the file first, then re-apply flags so
	// explicitly set flags win.
	if configPath != "" {
		fileCfg := defaults()
		if _, err := toml.DecodeFile(configPath, fileCfg); err != nil {
			return nil, err
		}
		if err := fileCfg.parseDurations(); err != nil {
			return nil, err
		}
		merge(cfg, fileCfg, fs)
	}

	applyEnv(cfg, fs)
	return cfg, nil
}

func (c *Config) parseDurations() error {
	if c.PollIntervalText != "" {
		d, err := time.ParseDuration(c.PollIntervalText)
		if err != nil {
			return err
		}
		c.PollInterval = d
	}
	if c.RetryDelayText != "" {
		d, err := time.ParseDuration(c.RetryDelayText)
		if err != nil {
			return err
		}
		c.RetryDelay = d
	}
	return nil
}

// merge applies file values for every field whose flag was not explicitly
// set on the command line.
func merge(cfg, fileCfg *Config, fs *flag.FlagSet) {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if !set["store"] {
		cfg.StorePath = fileCfg.StorePath
	}
	if !set["journal"] {
		cfg.JournalPath = fileCfg.JournalPath
	}
	if !set["documents-dir"] {
		cfg.DocumentsDir = fileCfg.DocumentsDir
	}
	if !set["profile"] {
		cfg.ProfilePath = fileCfg.ProfilePath
	}
	if !set["port"] {
		cfg.Port = fileCfg.Port
	}
	if !set["poll-interval"] {
		cfg.PollInterval = fileCfg.PollInterval
	}
	if !set["retry-delay"] {
		cfg.RetryDelay = fileCfg.RetryDelay
	}
	if !set["max-attempts"] {
		cfg.MaxAttempts = fileCfg.MaxAttempts
	}
	if !set["dry-run"] {
		cfg.DryRun = fileCfg.DryRun
	}
}

// applyEnv overrides from APPCRON_* variables unless the flag was set.
func applyEnv(cfg *Config, fs *flag.FlagSet) {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if v := os.Getenv("APPCRON_STORE"); v != "" && !set["store"] {
		cfg.StorePath = v
	}
	if v := os.Getenv("APPCRON_JOURNAL"); v != "" && !set["journal"] {
		cfg.JournalPath = v
	}
	if v := os.Getenv("APPCRON_DOCUMENTS_DIR"); v != "" && !set["documents-dir"] {
		cfg.DocumentsDir = v
	}
	if v := os.Getenv("APPCRON_PROFILE"); v != "" && !set["profile"] {
		cfg.ProfilePath = v
	}
	if v := os.Getenv("APPCRON_PORT"); v != "" && !set["port"] {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := os.Getenv("APPCRON_POLL_INTERVAL"); v != "" && !set["poll-interval"] {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.PollInterval = d
		}
	}
	if v := os.Getenv("APPCRON_RETRY_DELAY"); v != "" && !set["retry-delay"] {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RetryDelay = d
		}
	}
	if v := os.Getenv("APPCRON_MAX_ATTEMPTS"); v != "" && !set["max-attempts"] {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxAttempts = n
		}
	}
}
