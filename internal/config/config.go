// Package config resolves application configuration from flags,
// environment variables, and an optional config file into a single
// immutable value. No other component reads ambient environment state.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"tgfetch/internal/filter"
)

// History backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

const envPrefix = "TG"

// Config holds the resolved application configuration for one run.
type Config struct {
	BotToken       string
	Channel        string
	DownloadPath   string
	HistoryPath    string
	HistoryBackend string
	FileTypes      []string
	Keywords       []string
	MaxFileSizeMB  float64
	Limit          int
	NameFromText   bool
	LogLevel       string
}

// flagKeys maps CLI flag names to config keys. The bot token has no
// flag on purpose: credentials resolve from environment over config
// file, never from the command line.
var flagKeys = map[string]string{
	"channel":         "channel",
	"dest":            "download_path",
	"history":         "history_path",
	"history-backend": "history_backend",
	"types":           "file_types",
	"keywords":        "keywords",
	"max-size":        "max_file_size_mb",
	"limit":           "limit",
	"name-from-text":  "name_from_text",
	"log-level":       "log_level",
}

// Load resolves configuration with precedence flags > environment
// (TG_ prefix) > config file > defaults, then validates it. Validation
// failures are fatal and happen before any network contact.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetDefault("download_path", "./downloads")
	v.SetDefault("history_path", "./download_history.json")
	v.SetDefault("history_backend", BackendJSON)
	v.SetDefault("limit", 100)
	v.SetDefault("log_level", "info")

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if err := readConfigFile(v, flags); err != nil {
		return nil, err
	}

	cfg := &Config{
		BotToken:       v.GetString("bot_token"),
		Channel:        v.GetString("channel"),
		DownloadPath:   v.GetString("download_path"),
		HistoryPath:    v.GetString("history_path"),
		HistoryBackend: v.GetString("history_backend"),
		FileTypes:      normalizeList(v.GetStringSlice("file_types"), true),
		Keywords:       normalizeList(v.GetStringSlice("keywords"), false),
		MaxFileSizeMB:  v.GetFloat64("max_file_size_mb"),
		Limit:          v.GetInt("limit"),
		NameFromText:   v.GetBool("name_from_text"),
		LogLevel:       v.GetString("log_level"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readConfigFile(v *viper.Viper, flags *pflag.FlagSet) error {
	explicit := ""
	if flags != nil {
		if f := flags.Lookup("config"); f != nil {
			explicit = f.Value.String()
		}
	}

	if explicit != "" {
		v.SetConfigFile(explicit)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %s: %w", explicit, err)
		}
		return nil
	}

	v.AddConfigPath(".")
	v.SetConfigName("config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("bot token is required (set %s_BOT_TOKEN or bot_token in the config file)", envPrefix)
	}
	if c.Channel == "" {
		return fmt.Errorf("channel is required (use --channel or set channel in the config file)")
	}
	if c.Limit < 1 {
		return fmt.Errorf("limit must be at least 1, got %d", c.Limit)
	}
	if c.MaxFileSizeMB < 0 {
		return fmt.Errorf("max file size must not be negative, got %g", c.MaxFileSizeMB)
	}
	switch c.HistoryBackend {
	case BackendJSON, BackendSQLite:
	default:
		return fmt.Errorf("invalid history backend %q, use: %s, %s", c.HistoryBackend, BackendJSON, BackendSQLite)
	}
	return nil
}

// MaxSizeBytes returns the size limit in bytes, or 0 for unbounded.
func (c *Config) MaxSizeBytes() int64 {
	return int64(c.MaxFileSizeMB * 1024 * 1024)
}

// Rules builds the filter rules for this run.
func (c *Config) Rules() filter.Rules {
	return filter.Rules{
		Extensions: c.FileTypes,
		MaxSize:    c.MaxSizeBytes(),
		Keywords:   c.Keywords,
	}
}

// normalizeList lowercases and trims entries, splitting any
// comma-separated values (environment variables and config files may
// supply either form). Extensions additionally lose a leading dot.
func normalizeList(raw []string, isExt bool) []string {
	var out []string
	for _, item := range raw {
		for _, s := range strings.Split(item, ",") {
			s = strings.ToLower(strings.TrimSpace(s))
			if isExt {
				s = strings.TrimPrefix(s, ".")
			}
			if s == "" {
				continue
			}
			out = append(out, s)
		}
	}
	return out
}
