package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ClientConfig holds settings for the terminal client.
type ClientConfig struct {
	// ServerURL is the root URL of the remote collaborator API.
	ServerURL string `mapstructure:"server_url" yaml:"server_url"`

	// CachePath is the SQLite file holding the last known task collection.
	CachePath string `mapstructure:"cache_path" yaml:"cache_path"`

	LogFile string `mapstructure:"log_file" yaml:"log_file"`

	// PushDebounceMs coalesces rapid task changes into one push.
	PushDebounceMs int `mapstructure:"push_debounce_ms" yaml:"push_debounce_ms"`
}

// MailConfig holds the outgoing SMTP settings of the server.
// An empty Host disables delivery; mails are only logged.
type MailConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	From     string `mapstructure:"from" yaml:"from"`
}

// ServerConfig holds settings for the remote collaborator server.
type ServerConfig struct {
	Listen string `mapstructure:"listen" yaml:"listen"`
	DBPath string `mapstructure:"db_path" yaml:"db_path"`

	// BaseURL prefixes the verification links sent by e-mail.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// RedisAddr enables rate limiting of the auth endpoints when set.
	RedisAddr string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RateLimit int    `mapstructure:"rate_limit" yaml:"rate_limit"`

	LogFile     string     `mapstructure:"log_file" yaml:"log_file"`
	Environment string     `mapstructure:"environment" yaml:"environment"`
	Mail        MailConfig `mapstructure:"mail" yaml:"mail"`
}

// InboxConfig holds the IMAP settings used to pick up verification and
// reset mails from the user's own mailbox.
type InboxConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	Mailbox  string `mapstructure:"mailbox" yaml:"mailbox"`

	// Sender filters messages by their From address.
	Sender string `mapstructure:"sender" yaml:"sender"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Client ClientConfig `mapstructure:"client" yaml:"client"`
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Inbox  InboxConfig  `mapstructure:"inbox" yaml:"inbox"`
}

// ConfigDir returns ~/.config/todopro, or the working directory when the
// home directory cannot be resolved.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "todopro")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/todopro/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DefaultAppConfig returns the configuration used when no file exists.
func DefaultAppConfig() *AppConfig {
	dir := ConfigDir()
	return &AppConfig{
		Client: ClientConfig{
			ServerURL:      "http://localhost:8080",
			CachePath:      filepath.Join(dir, "cache.db"),
			LogFile:        filepath.Join(dir, "todopro.log"),
			PushDebounceMs: 300,
		},
		Server: ServerConfig{
			Listen:      ":8080",
			DBPath:      filepath.Join(dir, "server.db"),
			BaseURL:     "http://localhost:8080",
			RateLimit:   10,
			Environment: "development",
			Mail: MailConfig{
				Port: 587,
				From: "noreply@todopro.local",
			},
		},
		Inbox: InboxConfig{
			Port:    993,
			Mailbox: "INBOX",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultAppConfig()
	v.SetDefault("client.server_url", d.Client.ServerURL)
	v.SetDefault("client.cache_path", d.Client.CachePath)
	v.SetDefault("client.log_file", d.Client.LogFile)
	v.SetDefault("client.push_debounce_ms", d.Client.PushDebounceMs)
	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("server.db_path", d.Server.DBPath)
	v.SetDefault("server.base_url", d.Server.BaseURL)
	v.SetDefault("server.redis_addr", "")
	v.SetDefault("server.rate_limit", d.Server.RateLimit)
	v.SetDefault("server.log_file", "")
	v.SetDefault("server.environment", d.Server.Environment)
	v.SetDefault("server.mail.host", "")
	v.SetDefault("server.mail.port", d.Server.Mail.Port)
	v.SetDefault("server.mail.username", "")
	v.SetDefault("server.mail.password", "")
	v.SetDefault("server.mail.from", d.Server.Mail.From)
	v.SetDefault("inbox.host", "")
	v.SetDefault("inbox.port", d.Inbox.Port)
	v.SetDefault("inbox.username", "")
	v.SetDefault("inbox.password", "")
	v.SetDefault("inbox.mailbox", d.Inbox.Mailbox)
	v.SetDefault("inbox.sender", "")
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with TODOPRO_ override file values
// (e.g. TODOPRO_SERVER_LISTEN). If the file does not exist, defaults and
// environment overrides are returned.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("todopro")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := DefaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Client.PushDebounceMs < 0 {
		cfg.Client.PushDebounceMs = 0
	}
	cfg.Client.ServerURL = strings.TrimRight(cfg.Client.ServerURL, "/")
	cfg.Server.BaseURL = strings.TrimRight(cfg.Server.BaseURL, "/")

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("client", cfg.Client)
	v.Set("server", cfg.Server)
	v.Set("inbox", cfg.Inbox)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
