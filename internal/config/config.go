package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultConfigPath   = "config.toml"
	DefaultHTTPAddr     = ":8080"
	DefaultGraphVersion = "v21.0"
	DefaultGraphBaseURL = "https://graph.facebook.com"

	DefaultEnhanceTimeoutSeconds = 120
	DefaultGatewayTimeoutSeconds = 60
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	WhatsApp WhatsAppConfig `toml:"whatsapp"`
	Enhance  EnhanceConfig  `toml:"enhance"`
	Delivery DeliveryConfig `toml:"delivery"`
	Store    StoreConfig    `toml:"store"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	// File enables rotating file output in addition to stdout.
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

// WhatsAppConfig holds the Cloud API credentials and send options.
type WhatsAppConfig struct {
	VerifyToken   string `toml:"verify_token"`
	AccessToken   string `toml:"access_token"`
	PhoneNumberID string `toml:"phone_number_id"`
	GraphVersion  string `toml:"graph_version"`
	// TemplateName selects the approved outbound template for operator
	// sends. Empty means plain image messages.
	TemplateName string `toml:"template_name"`
	// BaseURL overrides the Graph API origin, used by tests.
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type EnhanceConfig struct {
	Enabled        bool   `toml:"enabled"`
	ModelURL       string `toml:"model_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type DeliveryConfig struct {
	// EnhanceOutbound runs operator uploads through the restoration step
	// before sending.
	EnhanceOutbound bool   `toml:"enhance_outbound"`
	UploadDir       string `toml:"upload_dir"`
}

// StoreConfig bounds the lifetime of in-memory entries. Zero keeps entries
// for the life of the process, matching the historical behaviour.
type StoreConfig struct {
	SessionTTLMinutes int `toml:"session_ttl_minutes"`
	PendingTTLMinutes int `toml:"pending_ttl_minutes"`
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		WhatsApp: WhatsAppConfig{
			GraphVersion:   DefaultGraphVersion,
			BaseURL:        DefaultGraphBaseURL,
			TimeoutSeconds: DefaultGatewayTimeoutSeconds,
		},
		Enhance: EnhanceConfig{
			TimeoutSeconds: DefaultEnhanceTimeoutSeconds,
		},
		Delivery: DeliveryConfig{
			UploadDir: filepath.Join(os.TempDir(), "photorelay"),
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return cfg, err
		}
	} else if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PHOTORELAY_VERIFY_TOKEN"); v != "" {
		cfg.WhatsApp.VerifyToken = v
	}
	if v := os.Getenv("PHOTORELAY_ACCESS_TOKEN"); v != "" {
		cfg.WhatsApp.AccessToken = v
	}
	if v := os.Getenv("PHOTORELAY_PHONE_NUMBER_ID"); v != "" {
		cfg.WhatsApp.PhoneNumberID = v
	}
	if v := os.Getenv("PHOTORELAY_MODEL_URL"); v != "" {
		cfg.Enhance.ModelURL = v
	}
}

// Validate reports missing required options. A failure here is fatal at
// startup; requests are never served with a partial configuration.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.WhatsApp.VerifyToken) == "" {
		missing = append(missing, "whatsapp.verify_token")
	}
	if strings.TrimSpace(c.WhatsApp.AccessToken) == "" {
		missing = append(missing, "whatsapp.access_token")
	}
	if strings.TrimSpace(c.WhatsApp.PhoneNumberID) == "" {
		missing = append(missing, "whatsapp.phone_number_id")
	}
	if c.Enhance.Enabled && strings.TrimSpace(c.Enhance.ModelURL) == "" {
		missing = append(missing, "enhance.model_url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}
