package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App          AppConfig
	Database     DatabaseConfig
	Log          LogConfig
	HTTP         HTTPConfig
	Invoicemaker InvoicemakerConfig
	Renderer     RendererConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	BaseURL        string        // Externally resolvable base URL for standalone HTML assets
	SessionCookie  string        // Name of the session cookie feeding download grants
	SessionTTL     time.Duration // Idle lifetime of a session and its download grants
}

// InvoicemakerConfig holds the invoicing domain settings
type InvoicemakerConfig struct {
	SavePdfs      bool          // Archive rendered PDFs on disk
	PdfPath       string        // Root directory of the PDF archive
	Secret        string        // Secret feeding download-key hashes
	InvoiceGroups []GroupConfig // Numbering group definitions
	Templates     []TemplateDef // Invoice template definitions
}

// GroupConfig defines one invoice numbering group
type GroupConfig struct {
	Name          string `mapstructure:"name"`
	NumberPattern string `mapstructure:"number_pattern"`
	Digits        int    `mapstructure:"digits"`
}

// TemplateDef defines one invoice template
type TemplateDef struct {
	Name   string         `mapstructure:"name"`
	Source string         `mapstructure:"source"`
	Params map[string]any `mapstructure:"params"`
}

// RendererConfig holds PDF renderer settings
type RendererConfig struct {
	RemoteURL string        // Remote Chrome/Chromium instance (empty = launch locally)
	NoSandbox bool          // Run Chrome without sandbox (Docker/root)
	Timeout   time.Duration // Per-render timeout
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with INVOICEMAKER_ prefix (e.g., INVOICEMAKER_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("INVOICEMAKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			BaseURL:        v.GetString("http.base_url"),
			SessionCookie:  v.GetString("http.session_cookie"),
			SessionTTL:     v.GetDuration("http.session_ttl"),
		},
		Invoicemaker: InvoicemakerConfig{
			SavePdfs: v.GetBool("invoicemaker.save_pdfs"),
			PdfPath:  v.GetString("invoicemaker.pdf_path"),
			Secret:   v.GetString("invoicemaker.secret"),
		},
		Renderer: RendererConfig{
			RemoteURL: v.GetString("renderer.remote_url"),
			NoSandbox: v.GetBool("renderer.no_sandbox"),
			Timeout:   v.GetDuration("renderer.timeout"),
		},
	}

	if err := v.UnmarshalKey("invoice_groups", &cfg.Invoicemaker.InvoiceGroups); err != nil {
		return nil, fmt.Errorf("error parsing invoice_groups: %w", err)
	}
	if err := v.UnmarshalKey("templates", &cfg.Invoicemaker.Templates); err != nil {
		return nil, fmt.Errorf("error parsing templates: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "invoicemaker"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "invoicemaker"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		// PDF rendering happens inside request handlers
		cfg.HTTP.WriteTimeout = 60 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.SessionCookie == "" {
		cfg.HTTP.SessionCookie = "invoicemaker_session"
	}
	if cfg.HTTP.SessionTTL == 0 {
		cfg.HTTP.SessionTTL = 30 * time.Minute
	}
	if cfg.Invoicemaker.PdfPath == "" {
		cfg.Invoicemaker.PdfPath = "storage/invoices"
	}
	if cfg.Renderer.Timeout == 0 {
		cfg.Renderer.Timeout = 30 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.App.Env == "production" {
		if c.Invoicemaker.Secret == "" {
			return fmt.Errorf("invoicemaker.secret is required in production")
		}
		if len(c.Invoicemaker.Secret) < 32 {
			return fmt.Errorf("invoicemaker.secret must be at least 32 characters in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
	}

	seenGroups := make(map[string]bool, len(c.Invoicemaker.InvoiceGroups))
	for _, g := range c.Invoicemaker.InvoiceGroups {
		if g.Name == "" {
			return fmt.Errorf("invoice_groups entries require a name")
		}
		if seenGroups[g.Name] {
			return fmt.Errorf("duplicate invoice group %q", g.Name)
		}
		seenGroups[g.Name] = true
	}

	seenTemplates := make(map[string]bool, len(c.Invoicemaker.Templates))
	for _, t := range c.Invoicemaker.Templates {
		if t.Name == "" {
			return fmt.Errorf("templates entries require a name")
		}
		if seenTemplates[t.Name] {
			return fmt.Errorf("duplicate template %q", t.Name)
		}
		seenTemplates[t.Name] = true
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
