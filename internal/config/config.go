package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

type Config struct {
	Env               string
	Port              string
	BaseURL           string
	DatabaseURL       string
	RedisURL          string
	ReportsDir        string
	LogDir            string
	LogLevel          string
	SessionSecret     string
	CookieSecret      string
	CSRFSecret        string
	SessionTTL        time.Duration
	ShutdownTimeout   time.Duration
	MigrateOnStart    bool
	TrustedProxies    []string
	AuditMaxLen       int64
	AnonymousGateRole string
	CSRF              CSRFConfig
	Lockout           LockoutConfig
	Passwords         PasswordConfig
	Email             EmailConfig
}

type CSRFConfig struct {
	Methods  []string
	SameSite string
}

// SameSiteMode maps the configured value onto the cookie attribute.
func (c CSRFConfig) SameSiteMode() http.SameSite {
	switch strings.ToLower(c.SameSite) {
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteStrictMode
	}
}

type LockoutConfig struct {
	MaxAttempts int
	Window      time.Duration
}

type PasswordConfig struct {
	TokenTTL          time.Duration
	ForgotMinDuration time.Duration
	ForgotJitter      time.Duration
}

type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Secure   bool
	EmailJS  EmailJSConfig
}

func (e EmailConfig) Enabled() bool {
	return e.Host != "" && e.Port != 0 && e.From != ""
}

type EmailJSConfig struct {
	Endpoint                 string
	ServiceID                string
	PublicKey                string
	PrivateKey               string
	NewAccountTemplateID     string
	ForgotPasswordTemplateID string
}

func (e EmailJSConfig) Enabled() bool {
	return e.ServiceID != "" && e.PublicKey != "" && e.PrivateKey != ""
}

func (c Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Load reads configuration from the process environment, optionally seeded
// by a dotenv file named by ENV_FILE (".env" by default).
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)

	envFile := firstNonEmpty(os.Getenv("ENV_FILE"), ".env")
	if err := readEnvFile(v, envFile); err != nil {
		return Config{}, err
	}
	v.AutomaticEnv()

	clean := func(key string) string {
		return strings.Trim(v.GetString(key), "\"' \t\r\n")
	}

	cfg := Config{
		Env:               strings.ToLower(clean("APP_ENV")),
		Port:              clean("PORT"),
		BaseURL:           strings.TrimRight(clean("APP_BASE_URL"), "/"),
		DatabaseURL:       clean("DATABASE_URL"),
		RedisURL:          clean("REDIS_URL"),
		ReportsDir:        clean("REPORTS_DIR"),
		LogDir:            clean("LOG_DIR"),
		LogLevel:          clean("LOG_LEVEL"),
		SessionSecret:     clean("SESSION_SECRET"),
		CookieSecret:      clean("COOKIE_SECRET"),
		CSRFSecret:        clean("CSRF_SECRET"),
		SessionTTL:        v.GetDuration("SESSION_TTL"),
		ShutdownTimeout:   v.GetDuration("SHUTDOWN_TIMEOUT"),
		MigrateOnStart:    parseBool(clean("MIGRATE_ON_START")),
		TrustedProxies:    parseList(clean("TRUSTED_PROXIES")),
		AuditMaxLen:       v.GetInt64("AUDIT_MAX_LEN"),
		AnonymousGateRole: clean("ANONYMOUS_GATE_ROLE"),
		CSRF: CSRFConfig{
			Methods:  parseMethods(clean("CSRF_METHODS")),
			SameSite: strings.ToLower(clean("CSRF_SAME_SITE")),
		},
		Lockout: LockoutConfig{
			MaxAttempts: v.GetInt("LOGIN_MAX_ATTEMPTS"),
			Window:      v.GetDuration("LOGIN_LOCKOUT_WINDOW"),
		},
		Passwords: PasswordConfig{
			TokenTTL:          v.GetDuration("PASSWORD_TOKEN_TTL"),
			ForgotMinDuration: v.GetDuration("FORGOT_PASSWORD_MIN_DURATION"),
			ForgotJitter:      v.GetDuration("FORGOT_PASSWORD_JITTER"),
		},
	}

	cfg.Email = EmailConfig{
		Host:     clean("EMAIL_SERVER_HOST"),
		Port:     v.GetInt("EMAIL_SERVER_PORT"),
		Username: clean("EMAIL_SERVER_USER"),
		Password: clean("EMAIL_SERVER_PASSWORD"),
		From:     clean("EMAIL_FROM"),
		Secure:   parseBool(clean("EMAIL_SERVER_SECURE")),
		EmailJS: EmailJSConfig{
			Endpoint:                 clean("EMAIL_JS_ENDPOINT"),
			ServiceID:                clean("EMAIL_JS_SERVICE_ID"),
			PublicKey:                clean("EMAIL_JS_PUBLIC_KEY"),
			PrivateKey:               clean("EMAIL_JS_PRIVATE_KEY"),
			NewAccountTemplateID:     clean("NEW_ACCOUNT_EMAIL_TEMPLATE_ID"),
			ForgotPasswordTemplateID: clean("FORGOT_PASSWORD_EMAIL_TEMPLATE_ID"),
		},
	}

	// "any" lets every signed-in user through the anonymous-only gate check.
	if strings.EqualFold(cfg.AnonymousGateRole, "any") {
		cfg.AnonymousGateRole = ""
	}

	if cfg.Env == EnvTest {
		if testURL := clean("TEST_DATABASE_URL"); testURL != "" {
			cfg.DatabaseURL = testURL
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	if abs, err := filepath.Abs(cfg.ReportsDir); err == nil {
		cfg.ReportsDir = abs
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", EnvDevelopment)
	v.SetDefault("PORT", "3000")
	v.SetDefault("APP_BASE_URL", "http://localhost:3000")
	v.SetDefault("REDIS_URL", "redis://localhost:6379")
	v.SetDefault("REPORTS_DIR", "reports")
	v.SetDefault("LOG_DIR", "logs")
	v.SetDefault("SESSION_TTL", 12*time.Hour)
	v.SetDefault("SHUTDOWN_TIMEOUT", 15*time.Second)
	v.SetDefault("AUDIT_MAX_LEN", 1000)
	v.SetDefault("ANONYMOUS_GATE_ROLE", "user")
	v.SetDefault("CSRF_METHODS", "POST,PUT,PATCH,DELETE")
	v.SetDefault("CSRF_SAME_SITE", "strict")
	v.SetDefault("LOGIN_MAX_ATTEMPTS", 5)
	v.SetDefault("LOGIN_LOCKOUT_WINDOW", time.Minute)
	v.SetDefault("PASSWORD_TOKEN_TTL", 15*time.Minute)
	v.SetDefault("FORGOT_PASSWORD_MIN_DURATION", 1500*time.Millisecond)
	v.SetDefault("FORGOT_PASSWORD_JITTER", 250*time.Millisecond)
	v.SetDefault("EMAIL_SERVER_PORT", 587)
	v.SetDefault("EMAIL_JS_ENDPOINT", "https://api.emailjs.com/api/v1.0/email/send")
}

func readEnvFile(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read env file %s: %w", path, err)
	}
	return nil
}

func (c Config) validate() error {
	switch c.Env {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		return fmt.Errorf("APP_ENV must be one of development, production or test, got %q", c.Env)
	}

	required := []struct {
		key, value string
	}{
		{"DATABASE_URL", c.DatabaseURL},
		{"SESSION_SECRET", c.SessionSecret},
		{"COOKIE_SECRET", c.CookieSecret},
		{"CSRF_SECRET", c.CSRFSecret},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s is required", r.key)
		}
	}

	switch c.CSRF.SameSite {
	case "strict", "lax", "none":
	default:
		return fmt.Errorf("CSRF_SAME_SITE must be strict, lax or none, got %q", c.CSRF.SameSite)
	}

	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.Lockout.MaxAttempts <= 0 {
		return fmt.Errorf("LOGIN_MAX_ATTEMPTS must be positive")
	}
	if c.Passwords.TokenTTL <= 0 {
		return fmt.Errorf("PASSWORD_TOKEN_TTL must be positive")
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseBool(val string) bool {
	if val == "" {
		return false
	}
	val = strings.ToLower(strings.Trim(val, "\"' "))
	return val == "1" || val == "true" || val == "yes"
}

func parseList(val string) []string {
	parts := strings.Split(val, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseMethods(val string) []string {
	methods := parseList(val)
	for i, m := range methods {
		methods[i] = strings.ToUpper(m)
	}
	return methods
}
