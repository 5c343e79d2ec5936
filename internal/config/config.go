package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	Auth    AuthConfig
	Twilio  TwilioConfig
	Push    PushConfig
	Moments MomentConfig
	Socket  SocketConfig
}

type AppConfig struct {
	Env  string
	Port int

	// Timezone is used for quiet hours and "invited today" checks.
	Timezone string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string

	// MaxConns caps the pool; 0 keeps the pool default.
	MaxConns int
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Phones granted elevated roles at token issue.
	AdminPhones     []string
	SchedulerPhones []string
}

// TwilioConfig is optional as a whole; verification routes answer 503 without it.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	VerifySID  string
}

func (t TwilioConfig) Enabled() bool {
	return t.AccountSID != "" || t.AuthToken != "" || t.VerifySID != ""
}

type PushConfig struct {
	ExpoURL         string
	ExpoAccessToken string

	// VoIP wake-up push is configured iff APNSKeyPath is set.
	APNSKeyPath    string
	APNSKeyID      string
	APNSTeamID     string
	APNSTopic      string
	APNSProduction bool

	// TTL is passed to providers as the notification expiry.
	TTL time.Duration
}

func (p PushConfig) VoipEnabled() bool { return p.APNSKeyPath != "" }

type MomentConfig struct {
	Window          time.Duration
	QuietHoursStart int
	QuietHoursEnd   int
	InviteBatchSize int
}

type SocketConfig struct {
	RateLimit float64
	RateBurst int
}

const defaultExpoURL = "https://exp.host/--/api/v2/push/send"

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	c.App.Port, parseErrs = requiredInt(parseErrs, "APP_PORT")
	c.App.Timezone = strings.TrimSpace(os.Getenv("APP_TIMEZONE"))

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	c.DB.Port, parseErrs = requiredInt(parseErrs, "DB_PORT")
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))
	c.DB.MaxConns, parseErrs = optionalInt(parseErrs, "DB_MAX_CONNS", 0)

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	c.Redis.Port, parseErrs = requiredInt(parseErrs, "REDIS_PORT")

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	c.Auth.AccessTokenTTL, parseErrs = optionalDuration(parseErrs, "JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL, parseErrs = optionalDuration(parseErrs, "JWT_REFRESH_TTL")
	c.Auth.AdminPhones = optionalList("ADMIN_PHONES")
	c.Auth.SchedulerPhones = optionalList("SCHEDULER_PHONES")

	c.Twilio.AccountSID = strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID"))
	c.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	c.Twilio.VerifySID = strings.TrimSpace(os.Getenv("TWILIO_VERIFY_SID"))

	c.Push.ExpoURL = strings.TrimSpace(os.Getenv("EXPO_PUSH_URL"))
	c.Push.ExpoAccessToken = os.Getenv("EXPO_ACCESS_TOKEN")
	c.Push.APNSKeyPath = strings.TrimSpace(os.Getenv("APNS_KEY_PATH"))
	c.Push.APNSKeyID = strings.TrimSpace(os.Getenv("APNS_KEY_ID"))
	c.Push.APNSTeamID = strings.TrimSpace(os.Getenv("APNS_TEAM_ID"))
	c.Push.APNSTopic = strings.TrimSpace(os.Getenv("APNS_TOPIC"))
	c.Push.APNSProduction, parseErrs = optionalBool(parseErrs, "APNS_PRODUCTION")
	c.Push.TTL, parseErrs = optionalDuration(parseErrs, "PUSH_TTL")

	c.Moments.Window, parseErrs = optionalDuration(parseErrs, "MOMENT_WINDOW")
	c.Moments.QuietHoursStart, parseErrs = optionalInt(parseErrs, "QUIET_HOURS_START", 22)
	c.Moments.QuietHoursEnd, parseErrs = optionalInt(parseErrs, "QUIET_HOURS_END", 8)
	c.Moments.InviteBatchSize, parseErrs = optionalInt(parseErrs, "INVITE_BATCH_SIZE", 10)

	c.Socket.RateLimit, parseErrs = optionalFloat(parseErrs, "WS_RATE_LIMIT", 10)
	c.Socket.RateBurst, parseErrs = optionalInt(parseErrs, "WS_RATE_BURST", 20)

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required values and fills defaults in place.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}
	if c.App.Timezone == "" {
		c.App.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("APP_TIMEZONE is not a known location, got %q", c.App.Timezone))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.MaxConns < 0 {
		errs = append(errs, fmt.Errorf("DB_MAX_CONNS must be >= 0, got %d", c.DB.MaxConns))
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Twilio.Enabled() {
		if c.Twilio.AccountSID == "" || c.Twilio.AuthToken == "" || c.Twilio.VerifySID == "" {
			errs = append(errs, errors.New("TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_VERIFY_SID must be set together"))
		}
	}

	if c.Push.ExpoURL == "" {
		c.Push.ExpoURL = defaultExpoURL
	}
	if c.Push.VoipEnabled() {
		if c.Push.APNSKeyID == "" {
			errs = append(errs, errors.New("APNS_KEY_ID is required when APNS_KEY_PATH is set"))
		}
		if c.Push.APNSTeamID == "" {
			errs = append(errs, errors.New("APNS_TEAM_ID is required when APNS_KEY_PATH is set"))
		}
		if c.Push.APNSTopic == "" {
			errs = append(errs, errors.New("APNS_TOPIC is required when APNS_KEY_PATH is set"))
		}
	}
	if c.Push.TTL <= 0 {
		c.Push.TTL = 30 * time.Second
	}

	if c.Moments.Window <= 0 {
		c.Moments.Window = 15 * time.Minute
	}
	if !isHour(c.Moments.QuietHoursStart) || !isHour(c.Moments.QuietHoursEnd) {
		errs = append(errs, fmt.Errorf("QUIET_HOURS_START/QUIET_HOURS_END must be hours 0-23, got %d/%d", c.Moments.QuietHoursStart, c.Moments.QuietHoursEnd))
	}
	if c.Moments.InviteBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("INVITE_BATCH_SIZE must be > 0, got %d", c.Moments.InviteBatchSize))
	}

	if c.Socket.RateLimit <= 0 {
		errs = append(errs, fmt.Errorf("WS_RATE_LIMIT must be > 0, got %v", c.Socket.RateLimit))
	}
	if c.Socket.RateBurst <= 0 {
		errs = append(errs, fmt.Errorf("WS_RATE_BURST must be > 0, got %d", c.Socket.RateBurst))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

// Location returns the configured timezone; Validate guarantees it loads.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func requiredInt(errs []error, key string) (int, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, append(errs, fmt.Errorf("%s is required", key))
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s must be an integer, got %q", key, v))
	}
	return n, errs
}

func optionalInt(errs []error, key string, def int) (int, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, errs
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, append(errs, fmt.Errorf("%s must be an integer, got %q", key, v))
	}
	return n, errs
}

func optionalFloat(errs []error, key string, def float64) (float64, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, errs
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def, append(errs, fmt.Errorf("%s must be a number, got %q", key, v))
	}
	return f, errs
}

func optionalBool(errs []error, key string) (bool, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return false, errs
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, append(errs, fmt.Errorf("%s must be a boolean, got %q", key, v))
	}
	return b, errs
}

// optionalDuration returns 0 when unset; defaults are applied in Validate.
func optionalDuration(errs []error, key string) (time.Duration, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, errs
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s must be a duration, got %q", key, v))
	}
	return d, errs
}

func optionalList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isHour(h int) bool { return h >= 0 && h <= 23 }

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
