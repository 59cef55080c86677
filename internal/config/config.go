package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server        ServerConfig        `json:"server"`
	Database      DatabaseConfig      `json:"database"`
	AWS           AWSConfig           `json:"aws"`
	Auth          AuthConfig          `json:"auth"`
	Notifications NotificationsConfig `json:"notifications"`
	Worker        WorkerConfig        `json:"worker"`
	Logging       LoggingConfig       `json:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	Mode           string   `json:"mode"`
	ReadTimeout    Duration `json:"read_timeout"`
	WriteTimeout   Duration `json:"write_timeout"`
	IdleTimeout    Duration `json:"idle_timeout"`
	AllowedOrigins []string `json:"allowed_origins"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	User           string   `json:"user"`
	Password       string   `json:"password"`
	DBName         string   `json:"db_name"`
	SSLMode        string   `json:"ssl_mode"`
	MaxConnections int      `json:"max_connections"`
	MaxIdleConns   int      `json:"max_idle_conns"`
	MaxLifetime    Duration `json:"max_lifetime"`
}

// AWSConfig covers S3 document storage and the SES/SNS notification channels.
// Endpoint points every client at an AWS compatible stack such as LocalStack.
type AWSConfig struct {
	Region          string `json:"region"`
	Endpoint        string `json:"endpoint"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	UsePathStyle    bool   `json:"use_path_style"`
	DocumentBucket  string `json:"document_bucket"`
	SESFromAddress  string `json:"ses_from_address"`
	SNSTopicARN     string `json:"sns_topic_arn"`
}

// AuthConfig. With Enabled false the role is taken from the X-User-Role header.
type AuthConfig struct {
	Enabled         bool     `json:"enabled"`
	JWTSecret       string   `json:"jwt_secret"`
	Issuer          string   `json:"issuer"`
	TokenTTL        Duration `json:"token_ttl"`
	AllowTokenIssue bool     `json:"allow_token_issue"`
	// IssueKeyHash is the bcrypt hash of the key callers present to /auth/token.
	IssueKeyHash string `json:"issue_key_hash"`
}

type NotificationsConfig struct {
	EmailEnabled bool `json:"email_enabled"`
	TopicEnabled bool `json:"topic_enabled"`
}

// WorkerConfig holds cron specs for background sweeps.
type WorkerConfig struct {
	BreachSchedule string `json:"breach_schedule"`
	RunOnStart     bool   `json:"run_on_start"`
}

// LoggingConfig
type LoggingConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

// Duration reads either a Go duration string ("15m") or nanoseconds from JSON.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid duration %s", string(b))
	}
	*d = Duration(n)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			Mode:         "release",
			ReadTimeout:  Duration(15 * time.Second),
			WriteTimeout: Duration(30 * time.Second),
			IdleTimeout:  Duration(60 * time.Second),
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "sop_portal",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
			MaxLifetime:    Duration(30 * time.Minute),
		},
		AWS: AWSConfig{
			Region:         "us-east-1",
			DocumentBucket: "sop-documents",
		},
		Auth: AuthConfig{
			Issuer:   "sop-portal",
			TokenTTL: Duration(12 * time.Hour),
		},
		Worker: WorkerConfig{
			BreachSchedule: "0 0 6 * * *",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from file and environment variables. A .env file in
// the working directory is read first; variables already set in the environment win.
func LoadConfig(configPath string) (*Config, error) {
	_ = godotenv.Load()

	config := Default()

	// Load from file if exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables
	if err := overrideWithEnv(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func overrideWithEnv(config *Config) error {
	var errs []string
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, key)
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, key)
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *Duration) {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, key)
				return
			}
			*dst = Duration(d)
		}
	}

	str("SERVER_HOST", &config.Server.Host)
	integer("SERVER_PORT", &config.Server.Port)
	str("SERVER_MODE", &config.Server.Mode)
	if origins := os.Getenv("SERVER_ALLOWED_ORIGINS"); origins != "" {
		config.Server.AllowedOrigins = splitList(origins)
	}

	str("DATABASE_HOST", &config.Database.Host)
	integer("DATABASE_PORT", &config.Database.Port)
	str("DATABASE_USER", &config.Database.User)
	str("DATABASE_PASSWORD", &config.Database.Password)
	str("DATABASE_DBNAME", &config.Database.DBName)
	str("DATABASE_SSLMODE", &config.Database.SSLMode)

	str("AWS_REGION", &config.AWS.Region)
	str("AWS_ENDPOINT_URL", &config.AWS.Endpoint)
	str("AWS_ACCESS_KEY_ID", &config.AWS.AccessKeyID)
	str("AWS_SECRET_ACCESS_KEY", &config.AWS.SecretAccessKey)
	boolean("AWS_S3_USE_PATH_STYLE", &config.AWS.UsePathStyle)
	str("DOCUMENT_BUCKET", &config.AWS.DocumentBucket)
	str("SES_FROM_ADDRESS", &config.AWS.SESFromAddress)
	str("SNS_TOPIC_ARN", &config.AWS.SNSTopicARN)

	boolean("AUTH_ENABLED", &config.Auth.Enabled)
	str("JWT_SECRET", &config.Auth.JWTSecret)
	str("JWT_ISSUER", &config.Auth.Issuer)
	duration("JWT_TOKEN_TTL", &config.Auth.TokenTTL)
	boolean("AUTH_ALLOW_TOKEN_ISSUE", &config.Auth.AllowTokenIssue)
	str("AUTH_ISSUE_KEY_HASH", &config.Auth.IssueKeyHash)

	boolean("NOTIFICATIONS_EMAIL_ENABLED", &config.Notifications.EmailEnabled)
	boolean("NOTIFICATIONS_TOPIC_ENABLED", &config.Notifications.TopicEnabled)

	str("WORKER_BREACH_SCHEDULE", &config.Worker.BreachSchedule)
	boolean("WORKER_RUN_ON_START", &config.Worker.RunOnStart)

	str("LOG_LEVEL", &config.Logging.Level)
	boolean("LOG_DEVELOPMENT", &config.Logging.Development)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment values: %s", strings.Join(errs, ", "))
	}
	return nil
}

// Validate checks settings that would otherwise fail at first use.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth is enabled but no jwt secret is set")
	}
	if c.Auth.AllowTokenIssue && c.Auth.IssueKeyHash == "" {
		return fmt.Errorf("token issuing needs an issue key hash")
	}
	if c.Notifications.EmailEnabled && c.AWS.SESFromAddress == "" {
		return fmt.Errorf("email notifications need a sender address")
	}
	if c.Notifications.TopicEnabled && c.AWS.SNSTopicARN == "" {
		return fmt.Errorf("topic notifications need a topic arn")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
