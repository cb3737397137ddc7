package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Report      ReportConfig      `yaml:"report"`
	Annotations AnnotationsConfig `yaml:"annotations"`
	Storage     StorageConfig     `yaml:"storage"`
	Warehouse   WarehouseConfig   `yaml:"warehouse"`
	Notify      NotifyConfig      `yaml:"notify"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port                int      `yaml:"port"`
	Host                string   `yaml:"host"`
	ReadTimeoutSeconds  int      `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int      `yaml:"write_timeout_seconds"`
	MaxUploadMB         int      `yaml:"max_upload_mb"`
	AllowedOrigins      []string `yaml:"allowed_origins"`
}

// GetHost returns the server host, with ECS detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// ReadTimeout returns the server read timeout as a duration
func (c ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the server write timeout as a duration
func (c ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

// MaxUploadBytes bounds multipart CSV uploads.
func (c ServerConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// DefaultOffTrackThreshold is the goal variance, in percentage points,
// below which a period is Off Track.
const DefaultOffTrackThreshold = -2.0

// ReportConfig holds review computation settings
type ReportConfig struct {
	// OffTrackThreshold and DefaultGoalOpenRate are pointers so that an
	// explicit 0 is kept.
	OffTrackThreshold   *float64 `yaml:"off_track_threshold"`
	DefaultGoalOpenRate *float64 `yaml:"default_goal_open_rate"`
	ExportDir           string   `yaml:"export_dir"`
}

// DefaultGoalOpenRate is the goal applied to inputs without a goal column.
const DefaultGoalOpenRate = 0.20

// GoalOpenRate returns the configured default goal open rate or the default.
func (c ReportConfig) GoalOpenRate() float64 {
	if c.DefaultGoalOpenRate == nil {
		return DefaultGoalOpenRate
	}
	return *c.DefaultGoalOpenRate
}

// Threshold returns the configured off-track threshold or the default.
func (c ReportConfig) Threshold() float64 {
	if c.OffTrackThreshold == nil {
		return DefaultOffTrackThreshold
	}
	return *c.OffTrackThreshold
}

// Annotation backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendDynamoDB = "dynamodb"
)

// AnnotationsConfig selects where reviewer narrative is kept
type AnnotationsConfig struct {
	Backend        string `yaml:"backend"`
	FilePath       string `yaml:"file_path"`
	RedisURL       string `yaml:"redis_url"`
	RedisKey       string `yaml:"redis_key"`
	DatabaseURL    string `yaml:"database_url"`
	DynamoDBTable  string `yaml:"dynamodb_table"`
	AWSRegion      string `yaml:"aws_region"`
	AWSProfile     string `yaml:"aws_profile"`
	Locking        bool   `yaml:"locking"`
	LockTTLSeconds int    `yaml:"lock_ttl_seconds"`
}

// LockTTL returns the per-row lock TTL as a duration
func (c AnnotationsConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// StorageConfig holds report archive and input object storage configuration
type StorageConfig struct {
	Type       string `yaml:"type"`
	LocalPath  string `yaml:"local_path"`
	S3Bucket   string `yaml:"s3_bucket"`
	S3Prefix   string `yaml:"s3_prefix"`
	AWSRegion  string `yaml:"aws_region"`
	AWSProfile string `yaml:"aws_profile"` // Empty string uses default credential chain (IAM role on ECS)
}

// GetAWSProfile returns the AWS profile, with environment variable override
func (c StorageConfig) GetAWSProfile() string {
	return resolveAWSProfile(c.AWSProfile)
}

// GetAWSProfile returns the AWS profile for the DynamoDB backend.
func (c AnnotationsConfig) GetAWSProfile() string {
	return resolveAWSProfile(c.AWSProfile)
}

func resolveAWSProfile(profile string) string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return "" // Use default credential chain (IAM role)
		}
		return envProfile
	}
	// On ECS/Lambda, don't use a profile - use IAM role
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return profile
}

// DefaultWarehouseQuery reads one row per campaign period.
const DefaultWarehouseQuery = `SELECT report_date, campaign_name, emails_sent, opens, goal_open_rate
FROM wbr_campaign_weeks
ORDER BY report_date`

// WarehouseConfig holds the campaign record source query settings
type WarehouseConfig struct {
	Enabled bool   `yaml:"enabled"`
	Driver  string `yaml:"driver"` // "postgres" or "snowflake"
	DSN     string `yaml:"dsn"`
	Query   string `yaml:"query"`

	// Snowflake connection parts, used when DSN is empty.
	Account   string `yaml:"account"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	Database  string `yaml:"database"`
	Schema    string `yaml:"schema"`
	Warehouse string `yaml:"warehouse"`

	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// DataSourceName returns the DSN for the configured driver.
func (c WarehouseConfig) DataSourceName() string {
	if c.DSN != "" || c.Driver != "snowflake" {
		return c.DSN
	}
	// Format: user:password@account/database/schema?warehouse=xxx
	dsn := fmt.Sprintf("%s:%s@%s/%s/%s", c.User, c.Password, c.Account, c.Database, c.Schema)
	if c.Warehouse != "" {
		dsn += "?warehouse=" + c.Warehouse
	}
	return dsn
}

// Timeout returns the query timeout as a duration
func (c WarehouseConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// NotifyConfig holds SES digest delivery configuration
type NotifyConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Region     string   `yaml:"region"`
	AccessKey  string   `yaml:"access_key"`
	SecretKey  string   `yaml:"secret_key"`
	From       string   `yaml:"from"`
	Recipients []string `yaml:"recipients"`
	Subject    string   `yaml:"subject"`
}

// LoggingConfig holds structured logger settings
type LoggingConfig struct {
	Level         string `yaml:"level"`
	DisableRedact bool   `yaml:"disable_redact"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a configuration with every default applied, for running
// without a config file.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.ReadTimeoutSeconds == 0 {
		cfg.Server.ReadTimeoutSeconds = 30
	}
	if cfg.Server.WriteTimeoutSeconds == 0 {
		cfg.Server.WriteTimeoutSeconds = 60
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 10
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	if cfg.Report.ExportDir == "" {
		cfg.Report.ExportDir = "./reports"
	}
	if cfg.Annotations.Backend == "" {
		cfg.Annotations.Backend = BackendMemory
	}
	if cfg.Annotations.FilePath == "" {
		cfg.Annotations.FilePath = "./data/annotations.json"
	}
	if cfg.Annotations.AWSRegion == "" {
		cfg.Annotations.AWSRegion = "us-west-2"
	}
	if cfg.Annotations.LockTTLSeconds == 0 {
		cfg.Annotations.LockTTLSeconds = 10
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "local"
	}
	if cfg.Storage.LocalPath == "" {
		cfg.Storage.LocalPath = "./data"
	}
	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = "us-west-2"
	}
	if cfg.Warehouse.Driver == "" {
		cfg.Warehouse.Driver = "postgres"
	}
	if cfg.Warehouse.Query == "" {
		cfg.Warehouse.Query = DefaultWarehouseQuery
	}
	if cfg.Warehouse.TimeoutSeconds == 0 {
		cfg.Warehouse.TimeoutSeconds = 60
	}
	if cfg.Notify.Region == "" {
		cfg.Notify.Region = "us-west-2"
	}
	if cfg.Notify.Subject == "" {
		cfg.Notify.Subject = "Weekly Business Review: Email Open Rate"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// LoadFromEnv loads configuration from file (or defaults when path is
// empty) and applies environment variable overrides.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = Load(path); err != nil {
			return nil, err
		}
	}

	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("WBR_OFF_TRACK_THRESHOLD"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("parse WBR_OFF_TRACK_THRESHOLD: %w", err)
		}
		cfg.Report.OffTrackThreshold = &t
	}
	if v := os.Getenv("WBR_DEFAULT_GOAL_OPEN_RATE"); v != "" {
		g, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("parse WBR_DEFAULT_GOAL_OPEN_RATE: %w", err)
		}
		cfg.Report.DefaultGoalOpenRate = &g
	}
	if v := os.Getenv("WBR_ANNOTATIONS_BACKEND"); v != "" {
		cfg.Annotations.Backend = v
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Annotations.DatabaseURL = dbURL
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.Annotations.RedisURL = redisURL
	}
	if v := os.Getenv("WBR_DYNAMODB_TABLE"); v != "" {
		cfg.Annotations.DynamoDBTable = v
	}
	if v := os.Getenv("WBR_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("WBR_S3_BUCKET"); v != "" {
		cfg.Storage.S3Bucket = v
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		cfg.Storage.AWSRegion = region
		cfg.Annotations.AWSRegion = region
	}
	if dsn := os.Getenv("WAREHOUSE_DSN"); dsn != "" {
		cfg.Warehouse.DSN = dsn
	}
	if password := os.Getenv("SNOWFLAKE_PASSWORD"); password != "" {
		cfg.Warehouse.Password = password
	}
	if accessKey := os.Getenv("AWS_SES_ACCESS_KEY"); accessKey != "" {
		cfg.Notify.AccessKey = accessKey
	}
	if secretKey := os.Getenv("AWS_SES_SECRET_KEY"); secretKey != "" {
		cfg.Notify.SecretKey = secretKey
	}
	if region := os.Getenv("AWS_SES_REGION"); region != "" {
		cfg.Notify.Region = region
	}
	if from := os.Getenv("WBR_NOTIFY_FROM"); from != "" {
		cfg.Notify.From = from
	}
	if rcpts := os.Getenv("WBR_NOTIFY_RECIPIENTS"); rcpts != "" {
		cfg.Notify.Recipients = splitList(rcpts)
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
