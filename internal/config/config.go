package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	NATS        NATSConfig        `yaml:"nats"`
	MinIO       MinIOConfig       `yaml:"minio"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Attendance  AttendanceConfig  `yaml:"attendance"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// RecognitionConfig controls the encoder gateway and matching thresholds.
// VerifyThreshold guards the registration-path verification; CheckInThreshold
// is the lower confidence floor applied on the attendance check-in path.
// The two call sites use different thresholds on purpose.
type RecognitionConfig struct {
	ModelsDir          string        `yaml:"models_dir"`
	EmbeddingDim       int           `yaml:"embedding_dim"`
	DetectionThreshold float64       `yaml:"detection_threshold"`
	VerifyThreshold    float64       `yaml:"verify_threshold"`
	CheckInThreshold   float64       `yaml:"checkin_threshold"`
	MinPhotos          int           `yaml:"min_photos"`
	MaxPhotos          int           `yaml:"max_photos"`
	EncoderTimeout     time.Duration `yaml:"encoder_timeout"`
}

// AttendanceConfig holds the civil-time business rules. The cutoff and the
// timezone offset are civil-time concepts; record instants are stored in UTC.
type AttendanceConfig struct {
	LateCutoff     string `yaml:"late_cutoff"`     // "HH:MM" local time
	TimezoneOffset int    `yaml:"timezone_offset"` // hours east of UTC
	SweepHour      int    `yaml:"sweep_hour"`      // local hour the daily sweep fires
}

// Location returns the fixed civil timezone used for date resolution and
// cutoff classification.
func (a AttendanceConfig) Location() *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", a.TimezoneOffset), a.TimezoneOffset*3600)
}

// Cutoff parses late_cutoff into hour and minute.
func (a AttendanceConfig) Cutoff() (hour, minute int, err error) {
	if _, err := fmt.Sscanf(a.LateCutoff, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("parse late_cutoff %q: %w", a.LateCutoff, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("late_cutoff %q out of range", a.LateCutoff)
	}
	return hour, minute, nil
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if _, _, err := cfg.Attendance.Cutoff(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Recognition.EmbeddingDim == 0 {
		cfg.Recognition.EmbeddingDim = 1280
	}
	if cfg.Recognition.DetectionThreshold == 0 {
		cfg.Recognition.DetectionThreshold = 0.5
	}
	if cfg.Recognition.VerifyThreshold == 0 {
		cfg.Recognition.VerifyThreshold = 0.7
	}
	if cfg.Recognition.CheckInThreshold == 0 {
		cfg.Recognition.CheckInThreshold = 0.6
	}
	if cfg.Recognition.MinPhotos == 0 {
		cfg.Recognition.MinPhotos = 3
	}
	if cfg.Recognition.MaxPhotos == 0 {
		cfg.Recognition.MaxPhotos = 10
	}
	if cfg.Recognition.EncoderTimeout == 0 {
		cfg.Recognition.EncoderTimeout = 10 * time.Second
	}
	if cfg.Attendance.LateCutoff == "" {
		cfg.Attendance.LateCutoff = "07:30"
	}
	if cfg.Attendance.TimezoneOffset == 0 {
		cfg.Attendance.TimezoneOffset = 7
	}
	if cfg.Attendance.SweepHour == 0 {
		cfg.Attendance.SweepHour = 1
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PRESENCE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PRESENCE_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("PRESENCE_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("PRESENCE_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("PRESENCE_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("PRESENCE_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("PRESENCE_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("PRESENCE_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("PRESENCE_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("PRESENCE_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("PRESENCE_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("PRESENCE_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("PRESENCE_MODELS_DIR"); v != "" {
		cfg.Recognition.ModelsDir = v
	}
	if v := os.Getenv("PRESENCE_VERIFY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Recognition.VerifyThreshold = f
		}
	}
	if v := os.Getenv("PRESENCE_CHECKIN_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Recognition.CheckInThreshold = f
		}
	}
	if v := os.Getenv("PRESENCE_LATE_CUTOFF"); v != "" {
		cfg.Attendance.LateCutoff = v
	}
	if v := os.Getenv("PRESENCE_TZ_OFFSET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Attendance.TimezoneOffset = n
		}
	}
}
