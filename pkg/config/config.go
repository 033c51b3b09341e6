package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("config", fx.Provide(LoadConfig))

// Config is the immutable application configuration. Deployment-wide
// switches (quota policy, hard-delete mode, sweep tuning) live here and are
// handed to each component at construction time.
type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	Server     struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Database struct {
		Type           string `mapstructure:"TYPE"`
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBNAME         string `mapstructure:"DBNAME"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode        string `mapstructure:"SSLMODE"`
		Timezone       string `mapstructure:"TIMEZONE"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	Minio struct {
		Endpoint   string `mapstructure:"ENDPOINT"`
		AccessKey  string `mapstructure:"ACCESS_KEY"`
		SecretKey  string `mapstructure:"SECRET_KEY"`
		Secure     bool   `mapstructure:"SECURE"`
		BucketName string `mapstructure:"BUCKET_NAME"`
	} `mapstructure:"MINIO"`
	Quota       QuotaConfig       `mapstructure:"QUOTA"`
	Retention   RetentionConfig   `mapstructure:"RETENTION"`
	Reminder    ReminderConfig    `mapstructure:"REMINDER"`
	Dedup       DedupConfig       `mapstructure:"DEDUP"`
	Reservation ReservationConfig `mapstructure:"RESERVATION"`
}

// QuotaConfig selects the admission policy for the whole deployment.
type QuotaConfig struct {
	// Enforcement is "strict" or "permissive".
	Enforcement string `mapstructure:"ENFORCEMENT"`
}

func (q QuotaConfig) Strict() bool {
	return strings.EqualFold(q.Enforcement, "strict")
}

// RetentionConfig tunes the purge worker and the storage window fallback.
type RetentionConfig struct {
	HardDelete          bool          `mapstructure:"HARD_DELETE"`
	SweepInterval       time.Duration `mapstructure:"SWEEP_INTERVAL"`
	BatchSize           int           `mapstructure:"BATCH_SIZE"`
	GraceMonths         int           `mapstructure:"GRACE_MONTHS"`
	DefaultStorageDays  int           `mapstructure:"DEFAULT_STORAGE_DAYS"`
	SoftDeleteGraceDays int           `mapstructure:"SOFT_DELETE_GRACE_DAYS"`
}

type ReminderConfig struct {
	SweepInterval time.Duration `mapstructure:"SWEEP_INTERVAL"`
	OffsetsDays   []int         `mapstructure:"OFFSETS_DAYS"`
}

// DedupConfig carries the perceptual threshold and the tunable weights of
// the best-in-group composite score.
type DedupConfig struct {
	HammingThreshold  int     `mapstructure:"HAMMING_THRESHOLD"`
	RecencyWindowDays int     `mapstructure:"RECENCY_WINDOW_DAYS"`
	RecencyMaxBonus   float64 `mapstructure:"RECENCY_MAX_BONUS"`
	LikeWeight        float64 `mapstructure:"LIKE_WEIGHT"`
	CommentWeight     float64 `mapstructure:"COMMENT_WEIGHT"`
	ViewWeight        float64 `mapstructure:"VIEW_WEIGHT"`
}

type ReservationConfig struct {
	TTL time.Duration `mapstructure:"TTL"`
}

// Default returns a config populated with the engine defaults. LoadConfig
// overlays config.yaml and environment variables on top of it; tests use it
// directly.
func Default() *Config {
	cfg := &Config{}
	cfg.AppEnv = "development"
	cfg.AppName = "eventshare-engine"
	cfg.Server.Addr = ":8080"
	cfg.Server.ReadTimeout = 15 * time.Second
	cfg.Server.WriteTimeout = 15 * time.Second
	cfg.Server.IdleTimeout = 60 * time.Second
	cfg.Quota = QuotaConfig{Enforcement: "strict"}
	cfg.Retention = RetentionConfig{
		HardDelete:          false,
		SweepInterval:       time.Hour,
		BatchSize:           50,
		GraceMonths:         3,
		DefaultStorageDays:  30,
		SoftDeleteGraceDays: 7,
	}
	cfg.Reminder = ReminderConfig{
		SweepInterval: 6 * time.Hour,
		OffsetsDays:   []int{30, 7, 1},
	}
	cfg.Dedup = DedupConfig{
		HammingThreshold:  10,
		RecencyWindowDays: 10,
		RecencyMaxBonus:   15,
		LikeWeight:        2,
		CommentWeight:     3,
		ViewWeight:        0.1,
	}
	cfg.Reservation = ReservationConfig{TTL: 30 * time.Minute}
	return cfg
}

func LoadConfig() *Config {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		zap.L().Error("failed to read config file", zap.Error(err))
		os.Exit(1)
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		zap.L().Error("failed to unmarshal config", zap.Error(err))
		os.Exit(1)
	}

	return cfg
}
