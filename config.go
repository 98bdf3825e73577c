package drivekit

import (
	"time"

	"github.com/gobeaver/beaver-kit/config"
)

type Config struct {
	// Default driver to use (rest, s3)
	Driver string `env:"DRIVEKIT_DRIVER,default:rest"`

	// REST driver configuration
	RestBaseURL string `env:"DRIVEKIT_REST_BASE_URL"`
	RestToken   string `env:"DRIVEKIT_REST_TOKEN"`
	RestTimeout int    `env:"DRIVEKIT_REST_TIMEOUT_SECONDS,default:30"`

	// S3 driver configuration
	S3Region          string `env:"DRIVEKIT_S3_REGION,default:us-east-1"`
	S3Bucket          string `env:"DRIVEKIT_S3_BUCKET"`
	S3Prefix          string `env:"DRIVEKIT_S3_PREFIX"`
	S3Endpoint        string `env:"DRIVEKIT_S3_ENDPOINT"`
	S3AccessKeyID     string `env:"DRIVEKIT_S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"DRIVEKIT_S3_SECRET_ACCESS_KEY"`
	S3ForcePathStyle  bool   `env:"DRIVEKIT_S3_FORCE_PATH_STYLE,default:false"`

	// Download reader tuning
	RetryBudget   int   `env:"DRIVEKIT_RETRY_BUDGET,default:5"`
	SkipThreshold int64 `env:"DRIVEKIT_SKIP_THRESHOLD,default:1048576"`

	// Filesystem defaults
	PageSize        int    `env:"DRIVEKIT_PAGE_SIZE,default:100"`
	DefaultPassword string `env:"DRIVEKIT_DEFAULT_PASSWORD"`
	MountTTLSeconds int    `env:"DRIVEKIT_MOUNT_TTL_SECONDS,default:60"`
}

// GetConfig returns config loaded from environment
func GetConfig() (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MountTTL returns the mount table cache TTL as a duration.
func (c *Config) MountTTL() time.Duration {
	if c.MountTTLSeconds <= 0 {
		return DefaultMountTTL
	}
	return time.Duration(c.MountTTLSeconds) * time.Second
}

// fsOptions translates the config into filesystem options.
func (c *Config) fsOptions() []FSOption {
	opts := []FSOption{
		WithMountTTL(c.MountTTL()),
	}
	if c.PageSize > 0 {
		opts = append(opts, WithPageSize(c.PageSize))
	}
	if c.DefaultPassword != "" {
		opts = append(opts, WithDefaultPassword(c.DefaultPassword))
	}
	return opts
}
