package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	StorageBackendPostgres = "postgres"
	StorageBackendFile     = "file"

	ImageBackendLocal = "local"
	ImageBackendS3    = "s3"
)

type Config struct {
	AppName   string
	AppEnv    string
	AppPort   string
	LogLevel  string
	StaticDir string

	Storage  StorageConfig
	DB       DBConfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
	JWT      JWTConfig
	Posts    PostsConfig
	Images   ImagesConfig
}

type StorageConfig struct {
	Backend string
	DataDir string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	Host          string
	Port          string
	RedisPassword string
	RedisDB       string
}

// Enabled reports whether Redis was configured. The feed cache and the auth
// rate limiter are skipped without it.
func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

type RabbitMQConfig struct {
	URL   string
	Queue string
}

func (c RabbitMQConfig) Enabled() bool {
	return c.URL != ""
}

type JWTConfig struct {
	Secret     string
	SessionTTL time.Duration
	CookieName string
	Secure     bool
	BcryptCost int
}

type PostsConfig struct {
	CharLimit   int
	Cooldown    time.Duration
	ExemptUsers []string
}

type ImagesConfig struct {
	Backend     string
	LocalDir    string
	MaxBytes    int64
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	PublicURL   string
}

func Load() *Config {
	return &Config{
		AppName:   getEnv("APP_NAME", "microblog"),
		AppEnv:    getEnv("APP_ENV", "development"),
		AppPort:   getEnv("APP_PORT", "3000"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		StaticDir: os.Getenv("STATIC_DIR"),

		Storage: StorageConfig{
			Backend: getEnv("STORAGE_BACKEND", StorageBackendPostgres),
			DataDir: getEnv("DATA_DIR", "data"),
		},

		DB: DBConfig{
			Host:     os.Getenv("DB_HOST"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     os.Getenv("DB_NAME"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},

		Redis: RedisConfig{
			Host:          os.Getenv("REDIS_HOST"),
			Port:          getEnv("REDIS_PORT", "6379"),
			RedisPassword: os.Getenv("REDIS_PASSWORD"),
			RedisDB:       getEnv("REDIS_DB", "0"),
		},

		RabbitMQ: RabbitMQConfig{
			URL:   os.Getenv("RABBITMQ_URL"),
			Queue: getEnv("RABBITMQ_QUEUE", "post_events"),
		},

		JWT: JWTConfig{
			Secret:     os.Getenv("JWT_SECRET"),
			SessionTTL: getDuration("SESSION_TTL", 7*24*time.Hour),
			CookieName: getEnv("SESSION_COOKIE", "session"),
			Secure:     getBool("SESSION_COOKIE_SECURE", false),
			BcryptCost: getInt("BCRYPT_COST", 10),
		},

		Posts: PostsConfig{
			CharLimit:   getInt("POST_CHAR_LIMIT", 500),
			Cooldown:    getDuration("POST_COOLDOWN", 15*time.Minute),
			ExemptUsers: getList("EXEMPT_USERS"),
		},

		Images: ImagesConfig{
			Backend:     getEnv("IMAGE_BACKEND", ImageBackendLocal),
			LocalDir:    getEnv("IMAGE_DIR", "uploads"),
			MaxBytes:    int64(getInt("IMAGE_MAX_BYTES", 5<<20)),
			S3Bucket:    os.Getenv("S3_BUCKET"),
			S3Region:    getEnv("S3_REGION", "us-east-1"),
			S3Endpoint:  os.Getenv("S3_ENDPOINT"),
			S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
			S3SecretKey: os.Getenv("S3_SECRET_KEY"),
			PublicURL:   os.Getenv("IMAGE_PUBLIC_URL"),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logrus.WithField("key", key).Warnf("Invalid integer %q, using default %d", v, fallback)
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logrus.WithField("key", key).Warnf("Invalid boolean %q, using default %t", v, fallback)
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		logrus.WithField("key", key).Warnf("Invalid duration %q, using default %s", v, fallback)
		return fallback
	}
	return d
}

// getList splits a comma separated value, dropping blanks.
func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
