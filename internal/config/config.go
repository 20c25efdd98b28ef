package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the bot and supporting services.
type Config struct {
	BotToken string
	MySQLDSN string

	ProviderAPIKey     string
	ProviderBaseURL    string
	ProviderModel      string
	ProviderAuthHeader string
	RequestTimeout     time.Duration
	AspectRatio        string
	ImageSize          string

	PhotoshootPriceUnits int
	SettlementCurrency   string
	SuperAdminID         int64

	ArtifactDir string

	AdminListenAddr string
	AdminUsername   string
	AdminPassword   string

	S3Endpoint      string
	S3Region        string
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string
	S3PublicBaseURL string
	S3UsePathStyle  bool
	S3Prefix        string
}

// ArchiveEnabled reports whether generated artifacts should be copied to
// object storage. The bot runs fine without it.
func (c Config) ArchiveEnabled() bool {
	return c.S3Bucket != ""
}

// Load reads configuration from environment variables, applying sane defaults.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	const defaultBaseURL = "https://api.apiyi.com"

	cfg := Config{
		ProviderBaseURL:      normalizeBaseURL(getEnv("PHOTOSHOOT_BASE_URL", defaultBaseURL), defaultBaseURL),
		ProviderModel:        getEnv("PHOTOSHOOT_MODEL", "gemini-3-pro-image-preview"),
		ProviderAuthHeader:   getEnv("PHOTOSHOOT_AUTH_HEADER", "Authorization"),
		RequestTimeout:       time.Second * time.Duration(getInt("PHOTOSHOOT_TIMEOUT_SECONDS", 360)),
		AspectRatio:          getEnv("PHOTOSHOOT_ASPECT_RATIO", "3:4"),
		ImageSize:            getEnv("PHOTOSHOOT_IMAGE_SIZE", "4K"),
		PhotoshootPriceUnits: getInt("PHOTOSHOOT_PRICE_UNITS", 350),
		SettlementCurrency:   getEnv("SETTLEMENT_CURRENCY", "XTR"),
		SuperAdminID:         getInt64("SUPER_ADMIN_ID", 0),
		ArtifactDir:          getEnv("ARTIFACT_DIR", ""),
		AdminListenAddr:      getEnv("ADMIN_LISTEN_ADDR", ":8080"),
		AdminUsername:        getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:        getEnv("ADMIN_PASSWORD", "change-me"),
		S3Endpoint:           getEnv("S3_ENDPOINT", ""),
		S3Region:             os.Getenv("S3_REGION"),
		S3AccessKey:          os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:          os.Getenv("S3_SECRET_KEY"),
		S3Bucket:             os.Getenv("S3_BUCKET"),
		S3PublicBaseURL:      os.Getenv("S3_PUBLIC_BASE_URL"),
		S3UsePathStyle:       getBool("S3_USE_PATH_STYLE", false),
		S3Prefix:             getEnv("S3_PREFIX", "photoshoots"),
	}

	cfg.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.MySQLDSN = os.Getenv("MYSQL_DSN")

	// The key historically lived under COMET_API_KEY; resolve the precedence
	// once here so the rest of the code sees a single field.
	cfg.ProviderAPIKey = os.Getenv("PHOTOSHOOT_API_KEY")
	if cfg.ProviderAPIKey == "" {
		cfg.ProviderAPIKey = os.Getenv("COMET_API_KEY")
	}

	var missing []string
	if cfg.BotToken == "" {
		missing = append(missing, "TELEGRAM_BOT_TOKEN")
	}
	if cfg.MySQLDSN == "" {
		missing = append(missing, "MYSQL_DSN")
	}
	if cfg.ProviderAPIKey == "" {
		missing = append(missing, "PHOTOSHOOT_API_KEY")
	}
	if cfg.ArchiveEnabled() {
		if cfg.S3Region == "" {
			missing = append(missing, "S3_REGION")
		}
		if cfg.S3AccessKey == "" {
			missing = append(missing, "S3_ACCESS_KEY")
		}
		if cfg.S3SecretKey == "" {
			missing = append(missing, "S3_SECRET_KEY")
		}
		if cfg.S3PublicBaseURL == "" {
			missing = append(missing, "S3_PUBLIC_BASE_URL")
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %v", missing)
	}

	if cfg.PhotoshootPriceUnits < 0 {
		return Config{}, fmt.Errorf("PHOTOSHOOT_PRICE_UNITS must not be negative")
	}

	return cfg, nil
}

// normalizeBaseURL keeps the provider endpoint a plain scheme+host URL. Docs
// pages sometimes quote the host without a scheme, which would break request
// building later.
func normalizeBaseURL(raw string, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fallback
	}

	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}
	if parsed.Host == "" {
		parsed.Host = parsed.Path
		parsed.Path = ""
	}

	return strings.TrimRight(parsed.String(), "/")
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
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func loadEnvFile() error {
	candidates := []string{}
	if custom, ok := os.LookupEnv("CONFIG_ENV_PATH"); ok && custom != "" {
		candidates = append(candidates, custom)
	}
	candidates = append(candidates,
		filepath.Join("configs", ".env"),
		".env",
	)

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("access env file %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		if err := godotenv.Overload(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	// Pure-environment deployments have no env file at all.
	return nil
}
