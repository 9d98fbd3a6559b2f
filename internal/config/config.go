package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/oncall-dispatch/backend/internal/schedule"
)

type Config struct {
	Env             string        `mapstructure:"ENV"`
	Port            string        `mapstructure:"PORT"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	CORSAllowed     string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	MaxUploadSizeMB int64         `mapstructure:"MAX_UPLOAD_MB"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	TechTable   string `mapstructure:"TECH_TABLE"`
	ZipTable    string `mapstructure:"ZIP_TABLE"`

	RefdataAPIURL  string `mapstructure:"REFDATA_API_URL"`
	StaticZipPath  string `mapstructure:"STATIC_ZIP_PATH"`
	StaticTechPath string `mapstructure:"STATIC_TECH_PATH"`

	RotationPath      string `mapstructure:"ROTATION_PATH"`
	MarketCatalogPath string `mapstructure:"MARKET_CATALOG_PATH"`

	TZShiftMode              string `mapstructure:"TZ_SHIFT_MODE"`
	NonAvailabilityShiftDays int    `mapstructure:"NON_AVAILABILITY_SHIFT_DAYS"`

	GeocoderURL       string  `mapstructure:"GEOCODER_URL"`
	GeocoderUserAgent string  `mapstructure:"GEOCODER_USER_AGENT"`
	GeocoderRPS       float64 `mapstructure:"GEOCODER_RPS"`
}

var keys = []string{
	"ENV", "PORT", "LOG_LEVEL", "CORS_ALLOWED_ORIGINS", "REQUEST_TIMEOUT", "MAX_UPLOAD_MB",
	"DATABASE_URL", "TECH_TABLE", "ZIP_TABLE",
	"REFDATA_API_URL", "STATIC_ZIP_PATH", "STATIC_TECH_PATH",
	"ROTATION_PATH", "MARKET_CATALOG_PATH",
	"TZ_SHIFT_MODE", "NON_AVAILABILITY_SHIFT_DAYS",
	"GEOCODER_URL", "GEOCODER_USER_AGENT", "GEOCODER_RPS",
}

// Load reads .env (when present) and the environment. Environment values win.
func Load() (Config, error) {
	return load(".env")
}

func load(envFile string) (Config, error) {
	// Existing environment variables are not overwritten.
	_ = godotenv.Load(envFile)

	v := viper.New()
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()
	// Unmarshal only sees keys viper knows about; AutomaticEnv alone is not enough.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("MAX_UPLOAD_MB", 20)
	v.SetDefault("TECH_TABLE", "tech_db")
	v.SetDefault("ZIP_TABLE", "uszips")
	v.SetDefault("STATIC_ZIP_PATH", "data/uszips.csv")
	v.SetDefault("STATIC_TECH_PATH", "data/techdb.csv")
	v.SetDefault("TZ_SHIFT_MODE", string(schedule.ShiftAuto))
	v.SetDefault("NON_AVAILABILITY_SHIFT_DAYS", -1)
	v.SetDefault("GEOCODER_USER_AGENT", "oncall-dispatch/1.0")
	v.SetDefault("GEOCODER_RPS", 1.0)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.TZShiftMode = strings.ToLower(strings.TrimSpace(cfg.TZShiftMode))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := schedule.ParseShiftMode(c.TZShiftMode); err != nil {
		return fmt.Errorf("TZ_SHIFT_MODE: %w", err)
	}
	if c.MaxUploadSizeMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadSizeMB)
	}
	if c.GeocoderURL != "" && c.GeocoderRPS <= 0 {
		return fmt.Errorf("GEOCODER_RPS must be positive when GEOCODER_URL is set")
	}
	return nil
}

func (c Config) ShiftMode() schedule.ShiftMode {
	m, _ := schedule.ParseShiftMode(c.TZShiftMode)
	return m
}
