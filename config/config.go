package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultPath is where Load looks for the JSON config when no path is given.
const DefaultPath = "config/config.json"

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via env files or the environment.
type AppConfig struct {
	AppPort            string
	JWTSecret          string
	RateLimitPerMinute int
	AllowedOrigins     []string
	AdminUsernames     []string
	// Gin framework configuration
	GinMode string
	GinPath string
	// Database
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	// Redis for visitor dedupe and token revocation
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool

	Affiliate AffiliateConfig
	Site      SiteConfig
	Media     MediaConfig
}

// AffiliateConfig groups the ledger, renderer and payout options.
type AffiliateConfig struct {
	StartCode         string
	ParamName         string
	BannerPath        string
	MinRequestAmount  decimal.Decimal
	DefaultCurrency   string
	CommissionPercent decimal.Decimal
	StatsDays         int
	VisitorCookieDays int
}

// SiteConfig describes the public site referral links point at.
// An empty Domain means "use the host of the current request".
type SiteConfig struct {
	Domain string
	Name   string
}

// MediaConfig is where uploaded banner images are written and served from.
type MediaConfig struct {
	Root string
	URL  string
}

// fileConfig mirrors the grouped sections of config.json.
type fileConfig struct {
	App struct {
		AppPort            string   `json:"AppPort"`
		JWTSecret          string   `json:"JWTSecret"`
		RateLimitPerMinute int      `json:"RateLimitPerMinute"`
		AllowedOrigins     []string `json:"AllowedOrigins"`
		AdminUsernames     []string `json:"AdminUsernames"`
	} `json:"app"`
	Gin struct {
		Mode    string `json:"Mode"`
		LogPath string `json:"LogPath"`
	} `json:"gin"`
	Database struct {
		DatabaseURI string `json:"DatabaseURI"`
		DBHost      string `json:"DBHost"`
		DBPort      string `json:"DBPort"`
		DBUser      string `json:"DBUser"`
		DBPassword  string `json:"DBPassword"`
		DBName      string `json:"DBName"`
	} `json:"database"`
	Redis struct {
		RedisHost     string `json:"RedisHost"`
		RedisPort     int    `json:"RedisPort"`
		RedisDB       int    `json:"RedisDB"`
		RedisPassword string `json:"RedisPassword"`
	} `json:"redis"`
	Log struct {
		Level      string `json:"Level"`
		Path       string `json:"Path"`
		MaxSizeMB  int    `json:"MaxSizeMB"`
		MaxBackups int    `json:"MaxBackups"`
		MaxAgeDays int    `json:"MaxAgeDays"`
		Compress   bool   `json:"Compress"`
	} `json:"log"`
	Affiliate struct {
		StartAID          string `json:"StartAID"`
		ParamName         string `json:"ParamName"`
		BannerPath        string `json:"BannerPath"`
		MinRequestAmount  string `json:"MinRequestAmount"`
		DefaultCurrency   string `json:"DefaultCurrency"`
		CommissionPercent string `json:"CommissionPercent"`
		StatsDays         int    `json:"StatsDays"`
		VisitorCookieDays int    `json:"VisitorCookieDays"`
	} `json:"affiliate"`
	Site struct {
		Domain string `json:"Domain"`
		Name   string `json:"Name"`
	} `json:"site"`
	Media struct {
		Root string `json:"Root"`
		URL  string `json:"URL"`
	} `json:"media"`
}

// Load builds the configuration once at boot.
// Precedence: JSON file -> defaults -> environment variable overrides.
func Load(path string) (AppConfig, error) {
	if path == "" {
		path = DefaultPath
	}

	var cfg AppConfig
	if err := loadJSONConfig(path, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	applyDefaults(&cfg)

	if err := applyEnvOverrides(&cfg); err != nil {
		return AppConfig{}, err
	}

	if cfg.JWTSecret == "" {
		return AppConfig{}, errors.New("config: JWT_SECRET must be set")
	}
	if cfg.Affiliate.MinRequestAmount.IsNegative() {
		return AppConfig{}, errors.New("config: minimum request amount must not be negative")
	}
	if _, err := strconv.Atoi(cfg.Affiliate.StartCode); err != nil {
		return AppConfig{}, fmt.Errorf("config: start affiliate code %q is not numeric", cfg.Affiliate.StartCode)
	}
	return cfg, nil
}

// loadJSONConfig reads the JSON file into out if present. Missing files are ignored.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer f.Close()

	var raw fileConfig
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	out.AppPort = raw.App.AppPort
	out.JWTSecret = raw.App.JWTSecret
	out.RateLimitPerMinute = raw.App.RateLimitPerMinute
	out.AllowedOrigins = raw.App.AllowedOrigins
	out.AdminUsernames = raw.App.AdminUsernames

	out.GinMode = raw.Gin.Mode
	out.GinPath = raw.Gin.LogPath

	out.DatabaseURI = raw.Database.DatabaseURI
	out.DBHost = raw.Database.DBHost
	out.DBPort = raw.Database.DBPort
	out.DBUser = raw.Database.DBUser
	out.DBPassword = raw.Database.DBPassword
	out.DBName = raw.Database.DBName

	out.RedisHost = raw.Redis.RedisHost
	out.RedisPort = raw.Redis.RedisPort
	out.RedisDB = raw.Redis.RedisDB
	out.RedisPassword = raw.Redis.RedisPassword

	out.LogLevel = raw.Log.Level
	out.LogPath = raw.Log.Path
	out.LogMaxSizeMB = raw.Log.MaxSizeMB
	out.LogMaxBackups = raw.Log.MaxBackups
	out.LogMaxAgeDays = raw.Log.MaxAgeDays
	out.LogCompress = raw.Log.Compress

	a := &out.Affiliate
	a.StartCode = raw.Affiliate.StartAID
	a.ParamName = raw.Affiliate.ParamName
	a.BannerPath = raw.Affiliate.BannerPath
	a.DefaultCurrency = raw.Affiliate.DefaultCurrency
	a.StatsDays = raw.Affiliate.StatsDays
	a.VisitorCookieDays = raw.Affiliate.VisitorCookieDays
	if a.MinRequestAmount, err = parseDecimal("MinRequestAmount", raw.Affiliate.MinRequestAmount); err != nil {
		return err
	}
	if a.CommissionPercent, err = parseDecimal("CommissionPercent", raw.Affiliate.CommissionPercent); err != nil {
		return err
	}

	out.Site.Domain = raw.Site.Domain
	out.Site.Name = raw.Site.Name
	out.Media.Root = raw.Media.Root
	out.Media.URL = raw.Media.URL
	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "affiliate"
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}

	a := &c.Affiliate
	if a.StartCode == "" {
		a.StartCode = "100"
	}
	if a.ParamName == "" {
		a.ParamName = "aid"
	}
	if a.BannerPath == "" {
		a.BannerPath = "affiliate"
	}
	if a.MinRequestAmount.IsZero() {
		a.MinRequestAmount = decimal.RequireFromString("1.00")
	}
	if a.DefaultCurrency == "" {
		a.DefaultCurrency = "USD"
	}
	if a.CommissionPercent.IsZero() {
		a.CommissionPercent = decimal.NewFromInt(10)
	}
	if a.StatsDays == 0 {
		a.StatsDays = 30
	}
	if a.VisitorCookieDays == 0 {
		a.VisitorCookieDays = 30
	}

	if c.Media.Root == "" {
		c.Media.Root = "./media"
	}
	if c.Media.URL == "" {
		c.Media.URL = "/media/"
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) error {
	strs := map[string]*string{
		"APP_PORT":              &c.AppPort,
		"JWT_SECRET":            &c.JWTSecret,
		"GIN_MODE":              &c.GinMode,
		"GIN_PATH":              &c.GinPath,
		"DATABASE_URI":          &c.DatabaseURI,
		"DB_HOST":               &c.DBHost,
		"DB_PORT":               &c.DBPort,
		"DB_USER":               &c.DBUser,
		"DB_PASSWORD":           &c.DBPassword,
		"DB_NAME":               &c.DBName,
		"REDIS_HOST":            &c.RedisHost,
		"REDIS_PASSWORD":        &c.RedisPassword,
		"LOG_LEVEL":             &c.LogLevel,
		"LOG_PATH":              &c.LogPath,
		"AFFILIATE_START_AID":   &c.Affiliate.StartCode,
		"AFFILIATE_PARAM_NAME":  &c.Affiliate.ParamName,
		"AFFILIATE_BANNER_PATH": &c.Affiliate.BannerPath,
		"DEFAULT_CURRENCY":      &c.Affiliate.DefaultCurrency,
		"SITE_DOMAIN":           &c.Site.Domain,
		"SITE_NAME":             &c.Site.Name,
		"MEDIA_ROOT":            &c.Media.Root,
		"MEDIA_URL":             &c.Media.URL,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"RATE_LIMIT_PER_MINUTE":         &c.RateLimitPerMinute,
		"REDIS_PORT":                    &c.RedisPort,
		"REDIS_DB":                      &c.RedisDB,
		"LOG_MAX_SIZE_MB":               &c.LogMaxSizeMB,
		"LOG_MAX_BACKUPS":               &c.LogMaxBackups,
		"LOG_MAX_AGE_DAYS":              &c.LogMaxAgeDays,
		"AFFILIATE_STATS_DAYS":          &c.Affiliate.StatsDays,
		"AFFILIATE_VISITOR_COOKIE_DAYS": &c.Affiliate.VisitorCookieDays,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			i, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("config: invalid integer %s=%q: %w", key, v, err)
			}
			*dst = i
		}
	}

	decs := map[string]*decimal.Decimal{
		"AFFILIATE_MIN_BALANCE_FOR_REQUEST": &c.Affiliate.MinRequestAmount,
		"AFFILIATE_COMMISSION_PERCENT":      &c.Affiliate.CommissionPercent,
	}
	for key, dst := range decs {
		if v := os.Getenv(key); v != "" {
			d, err := parseDecimal(key, v)
			if err != nil {
				return err
			}
			*dst = d
		}
	}

	if v := os.Getenv("LOG_COMPRESS"); v != "" {
		c.LogCompress = v == "true"
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitAndTrim(v)
	}
	if v := os.Getenv("ADMIN_USERNAMES"); v != "" {
		c.AdminUsernames = splitAndTrim(v)
	}
	return nil
}

// IsAdmin reports whether username is listed in AdminUsernames (case-insensitive).
func (c AppConfig) IsAdmin(username string) bool {
	uname := strings.TrimSpace(username)
	if uname == "" {
		return false
	}
	for _, u := range c.AdminUsernames {
		if strings.EqualFold(strings.TrimSpace(u), uname) {
			return true
		}
	}
	return false
}

func parseDecimal(key, raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("config: invalid decimal %s=%q: %w", key, raw, err)
	}
	return d, nil
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
