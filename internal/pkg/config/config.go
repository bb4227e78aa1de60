package config

import (
	"errors"
	"log"
	"os"

	"github.com/spf13/viper"
)

// Config is the top-level configuration for the billing service.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	App       AppConfig       `mapstructure:"app"`
	WayForPay WayForPayConfig `mapstructure:"wayforpay"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Port     string `mapstructure:"port"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Expire int64  `mapstructure:"expire"` // hours
}

type AppConfig struct {
	Env   string `mapstructure:"env"`
	Debug bool   `mapstructure:"debug"`
	// PublicURL is the externally reachable base URL of this service,
	// used to build returnUrl and serviceUrl for the payment gateway.
	PublicURL string `mapstructure:"public_url"`
	// ResultPath is where /billing/return redirects the browser to.
	ResultPath string `mapstructure:"result_path"`
}

// WayForPayConfig holds the gateway credentials. All fields may be
// empty: invoice issuance then degrades to a structured error and
// callback verification reports "unverified" instead of failing.
type WayForPayConfig struct {
	MerchantAccount  string `mapstructure:"merchant_account"`
	MerchantDomain   string `mapstructure:"merchant_domain"`
	SecretKey        string `mapstructure:"secret_key"`
	MerchantPassword string `mapstructure:"merchant_password"`
	// MerchantPasswordMD5, when set, is used as-is for SUSPEND requests
	// instead of hashing MerchantPassword.
	MerchantPasswordMD5 string `mapstructure:"merchant_password_md5"`
	APIURL              string `mapstructure:"api_url"`
	Language            string `mapstructure:"language"`
}

var GlobalConfig Config

// Validate checks the parts of the configuration the process cannot
// run without. Gateway credentials are deliberately not required here.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" || c.JWT.Secret == "your_super_secret_key" {
		return errors.New("please set a secure JWT secret in production")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("JWT secret should be at least 32 characters")
	}

	if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
		return errors.New("database configuration is incomplete")
	}

	if c.Redis.Addr == "" {
		return errors.New("redis address is required")
	}

	return nil
}

// LoadConfig reads the yaml config for the current environment and
// applies environment variable overrides.
func LoadConfig() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	configName := "config"
	if env != "" && env != "dev" {
		configName = "config." + env
	}

	viper.SetConfigName(configName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("jwt.expire", 24)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("app.env", "dev")
	viper.SetDefault("app.debug", true)
	viper.SetDefault("app.result_path", "/payment/result")
	viper.SetDefault("wayforpay.api_url", "https://api.wayforpay.com/api")
	viper.SetDefault("wayforpay.language", "UA")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Config file not found, using defaults or env vars: %v", err)
	}

	viper.AutomaticEnv()

	if err := viper.Unmarshal(&GlobalConfig); err != nil {
		log.Fatalf("Unable to decode into struct: %v", err)
	}

	// Explicit env overrides. The gateway variables keep both the long
	// WAYFORPAY_* names and the legacy WFP_* aliases working.
	if host := os.Getenv("DB_HOST"); host != "" {
		GlobalConfig.Database.Host = host
	}
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		GlobalConfig.Redis.Addr = redisAddr
	}
	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		GlobalConfig.JWT.Secret = jwtSecret
	}
	if publicURL := os.Getenv("PUBLIC_URL"); publicURL != "" {
		GlobalConfig.App.PublicURL = publicURL
	}
	if v := envFirst("WAYFORPAY_MERCHANT_ACCOUNT", "WFP_MERCHANT_ACCOUNT"); v != "" {
		GlobalConfig.WayForPay.MerchantAccount = v
	}
	if v := envFirst("WAYFORPAY_MERCHANT_DOMAIN", "WFP_MERCHANT_DOMAIN"); v != "" {
		GlobalConfig.WayForPay.MerchantDomain = v
	}
	if v := envFirst("WAYFORPAY_SECRET_KEY", "WFP_SECRET_KEY"); v != "" {
		GlobalConfig.WayForPay.SecretKey = v
	}
	if v := envFirst("WAYFORPAY_MERCHANT_PASSWORD", "WFP_MERCHANT_PASSWORD"); v != "" {
		GlobalConfig.WayForPay.MerchantPassword = v
	}
	if v := envFirst("WAYFORPAY_MERCHANT_PASSWORD_MD5", "WFP_MERCHANT_PASSWORD_MD5"); v != "" {
		GlobalConfig.WayForPay.MerchantPasswordMD5 = v
	}

	if err := GlobalConfig.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	log.Printf("Configuration loaded and validated successfully. Environment: %s", GlobalConfig.App.Env)
}

// envFirst returns the first non-empty value among the given variables.
func envFirst(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
