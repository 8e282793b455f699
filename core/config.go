package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		Address                   string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		AllowedOrigins            []string
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	MongoConfig struct {
		URI            string
		Database       string
		ConnectTimeout time.Duration
		MaxPoolSize    uint64
	}

	StorageConfig struct {
		Provider      string // b2 | memory
		B2AccountID   string
		B2AppKey      string
		B2Bucket      string
		MaxFileSize   int64
		MaxFiles      int
		AllowedTypes  []string
		ThumbnailSize int
	}

	Config struct {
		Debug           bool
		TestMode        bool
		Env             string
		Build           string
		AppName         string
		SecretKey       string
		WorkDir         string
		FrontendBaseURL string
		GoogleClientIDs []string
		RollbarToken    string
		SendgridApiKey  string
		Server          ServerConfig
		Database        DatabaseConfig
		Mongo           MongoConfig
		Storage         StorageConfig

		defaultFromEmail string
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
	}
	if addr.Name == "" {
		addr.Name = c.AppName
	}
	return *addr
}

// NewConfig loads the configuration of the current environment.
// Values come from env vars prefixed with the env name (eg. DEV_SECRET_KEY),
// optionally loaded from config/.env.<env>.
func NewConfig() *Config {
	v := viper.New()

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", env == "DEV" || env == "TEST")
	v.SetDefault("test_mode", env == "TEST")
	v.SetDefault("build", "develop")
	v.SetDefault("app_name", "SchoolDesk")
	v.SetDefault("secret_key", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("default_from_email", "noreply@localhost")
	v.SetDefault("frontend_base_url", "http://localhost:3000")
	v.SetDefault("google_client_ids", []string{})
	v.SetDefault("rollbar_token", "")
	v.SetDefault("sendgrid_api_key", "")

	v.SetDefault("server_host", "localhost")
	v.SetDefault("server_address", ":8000")
	v.SetDefault("server_debug_host", ":4000")
	v.SetDefault("server_shutdown_timeout", 5*time.Second)
	v.SetDefault("jwt_expiration_delta", 7*24*time.Hour)
	v.SetDefault("jwt_refresh_expiration_delta", 30*24*time.Hour)
	v.SetDefault("allowed_origins", []string{"*"})

	v.SetDefault("db_engine", "postgres")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_name", "schooldesk")
	v.SetDefault("db_user", "schooldesk")
	v.SetDefault("db_password", "schooldesk")
	v.SetDefault("db_admin_user", "")
	v.SetDefault("db_admin_password", "")
	v.SetDefault("db_disable_tls", true)

	v.SetDefault("mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("mongo_database", "schooldesk")
	v.SetDefault("mongo_connect_timeout", 20*time.Second)
	v.SetDefault("mongo_max_pool_size", 50)

	v.SetDefault("storage_provider", "memory")
	v.SetDefault("b2_account_id", "")
	v.SetDefault("b2_app_key", "")
	v.SetDefault("b2_bucket", "")
	v.SetDefault("max_file_size", 20<<20)
	v.SetDefault("max_files", 10)
	v.SetDefault("allowed_file_types", DefaultAllowedFileTypes)
	v.SetDefault("thumbnail_size", 320)

	// load .env if it exists (ignore if it does not)
	workDir := Getwd()
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.SetEnvPrefix(env)
	v.AutomaticEnv()

	return &Config{
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("test_mode"),
		Env:             env,
		Build:           v.GetString("build"),
		AppName:         v.GetString("app_name"),
		SecretKey:       v.GetString("secret_key"),
		WorkDir:         workDir,
		FrontendBaseURL: strings.TrimSuffix(v.GetString("frontend_base_url"), "/"),
		GoogleClientIDs: v.GetStringSlice("google_client_ids"),
		RollbarToken:    v.GetString("rollbar_token"),
		SendgridApiKey:  v.GetString("sendgrid_api_key"),
		Server: ServerConfig{
			Host:                      v.GetString("server_host"),
			Address:                   v.GetString("server_address"),
			DebugHost:                 v.GetString("server_debug_host"),
			ShutdownTimeout:           v.GetDuration("server_shutdown_timeout"),
			JWTExpirationDelta:        v.GetDuration("jwt_expiration_delta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwt_refresh_expiration_delta"),
			AllowedOrigins:            v.GetStringSlice("allowed_origins"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("db_engine"),
			Host:          v.GetString("db_host"),
			Port:          v.GetString("db_port"),
			Name:          v.GetString("db_name"),
			User:          v.GetString("db_user"),
			Password:      v.GetString("db_password"),
			AdminUser:     v.GetString("db_admin_user"),
			AdminPassword: v.GetString("db_admin_password"),
			DisableTLS:    v.GetBool("db_disable_tls"),
		},
		Mongo: MongoConfig{
			URI:            v.GetString("mongo_uri"),
			Database:       v.GetString("mongo_database"),
			ConnectTimeout: v.GetDuration("mongo_connect_timeout"),
			MaxPoolSize:    uint64(v.GetInt64("mongo_max_pool_size")),
		},
		Storage: StorageConfig{
			Provider:      v.GetString("storage_provider"),
			B2AccountID:   v.GetString("b2_account_id"),
			B2AppKey:      v.GetString("b2_app_key"),
			B2Bucket:      v.GetString("b2_bucket"),
			MaxFileSize:   v.GetInt64("max_file_size"),
			MaxFiles:      v.GetInt("max_files"),
			AllowedTypes:  v.GetStringSlice("allowed_file_types"),
			ThumbnailSize: v.GetInt("thumbnail_size"),
		},
		defaultFromEmail: v.GetString("default_from_email"),
	}
}

// NewTestConfig returns a Config suitable for tests: no env lookups, no .env files.
func NewTestConfig() *Config {
	return &Config{
		Debug:           false,
		TestMode:        true,
		Env:             "TEST",
		Build:           "test",
		AppName:         "SchoolDesk",
		SecretKey:       "test-secret",
		FrontendBaseURL: "http://localhost:3000",
		Server: ServerConfig{
			Host:                      "localhost",
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 24 * time.Hour,
			AllowedOrigins:            []string{"*"},
		},
		Storage: StorageConfig{
			Provider:      "memory",
			MaxFileSize:   5 << 20,
			MaxFiles:      5,
			AllowedTypes:  DefaultAllowedFileTypes,
			ThumbnailSize: 64,
		},
		defaultFromEmail: "noreply@test.local",
	}
}

func (c *Config) String() string {
	return fmt.Sprintf("%s(env=%s build=%s debug=%t)", c.AppName, c.Env, c.Build, c.Debug)
}
