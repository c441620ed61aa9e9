package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const devSecretKey = "dev-0q5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy"

type (
	serverConfig struct {
		Host            string
		Address         string
		DebugHost       string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
		AllowedOrigins  []string
	}

	databaseConfig struct {
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

	storageConfig struct {
		Driver         string // local | s3
		LocalRoot      string
		S3Bucket       string
		S3Region       string
		S3BaseEndpoint string
		S3AccessKey    string
		S3SecretKey    string
		PresignExpires time.Duration
	}

	rateLimitConfig struct {
		Login    string // ulule/limiter formatted rate, eg. "10-M"
		RedisURL string
		Disabled bool
	}

	registrationConfig struct {
		// RestrictPrivileged requires an admin token to register admin & docente accounts.
		RestrictPrivileged bool
	}

	Config struct {
		AppName                   string
		Build                     string
		Env                       string
		Debug                     bool
		TestMode                  bool
		SecretKey                 string
		JWTExpirationDelta        time.Duration
		PasswordResetTimeoutDelta time.Duration
		FrontendBaseURL           string
		DefaultFromEmail          mail.Address
		SendgridApiKey            string
		RollbarToken              string

		Server       serverConfig
		Database     databaseConfig
		Storage      storageConfig
		RateLimit    rateLimitConfig
		Registration registrationConfig
	}
)

func (dbc databaseConfig) Address() string {
	return net.JoinHostPort(dbc.Host, dbc.Port)
}

// NewConfig loads the configuration of the current ENV (DEV by default).
func NewConfig() *Config {
	conf, err := LoadConfig(os.Getenv("ENV"))
	if err != nil {
		log.Fatalf("core.NewConfig: %+v", err)
	}
	return conf
}

// LoadConfig reads defaults, config/.env.<env> (if any) and <ENV>_* environment variables.
func LoadConfig(env string) (*Config, error) {
	env = strings.ToUpper(env) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}

	v := viper.New()
	v.SetTypeByDefaultValue(true)
	v.SetDefault("appName", "Escuela")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", env == "DEV")
	v.SetDefault("testMode", env == "TEST")
	v.SetDefault("secretKey", devSecretKey)
	v.SetDefault("jwtExpirationDelta", 8*time.Hour)
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("frontendBaseURL", "http://localhost:8080")
	v.SetDefault("defaultFromEmail", "Escuela <noreply@localhost>")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":3000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 10*time.Second)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.allowedOrigins", []string{"http://localhost:8080"})

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "escuela")
	v.SetDefault("database.user", "escuela")
	v.SetDefault("database.password", "escuela")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", env == "DEV" || env == "TEST")

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.localRoot", filepath.Join(os.TempDir(), "escuela", "documentos"))
	v.SetDefault("storage.s3Bucket", "")
	v.SetDefault("storage.s3Region", "us-east-1")
	v.SetDefault("storage.s3BaseEndpoint", "")
	v.SetDefault("storage.s3AccessKey", "")
	v.SetDefault("storage.s3SecretKey", "")
	v.SetDefault("storage.presignExpires", 15*time.Minute)

	v.SetDefault("rateLimit.login", "10-M")
	v.SetDefault("rateLimit.redisURL", "")
	v.SetDefault("rateLimit.disabled", env == "TEST")

	v.SetDefault("registration.restrictPrivileged", false)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(configDir(), ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "stat %s", dotEnvPath)
	}

	// eg. PROD_SECRETKEY, PROD_DATABASE_HOST
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	from, err := mail.ParseAddress(v.GetString("defaultFromEmail"))
	if err != nil {
		return nil, errors.Wrap(err, "parsing defaultFromEmail")
	}

	conf := &Config{
		AppName:                   v.GetString("appName"),
		Build:                     v.GetString("build"),
		Env:                       env,
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		SecretKey:                 v.GetString("secretKey"),
		JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		FrontendBaseURL:           strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		DefaultFromEmail:          *from,
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		RollbarToken:              v.GetString("rollbarToken"),
		Server: serverConfig{
			Host:            v.GetString("server.host"),
			Address:         v.GetString("server.address"),
			DebugHost:       v.GetString("server.debugHost"),
			ReadTimeout:     v.GetDuration("server.readTimeout"),
			WriteTimeout:    v.GetDuration("server.writeTimeout"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
			AllowedOrigins:  v.GetStringSlice("server.allowedOrigins"),
		},
		Database: databaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Storage: storageConfig{
			Driver:         v.GetString("storage.driver"),
			LocalRoot:      v.GetString("storage.localRoot"),
			S3Bucket:       v.GetString("storage.s3Bucket"),
			S3Region:       v.GetString("storage.s3Region"),
			S3BaseEndpoint: v.GetString("storage.s3BaseEndpoint"),
			S3AccessKey:    v.GetString("storage.s3AccessKey"),
			S3SecretKey:    v.GetString("storage.s3SecretKey"),
			PresignExpires: v.GetDuration("storage.presignExpires"),
		},
		RateLimit: rateLimitConfig{
			Login:    v.GetString("rateLimit.login"),
			RedisURL: v.GetString("rateLimit.redisURL"),
			Disabled: v.GetBool("rateLimit.disabled"),
		},
		Registration: registrationConfig{
			RestrictPrivileged: v.GetBool("registration.restrictPrivileged"),
		},
	}

	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func (c *Config) validate() error {
	if c.SecretKey == "" {
		return errors.New("secretKey is required")
	}
	if c.Env == "PROD" && c.SecretKey == devSecretKey {
		return errors.New("secretKey must be overridden in PROD")
	}
	if c.JWTExpirationDelta <= 0 {
		return errors.New("jwtExpirationDelta must be positive")
	}
	switch c.Storage.Driver {
	case "local", "s3":
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}

// configDir is ESCUELA_CONFIG_DIR or ./config
func configDir() string {
	if dir := os.Getenv("ESCUELA_CONFIG_DIR"); dir != "" {
		return dir
	}
	return "config"
}
