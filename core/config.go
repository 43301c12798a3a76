package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Debug    bool
	TestMode bool
	Env      string
	Build    string
	AppName  string
	WorkDir  string

	SecretKey            string
	DefaultFromEmail     string
	AdminEmailAddress    string
	CanSendEmailsToUsers bool
	CanSendEmailsToAdmin bool
	RollbarToken         string
	SendgridApiKey       string

	PasswordResetTimeoutDelta time.Duration

	// DefaultQueryLimit caps every list/query result (summaries, dashboard feeds, commit pages).
	DefaultQueryLimit int

	Server struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	Database struct {
		Engine        string
		Host          string
		Port          int
		User          string
		Password      string
		Name          string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	Redis struct {
		Address  string
		Password string
		DB       int
	}

	Jobs struct {
		Workers      int
		MaxAttempts  int
		PollInterval time.Duration
	}
}

func (c *Config) DefaultFromAddress() mail.Address {
	if addr, err := mail.ParseAddress(c.DefaultFromEmail); err == nil {
		return *addr
	}
	return mail.Address{Address: c.DefaultFromEmail}
}

func (c *Config) DatabaseAddress() string {
	return net.JoinHostPort(c.Database.Host, strconv.Itoa(c.Database.Port))
}

// NewConfig loads the configuration from defaults, the optional config/.env.<env> file and the environment.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Matembezi")
	v.SetDefault("secretKey", "l1n9-2m@u*b3z$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("defaultFromEmail", "Matembezi <noreply@localhost>")
	v.SetDefault("adminEmailAddress", "admin@localhost")
	v.SetDefault("canSendEmailsToUsers", false)
	v.SetDefault("canSendEmailsToAdmin", false)
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("defaultQueryLimit", 1000)

	v.SetDefault("server.host", "0.0.0.0:8000")
	v.SetDefault("server.debugHost", "0.0.0.0:4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)

	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "matembezi")
	v.SetDefault("database.password", "matembezi")
	v.SetDefault("database.name", "matembezi")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("jobs.workers", 4)
	v.SetDefault("jobs.maxAttempts", 5)
	v.SetDefault("jobs.pollInterval", time.Second)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	workDir := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Debug:                v.GetBool("debug"),
		TestMode:             v.GetBool("testMode"),
		Env:                  env,
		Build:                v.GetString("build"),
		AppName:              v.GetString("appName"),
		WorkDir:              workDir,
		SecretKey:            v.GetString("secretKey"),
		DefaultFromEmail:     v.GetString("defaultFromEmail"),
		AdminEmailAddress:    v.GetString("adminEmailAddress"),
		CanSendEmailsToUsers: v.GetBool("canSendEmailsToUsers"),
		CanSendEmailsToAdmin: v.GetBool("canSendEmailsToAdmin"),
		RollbarToken:         v.GetString("rollbarToken"),
		SendgridApiKey:       v.GetString("sendgridApiKey"),
		DefaultQueryLimit:    v.GetInt("defaultQueryLimit"),
	}

	conf.PasswordResetTimeoutDelta = v.GetDuration("passwordResetTimeoutDelta")

	conf.Server.Host = v.GetString("server.host")
	conf.Server.DebugHost = v.GetString("server.debugHost")
	conf.Server.ShutdownTimeout = v.GetDuration("server.shutdownTimeout")
	conf.Server.JWTExpirationDelta = v.GetDuration("server.jwtExpirationDelta")
	conf.Server.JWTRefreshExpirationDelta = v.GetDuration("server.jwtRefreshExpirationDelta")

	conf.Database.Engine = v.GetString("database.engine")
	conf.Database.Host = v.GetString("database.host")
	conf.Database.Port = v.GetInt("database.port")
	conf.Database.User = v.GetString("database.user")
	conf.Database.Password = v.GetString("database.password")
	conf.Database.Name = v.GetString("database.name")
	conf.Database.AdminUser = v.GetString("database.adminUser")
	conf.Database.AdminPassword = v.GetString("database.adminPassword")
	conf.Database.DisableTLS = v.GetBool("database.disableTLS")

	conf.Redis.Address = v.GetString("redis.address")
	conf.Redis.Password = v.GetString("redis.password")
	conf.Redis.DB = v.GetInt("redis.db")

	conf.Jobs.Workers = v.GetInt("jobs.workers")
	conf.Jobs.MaxAttempts = v.GetInt("jobs.maxAttempts")
	conf.Jobs.PollInterval = v.GetDuration("jobs.pollInterval")

	return conf
}

// NewTestConfig returns a Config suited for unit tests: no file or environment lookups.
func NewTestConfig() *Config {
	conf := &Config{
		Debug:             false,
		TestMode:          true,
		Env:               "TEST",
		Build:             "test",
		AppName:           "Matembezi",
		SecretKey:         "test-secret-key",
		DefaultFromEmail:  "Matembezi <noreply@localhost>",
		AdminEmailAddress: "admin@localhost",
		DefaultQueryLimit: 1000,
	}
	conf.PasswordResetTimeoutDelta = 3 * 24 * time.Hour
	conf.Server.JWTExpirationDelta = time.Hour
	conf.Server.JWTRefreshExpirationDelta = time.Hour
	conf.Jobs.Workers = 1
	conf.Jobs.MaxAttempts = 3
	conf.Jobs.PollInterval = 10 * time.Millisecond
	return conf
}
