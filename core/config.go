package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var Conf *Config

type Config struct {
	AppName  string
	Env      string // DEV (local; default), TEST, QA, PROD
	Debug    bool
	TestMode bool
	WorkDir  string
	Build    string

	DefaultFromEmail mail.Address
	SendgridApiKey   string
	RollbarToken     string

	Server struct {
		Host string
	}

	Database struct {
		Engine        string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          string
		DisableTLS    bool
	}

	SMS struct {
		GatewayURL  string
		ApiKey      string
		SenderID    string
		CountryCode string // e.g. "260"; prepended by NormalizePhone
		NationalLen int    // significant digits of a national number
		CostUnits   float64
		Timeout     time.Duration
	}

	Fees struct {
		// FallbackRateMultiplier feeds the last-resort denominator in
		// EstimateCollectionRate when no expected total is derivable.
		// Inherited approximation; see DESIGN.md before changing.
		FallbackRateMultiplier int64
	}
}

// DatabaseAddress returns the "host:port" of the configured database.
func (c *Config) DatabaseAddress() string {
	return c.Database.Host + ":" + c.Database.Port
}

func init() {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Karo")
	v.SetDefault("build", "dev")
	v.SetDefault("serverHost", "localhost")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbName", "karo")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", "5432")
	v.SetDefault("dbDisableTLS", true)
	v.SetDefault("smsSenderID", "KARO")
	v.SetDefault("smsCountryCode", "260")
	v.SetDefault("smsNationalLen", 9)
	v.SetDefault("smsCostUnits", 1.0)
	v.SetDefault("smsTimeout", 15*time.Second)
	v.SetDefault("feesFallbackRateMultiplier", 3)

	env := os.Getenv("ENV")
	if env == "" {
		env = "DEV"
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		AppName:          v.GetString("appName"),
		Env:              env,
		Debug:            v.GetBool("debug"),
		TestMode:         env == "TEST",
		WorkDir:          wd,
		Build:            v.GetString("build"),
		DefaultFromEmail: mail.Address{Name: v.GetString("appName"), Address: v.GetString("defaultFromEmail")},
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		RollbarToken:     v.GetString("rollbarToken"),
	}
	conf.Server.Host = v.GetString("serverHost")

	conf.Database.Engine = v.GetString("dbEngine")
	conf.Database.Name = v.GetString("dbName")
	conf.Database.User = v.GetString("dbUser")
	conf.Database.Password = v.GetString("dbPassword")
	conf.Database.AdminUser = v.GetString("dbAdminUser")
	conf.Database.AdminPassword = v.GetString("dbAdminPassword")
	conf.Database.Host = v.GetString("dbHost")
	conf.Database.Port = v.GetString("dbPort")
	conf.Database.DisableTLS = v.GetBool("dbDisableTLS")

	conf.SMS.GatewayURL = v.GetString("smsGatewayURL")
	conf.SMS.ApiKey = v.GetString("smsApiKey")
	conf.SMS.SenderID = v.GetString("smsSenderID")
	conf.SMS.CountryCode = v.GetString("smsCountryCode")
	conf.SMS.NationalLen = v.GetInt("smsNationalLen")
	conf.SMS.CostUnits = v.GetFloat64("smsCostUnits")
	conf.SMS.Timeout = v.GetDuration("smsTimeout")

	conf.Fees.FallbackRateMultiplier = v.GetInt64("feesFallbackRateMultiplier")

	Conf = conf
}
