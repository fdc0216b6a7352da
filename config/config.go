package config

import (
	"cohort/internal/logger"
	"strings"

	"github.com/spf13/viper"
)

// Config carries every tunable of the privacy pipeline. All fields are
// scalars so the zero value is comparable.
type Config struct {
	Port           int
	DatabaseDbPath string
	ValkeyAddress  string
	ValkeyEnabled  bool

	// HashSecret keys the segment hasher. Required; there is no default
	// because a guessable key would make segment IDs reversible offline.
	HashSecret string
	// AuthSecret signs the JWTs required by the privileged audit and
	// reporting routes.
	AuthSecret string

	KAnonymityMinSize      int
	Epsilon                float64
	NoiseScale             float64
	AggregationWindow      string // weekly or monthly
	GeographicGranularity  string // country, region or none
	DemographicGranularity string // age-decade, age-range or none
	RetentionDays          int
	MaxOptionalFields      int

	RateLimitMax           int
	RateLimitWindowMinutes int
}

func InitConfig() (Config, error) {
	log := logger.New("config").Function("InitConfig")

	v := viper.New()
	v.SetEnvPrefix("COHORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", 8080)
	v.SetDefault("database.dbpath", "data/cohort.db")
	v.SetDefault("valkey.address", "localhost:6379")
	v.SetDefault("valkey.enabled", false)
	v.SetDefault("kanonymity.minsize", 5)
	v.SetDefault("privacy.epsilon", 1.0)
	v.SetDefault("privacy.noisescale", 1.0)
	v.SetDefault("aggregation.window", "weekly")
	v.SetDefault("granularity.geographic", "country")
	v.SetDefault("granularity.demographic", "age-range")
	v.SetDefault("retention.days", 730)
	v.SetDefault("privacy.maxoptionalfields", 2)
	v.SetDefault("ratelimit.max", 10)
	v.SetDefault("ratelimit.windowminutes", 5)

	config := Config{
		Port:                   v.GetInt("port"),
		DatabaseDbPath:         v.GetString("database.dbpath"),
		ValkeyAddress:          v.GetString("valkey.address"),
		ValkeyEnabled:          v.GetBool("valkey.enabled"),
		HashSecret:             v.GetString("hash.secret"),
		AuthSecret:             v.GetString("auth.secret"),
		KAnonymityMinSize:      v.GetInt("kanonymity.minsize"),
		Epsilon:                v.GetFloat64("privacy.epsilon"),
		NoiseScale:             v.GetFloat64("privacy.noisescale"),
		AggregationWindow:      v.GetString("aggregation.window"),
		GeographicGranularity:  v.GetString("granularity.geographic"),
		DemographicGranularity: v.GetString("granularity.demographic"),
		RetentionDays:          v.GetInt("retention.days"),
		MaxOptionalFields:      v.GetInt("privacy.maxoptionalfields"),
		RateLimitMax:           v.GetInt("ratelimit.max"),
		RateLimitWindowMinutes: v.GetInt("ratelimit.windowminutes"),
	}

	if err := config.validate(); err != nil {
		return Config{}, log.Err("invalid configuration", err)
	}

	return config, nil
}

func (c Config) validate() error {
	log := logger.New("config").Function("validate")

	if c.HashSecret == "" {
		return log.ErrMsg("hash secret is required (COHORT_HASH_SECRET)")
	}
	if c.AuthSecret == "" {
		return log.ErrMsg("auth secret is required (COHORT_AUTH_SECRET)")
	}
	if c.Epsilon <= 0 {
		return log.Error("epsilon must be positive", "epsilon", c.Epsilon)
	}
	if c.NoiseScale <= 0 {
		return log.Error("noise scale must be positive", "noiseScale", c.NoiseScale)
	}
	if c.KAnonymityMinSize < 2 {
		return log.Error("k-anonymity minimum group size must be at least 2",
			"kAnonymityMinSize", c.KAnonymityMinSize)
	}
	if c.AggregationWindow != "weekly" && c.AggregationWindow != "monthly" {
		return log.Error("aggregation window must be weekly or monthly",
			"aggregationWindow", c.AggregationWindow)
	}
	switch c.GeographicGranularity {
	case "country", "region", "none":
	default:
		return log.Error("geographic granularity must be country, region or none",
			"geographicGranularity", c.GeographicGranularity)
	}
	switch c.DemographicGranularity {
	case "age-decade", "age-range", "none":
	default:
		return log.Error("demographic granularity must be age-decade, age-range or none",
			"demographicGranularity", c.DemographicGranularity)
	}
	if c.RetentionDays <= 0 {
		return log.Error("retention period must be positive", "retentionDays", c.RetentionDays)
	}

	return nil
}
