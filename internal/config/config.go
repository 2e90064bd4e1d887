package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultTimeZone        = "Europe/Madrid"
	DefaultYieldPerHectare = 10500
	DefaultGroupByYear     = true
	DefaultSource          = "cavanet"
	DefaultInboxSchedule   = "*/10 * * * *"
	DefaultHTTPAddr        = ":8080"
	DefaultLogFolder       = "./logs"
	DefaultLogLevel        = "info"
	MaxUploadBytes         = 32 << 20

	// DateFormat is how dates are written to output workbooks.
	DateFormat = "02/01/2006"

	EnvPrefix = "CAVAPGC_"
)

// Config is the run-wide configuration shared by the CLI and the services.
type Config struct {
	YieldPerHectare float64 `yaml:"yield_per_hectare"`
	GroupByYear     bool    `yaml:"group_by_year"`
	Source          string  `yaml:"source"`
	TimeZone        string  `yaml:"time_zone"`
	LogLevel        string  `yaml:"log_level"`
	LogFolder       string  `yaml:"log_folder"`
}

func Default() Config {
	return Config{
		YieldPerHectare: DefaultYieldPerHectare,
		GroupByYear:     DefaultGroupByYear,
		Source:          DefaultSource,
		TimeZone:        DefaultTimeZone,
		LogLevel:        DefaultLogLevel,
		LogFolder:       DefaultLogFolder,
	}
}

// Load starts from Default, overlays the YAML file at path (if any) and
// then CAVAPGC_* environment variables. A .env file in the working
// directory is loaded first when present.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvPrefix + "YIELD_PER_HECTARE"); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%sYIELD_PER_HECTARE: %w", EnvPrefix, err)
		}
		c.YieldPerHectare = f
	}
	if v, ok := lookup(EnvPrefix + "GROUP_BY_YEAR"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sGROUP_BY_YEAR: %w", EnvPrefix, err)
		}
		c.GroupByYear = b
	}
	if v, ok := lookup(EnvPrefix + "SOURCE"); ok {
		c.Source = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvPrefix + "TIME_ZONE"); ok {
		c.TimeZone = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvPrefix + "LOG_LEVEL"); ok {
		c.LogLevel = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvPrefix + "LOG_FOLDER"); ok {
		c.LogFolder = strings.TrimSpace(v)
	}
	return nil
}

// Validate rejects values no run can work with.
func (c Config) Validate() error {
	if c.YieldPerHectare < 0 {
		return fmt.Errorf("yield_per_hectare must not be negative, got %v", c.YieldPerHectare)
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("time_zone: %w", err)
	}
	return nil
}

// ServiceDefaults returns the settings a service inherits when its own
// services.yaml block leaves them out.
func (c Config) ServiceDefaults(service string) map[string]interface{} {
	run := map[string]interface{}{
		"source":            c.Source,
		"yield_per_hectare": c.YieldPerHectare,
		"group_by_year":     c.GroupByYear,
	}
	switch service {
	case "logger":
		return map[string]interface{}{"folder_path": c.LogFolder, "level": c.LogLevel}
	case "cron":
		run["time_zone"] = c.TimeZone
		return run
	case "quota":
		return run
	}
	return nil
}
