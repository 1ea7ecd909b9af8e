package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"dnfcomposer/internal/learning"
	"dnfcomposer/internal/storage"
	"dnfcomposer/pkg/dnfcomposer"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "DNF"

// config is the resolved command configuration. Precedence, highest first:
// flags, DNF_* environment (including .env), config file, defaults.
type config struct {
	Store      string  `mapstructure:"store"`
	WeightsDir string  `mapstructure:"weights_dir"`
	DBPath     string  `mapstructure:"db_path"`
	DeltaT     float64 `mapstructure:"delta_t"`
	LogLevel   string  `mapstructure:"log_level"`

	// ArtifactsDir enables run artifacts when set.
	ArtifactsDir string `mapstructure:"artifacts_dir"`

	Scenario       string  `mapstructure:"scenario"`
	Steps          int     `mapstructure:"steps"`
	Size           int     `mapstructure:"size"`
	Position       float64 `mapstructure:"position"`
	TargetPosition float64 `mapstructure:"target_position"`
	Rule           string  `mapstructure:"rule"`
	LearningRate   float64 `mapstructure:"learning_rate"`
	Scalar         float64 `mapstructure:"scalar"`
	Iterations     int     `mapstructure:"iterations"`
	Seed           uint64  `mapstructure:"seed"`
}

const (
	scenarioField    = "field"
	scenarioCoupling = "coupling"
)

func setDefaults(v *viper.Viper) {
	field := dnfcomposer.DefaultFieldScenario()
	coupled := dnfcomposer.DefaultCouplingScenario()

	v.SetDefault("store", storage.DefaultStoreKind())
	v.SetDefault("weights_dir", "weights")
	v.SetDefault("db_path", "dnfcomposer.db")
	v.SetDefault("delta_t", 5.0)
	v.SetDefault("log_level", "info")
	v.SetDefault("artifacts_dir", "")
	v.SetDefault("scenario", scenarioField)
	v.SetDefault("steps", 100)
	v.SetDefault("size", field.XMax)
	v.SetDefault("position", field.StimulusPosition)
	v.SetDefault("target_position", coupled.TargetPosition)
	v.SetDefault("rule", coupled.Rule)
	v.SetDefault("learning_rate", coupled.LearningRate)
	v.SetDefault("scalar", coupled.Scalar)
	v.SetDefault("iterations", 1000)
	v.SetDefault("seed", 0)
}

// loadConfig merges the config file, environment and the flags of cmd.
// A missing env file is ignored; a missing explicit config file is not.
func loadConfig(cmd *cobra.Command, configPath, envFile string) (config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return config{}, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return config{}, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	for _, key := range v.AllKeys() {
		f := cmd.Flags().Lookup(strings.ReplaceAll(key, "_", "-"))
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return config{}, err
		}
	}

	var cfg config
	if err := v.Unmarshal(&cfg); err != nil {
		return config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.validate()
}

func (c config) validate() error {
	switch c.Scenario {
	case scenarioField, scenarioCoupling:
	default:
		return fmt.Errorf("unknown scenario %q (want %s|%s)", c.Scenario, scenarioField, scenarioCoupling)
	}
	if c.Steps < 0 || c.Iterations < 0 {
		return fmt.Errorf("steps and iterations must be >= 0")
	}
	if c.DeltaT <= 0 {
		return fmt.Errorf("delta t must be > 0, got %g", c.DeltaT)
	}
	return learning.ValidateRule(learning.NormalizeRuleName(c.Rule))
}

func (c config) engineOptions() dnfcomposer.Options {
	return dnfcomposer.Options{
		StoreKind:  c.Store,
		WeightsDir: c.WeightsDir,
		DBPath:     c.DBPath,
		DeltaT:     c.DeltaT,
	}
}

func (c config) fieldScenario() dnfcomposer.FieldScenario {
	sc := dnfcomposer.DefaultFieldScenario()
	sc.XMax = c.Size
	sc.StimulusPosition = c.Position
	return sc
}

func (c config) couplingScenario() dnfcomposer.CouplingScenario {
	sc := dnfcomposer.DefaultCouplingScenario()
	sc.Field.XMax = c.Size
	sc.InputPosition = c.Position
	sc.TargetPosition = c.TargetPosition
	sc.Rule = c.Rule
	sc.LearningRate = c.LearningRate
	sc.Scalar = c.Scalar
	sc.Seed = c.Seed
	return sc
}
