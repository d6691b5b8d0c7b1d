package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	tperrors "github.com/vnykmshr/taskpool/pkg/common/errors"
)

const envPrefix = "TASKPOOL"

// RunConfig drives the run command. Values come from, in increasing
// precedence, struct defaults, a YAML file, TASKPOOL_* variables and flags.
type RunConfig struct {
	Workers     int           `mapstructure:"workers" default:"4" validate:"min=1,max=20"`
	Tasks       int           `mapstructure:"tasks" default:"1000" validate:"min=1"`
	MaxTasks    int           `mapstructure:"max-tasks" default:"0" validate:"min=0,max=100000"`
	Pushers     int           `mapstructure:"pushers" default:"4" validate:"min=1,max=64"`
	DetachRatio float64       `mapstructure:"detach-ratio" default:"0.5" validate:"min=0,max=1"`
	Rate        float64       `mapstructure:"rate" default:"0" validate:"min=0"`
	Work        time.Duration `mapstructure:"work" default:"0s" validate:"min=0"`
	PushRetry   time.Duration `mapstructure:"push-retry" default:"5s" validate:"min=0"`
	MetricsAddr string        `mapstructure:"metrics-addr" validate:"omitempty,hostname_port"`
	LogLevel    string        `mapstructure:"log-level" default:"info" validate:"oneof=debug info warn error"`
}

// CronConfig drives the cron command.
type CronConfig struct {
	Expr     string        `mapstructure:"expr" default:"@every 1s" validate:"required"`
	Duration time.Duration `mapstructure:"for" default:"5s" validate:"gt=0"`
	Workers  int           `mapstructure:"workers" default:"2" validate:"min=1,max=20"`
	LogLevel string        `mapstructure:"log-level" default:"info" validate:"oneof=debug info warn error"`
}

var validate = validator.New()

func newRunConfig() *RunConfig {
	cfg := &RunConfig{}
	if err := defaults.Set(cfg); err != nil {
		panic(fmt.Sprintf("run config defaults: %v", err))
	}
	return cfg
}

func newCronConfig() *CronConfig {
	cfg := &CronConfig{}
	if err := defaults.Set(cfg); err != nil {
		panic(fmt.Sprintf("cron config defaults: %v", err))
	}
	return cfg
}

func bindRunFlags(fs *pflag.FlagSet, d *RunConfig) {
	fs.Int("workers", d.Workers, "maximum number of pool workers")
	fs.Int("tasks", d.Tasks, "number of tasks to push")
	fs.Int("max-tasks", d.MaxTasks, "pending task capacity (0 = pool maximum)")
	fs.Int("pushers", d.Pushers, "concurrent pushing goroutines")
	fs.Float64("detach-ratio", d.DetachRatio, "fraction of tasks detached instead of joined")
	fs.Float64("rate", d.Rate, "pushes per second across all pushers (0 = unlimited)")
	fs.Duration("work", d.Work, "simulated work per task")
	fs.Duration("push-retry", d.PushRetry, "how long a push retries while the pool is full")
	fs.String("metrics-addr", d.MetricsAddr, "serve Prometheus metrics on this address")
	fs.String("log-level", d.LogLevel, "log level (debug, info, warn, error)")
}

func bindCronFlags(fs *pflag.FlagSet, d *CronConfig) {
	fs.String("expr", d.Expr, "cron expression, six fields or a descriptor")
	fs.Duration("for", d.Duration, "how long to keep the scheduler running")
	fs.Int("workers", d.Workers, "maximum number of pool workers")
	fs.String("log-level", d.LogLevel, "log level (debug, info, warn, error)")
}

// load merges configFile, the environment and fs into cfg, then validates it.
func load(cfg interface{}, fs *pflag.FlagSet, configFile string) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", configFile, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return tperrors.NewValidationError("taskpool", fe.Field(), fe.Value(), "failed "+fe.Tag()).
				WithHint(fmt.Sprintf("%d invalid field(s)", len(verrs)))
		}
		return err
	}
	return nil
}
