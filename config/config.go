package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/google/uuid"

	"git.tatikoma.dev/corpix/keeper/errors"
	"git.tatikoma.dev/corpix/keeper/process"
	"git.tatikoma.dev/corpix/keeper/supervisor"
)

const (
	DefaultWorkerName   = "swiflow-core"
	DefaultReadyAddr    = "127.0.0.1:11235"
	DefaultReadyTimeout = 15 * time.Second
	DefaultGrace        = 300 * time.Millisecond
	DefaultDebounce     = 500 * time.Millisecond
)

type (
	Config struct {
		Worker Worker `yaml:"worker"`
		Log    Log    `yaml:"log"`
	}

	Worker struct {
		// Name is the sidecar logical name, or an executable path in grouped mode.
		Name       string       `yaml:"name" validate:"required"`
		Mode       process.Mode `yaml:"mode"`
		Deployment string       `yaml:"deployment" validate:"required,printascii"`
		Search     []string     `yaml:"search" validate:"dive,required"`
		Dir        string       `yaml:"dir"`

		Attempts int           `yaml:"attempts" validate:"gte=1,lte=100"`
		Backoff  time.Duration `yaml:"backoff" validate:"gte=0"`
		Grace    time.Duration `yaml:"grace" validate:"gte=0"`

		ReadyAddr    string        `yaml:"ready_addr" validate:"omitempty,hostname_port"`
		ReadyTimeout time.Duration `yaml:"ready_timeout" validate:"gte=0"`

		Watch    bool          `yaml:"watch"`
		Debounce time.Duration `yaml:"debounce" validate:"gte=0"`
	}

	Log struct {
		File  string `yaml:"file"`
		Level string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	}
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func Default() *Config {
	return &Config{
		Worker: Worker{
			Name:         DefaultWorkerName,
			Mode:         process.ModeSidecar,
			Attempts:     supervisor.DefaultAttempts,
			Backoff:      supervisor.DefaultBackoff,
			Grace:        DefaultGrace,
			ReadyAddr:    DefaultReadyAddr,
			ReadyTimeout: DefaultReadyTimeout,
			Debounce:     DefaultDebounce,
		},
	}
}

// FromFile loads YAML (or JSON) from path over the defaults.
// A missing file leaves the defaults in place.
func (c *Config) FromFile(path string) error {
	*c = *Default()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if len(data) > 0 {
		err = yaml.UnmarshalWithOptions(data, c, yaml.DisallowUnknownField())
		if err != nil {
			return errors.Wrap(err, "failed to decode config")
		}
	}

	return c.Validate()
}

// Validate fills generated values and checks constraints.
func (c *Config) Validate() error {
	if c.Worker.Deployment == "" {
		c.Worker.Deployment = uuid.NewString()
	}
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	return nil
}

func (c *Config) Supervisor() supervisor.Config {
	return supervisor.Config{
		Name:     c.Worker.Name,
		Args:     supervisor.WorkerArgs(c.Worker.Deployment),
		Attempts: c.Worker.Attempts,
		Backoff:  c.Worker.Backoff,
	}
}
