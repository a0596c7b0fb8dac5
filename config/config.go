// Package config holds the estimator settings, their defaults and their
// YAML form.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ErrInvalidSettings is returned for unknown keys and out of range values
var ErrInvalidSettings = errors.New("invalid settings")

// Settings configures one estimator run
type Settings struct {
	MinimalSize         float64 `yaml:"minimal_size" validate:"gt=0"`
	MaximalSize         float64 `yaml:"maximal_size" validate:"gtefield=MinimalSize"`
	Error               float64 `yaml:"error" validate:"gt=0"`
	PenaltyNormal       float64 `yaml:"penalty_normal" validate:"gte=0"`
	PenaltyTangential   float64 `yaml:"penalty_tangential" validate:"gte=0"`
	EchoLevel           int     `yaml:"echo_level" validate:"gte=0,lte=4"`
	SetNumberOfElements bool    `yaml:"set_number_of_elements"`
	NumberOfElements    int     `yaml:"number_of_elements" validate:"gt=0"`
	AverageNodalH       bool    `yaml:"average_nodal_h"`
	Workers             int     `yaml:"workers" validate:"gte=0"` // 0 uses GOMAXPROCS
}

var validate = validator.New()

// Default returns the default settings
func Default() Settings {
	return Settings{
		MinimalSize:       0.01,
		MaximalSize:       10.0,
		Error:             0.1,
		PenaltyNormal:     10000.0,
		PenaltyTangential: 10000.0,
		NumberOfElements:  1000,
	}
}

// Validate checks the value ranges
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	return nil
}

// LogLevel maps echo_level to a logger level
func (s Settings) LogLevel() logrus.Level {
	switch {
	case s.EchoLevel >= 4:
		return logrus.TraceLevel
	case s.EchoLevel == 3:
		return logrus.DebugLevel
	case s.EchoLevel >= 1:
		return logrus.InfoLevel
	}
	return logrus.WarnLevel
}

// Parse reads settings over the defaults. Keys that are not settings are
// rejected and missing keys keep their default.
func Parse(r io.Reader) (Settings, error) {
	s := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return s, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	return s, s.Validate()
}

// Load parses a settings file
func Load(path string) (Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		return Settings{}, err
	}
	defer f.Close()

	s, err := Parse(f)
	if err != nil {
		return s, fmt.Errorf("settings %s: %w", path, err)
	}
	return s, nil
}

// Write encodes the settings as YAML
func (s Settings) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return err
	}
	return enc.Close()
}
