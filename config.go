package pdftables

import (
	"runtime"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Config controls table extraction.
type Config struct {
	// Tolerance is the distance under which coordinates are treated as equal
	// (default: DefaultTolerance)
	Tolerance float64

	// MinRulingSize is the extent a stroked path must exceed on an axis to
	// count as a ruling along it (default: DefaultMinRulingSize)
	MinRulingSize float64

	// Scale is the viewport scale applied to page coordinates (default: 1)
	Scale float64

	// Concurrency bounds how many pages have their tables computed at once
	// (default: GOMAXPROCS)
	Concurrency int

	// VerifyGrids logs a warning for every table whose cells do not cover its
	// grid exactly. Such tables are still returned (default: false)
	VerifyGrids bool

	// EnableMetricsLogging enables processing time and statistics logging (default: false)
	EnableMetricsLogging bool

	// Password opens encrypted documents
	Password string

	// Logger receives pipeline logs (default: logrus.StandardLogger())
	Logger *logrus.Logger
}

// DefaultConfig returns the default extraction configuration.
func DefaultConfig() Config {
	return Config{
		Tolerance:     DefaultTolerance,
		MinRulingSize: DefaultMinRulingSize,
		Scale:         1,
		Concurrency:   runtime.GOMAXPROCS(0),
	}
}

func (c Config) validate() error {
	if c.Tolerance <= 0 {
		return errors.Errorf("tolerance must be positive, got %g", c.Tolerance)
	}
	if c.MinRulingSize <= 0 {
		return errors.Errorf("minimum ruling size must be positive, got %g", c.MinRulingSize)
	}
	if c.Scale <= 0 {
		return errors.Errorf("scale must be positive, got %g", c.Scale)
	}
	return nil
}

func (c Config) logger() *logrus.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logrus.StandardLogger()
}

func (c Config) concurrency() int {
	if c.Concurrency > 0 {
		return c.Concurrency
	}
	return 1
}

func (c Config) walkOptions(log logrus.FieldLogger) WalkOptions {
	return WalkOptions{
		Tolerance:     c.Tolerance,
		MinRulingSize: c.MinRulingSize,
		Logger:        log,
	}
}
