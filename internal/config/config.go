// Package config carries the environment configuration shared by all the
// mesafs command line tools.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

const envVarPrefix = "MESAFS"

// Env is the process-level configuration. Everything is optional; the
// zero configuration logs warnings and above as text.
type Env struct {
	LogLevel  string `envconfig:"MESAFS_LOG_LEVEL"  default:"warning"`
	LogFormat string `envconfig:"MESAFS_LOG_FORMAT" default:"text"`
}

// Setup reads the environment and applies it to the standard logrus
// logger. Tools call it before doing anything else.
func Setup() (*Env, error) {
	var e Env
	if err := envconfig.Process(envVarPrefix, &e); err != nil {
		return nil, fmt.Errorf("reading environment configuration: %w", err)
	}

	level, err := logrus.ParseLevel(e.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("MESAFS_LOG_LEVEL: %w", err)
	}
	logrus.SetLevel(level)

	switch e.LogFormat {
	case "text":
		// logrus default
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown MESAFS_LOG_FORMAT %q, want text or json", e.LogFormat)
	}
	return &e, nil
}
