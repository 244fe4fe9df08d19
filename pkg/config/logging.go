package config

import (
	"fmt"
	"io"

	"github.com/spf13/viper"

	"github.com/mpapenbr/trackprogress/log"
)

// LogSettings controls the creation of the application logger
type LogSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Filter string `mapstructure:"filter"`
}

// LoadLogConfig reads log settings from a yaml file. Values missing in the
// file are taken from defaults.
func LoadLogConfig(path string, defaults LogSettings) (*LogSettings, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("level", defaults.Level)
	v.SetDefault("format", defaults.Format)
	v.SetDefault("filter", defaults.Filter)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read log config %s: %w", path, err)
	}
	ret := &LogSettings{}
	if err := v.Unmarshal(ret); err != nil {
		return nil, fmt.Errorf("parse log config %s: %w", path, err)
	}
	return ret, nil
}

func parseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

// NewLogger creates a json logger for format "json", a console logger
// otherwise. A non-empty filter is applied on top.
func NewLogger(w io.Writer, s LogSettings) (*log.Logger, error) {
	var logger *log.Logger
	switch s.Format {
	case "json":
		logger = log.New(w,
			parseLogLevel(s.Level, log.InfoLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	default:
		logger = log.DevLogger(w,
			parseLogLevel(s.Level, log.DebugLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	}
	if s.Filter == "" {
		return logger, nil
	}
	return logger.WithFilter(s.Filter)
}

// SetupLogger builds the logger from the CLI values and the optional log
// config file and installs it as default logger.
func SetupLogger(w io.Writer) (*log.Logger, error) {
	settings := LogSettings{Level: LogLevel, Format: LogFormat, Filter: LogFilter}
	if LogConfig != "" {
		loaded, err := LoadLogConfig(LogConfig, settings)
		if err != nil {
			return nil, err
		}
		settings = *loaded
	}
	logger, err := NewLogger(w, settings)
	if err != nil {
		return nil, err
	}
	log.ResetDefault(logger)
	return logger, nil
}
