package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents the logging level
type LogLevel string

const (
	LevelTrace LogLevel = "trace"
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Config holds logging configuration
type Config struct {
	Level      LogLevel `yaml:"level"`
	Pretty     bool     `yaml:"pretty"`
	TimeFormat string   `yaml:"time_format"`

	// File logging configuration
	EnableFile  bool   `yaml:"enable_file"`
	LogDir      string `yaml:"log_dir"`
	LogFileName string `yaml:"log_file_name"`
	MaxSize     int    `yaml:"max_size"`    // Max size in MB before rotation
	MaxBackups  int    `yaml:"max_backups"` // Max number of old files to keep
	MaxAge      int    `yaml:"max_age"`     // Max days to keep old files
	Compress    bool   `yaml:"compress"`    // Compress old files
}

// DefaultConfig returns a default logging configuration
func DefaultConfig() Config {
	return Config{
		Level:      LevelInfo,
		Pretty:     true,
		TimeFormat: time.RFC3339,

		EnableFile:  true,
		LogDir:      "logs",
		LogFileName: "replay.log",
		MaxSize:     10,
		MaxBackups:  5,
		MaxAge:      30,
		Compress:    true,
	}
}

// Initialize sets up the global logger with the given configuration
func Initialize(config Config) {
	switch config.Level {
	case LevelTrace:
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case LevelDebug:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case LevelInfo:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case LevelWarn:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case LevelError:
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	zerolog.TimeFieldFormat = config.TimeFormat

	var writers []io.Writer

	if config.Pretty {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
	} else {
		writers = append(writers, os.Stderr)
	}

	if config.EnableFile {
		if err := os.MkdirAll(config.LogDir, 0755); err != nil {
			logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
			logger.Error().Err(err).Str("log_dir", config.LogDir).Msg("Failed to create log directory")
		} else {
			writers = append(writers, &lumberjack.Logger{
				Filename:   filepath.Join(config.LogDir, config.LogFileName),
				MaxSize:    config.MaxSize,
				MaxBackups: config.MaxBackups,
				MaxAge:     config.MaxAge,
				Compress:   config.Compress,
			})
		}
	}

	var output io.Writer
	if len(writers) == 1 {
		output = writers[0]
	} else {
		output = io.MultiWriter(writers...)
	}

	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// GetLogger returns a logger with the specified component name
func GetLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
