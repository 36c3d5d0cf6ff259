/*
 * Copyright (c) 2022 The JaxNetwork developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

package corelog

import (
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	Disabled = zerolog.Nop()

	DefaultLevel   = zerolog.InfoLevel
	DefaultLogFile = "xpcd.log"
)

// Config for logging
type Config struct {
	// Disable console logging
	DisableConsoleLog bool `yaml:"disable_console_log" long:"nostdout" description:"Disable console logging"`
	// LogsAsJSON makes the log framework log JSON
	LogsAsJSON bool `yaml:"logs_as_json" long:"logjson" description:"Write console logs as JSON"`
	// FileLoggingEnabled makes the framework log to a file
	// the fields below can be skipped if this value is false!
	FileLoggingEnabled bool `yaml:"file_logging_enabled" long:"logfile" description:"Write logs into rolling files"`
	// Directory to log to to when filelogging is enabled
	Directory string `yaml:"directory" long:"logdir" description:"Directory to log output"`
	// Filename is the name of the logfile which will be placed inside the directory
	Filename string `yaml:"filename"`
	// MaxSize the max size in MB of the logfile before it's rolled
	MaxSize int `yaml:"max_size" validate:"gte=0"`
	// MaxBackups the max number of rolled files to keep
	MaxBackups int `yaml:"max_backups" validate:"gte=0"`
	// MaxAge the max age in days to keep a logfile
	MaxAge int `yaml:"max_age" validate:"gte=0"`
}

func (Config) Default() Config {
	return Config{
		DisableConsoleLog:  false,
		LogsAsJSON:         false,
		FileLoggingEnabled: false,
		Directory:          "logs",
		Filename:           DefaultLogFile,
		MaxSize:            150,
		MaxBackups:         3,
		MaxAge:             28,
	}
}

// New creates the backend logger for the given unit. Every writer enabled by
// the config receives the same records.
func New(unit string, logLevel zerolog.Level, config Config) zerolog.Logger {
	var writers []io.Writer
	if !config.DisableConsoleLog && !config.LogsAsJSON {
		writers = append(writers, consoleWriter(unit, os.Stderr))
	}
	if !config.DisableConsoleLog && config.LogsAsJSON {
		writers = append(writers, os.Stdout)
	}
	if config.FileLoggingEnabled {
		if w := newRollingFile(config); w != nil {
			writers = append(writers, w)
		}
	}
	if len(writers) == 0 {
		return Disabled
	}

	zerolog.SetGlobalLevel(zerolog.TraceLevel)

	logger := zerolog.New(io.MultiWriter(writers...)).
		Level(logLevel).
		With().
		Str("app", "xpcd").
		Str("unit", unit).
		Timestamp().
		Logger()

	logger.Trace().
		Bool("fileLogging", config.FileLoggingEnabled).
		Bool("jsonLogOutput", config.LogsAsJSON).
		Str("logDirectory", config.Directory).
		Str("fileName", config.Filename).
		Int("maxSizeMB", config.MaxSize).
		Int("maxBackups", config.MaxBackups).
		Int("maxAgeInDays", config.MaxAge).
		Msg("logging configured")

	return logger
}

// ParseLevel converts the textual level used in configs (trace, debug, info,
// warn, error, critical, off) into a zerolog level.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(level) {
	case "critical":
		return zerolog.FatalLevel, nil
	case "off":
		return zerolog.Disabled, nil
	case "":
		return DefaultLevel, nil
	}
	return zerolog.ParseLevel(strings.ToLower(level))
}

func consoleWriter(unit string, out io.Writer) zerolog.ConsoleWriter {
	w := zerolog.ConsoleWriter{Out: out, NoColor: false, TimeFormat: time.RFC3339}
	w.FormatLevel = func(i interface{}) string {
		return strings.ToUpper(fmt.Sprintf("| %-6s| %s |", i, unit))
	}
	w.FormatMessage = func(i interface{}) string {
		return fmt.Sprintf("%-6s  ", i)
	}
	// unit is already printed by FormatLevel
	w.FieldsExclude = []string{"unit", "app"}
	return w
}

func newRollingFile(config Config) io.Writer {
	if err := os.MkdirAll(config.Directory, 0744); err != nil {
		fmt.Fprintf(os.Stderr, "can't create log directory %s: %v\n", config.Directory, err)
		return nil
	}

	filename := config.Filename
	if filename == "" {
		filename = DefaultLogFile
	}

	return &lumberjack.Logger{
		Filename:   path.Join(config.Directory, filename),
		MaxBackups: config.MaxBackups, // files
		MaxSize:    config.MaxSize,    // megabytes
		MaxAge:     config.MaxAge,     // days
	}
}
