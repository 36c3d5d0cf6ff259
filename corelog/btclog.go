/*
 * Copyright (c) 2022 The JaxNetwork developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

package corelog

import (
	"fmt"

	"github.com/btcsuite/btclog"
	"github.com/rs/zerolog"
)

// btcLogger routes the output of btcd packages (txscript, blockchain) into a
// zerolog backend.
type btcLogger struct {
	logger zerolog.Logger
	level  btclog.Level
}

// BtclogAdapter wraps logger into a btclog.Logger, so it can be passed to
// UseLogger of btcd packages.
func BtclogAdapter(logger zerolog.Logger) btclog.Logger {
	return &btcLogger{logger: logger, level: levelToBtclog(logger.GetLevel())}
}

func levelToBtclog(level zerolog.Level) btclog.Level {
	switch level {
	case zerolog.TraceLevel:
		return btclog.LevelTrace
	case zerolog.DebugLevel:
		return btclog.LevelDebug
	case zerolog.InfoLevel:
		return btclog.LevelInfo
	case zerolog.WarnLevel:
		return btclog.LevelWarn
	case zerolog.ErrorLevel:
		return btclog.LevelError
	case zerolog.FatalLevel, zerolog.PanicLevel:
		return btclog.LevelCritical
	default:
		return btclog.LevelOff
	}
}

func (l *btcLogger) event(level btclog.Level) *zerolog.Event {
	if level < l.level {
		return nil
	}

	switch level {
	case btclog.LevelTrace:
		return l.logger.Trace()
	case btclog.LevelDebug:
		return l.logger.Debug()
	case btclog.LevelInfo:
		return l.logger.Info()
	case btclog.LevelWarn:
		return l.logger.Warn()
	case btclog.LevelError:
		return l.logger.Error()
	default:
		// zerolog's Fatal exits the process, critical records are
		// logged as errors instead.
		return l.logger.Error().Bool("critical", true)
	}
}

func (l *btcLogger) logf(level btclog.Level, format string, params ...interface{}) {
	if ev := l.event(level); ev != nil {
		ev.Msg(fmt.Sprintf(format, params...))
	}
}

func (l *btcLogger) log(level btclog.Level, v ...interface{}) {
	if ev := l.event(level); ev != nil {
		ev.Msg(fmt.Sprint(v...))
	}
}

func (l *btcLogger) Tracef(format string, params ...interface{}) {
	l.logf(btclog.LevelTrace, format, params...)
}

func (l *btcLogger) Debugf(format string, params ...interface{}) {
	l.logf(btclog.LevelDebug, format, params...)
}

func (l *btcLogger) Infof(format string, params ...interface{}) {
	l.logf(btclog.LevelInfo, format, params...)
}

func (l *btcLogger) Warnf(format string, params ...interface{}) {
	l.logf(btclog.LevelWarn, format, params...)
}

func (l *btcLogger) Errorf(format string, params ...interface{}) {
	l.logf(btclog.LevelError, format, params...)
}

func (l *btcLogger) Criticalf(format string, params ...interface{}) {
	l.logf(btclog.LevelCritical, format, params...)
}

func (l *btcLogger) Trace(v ...interface{})    { l.log(btclog.LevelTrace, v...) }
func (l *btcLogger) Debug(v ...interface{})    { l.log(btclog.LevelDebug, v...) }
func (l *btcLogger) Info(v ...interface{})     { l.log(btclog.LevelInfo, v...) }
func (l *btcLogger) Warn(v ...interface{})     { l.log(btclog.LevelWarn, v...) }
func (l *btcLogger) Error(v ...interface{})    { l.log(btclog.LevelError, v...) }
func (l *btcLogger) Critical(v ...interface{}) { l.log(btclog.LevelCritical, v...) }

func (l *btcLogger) Level() btclog.Level { return l.level }

func (l *btcLogger) SetLevel(level btclog.Level) { l.level = level }
