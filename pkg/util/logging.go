package util

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultLogger initializing default logger
func DefaultLogger(debugMode bool, logDir string) (*zap.Logger, error) {
	logDir = strings.TrimSpace(logDir)

	//---------------------------------------------------------------------------
	// log enablers and conjunction
	//---------------------------------------------------------------------------
	highPriority := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapcore.ErrorLevel
	})

	lowPriority := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		if !debugMode && lvl == zapcore.DebugLevel {
			return false
		}

		return lvl < zapcore.ErrorLevel
	})

	console := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	stdout := []zapcore.Core{
		zapcore.NewCore(console, zapcore.Lock(zapcore.AddSync(os.Stderr)), highPriority),
		zapcore.NewCore(console, zapcore.Lock(zapcore.AddSync(os.Stdout)), lowPriority),
	}

	// without a log directory it's just stdout & stderr
	if logDir == "" {
		return zap.New(zapcore.NewTee(stdout...)), nil
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create log directory %s", logDir)
	}

	//---------------------------------------------------------------------------
	// errors and regular logfiles
	//---------------------------------------------------------------------------
	errFile, err := openLogFile(filepath.Join(logDir, "errors.log"))
	if err != nil {
		return nil, err
	}

	stdFile, err := openLogFile(filepath.Join(logDir, "standard.log"))
	if err != nil {
		return nil, err
	}

	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	cores := []zapcore.Core{
		zapcore.NewCore(encoder, errFile, highPriority),
		zapcore.NewCore(encoder, stdFile, lowPriority),
	}

	// console output is kept only in debug mode
	if debugMode {
		cores = append(cores, stdout...)
	}

	return zap.New(zapcore.NewTee(cores...)), nil
}

func openLogFile(path string) (zapcore.WriteSyncer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open log file %s", path)
	}

	return zapcore.Lock(zapcore.AddSync(f)), nil
}
