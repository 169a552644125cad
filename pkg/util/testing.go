package util

import (
	"flag"

	"go.uber.org/zap"
)

// IsTestMode reports whether the binary runs under `go test`
func IsTestMode() bool {
	return flag.Lookup("test.v") != nil
}

// LoggerForTesting returns a quiet logger unless running verbosely
func LoggerForTesting() *zap.Logger {
	if f := flag.Lookup("test.v"); f != nil && f.Value.String() == "true" {
		l, err := zap.NewDevelopment()
		if err == nil {
			return l
		}
	}

	return zap.NewNop()
}
