package report

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/agubarev/handbook/pkg/fault"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// errors
var (
	ErrNoReport = errors.New("no report")
)

type contextKey struct{}

// Error is the client-facing view of a failure
type Error struct {
	Token   string `json:"token"`
	Kind    string `json:"kind"`
	Message string `json:"msg"`
	err     error
}

// Entry represents a single Log entry of the report
type Entry struct {
	Timestamp time.Time     `json:"timestamp"`
	Level     zapcore.Level `json:"lvl"`
	Message   string        `json:"msg"`
}

// Log is a named slice used inside the report
type Log []Entry

// Report accumulates an error and log entries while a request is handled
type Report struct {
	Err    Error `json:"error"`
	Log    Log   `json:"log,omitempty"`
	logger *zap.Logger
	sync.RWMutex
}

func New(l *zap.Logger) *Report {
	return &Report{
		logger: l,
	}
}

func NewWithContext(parent context.Context, l *zap.Logger) (*Report, context.Context) {
	rep := New(l)
	return rep, context.WithValue(parent, contextKey{}, rep)
}

func FromContext(ctx context.Context) (rep *Report, err error) {
	rep, ok := ctx.Value(contextKey{}).(*Report)

	if !ok || rep == nil {
		return nil, ErrNoReport
	}

	return rep, nil
}

func (rep *Report) HasError() bool {
	rep.RLock()
	hasError := rep.Err.err != nil
	rep.RUnlock()

	return hasError
}

// Cause returns the original error
func (rep *Report) Cause() error {
	rep.RLock()
	defer rep.RUnlock()

	return rep.Err.err
}

// WithError records an error, typed errors keep their kind
func (rep *Report) WithError(token string, err error) *Report {
	// doing nothing if error is nil
	if err == nil {
		return rep
	}

	rep.Lock()
	rep.Err = Error{
		Token:   strings.ToLower(token),
		Kind:    fault.KindOf(err).String(),
		Message: err.Error(),
		err:     err,
	}
	rep.Unlock()

	return rep
}

// Wrap records an error with an additional message
func (rep *Report) Wrap(token string, err error, msg string) *Report {
	if err == nil {
		return rep
	}

	return rep.WithError(token, errors.Wrap(err, msg))
}

func (rep *Report) Debug(msg string, fields ...zap.Field) {
	rep.add(zap.DebugLevel, msg, fields...)
}

func (rep *Report) Info(msg string, fields ...zap.Field) {
	rep.add(zap.InfoLevel, msg, fields...)
}

func (rep *Report) Warn(msg string, fields ...zap.Field) {
	rep.add(zap.WarnLevel, msg, fields...)
}

func (rep *Report) Error(msg string, fields ...zap.Field) {
	rep.add(zap.ErrorLevel, msg, fields...)
}

func (rep *Report) add(lvl zapcore.Level, msg string, fields ...zap.Field) {
	if rep.logger != nil {
		if ce := rep.logger.Check(lvl, msg); ce != nil {
			ce.Write(fields...)
		}
	}

	rep.Lock()
	rep.Log = append(rep.Log, Entry{
		Timestamp: time.Now(),
		Level:     lvl,
		Message:   msg,
	})
	rep.Unlock()
}
