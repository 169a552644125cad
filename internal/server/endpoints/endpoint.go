package endpoints

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/agubarev/handbook/internal/core"
	"github.com/agubarev/handbook/pkg/util/report"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/tidwall/pretty"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type contextKey int

const (
	ckRequestID contextKey = iota
	ckName
)

// Endpoint wraps a handler into the common response envelope
type Endpoint struct {
	core    *core.Core
	name    string
	handler Handler
}

// Handler represents a custom handler
type Handler func(ctx context.Context, c *core.Core, w http.ResponseWriter, r *http.Request) (result interface{}, aux interface{}, code int, rep *report.Report)

// Response is the envelope of every endpoint response
type Response struct {
	RequestID     uuid.UUID      `json:"request_id"`
	Result        interface{}    `json:"result"`
	Auxiliary     interface{}    `json:"aux,omitempty"`
	Report        *report.Report `json:"report"`
	ExecutionTime time.Duration  `json:"exec_time"`
}

func NewEndpoint(c *core.Core, h Handler, name string) (e Endpoint) {
	if c == nil {
		panic(core.ErrNilCore)
	}

	// basic validation
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		panic(errors.New("empty endpoint name"))
	}

	e = Endpoint{
		core:    c,
		name:    name,
		handler: h,
	}

	return e
}

// RequestID returns the id of the request being served
func RequestID(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(ckRequestID).(uuid.UUID)
	return id
}

func (e Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// generating request ID
	requestID := uuid.New()

	logger := e.core.Logger().With(
		zap.String("endpoint", e.name),
		zap.String("request_id", requestID.String()),
	)

	// injecting report, request ID and endpoint name into the context
	_, ctx := report.NewWithContext(r.Context(), logger)
	ctx = context.WithValue(ctx, ckRequestID, requestID)
	ctx = context.WithValue(ctx, ckName, e.name)

	//---------------------------------------------------------------------------
	// processing request
	//---------------------------------------------------------------------------
	start := time.Now()

	// executing handler
	result, aux, code, rep := e.handler(ctx, e.core, w, r.WithContext(ctx))

	// initializing response
	response := Response{
		RequestID:     requestID,
		Result:        result,
		Auxiliary:     aux,
		ExecutionTime: time.Since(start),
	}

	// adding report to the response only if report contains an error
	if rep != nil && rep.HasError() {
		response.Report = rep

		if code < http.StatusBadRequest {
			code = StatusOf(rep.Cause())
		}
	}

	w.Header().Set("X-Request-ID", requestID.String())

	if code == http.StatusNotModified {
		w.WriteHeader(code)
		return
	}

	// marshaling handler's result
	payload, err := json.Marshal(response)
	if err != nil {
		http.Error(
			w,
			errors.Wrap(err, "failed to marshal server response").Error(),
			http.StatusInternalServerError,
		)

		return
	}

	if _, ok := r.URL.Query()["pretty"]; ok {
		payload = pretty.Pretty(payload)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	w.WriteHeader(code)
	w.Write(payload)
}
