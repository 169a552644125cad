package metrics_test

import (
	"io/ioutil"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agubarev/handbook/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserve(t *testing.T) {
	a := assert.New(t)

	m := metrics.New()

	m.ObserveLock("Manual", "Update", false)
	m.ObserveLock("Manual", "Update", false)
	m.ObserveLock("Content", "Insert", true)
	m.ObserveAccess("Permission", "Update", false)
	m.ObserveAttempt(false)
	m.ObserveAttempt(true)

	a.Equal(float64(2), testutil.ToFloat64(m.LockDecisionsTotal.WithLabelValues("Manual", "Update", metrics.Denied)))
	a.Equal(float64(1), testutil.ToFloat64(m.LockDecisionsTotal.WithLabelValues("Content", "Insert", metrics.Allowed)))
	a.Equal(float64(1), testutil.ToFloat64(m.AccessDecisionsTotal.WithLabelValues("Permission", "Update", metrics.Denied)))
	a.Equal(float64(1), testutil.ToFloat64(m.AttemptsStartedTotal))
	a.Equal(float64(1), testutil.ToFloat64(m.AttemptsCompletedTotal))
}

func TestHandler(t *testing.T) {
	a := assert.New(t)

	m := metrics.New()
	m.ObserveLock("Quiz", "Delete", false)
	m.ObserveRequest("DELETE", "/api/v1/quizzes/{id}", 405, 3*time.Millisecond)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	body, err := ioutil.ReadAll(w.Body)
	a.NoError(err)
	a.Contains(string(body), `handbook_lock_decisions_total{kind="Quiz",op="Delete",outcome="denied"} 1`)
	a.Contains(string(body), `handbook_http_requests_total{method="DELETE",route="/api/v1/quizzes/{id}",status="405"} 1`)
}
