package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	// A second call must not re-register collectors (promauto panics on
	// duplicate registration).
	require.NotPanics(t, Init)
}

func TestObserversDoNotPanic(t *testing.T) {
	Init()

	require.NotPanics(t, func() {
		ObservePair("otp", "saturday", "succeeded")
		ObserveRoute("ridership", "2xx")
		ObserveFetch("otp", 120*time.Millisecond)
		ObserveParse("otp", 5*time.Millisecond)
		AddParsedRecords("ridership", 12)
		AddParsedRecords("ridership", 0)
		IncActivePipelines()
		DecActivePipelines()
		ObserveRateLimitDelay(40 * time.Millisecond)
	})
}

func TestHandlerServesMetrics(t *testing.T) {
	Init()
	ObservePair("otp", "weekday", "succeeded")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "sweep_pairs_total")
}
