package powerbi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{}, zap.NewNop())
	assert.Error(t, err)

	client, err := NewClient(Config{Endpoint: "https://example.com/querydata"}, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestQueryDataSendsPortalRequest(t *testing.T) {
	t.Parallel()

	var gotBody []byte
	var gotHeaders http.Header
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		gotQuery = r.URL.RawQuery
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		Endpoint:    srv.URL,
		ResourceKey: "resource-key-123",
		Origin:      "https://app.powerbi.com",
		Timeout:     5 * time.Second,
	}, zap.NewNop())
	require.NoError(t, err)

	resp, err := client.QueryData(context.Background(), []byte(`{"queries":[]}`))
	require.NoError(t, err)

	assert.True(t, resp.OK())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"results":[]}`, string(resp.Body))

	assert.Equal(t, `{"queries":[]}`, string(gotBody))
	assert.Equal(t, "synchronous=true", gotQuery)
	assert.Equal(t, "application/json;charset=UTF-8", gotHeaders.Get("Content-Type"))
	assert.Equal(t, "resource-key-123", gotHeaders.Get("X-PowerBI-ResourceKey"))
	assert.Equal(t, "https://app.powerbi.com", gotHeaders.Get("Origin"))
}

func TestQueryDataKeepsBodyOnErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"throttled"}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{Endpoint: srv.URL}, zap.NewNop())
	require.NoError(t, err)

	resp, err := client.QueryData(context.Background(), []byte(`{}`))
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, `{"error":"throttled"}`, string(resp.Body))
}

func TestQueryDataRespectsContextDuringRateWait(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		Endpoint:          srv.URL,
		RequestsPerSecond: 0.001, // effectively blocks the second request
		Burst:             1,
	}, zap.NewNop())
	require.NoError(t, err)

	_, err = client.QueryData(context.Background(), []byte(`{}`))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.QueryData(ctx, []byte(`{}`))
	assert.Error(t, err)
}
