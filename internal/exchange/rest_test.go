package exchange

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRESTClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		io.WriteString(w, `{"ok": true}`)
	}))
	defer server.Close()

	client := newRESTClient(server.URL, nil, withRetries(3, time.Millisecond))

	var result struct {
		OK bool `json:"ok"`
	}
	err := client.getJSON(context.Background(), "/", nil, &result)
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRESTClient_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	client := newRESTClient(server.URL, nil, withRetries(3, time.Millisecond))

	err := client.getJSON(context.Background(), "/", nil, &struct{}{})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.False(t, apiErr.IsRetryable())
	assert.Equal(t, int32(1), calls.Load())
}

func TestRESTClient_RetryOn429(t *testing.T) {
	apiErr := &APIError{StatusCode: http.StatusTooManyRequests}
	assert.True(t, apiErr.IsRetryable())
}
