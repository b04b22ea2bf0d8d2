package http_test

import (
	"context"
	"encoding/json"
	gohttp "net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/cartsync/pkg/http"
)

func TestSend_PostsJSONWithBearer(t *testing.T) {
	srv := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		assert.Equal(t, "/v1/things", r.URL.Path)
		assert.Equal(t, "Bearer sk", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var in map[string]int
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]int{"double": in["n"] * 2})
	}))
	defer srv.Close()

	resp, err := http.NewClient(srv.URL+"/v1/", srv.Client()).
		Post("/things").Bearer("sk").Body(map[string]int{"n": 21}).Send(context.Background())
	require.NoError(t, err)
	require.True(t, resp.OK())

	var out map[string]int
	require.NoError(t, resp.JSON(&out))
	assert.Equal(t, 42, out["double"])
}

func TestSend_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(gohttp.StatusBadGateway)
			return
		}
		w.WriteHeader(gohttp.StatusOK)
	}))
	defer srv.Close()

	resp, err := http.NewClient(srv.URL, srv.Client()).Get("/").Retry(3, time.Millisecond).Send(context.Background())
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, int32(3), calls.Load())
}

func TestSend_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		calls.Add(1)
		w.WriteHeader(gohttp.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"bad key"}`))
	}))
	defer srv.Close()

	resp, err := http.NewClient(srv.URL, srv.Client()).Get("/").Retry(3, time.Millisecond).Send(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	err = resp.Throw()
	assert.True(t, http.IsStatus(err, gohttp.StatusUnauthorized))
	assert.ErrorContains(t, err, "bad key")
}

func TestSend_StopsBackoffOnCancel(t *testing.T) {
	srv := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		w.WriteHeader(gohttp.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := http.NewClient(srv.URL, srv.Client()).Get("/").Retry(5, time.Second).Send(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}
