package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu     sync.Mutex
	events []CallEvent
}

func (o *recordingObserver) OnCallComplete(ev CallEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, ev)
}

func (o *recordingObserver) last(t *testing.T) CallEvent {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.events)
	return o.events[len(o.events)-1]
}

func generateHandler(t *testing.T, fn func(generateRequest) (int, any)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		status, body := fn(req)
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func TestHTTPClientComplete(t *testing.T) {
	srv := httptest.NewServer(generateHandler(t, func(req generateRequest) (int, any) {
		assert.Equal(t, "extract-v1", req.Model)
		assert.False(t, req.Stream)
		assert.Equal(t, "analyze this", req.Prompt)
		return http.StatusOK, generateResponse{Model: req.Model, Response: `{"ok":true}`}
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	c := NewHTTPClient(ClientConfig{Endpoint: srv.URL, Model: "extract-v1", Timeout: 5 * time.Second}, obs)
	resp, err := c.Complete(context.Background(), Request{Stage: "structure", SystemPrompt: "sys", UserPrompt: "analyze this"})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, resp.Text)

	ev := obs.last(t)
	assert.True(t, ev.Success)
	assert.Equal(t, "structure", ev.Stage)
}

func TestHTTPClientRetriesThenSucceeds(t *testing.T) {
	var calls int
	srv := httptest.NewServer(generateHandler(t, func(generateRequest) (int, any) {
		calls++
		if calls < 3 {
			return http.StatusInternalServerError, map[string]string{"error": "overloaded"}
		}
		return http.StatusOK, generateResponse{Response: "[]"}
	}))
	defer srv.Close()

	c := NewHTTPClient(ClientConfig{Endpoint: srv.URL, Model: "m", MaxRetries: 2, Timeout: 5 * time.Second}, nil)
	resp, err := c.Complete(context.Background(), Request{Stage: "mapper", UserPrompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "[]", resp.Text)
	assert.Equal(t, 3, calls)
}

func TestHTTPClientRetryExhausted(t *testing.T) {
	var calls int
	srv := httptest.NewServer(generateHandler(t, func(generateRequest) (int, any) {
		calls++
		return http.StatusInternalServerError, map[string]string{"error": "broken"}
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	c := NewHTTPClient(ClientConfig{Endpoint: srv.URL, Model: "m", MaxRetries: 1, Timeout: 5 * time.Second}, obs)
	_, err := c.Complete(context.Background(), Request{Stage: "scope", UserPrompt: "x"})
	require.ErrorIs(t, err, ErrRetryExhausted)
	assert.Equal(t, 2, calls, "one initial attempt plus one retry")
	assert.False(t, obs.last(t).Success)
}

func TestHTTPClientUnavailable(t *testing.T) {
	// Bind then close so the port is known-dead.
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	c := NewHTTPClient(ClientConfig{Endpoint: endpoint, Model: "m", Timeout: 2 * time.Second}, nil)
	_, err := c.Complete(context.Background(), Request{Stage: "locator", UserPrompt: "x"})
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestHTTPClientTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer func() { close(block); srv.Close() }()

	c := NewHTTPClient(ClientConfig{Endpoint: srv.URL, Model: "m", Timeout: 50 * time.Millisecond}, nil)
	_, err := c.Complete(context.Background(), Request{Stage: "structure", UserPrompt: "x"})
	require.ErrorIs(t, err, ErrTimeout)
}

func TestHTTPClientRetryGetsFreshTimeoutBudget(t *testing.T) {
	var calls int
	srv := httptest.NewServer(generateHandler(t, func(generateRequest) (int, any) {
		calls++
		if calls == 1 {
			// Outlive the first attempt's deadline.
			time.Sleep(300 * time.Millisecond)
		}
		return http.StatusOK, generateResponse{Response: "{}"}
	}))
	defer srv.Close()

	c := NewHTTPClient(ClientConfig{Endpoint: srv.URL, Model: "m", MaxRetries: 1, Timeout: 100 * time.Millisecond}, nil)
	resp, err := c.Complete(context.Background(), Request{Stage: "structure", UserPrompt: "x"})
	require.NoError(t, err, "the retry must not inherit the first attempt's drained deadline")
	assert.Equal(t, "{}", resp.Text)
	assert.Equal(t, 2, calls)
}

func TestHTTPClientAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewHTTPClient(ClientConfig{Endpoint: srv.URL, Model: "m"}, nil)
	assert.True(t, c.Available(context.Background()))

	srv.Close()
	assert.False(t, c.Available(context.Background()))
}
