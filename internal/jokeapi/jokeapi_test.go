package jokeapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"joke-server/internal/config"
	"joke-server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(t *testing.T, handler http.HandlerFunc) *Fetcher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(config.JokeAPIConfig{
		URL:     srv.URL + "/joke/Any",
		Timeout: 2 * time.Second,
	})
}

func TestFetchSingle(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/joke/Any", r.URL.Path)
		assert.Equal(t, "safe-mode", r.URL.RawQuery)
		w.Write([]byte(`{"error": false, "category": "Programming", "type": "single", "joke": "A", "safe": true}`))
	})

	joke, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &models.Joke{Type: models.TypeSingle, Joke: "A", Category: "Programming"}, joke)
}

func TestFetchTwoPartDefaultsCategory(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"type": "twopart", "setup": "Q", "delivery": "R"}`))
	})

	joke, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &models.Joke{Type: models.TypeTwoPart, Setup: "Q", Delivery: "R", Category: "general"}, joke)
}

func TestFetchUnknownTypeNormalizedToTwoPart(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"type": "dialogue", "setup": "Q", "delivery": "R", "joke": "ignored"}`))
	})

	joke, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.TypeTwoPart, joke.Type)
	assert.Empty(t, joke.Joke)
}

func TestFetchFailures(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name: "not json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("<html>oops</html>"))
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "provider error flag",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"error": true, "message": "No matching joke found"}`))
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "single without text",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"type": "single"}`))
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "twopart without delivery",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"type": "twopart", "setup": "Q"}`))
			},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestFetcher(t, tt.handler)

			joke, err := f.Fetch(context.Background())
			assert.Nil(t, joke)

			var fetchErr *FetchError
			require.ErrorAs(t, err, &fetchErr)
			assert.Equal(t, tt.wantStatus, fetchErr.Status)
		})
	}
}

func TestFetchProviderErrorIsWrapped(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": true, "message": "nope"}`))
	})

	_, err := f.Fetch(context.Background())
	assert.True(t, errors.Is(err, ErrProviderError))
}

func TestFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	f := New(config.JokeAPIConfig{URL: srv.URL, Timeout: 50 * time.Millisecond})

	start := time.Now()
	_, err := f.Fetch(context.Background())

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFetchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	f := New(config.JokeAPIConfig{URL: url, Timeout: time.Second})
	_, err := f.Fetch(context.Background())

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Zero(t, fetchErr.Status)
}

func TestEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		safe     bool
		expected string
	}{
		{"safe no query", "https://v2.jokeapi.dev/joke/Any", true, "https://v2.jokeapi.dev/joke/Any?safe-mode"},
		{"safe with query", "https://v2.jokeapi.dev/joke/Any?lang=en", true, "https://v2.jokeapi.dev/joke/Any?lang=en&safe-mode"},
		{"unsafe", "https://v2.jokeapi.dev/joke/Any", false, "https://v2.jokeapi.dev/joke/Any"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(config.JokeAPIConfig{URL: tt.url, AllowUnsafe: !tt.safe})
			got, err := f.endpoint()
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestWithHTTPClient(t *testing.T) {
	client := &http.Client{Timeout: time.Second}
	f := New(config.JokeAPIConfig{}, WithHTTPClient(client))
	assert.Same(t, client, f.client)
	assert.Equal(t, 10*time.Second, f.cfg.Timeout)
}
