package jokeapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"joke-server/internal/config"
	"joke-server/internal/models"
	"joke-server/pkg/logger"
)

const maxBodyBytes = 1 << 20

var ErrProviderError = errors.New("joke provider reported an error")

// FetchError covers every way an external fetch can fail: transport, status,
// body shape and validation are not distinguished by callers.
type FetchError struct {
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("external joke fetch failed with status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("external joke fetch failed: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type Fetcher struct {
	cfg    config.JokeAPIConfig
	client *http.Client
}

func New(cfg config.JokeAPIConfig, opts ...Option) *Fetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cfg.Timeout = timeout

	f := &Fetcher{
		cfg: cfg,
		client: &http.Client{
			Timeout: timeout,
		},
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

type Option func(*Fetcher)

func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// providerJoke mirrors the JokeAPI v2 response body.
type providerJoke struct {
	Error    bool   `json:"error"`
	Message  string `json:"message"`
	Type     string `json:"type"`
	Joke     string `json:"joke"`
	Setup    string `json:"setup"`
	Delivery string `json:"delivery"`
	Category string `json:"category"`
}

func (f *Fetcher) Fetch(ctx context.Context) (*models.Joke, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	endpoint, err := f.endpoint()
	if err != nil {
		return nil, &FetchError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "joke-server/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		logger.Warn("External joke API unreachable", logger.String("url", endpoint), logger.Err(err))
		return nil, &FetchError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Warn("Non-OK status from external joke API", logger.Int("status", resp.StatusCode))
		return nil, &FetchError{Status: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{Status: resp.StatusCode, Err: err}
	}

	var pj providerJoke
	if err := json.Unmarshal(body, &pj); err != nil {
		return nil, &FetchError{Status: resp.StatusCode, Err: fmt.Errorf("decode body: %w", err)}
	}

	joke, err := normalize(pj)
	if err != nil {
		return nil, &FetchError{Status: resp.StatusCode, Err: err}
	}

	return joke, nil
}

func (f *Fetcher) endpoint() (string, error) {
	u, err := url.Parse(f.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse joke api url: %w", err)
	}
	if !f.cfg.AllowUnsafe {
		if u.RawQuery == "" {
			u.RawQuery = "safe-mode"
		} else {
			u.RawQuery += "&safe-mode"
		}
	}
	return u.String(), nil
}

// normalize maps the provider shape onto the local schema: anything that is not
// "single" is treated as two-part, and the category defaults to general.
func normalize(pj providerJoke) (*models.Joke, error) {
	if pj.Error {
		return nil, fmt.Errorf("%w: %s", ErrProviderError, pj.Message)
	}

	joke := &models.Joke{Category: pj.Category}
	if joke.Category == "" {
		joke.Category = models.CategoryGeneral
	}

	if pj.Type == string(models.TypeSingle) {
		joke.Type = models.TypeSingle
		joke.Joke = pj.Joke
	} else {
		joke.Type = models.TypeTwoPart
		joke.Setup = pj.Setup
		joke.Delivery = pj.Delivery
	}

	if err := joke.Validate(); err != nil {
		return nil, err
	}

	return joke, nil
}
