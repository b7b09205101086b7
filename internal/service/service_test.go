package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"joke-server/internal/ai"
	"joke-server/internal/jokeapi"
	"joke-server/internal/models"
	"joke-server/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	jokeA  = models.Joke{Type: models.TypeSingle, Joke: "A"}
	jokeQR = models.Joke{Type: models.TypeTwoPart, Setup: "Q", Delivery: "R"}
)

type stubFetcher struct {
	joke  *models.Joke
	err   error
	calls int
}

func (f *stubFetcher) Fetch(context.Context) (*models.Joke, error) {
	f.calls++
	return f.joke, f.err
}

type stubGenerator struct {
	joke *models.Joke
	err  error
}

func (g *stubGenerator) Generate(context.Context) (*models.Joke, error) {
	return g.joke, g.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*models.ServedEvent
	err    error
}

func (p *recordingPublisher) PublishServed(_ context.Context, ev *models.ServedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

// blockingPublisher holds every publish until release is closed or the
// publish context ends.
type blockingPublisher struct {
	release chan struct{}
	errs    chan error
}

func (p *blockingPublisher) PublishServed(ctx context.Context, _ *models.ServedEvent) error {
	select {
	case <-p.release:
		p.errs <- nil
		return nil
	case <-ctx.Done():
		p.errs <- ctx.Err()
		return ctx.Err()
	}
}

func TestRandomLocal(t *testing.T) {
	fetcher := &stubFetcher{}
	svc := New(store.NewCollection([]models.Joke{jokeA, jokeQR}), fetcher, &stubGenerator{})

	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		res, err := svc.Random(context.Background())
		require.NoError(t, err)
		assert.Equal(t, models.SourceLocal, res.Source)
		require.Contains(t, []models.Joke{jokeA, jokeQR}, res.Joke)
		seen[res.Joke.Text()] = true
	}

	assert.Len(t, seen, 2)
	assert.Zero(t, fetcher.calls, "local jokes must not hit the external API")
}

func TestRandomFallsBackToExternal(t *testing.T) {
	external := &models.Joke{Type: models.TypeSingle, Joke: "ext", Category: "general"}
	fetcher := &stubFetcher{joke: external}
	svc := New(store.NewCollection(nil), fetcher, &stubGenerator{})

	res, err := svc.Random(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.SourceExternal, res.Source)
	assert.Equal(t, *external, res.Joke)
	assert.Equal(t, 1, fetcher.calls)
}

func TestRandomExternalFailureIsNotRetried(t *testing.T) {
	fetchErr := &jokeapi.FetchError{Status: 503, Err: errors.New("down")}
	fetcher := &stubFetcher{err: fetchErr}
	svc := New(nil, fetcher, &stubGenerator{})

	res, err := svc.Random(context.Background())
	assert.Nil(t, res)
	assert.ErrorIs(t, err, fetchErr)
	assert.Equal(t, 1, fetcher.calls)
}

func TestAI(t *testing.T) {
	joke := &models.Joke{Type: models.TypeSingle, Joke: "bot", Category: models.CategoryAIGenerated}
	svc := New(nil, &stubFetcher{}, &stubGenerator{joke: joke})

	res, err := svc.AI(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.SourceAI, res.Source)
	assert.Equal(t, *joke, res.Joke)
}

func TestAIErrorsPassThrough(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"not configured", ai.ErrNotConfigured},
		{"generation", &ai.GenerationError{Provider: "openai", Err: errors.New("boom")}},
		{"wrapped not configured", fmt.Errorf("wrap: %w", ai.ErrNotConfigured)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := New(nil, &stubFetcher{}, &stubGenerator{err: tt.err})
			_, err := svc.AI(context.Background())
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestAllIsStableCopy(t *testing.T) {
	svc := New(store.NewCollection([]models.Joke{jokeA, jokeQR}), &stubFetcher{}, &stubGenerator{})

	first := svc.All()
	first[0] = models.Joke{Type: models.TypeSingle, Joke: "mutated"}

	assert.Equal(t, []models.Joke{jokeA, jokeQR}, svc.All())
	assert.Equal(t, 2, svc.Count())
}

func TestAllEmpty(t *testing.T) {
	svc := New(nil, &stubFetcher{}, &stubGenerator{})
	assert.NotNil(t, svc.All())
	assert.Empty(t, svc.All())
}

func TestPublishesServedEvents(t *testing.T) {
	pub := &recordingPublisher{}
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	svc := New(store.NewCollection([]models.Joke{jokeQR}), &stubFetcher{},
		&stubGenerator{joke: &models.Joke{Type: models.TypeSingle, Joke: "bot", Category: models.CategoryAIGenerated}},
		WithPublisher(pub),
	)
	svc.now = func() time.Time { return fixed }

	_, err := svc.Random(context.Background())
	require.NoError(t, err)
	svc.Flush()
	_, err = svc.AI(context.Background())
	require.NoError(t, err)
	svc.Flush()

	require.Len(t, pub.events, 2)
	assert.Equal(t, models.SourceLocal, pub.events[0].Source)
	assert.Equal(t, models.TypeTwoPart, pub.events[0].Type)
	assert.Equal(t, jokeQR.Hash(), pub.events[0].Hash)
	assert.Equal(t, fixed, pub.events[0].ServedAt)
	assert.NotEmpty(t, pub.events[0].ID)

	assert.Equal(t, models.SourceAI, pub.events[1].Source)
	assert.Equal(t, models.CategoryAIGenerated, pub.events[1].Category)
	assert.NotEqual(t, pub.events[0].ID, pub.events[1].ID)
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("nats down")}
	svc := New(store.NewCollection([]models.Joke{jokeA}), &stubFetcher{}, &stubGenerator{}, WithPublisher(pub))

	res, err := svc.Random(context.Background())
	require.NoError(t, err)
	assert.Equal(t, jokeA, res.Joke)

	svc.Flush()
	assert.Len(t, pub.events, 1)
}

func TestNoEventOnFailure(t *testing.T) {
	pub := &recordingPublisher{}
	svc := New(nil, &stubFetcher{err: errors.New("down")}, &stubGenerator{err: ai.ErrNotConfigured}, WithPublisher(pub))

	_, err := svc.Random(context.Background())
	require.Error(t, err)
	_, err = svc.AI(context.Background())
	require.Error(t, err)

	svc.Flush()
	assert.Empty(t, pub.events)
}

func TestSlowPublisherDoesNotDelayRequest(t *testing.T) {
	pub := &blockingPublisher{release: make(chan struct{}), errs: make(chan error, 1)}
	svc := New(store.NewCollection([]models.Joke{jokeA}), &stubFetcher{}, &stubGenerator{}, WithPublisher(pub))
	svc.publishTimeout = time.Hour

	res, err := svc.Random(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.SourceLocal, res.Source)

	close(pub.release)
	svc.Flush()
	assert.NoError(t, <-pub.errs)
}

func TestPublishIsBoundedByTimeout(t *testing.T) {
	pub := &blockingPublisher{release: make(chan struct{}), errs: make(chan error, 1)}
	svc := New(store.NewCollection([]models.Joke{jokeA}), &stubFetcher{}, &stubGenerator{}, WithPublisher(pub))
	svc.publishTimeout = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	_, err := svc.Random(ctx)
	require.NoError(t, err)
	cancel()

	svc.Flush()
	assert.ErrorIs(t, <-pub.errs, context.DeadlineExceeded)
}
