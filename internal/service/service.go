// Package service decides, per request, where a joke comes from.
package service

import (
	"context"
	"sync"
	"time"

	"joke-server/internal/models"
	"joke-server/internal/store"
	"joke-server/pkg/logger"

	"github.com/google/uuid"
)

type Fetcher interface {
	Fetch(ctx context.Context) (*models.Joke, error)
}

type Generator interface {
	Generate(ctx context.Context) (*models.Joke, error)
}

// Publisher receives an event for every joke handed out.
type Publisher interface {
	PublishServed(ctx context.Context, ev *models.ServedEvent) error
}

type Result struct {
	Joke   models.Joke
	Source models.Source
}

type Service struct {
	jokes     *store.Collection
	fetcher   Fetcher
	generator Generator
	pub       Publisher
	now       func() time.Time

	publishTimeout time.Duration
	inflight       sync.WaitGroup
}

const defaultPublishTimeout = 2 * time.Second

func New(jokes *store.Collection, fetcher Fetcher, generator Generator, opts ...Option) *Service {
	if jokes == nil {
		jokes = store.NewCollection(nil)
	}

	s := &Service{
		jokes:     jokes,
		fetcher:   fetcher,
		generator: generator,
		now:       time.Now,

		publishTimeout: defaultPublishTimeout,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type Option func(*Service)

func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.pub = p
	}
}

// Random serves from the local collection when it has entries and otherwise
// falls back to a single external fetch.
func (s *Service) Random(ctx context.Context) (*Result, error) {
	if joke, ok := s.jokes.Random(); ok {
		res := &Result{Joke: joke, Source: models.SourceLocal}
		s.record(res)
		return res, nil
	}

	joke, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	res := &Result{Joke: *joke, Source: models.SourceExternal}
	s.record(res)
	return res, nil
}

// AI returns generator errors unchanged so callers can tell ai.ErrNotConfigured apart.
func (s *Service) AI(ctx context.Context) (*Result, error) {
	joke, err := s.generator.Generate(ctx)
	if err != nil {
		return nil, err
	}

	res := &Result{Joke: *joke, Source: models.SourceAI}
	s.record(res)
	return res, nil
}

func (s *Service) All() []models.Joke {
	return s.jokes.Jokes()
}

func (s *Service) Count() int {
	return s.jokes.Len()
}

// Flush waits for served events still being published.
func (s *Service) Flush() {
	s.inflight.Wait()
}

// record publishes in the background so a slow broker never delays the caller.
func (s *Service) record(res *Result) {
	if s.pub == nil {
		return
	}

	ev := &models.ServedEvent{
		ID:       uuid.NewString(),
		Source:   res.Source,
		Type:     res.Joke.Type,
		Category: res.Joke.Category,
		Hash:     res.Joke.Hash(),
		ServedAt: s.now().UTC(),
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.publishTimeout)
		defer cancel()

		if err := s.pub.PublishServed(ctx, ev); err != nil {
			logger.Error("Failed to publish served joke event",
				logger.Err(err),
				logger.String("source", string(ev.Source)),
			)
		}
	}()
}
