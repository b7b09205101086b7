package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"joke-server/internal/models"
	"joke-server/pkg/logger"

	"gopkg.in/yaml.v3"
)

type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load jokes from %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Collection is an ordered, read-only snapshot of jokes. It is safe for
// concurrent use because nothing mutates it after construction.
type Collection struct {
	jokes []models.Joke
}

func NewCollection(jokes []models.Joke) *Collection {
	return &Collection{jokes: slices.Clone(jokes)}
}

func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.jokes)
}

// Jokes returns a copy of the snapshot, never nil.
func (c *Collection) Jokes() []models.Joke {
	if c == nil || len(c.jokes) == 0 {
		return []models.Joke{}
	}
	return slices.Clone(c.jokes)
}

// Random picks a joke; ok is false for an empty collection.
func (c *Collection) Random() (models.Joke, bool) {
	if c.Len() == 0 {
		return models.Joke{}, false
	}
	return Pick(c.jokes), true
}

// Load never fails: a missing or corrupt file is logged and yields an empty
// collection so that random requests fall back to the external API.
func Load(path string) *Collection {
	c, err := LoadFile(path)
	if err != nil {
		logger.Error("Falling back to an empty joke collection",
			logger.Err(err),
			logger.String("path", path),
		)
		return NewCollection(nil)
	}
	return c
}

func LoadFile(path string) (*Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	jokes, err := decode(path, data)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	valid := filterValid(jokes, path)
	logger.Info("Loaded jokes",
		logger.String("path", path),
		logger.Int("count", len(valid)),
		logger.Int("dropped", len(jokes)-len(valid)),
	)

	return &Collection{jokes: valid}, nil
}

func decode(path string, data []byte) ([]models.Joke, error) {
	var jokes []models.Joke

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &jokes); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &jokes); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	}

	return jokes, nil
}

// Lister is a repository that can enumerate stored jokes.
type Lister interface {
	List(ctx context.Context) ([]models.Joke, error)
}

func LoadFrom(ctx context.Context, l Lister) (*Collection, error) {
	jokes, err := l.List(ctx)
	if err != nil {
		return nil, &LoadError{Path: "postgres", Err: err}
	}

	valid := filterValid(jokes, "postgres")
	logger.Info("Loaded jokes",
		logger.String("path", "postgres"),
		logger.Int("count", len(valid)),
		logger.Int("dropped", len(jokes)-len(valid)),
	)

	return &Collection{jokes: valid}, nil
}

func filterValid(jokes []models.Joke, origin string) []models.Joke {
	valid := make([]models.Joke, 0, len(jokes))
	for i, j := range jokes {
		if err := j.Validate(); err != nil {
			logger.Warn("Dropping malformed joke",
				logger.String("path", origin),
				logger.Int("index", i),
				logger.Err(err),
			)
			continue
		}
		valid = append(valid, j)
	}
	return valid
}
