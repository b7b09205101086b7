package store

import (
	"math/rand/v2"

	"joke-server/internal/models"
)

// Pick returns a uniformly random element. The caller guarantees jokes is non-empty.
func Pick(jokes []models.Joke) models.Joke {
	return jokes[rand.IntN(len(jokes))]
}
