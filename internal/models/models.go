package models

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrUnknownType  = errors.New("unknown joke type")
	ErrMissingText  = errors.New("single joke has no text")
	ErrMissingParts = errors.New("two-part joke needs both setup and delivery")
	ErrMixedFields  = errors.New("joke mixes single and two-part fields")
)

type JokeType string

const (
	TypeSingle  JokeType = "single"
	TypeTwoPart JokeType = "twopart"
)

const (
	CategoryGeneral     = "general"
	CategoryAIGenerated = "ai-generated"
)

// Joke is either a one-liner (Joke set) or a setup/delivery pair, selected by Type.
type Joke struct {
	Type     JokeType `json:"type" yaml:"type"`
	Joke     string   `json:"joke,omitempty" yaml:"joke,omitempty"`
	Setup    string   `json:"setup,omitempty" yaml:"setup,omitempty"`
	Delivery string   `json:"delivery,omitempty" yaml:"delivery,omitempty"`
	Category string   `json:"category,omitempty" yaml:"category,omitempty"`
}

func (j Joke) Validate() error {
	switch j.Type {
	case TypeSingle:
		if strings.TrimSpace(j.Joke) == "" {
			return ErrMissingText
		}
		if j.Setup != "" || j.Delivery != "" {
			return ErrMixedFields
		}
	case TypeTwoPart:
		if strings.TrimSpace(j.Setup) == "" || strings.TrimSpace(j.Delivery) == "" {
			return ErrMissingParts
		}
		if j.Joke != "" {
			return ErrMixedFields
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, j.Type)
	}
	return nil
}

// Text renders the joke as a single message.
func (j Joke) Text() string {
	if j.Type == TypeTwoPart {
		return j.Setup + "\n\n" + j.Delivery
	}
	return j.Joke
}

func (j Joke) Hash() string {
	hash := sha256.Sum256([]byte(j.Text()))
	return hex.EncodeToString(hash[:])
}

// Source tags where a served joke came from.
type Source string

const (
	SourceLocal    Source = "local"
	SourceExternal Source = "external"
	SourceAI       Source = "ai"
)

type User struct {
	ID              int64     `json:"id"`
	TelegramID      int64     `json:"telegram_id"`
	Username        string    `json:"username"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	CreatedAt       time.Time `json:"created_at"`
	LastInteraction time.Time `json:"last_interaction"`
}

// ServedEvent is one joke handed out to a client.
type ServedEvent struct {
	ID       string    `json:"id"`
	Source   Source    `json:"source"`
	Type     JokeType  `json:"type"`
	Category string    `json:"category,omitempty"`
	Hash     string    `json:"hash"`
	ServedAt time.Time `json:"served_at"`
}
