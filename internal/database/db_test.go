package database

import (
	"errors"
	"strings"
	"testing"

	"joke-server/internal/config"
)

func TestConnectionError(t *testing.T) {
	baseErr := errors.New("connection refused")
	err := &ConnectionError{
		Host: "localhost",
		Port: 5432,
		Err:  baseErr,
	}

	if err.Error() == "" {
		t.Error("Expected error message")
	}

	if !errors.Is(err, baseErr) {
		t.Error("Expected underlying error to be unwrapped")
	}
}

func TestConnectionErrorMessage(t *testing.T) {
	err := &ConnectionError{
		Host: "postgres.example.com",
		Port: 5432,
		Err:  errors.New("connection refused"),
	}

	want := "failed to connect to database at postgres.example.com:5432: connection refused"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestConnectionString(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:     "db",
		Port:     5433,
		User:     "jokes",
		Password: "secret",
		Name:     "jokes_test",
	}

	got := cfg.ConnectionString()
	if !strings.HasPrefix(got, "postgres://jokes:secret@db:5433/jokes_test") {
		t.Errorf("ConnectionString() = %v", got)
	}
}

func TestNullable(t *testing.T) {
	if nullable("") != nil {
		t.Error("empty string should map to NULL")
	}

	v := nullable("general")
	if v == nil || *v != "general" {
		t.Errorf("nullable(general) = %v", v)
	}
}

func TestCloseNilPool(t *testing.T) {
	db := &DB{}
	db.Close()
}
