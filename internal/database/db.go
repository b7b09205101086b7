package database

import (
	"context"
	"fmt"

	"joke-server/internal/config"
	"joke-server/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ConnectionError struct {
	Host string
	Port int
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to database at %s:%d: %v", e.Host, e.Port, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

type DB struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, &ConnectionError{
			Host: cfg.Host,
			Port: cfg.Port,
			Err:  err,
		}
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &ConnectionError{
			Host: cfg.Host,
			Port: cfg.Port,
			Err:  err,
		}
	}

	return &DB{Pool: pool}, nil
}

func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

type JokeRepository struct {
	db *DB
}

func NewJokeRepository(db *DB) *JokeRepository {
	return &JokeRepository{db: db}
}

// Create inserts the joke unless one with the same hash exists; inserted reports which.
func (r *JokeRepository) Create(ctx context.Context, joke *models.Joke) (inserted bool, err error) {
	query := `
		INSERT INTO jokes (type, joke, setup, delivery, category, hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (hash) DO NOTHING
	`
	tag, err := r.db.Pool.Exec(ctx, query,
		string(joke.Type), nullable(joke.Joke), nullable(joke.Setup),
		nullable(joke.Delivery), nullable(joke.Category), joke.Hash(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert joke: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// List returns every stored joke in insertion order.
func (r *JokeRepository) List(ctx context.Context) ([]models.Joke, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT type, COALESCE(joke, ''), COALESCE(setup, ''), COALESCE(delivery, ''), COALESCE(category, '')
		FROM jokes
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list jokes: %w", err)
	}

	jokes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Joke, error) {
		var j models.Joke
		err := row.Scan(&j.Type, &j.Joke, &j.Setup, &j.Delivery, &j.Category)
		return j, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan jokes: %w", err)
	}
	return jokes, nil
}

func (r *JokeRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM jokes").Scan(&count)
	return count, err
}

type EventRepository struct {
	db *DB
}

func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

// Record stores a served event; redelivered events with a known id are ignored.
func (r *EventRepository) Record(ctx context.Context, ev *models.ServedEvent) error {
	query := `
		INSERT INTO served_jokes (id, source, type, category, hash, served_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.Pool.Exec(ctx, query,
		ev.ID, string(ev.Source), string(ev.Type), nullable(ev.Category), ev.Hash, ev.ServedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record served joke: %w", err)
	}
	return nil
}

func (r *EventRepository) CountBySource(ctx context.Context) (map[models.Source]int, error) {
	rows, err := r.db.Pool.Query(ctx, "SELECT source, COUNT(*) FROM served_jokes GROUP BY source")
	if err != nil {
		return nil, fmt.Errorf("failed to count served jokes: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Source]int)
	for rows.Next() {
		var source string
		var n int
		if err := rows.Scan(&source, &n); err != nil {
			return nil, err
		}
		counts[models.Source(source)] = n
	}
	return counts, rows.Err()
}

type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (telegram_id, username, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (telegram_id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			last_interaction = CURRENT_TIMESTAMP
		RETURNING id, created_at
	`
	return r.db.Pool.QueryRow(ctx, query,
		user.TelegramID, user.Username, user.FirstName, user.LastName,
	).Scan(&user.ID, &user.CreatedAt)
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
