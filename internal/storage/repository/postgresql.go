// Package repository реализует хранилище подписчиков на основе PostgreSQL.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/magabrotheeeer/membership-bot/internal/lib/sl"
)

var (
	// ErrSubscriberNotFound подписчик не найден.
	ErrSubscriberNotFound = errors.New("subscriber not found")
	// ErrVerifyCodeConflict сгенерированный код уже занят другим подписчиком.
	ErrVerifyCodeConflict = errors.New("verify code already taken")
)

// Storage инкапсулирует соединение с базой данных PostgreSQL.
type Storage struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL и проверяет его.
func New(ctx context.Context, connString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB: db,
	}, nil
}

// Connect пытается подключиться retries раз с паузой delay между попытками.
func Connect(ctx context.Context, connString string, retries int, delay time.Duration, log *slog.Logger) (*Storage, error) {
	const op = "storage.Connect"

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		storage, err := New(ctx, connString)
		if err == nil {
			return storage, nil
		}
		lastErr = err
		log.Warn("database not ready", slog.Int("attempt", attempt), slog.Int("retries", retries), sl.Err(err))

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("%s: database not ready after %d attempts: %w", op, retries, lastErr)
}

// Ping проверяет доступность базы.
func (s *Storage) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// Close закрывает пул соединений.
func (s *Storage) Close() error {
	return s.DB.Close()
}

// CheckDatabaseReady проверяет, что миграции применены.
func CheckDatabaseReady(ctx context.Context, storage *Storage) error {
	var exists bool
	err := storage.DB.QueryRowContext(ctx, `SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'subscribers'
    )`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("required table subscribers query error: %w", err)
	}
	if !exists {
		return errors.New("required table subscribers missing")
	}
	return nil
}
