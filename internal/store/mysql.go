package store

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"object-sync-service/internal/database"
	"object-sync-service/internal/logger"
	"object-sync-service/internal/user"
)

type MySQLStore struct {
	db *database.Database
}

// NewMySQLStore opens the persisted user store and creates its table if
// missing. The database wrapper already waits for connectivity.
func NewMySQLStore(db *database.Database) (*MySQLStore, error) {
	schema := `CREATE TABLE IF NOT EXISTS users (
		user_key   VARCHAR(191) PRIMARY KEY,
		payload    TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`
	if _, err := db.DB.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create users table: %w", err)
	}
	return &MySQLStore{db: db}, nil
}

func (s *MySQLStore) Close() error {
	return s.db.Close()
}

func (s *MySQLStore) Save(ctx context.Context, key string, u *user.User) error {
	payload, err := u.ToPortableForm()
	if err != nil {
		return err
	}

	query := `INSERT INTO users (user_key, payload, updated_at)
			  VALUES (?, ?, NOW())
			  ON DUPLICATE KEY UPDATE
			  payload = VALUES(payload),
			  updated_at = NOW()`

	_, err = s.db.DB.ExecContext(ctx, query, key, payload)
	return err
}

func (s *MySQLStore) Load(ctx context.Context, key string) (*user.User, error) {
	query := `SELECT user_key, payload, updated_at FROM users WHERE user_key = ?`

	row := s.db.DB.QueryRowContext(ctx, query, key)

	var rec userRecord
	err := row.Scan(&rec.Key, &rec.Payload, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	u, err := user.FromPortableForm(rec.Payload)
	if err != nil {
		logger.Log.Warn("Discarding unreadable persisted user",
			zap.String("key", rec.Key),
			zap.Time("updatedAt", rec.UpdatedAt),
			zap.Error(err),
		)
		return nil, err
	}
	return u, nil
}

func (s *MySQLStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.DB.ExecContext(ctx, `DELETE FROM users WHERE user_key = ?`, key)
	return err
}

func (s *MySQLStore) All(ctx context.Context) ([]*user.User, error) {
	query := `SELECT user_key, payload, updated_at FROM users ORDER BY updated_at DESC`

	rows, err := s.db.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*user.User
	for rows.Next() {
		var rec userRecord
		if err := rows.Scan(&rec.Key, &rec.Payload, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		u, err := user.FromPortableForm(rec.Payload)
		if err != nil {
			// Skip rows a newer or older build wrote; one bad row should
			// not hide every other user.
			logger.Log.Warn("Skipping unreadable persisted user",
				zap.String("key", rec.Key), zap.Error(err))
			continue
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
