package store

import "time"

// userRecord is one row of the persisted user table. The payload is the
// user's portable token string and is treated as opaque by the store.
type userRecord struct {
	Key       string    `db:"user_key"`
	Payload   string    `db:"payload"`
	UpdatedAt time.Time `db:"updated_at"`
}
