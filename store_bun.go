package userpool

import (
	"context"
	"database/sql"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// TokenRecord is one keyring slot persisted through Bun.
type TokenRecord struct {
	bun.BaseModel `bun:"table:pool_tokens,alias:ptk"`
	Slot          string    `bun:"slot,pk" json:"slot"`
	Value         string    `bun:"value,notnull" json:"value"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// BunKeyring stores slots in a relational table. Useful when the host app
// already carries a Bun database and wants sessions to survive restarts.
type BunKeyring struct {
	db *bun.DB
}

// NewBunKeyring ensures the backing table exists and returns the keyring.
func NewBunKeyring(ctx context.Context, db *bun.DB) (*BunKeyring, error) {
	if _, err := db.NewCreateTable().
		Model((*TokenRecord)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to create token table")
	}
	return &BunKeyring{db: db}, nil
}

// OpenSQLiteKeyring opens (or creates) a SQLite backed keyring at dsn, e.g.
// "file:tokens.db" or "file::memory:?cache=shared".
func OpenSQLiteKeyring(ctx context.Context, dsn string) (*BunKeyring, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to open sqlite keyring")
	}
	db := bun.NewDB(sqldb, sqlitedialect.New())
	return NewBunKeyring(ctx, db)
}

// Get implements Keyring.
func (k *BunKeyring) Get(ctx context.Context, key string) (string, bool, error) {
	rec := new(TokenRecord)
	err := k.db.NewSelect().
		Model(rec).
		Where("slot = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if goerrors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to read token slot")
	}
	return rec.Value, true, nil
}

// Set implements Keyring.
func (k *BunKeyring) Set(ctx context.Context, key, value string) error {
	rec := &TokenRecord{
		Slot:      key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	_, err := k.db.NewInsert().
		Model(rec).
		On("CONFLICT (slot) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to write token slot")
	}
	return nil
}

// Delete implements Keyring.
func (k *BunKeyring) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := k.db.NewDelete().
		Model((*TokenRecord)(nil)).
		Where("slot IN (?)", bun.In(keys)).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to delete token slots")
	}
	return nil
}

// DB exposes the underlying handle for host applications that manage
// migrations themselves.
func (k *BunKeyring) DB() *bun.DB {
	return k.db
}
