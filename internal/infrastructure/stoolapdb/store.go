// Package stoolapdb implements the entity store on stoolap, an embedded MVCC
// SQL engine. Transactions run under SNAPSHOT isolation; a write-write
// conflict on commit surfaces as storage.ErrConflict so callers can decide
// whether to retry.
package stoolapdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	_ "github.com/stoolap/stoolap/pkg/driver"

	"github.com/vendstack/vendingmachine/internal/domain/catalog"
	"github.com/vendstack/vendingmachine/internal/domain/money"
	"github.com/vendstack/vendingmachine/internal/domain/storage"
	"github.com/vendstack/vendingmachine/internal/domain/user"
)

// stoolap only allows INTEGER primary keys, so entity ids stay plain TEXT
// columns guarded by unique indexes.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id TEXT,
		name TEXT,
		description TEXT,
		price TEXT
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_products_id ON products(id)`,
	`CREATE TABLE IF NOT EXISTS slots (
		id TEXT,
		product_id TEXT,
		quantity INTEGER,
		grid_row INTEGER,
		grid_col INTEGER
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_slots_id ON slots(id)`,
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT,
		name TEXT,
		balance TEXT
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_id ON users(id)`,
}

type Store struct {
	db *sql.DB
}

// Open connects to a stoolap database (e.g. "memory://" or "file:///var/lib/vending")
// and ensures the schema exists.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("stoolap", dsn)
	if err != nil {
		return nil, fmt.Errorf("open stoolap: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	if _, err := db.Exec(`SET ISOLATIONLEVEL = 'SNAPSHOT'`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set isolation level: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", storage.ErrFailure, err)
	}
	if err := fn(ctx, &sqlTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrConflict, err)
	}
	return nil
}

type sqlTx struct {
	tx *sql.Tx
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (t *sqlTx) GetUser(ctx context.Context, id string) (*user.User, error) {
	return getUser(ctx, t.tx, id)
}

func (t *sqlTx) SaveUser(ctx context.Context, u *user.User) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE users SET name = ?, balance = ? WHERE id = ?`,
		u.Name, money.Format(u.Balance), u.ID)
	if err != nil {
		return fmt.Errorf("%w: update user: %v", storage.ErrFailure, err)
	}
	return requireOneRow(res, user.ErrNotFound)
}

func (t *sqlTx) GetSlot(ctx context.Context, id string) (*catalog.Slot, error) {
	return getSlot(ctx, t.tx, id)
}

func (t *sqlTx) SaveSlot(ctx context.Context, sl *catalog.Slot) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE slots SET product_id = ?, quantity = ?, grid_row = ?, grid_col = ? WHERE id = ?`,
		sl.Product.ID, sl.Quantity, sl.Row, sl.Column, sl.ID)
	if err != nil {
		return fmt.Errorf("%w: update slot: %v", storage.ErrFailure, err)
	}
	return requireOneRow(res, catalog.ErrSlotNotFound)
}

func (s *Store) GetUser(ctx context.Context, id string) (*user.User, error) {
	return getUser(ctx, s.db, id)
}

func (s *Store) GetSlot(ctx context.Context, id string) (*catalog.Slot, error) {
	return getSlot(ctx, s.db, id)
}

func (s *Store) ListSlots(ctx context.Context, maxQuantity *int) ([]*catalog.Slot, error) {
	query := selectSlot + ` ORDER BY s.grid_row, s.grid_col`
	var args []any
	if maxQuantity != nil {
		query = selectSlot + ` WHERE s.quantity <= ? ORDER BY s.grid_row, s.grid_col`
		args = append(args, *maxQuantity)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list slots: %v", storage.ErrFailure, err)
	}
	defer rows.Close()

	var out []*catalog.Slot
	for rows.Next() {
		sl, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list slots: %v", storage.ErrFailure, err)
	}
	return out, nil
}

func (s *Store) FindUserByName(ctx context.Context, name string) (*user.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, balance FROM users WHERE LOWER(name) = ?`,
		strings.ToLower(name))
	return scanUser(row)
}

func (s *Store) InsertUser(ctx context.Context, u *user.User) error {
	if _, err := s.FindUserByName(ctx, u.Name); err == nil {
		return storage.ErrConflict
	} else if !errors.Is(err, user.ErrNotFound) {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, balance) VALUES (?, ?, ?)`,
		u.ID, u.Name, money.Format(u.Balance))
	if err != nil {
		return fmt.Errorf("%w: insert user: %v", storage.ErrFailure, err)
	}
	return nil
}

func (s *Store) InsertProduct(ctx context.Context, p *catalog.Product) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (id, name, description, price) VALUES (?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, money.Format(p.Price))
	if err != nil {
		return fmt.Errorf("%w: insert product: %v", storage.ErrFailure, err)
	}
	return nil
}

func (s *Store) InsertSlot(ctx context.Context, sl *catalog.Slot) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO slots (id, product_id, quantity, grid_row, grid_col) VALUES (?, ?, ?, ?, ?)`,
		sl.ID, sl.Product.ID, sl.Quantity, sl.Row, sl.Column)
	if err != nil {
		return fmt.Errorf("%w: insert slot: %v", storage.ErrFailure, err)
	}
	return nil
}

const selectSlot = `SELECT s.id, s.quantity, s.grid_row, s.grid_col,
	p.id, p.name, p.description, p.price
	FROM slots s JOIN products p ON p.id = s.product_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func getUser(ctx context.Context, q querier, id string) (*user.User, error) {
	row := q.QueryRowContext(ctx, `SELECT id, name, balance FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func getSlot(ctx context.Context, q querier, id string) (*catalog.Slot, error) {
	row := q.QueryRowContext(ctx, selectSlot+` WHERE s.id = ?`, id)
	sl, err := scanSlot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrSlotNotFound
	}
	return sl, err
}

func scanUser(row rowScanner) (*user.User, error) {
	var u user.User
	var balance string
	if err := row.Scan(&u.ID, &u.Name, &balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("%w: scan user: %v", storage.ErrFailure, err)
	}
	d, err := decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("%w: balance %q: %v", storage.ErrFailure, balance, err)
	}
	u.Balance = d
	return &u, nil
}

func scanSlot(row rowScanner) (*catalog.Slot, error) {
	var sl catalog.Slot
	var p catalog.Product
	var price string
	if err := row.Scan(&sl.ID, &sl.Quantity, &sl.Row, &sl.Column,
		&p.ID, &p.Name, &p.Description, &price); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: scan slot: %v", storage.ErrFailure, err)
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("%w: price %q: %v", storage.ErrFailure, price, err)
	}
	p.Price = d
	sl.Product = &p
	return &sl, nil
}

func requireOneRow(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %v", storage.ErrFailure, err)
	}
	if n != 1 {
		return missing
	}
	return nil
}
