package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"sodaclub-ledger-api/internal/model"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// timeLayout is the timestamp format shared by all backends. It matches
// what the club's old spreadsheet exports used, so existing data imports
// cleanly.
const timeLayout = "2006-01-02 15:04:05"

// SQLiteLedgerStore implements LedgerStore using SQLite.
// SQLite gives us a native row-level conditional update, so the
// compare-and-swap status flip is a single UPDATE with a status guard
// instead of the whole-table rewrite the flat-file backend needs.
type SQLiteLedgerStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteLedgerStore opens (or creates) the ledger database at dbPath.
func NewSQLiteLedgerStore(dbPath string) (*SQLiteLedgerStore, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createLedgerTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	if err := healLedgerSchema(db); err != nil {
		return nil, fmt.Errorf("failed to heal schema: %w", err)
	}

	log.Printf("[SQLiteLedgerStore] Initialized with database: %s", dbPath)
	return &SQLiteLedgerStore{db: db}, nil
}

func createLedgerTables(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		member_identifier TEXT NOT NULL,
		type TEXT NOT NULL,
		amount TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL DEFAULT 'completed',
		notes TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_tx_member ON transactions(member_identifier);
	CREATE INDEX IF NOT EXISTS idx_tx_status ON transactions(status);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS inventory (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		quantity INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS members (
		identifier TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		secret TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'user',
		status TEXT NOT NULL DEFAULT 'active'
	);
	`
	_, err := db.Exec(query)
	return err
}

// healLedgerSchema backfills columns that older ledger databases are
// missing instead of failing every read against them.
func healLedgerSchema(db *sql.DB) error {
	wanted := map[string]string{
		"status": `ALTER TABLE transactions ADD COLUMN status TEXT NOT NULL DEFAULT 'completed'`,
		"notes":  `ALTER TABLE transactions ADD COLUMN notes TEXT NOT NULL DEFAULT ''`,
	}

	rows, err := db.Query(`PRAGMA table_info(transactions)`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return err
		}
		delete(wanted, name)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for col, stmt := range wanted {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to backfill column %s: %w", col, err)
		}
		log.Printf("[SQLiteLedgerStore] Healed schema: backfilled missing column %q", col)
	}
	return nil
}

// classifySQLite wraps retryable driver failures as TransientError.
func classifySQLite(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "busy") || strings.Contains(msg, "locked") {
		return &TransientError{Err: err}
	}
	return err
}

// ListTransactions returns every transaction, ordered by id.
func (s *SQLiteLedgerStore) ListTransactions(ctx context.Context) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var txs []model.Transaction
	err := withRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, timestamp, member_identifier, type, amount, status, notes FROM transactions ORDER BY id`)
		if err != nil {
			return classifySQLite(err)
		}
		defer rows.Close()

		txs = txs[:0]
		for rows.Next() {
			tx, err := scanTransaction(rows)
			if err != nil {
				return err
			}
			txs = append(txs, tx)
		}
		return classifySQLite(rows.Err())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

// GetTransaction returns a single transaction by id.
func (s *SQLiteLedgerStore) GetTransaction(ctx context.Context, id int64) (*model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, timestamp, member_identifier, type, amount, status, notes FROM transactions WHERE id = ?`, id)

	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction %d: %w", id, classifySQLite(err))
	}
	return &tx, nil
}

// AppendTransaction commits a new row and returns it with the assigned id.
func (s *SQLiteLedgerStore) AppendTransaction(ctx context.Context, tx model.Transaction) (model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now().UTC()
	}

	err := withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO transactions (timestamp, member_identifier, type, amount, status, notes) VALUES (?, ?, ?, ?, ?, ?)`,
			tx.Timestamp.Format(timeLayout), tx.MemberIdentifier, string(tx.Type),
			tx.Amount.String(), string(tx.Status), tx.Notes)
		if err != nil {
			return classifySQLite(err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		tx.ID = id
		return nil
	})
	if err != nil {
		return model.Transaction{}, fmt.Errorf("failed to append transaction: %w", err)
	}
	return tx, nil
}

// UpdateTransactionStatus performs the compare-and-swap status flip as a
// single conditional UPDATE, so concurrent approvals cannot both apply.
func (s *SQLiteLedgerStore) UpdateTransactionStatus(ctx context.Context, id int64, expected, next model.TransactionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE transactions SET status = ? WHERE id = ? AND status = ?`,
			string(next), id, string(expected))
		if err != nil {
			return classifySQLite(err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected > 0 {
			return nil
		}

		// Nothing flipped: distinguish a missing row from a stale status.
		var current string
		err = s.db.QueryRowContext(ctx, `SELECT status FROM transactions WHERE id = ?`, id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return classifySQLite(err)
		}
		return fmt.Errorf("transaction %d is %s, expected %s: %w", id, current, expected, ErrConflict)
	})
}

// GetSetting returns the value for key.
func (s *SQLiteLedgerStore) GetSetting(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting %s: %w", key, classifySQLite(err))
	}
	return value, nil
}

// UpsertSetting updates the singleton row for key, inserting it if absent.
func (s *SQLiteLedgerStore) UpsertSetting(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO settings (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			key, value)
		return classifySQLite(err)
	})
}

// ListInventoryDeltas returns the full stock-delta log.
func (s *SQLiteLedgerStore) ListInventoryDeltas(ctx context.Context) ([]model.InventoryDelta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var deltas []model.InventoryDelta
	err := withRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, `SELECT id, timestamp, quantity FROM inventory ORDER BY id`)
		if err != nil {
			return classifySQLite(err)
		}
		defer rows.Close()

		deltas = deltas[:0]
		for rows.Next() {
			var (
				d  model.InventoryDelta
				ts string
			)
			if err := rows.Scan(&d.ID, &ts, &d.Quantity); err != nil {
				return err
			}
			d.Timestamp, _ = time.Parse(timeLayout, ts)
			deltas = append(deltas, d)
		}
		return classifySQLite(rows.Err())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory deltas: %w", err)
	}
	return deltas, nil
}

// AppendInventoryDelta commits a signed stock change.
func (s *SQLiteLedgerStore) AppendInventoryDelta(ctx context.Context, quantity int64) (model.InventoryDelta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delta := model.InventoryDelta{Timestamp: time.Now().UTC(), Quantity: quantity}
	err := withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO inventory (timestamp, quantity) VALUES (?, ?)`,
			delta.Timestamp.Format(timeLayout), quantity)
		if err != nil {
			return classifySQLite(err)
		}
		delta.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return model.InventoryDelta{}, fmt.Errorf("failed to append inventory delta: %w", err)
	}
	return delta, nil
}

// GetMemberByIdentifier finds a member by the immutable identifier.
func (s *SQLiteLedgerStore) GetMemberByIdentifier(ctx context.Context, identifier string) (*model.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var m model.Member
	err := s.db.QueryRowContext(ctx,
		`SELECT identifier, name, secret, role, status FROM members WHERE identifier = ?`, identifier).
		Scan(&m.Identifier, &m.Name, &m.Secret, &m.Role, &m.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", classifySQLite(err))
	}
	return &m, nil
}

// ListMembers returns all members.
func (s *SQLiteLedgerStore) ListMembers(ctx context.Context) ([]model.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT identifier, name, secret, role, status FROM members ORDER BY identifier`)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", classifySQLite(err))
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		var m model.Member
		if err := rows.Scan(&m.Identifier, &m.Name, &m.Secret, &m.Role, &m.Status); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// AddMember appends a new member row.
func (s *SQLiteLedgerStore) AddMember(ctx context.Context, m model.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO members (identifier, name, secret, role, status) VALUES (?, ?, ?, ?, ?)`,
			m.Identifier, m.Name, m.Secret, string(m.Role), string(m.Status))
		if err != nil && strings.Contains(strings.ToLower(err.Error()), "unique") {
			return fmt.Errorf("member %s: %w", m.Identifier, ErrDuplicate)
		}
		return classifySQLite(err)
	})
}

// SetMemberStatus activates or deactivates a member.
func (s *SQLiteLedgerStore) SetMemberStatus(ctx context.Context, identifier string, status model.MemberStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE members SET status = ? WHERE identifier = ?`, string(status), identifier)
		if err != nil {
			return classifySQLite(err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// UpdateMemberSecret replaces a member's secret code.
func (s *SQLiteLedgerStore) UpdateMemberSecret(ctx context.Context, identifier, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE members SET secret = ? WHERE identifier = ?`, secret, identifier)
		if err != nil {
			return classifySQLite(err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Close closes the database connection.
func (s *SQLiteLedgerStore) Close() error {
	return s.db.Close()
}

// scanner abstracts *sql.Row and *sql.Rows for shared scanning.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanTransaction reads one transaction row, coercing malformed amounts
// to zero and blank statuses to completed instead of failing the read.
func scanTransaction(row scanner) (model.Transaction, error) {
	var (
		tx     model.Transaction
		ts     string
		amount string
		status string
	)
	if err := row.Scan(&tx.ID, &ts, &tx.MemberIdentifier, (*string)(&tx.Type), &amount, &status, &tx.Notes); err != nil {
		return model.Transaction{}, err
	}

	tx.Timestamp, _ = time.Parse(timeLayout, ts)
	tx.Amount = coerceAmount(amount)
	tx.Status = coerceStatus(status)
	return tx, nil
}

// coerceAmount parses a stored amount, falling back to zero for
// non-numeric or missing values.
func coerceAmount(raw string) decimal.Decimal {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero
	}
	return amount
}

// coerceStatus defaults blank legacy statuses to completed; every row
// written before the approval workflow existed was settled by definition.
func coerceStatus(raw string) model.TransactionStatus {
	status := model.TransactionStatus(strings.TrimSpace(raw))
	if status != model.StatusPending && status != model.StatusCompleted {
		return model.StatusCompleted
	}
	return status
}

// Ensure SQLiteLedgerStore implements LedgerStore
var _ LedgerStore = (*SQLiteLedgerStore)(nil)
