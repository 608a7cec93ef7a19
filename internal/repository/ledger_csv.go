package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"sodaclub-ledger-api/internal/model"
)

// Table file names inside the data directory.
const (
	tableTransactions = "transactions.csv"
	tableSettings     = "settings.csv"
	tableInventory    = "inventory.csv"
	tableMembers      = "members.csv"
)

// Canonical headers. Reads tolerate files with fewer columns (the
// missing ones are backfilled with defaults); writes always emit the
// full set.
var csvHeaders = map[string][]string{
	tableTransactions: {"id", "timestamp", "member_identifier", "type", "amount", "status", "notes"},
	tableSettings:     {"key", "value"},
	tableInventory:    {"id", "timestamp", "quantity"},
	tableMembers:      {"identifier", "name", "secret", "role", "status"},
}

// CSVLedgerStore implements LedgerStore over plain CSV table files, the
// same shape as the spreadsheet the club ledger started life in. The
// store's only primitives are whole-file read, single-row append and
// whole-file rewrite; the compare-and-swap status flip is emulated by
// re-reading the target row under the write lock before rewriting.
// Appends never rewrite the file, so concurrent appends both survive.
type CSVLedgerStore struct {
	dir string
	mu  sync.RWMutex
}

// NewCSVLedgerStore creates a CSV-backed ledger store rooted at dir.
func NewCSVLedgerStore(dir string) (*CSVLedgerStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	s := &CSVLedgerStore{dir: dir}
	for table := range csvHeaders {
		if err := s.ensureTable(table); err != nil {
			return nil, err
		}
	}

	log.Printf("[CSVLedgerStore] Initialized with data dir: %s", dir)
	return s, nil
}

func (s *CSVLedgerStore) path(table string) string {
	return filepath.Join(s.dir, table)
}

// ensureTable creates an empty table file with its header if missing.
func (s *CSVLedgerStore) ensureTable(table string) error {
	p := s.path(table)
	if _, err := os.Stat(p); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil
		}
		return classifyFS(err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeaders[table]); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// classifyFS wraps retryable filesystem failures as TransientError.
func classifyFS(err error) error {
	if err == nil {
		return nil
	}
	for _, code := range []syscall.Errno{syscall.EAGAIN, syscall.EBUSY, syscall.EMFILE, syscall.ENFILE} {
		if errors.Is(err, code) {
			return &TransientError{Err: err}
		}
	}
	return err
}

// row is one table row indexed by column name. Columns absent from the
// file's header simply stay missing and read as the zero value.
type row map[string]string

// readTable loads every row of a table. Ragged rows and missing columns
// are healed by defaulting rather than failing the read.
func (s *CSVLedgerStore) readTable(table string) ([]row, error) {
	f, err := os.Open(s.path(table))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, classifyFS(err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // tolerate ragged legacy rows

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	header := records[0]
	rows := make([]row, 0, len(records)-1)
	for _, rec := range records[1:] {
		rw := make(row, len(header))
		for i, col := range header {
			if i < len(rec) {
				rw[col] = rec[i]
			}
		}
		rows = append(rows, rw)
	}
	return rows, nil
}

// appendRow appends a single record using the file's append primitive.
// The whole table is never rewritten for an append, so a concurrent
// append from another session cannot be clobbered.
func (s *CSVLedgerStore) appendRow(table string, values row) error {
	if err := s.ensureTable(table); err != nil {
		return err
	}

	f, err := os.OpenFile(s.path(table), os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return classifyFS(err)
	}
	defer f.Close()

	header := csvHeaders[table]
	record := make([]string, len(header))
	for i, col := range header {
		record[i] = values[col]
	}

	w := csv.NewWriter(f)
	if err := w.Write(record); err != nil {
		return err
	}
	w.Flush()
	return classifyFS(w.Error())
}

// rewriteTable atomically replaces a table file with the given rows,
// re-serialized against the canonical header. Only used for the status
// CAS and for in-place mutations of the settings and members tables.
func (s *CSVLedgerStore) rewriteTable(table string, rows []row) error {
	header := csvHeaders[table]

	tmp, err := os.CreateTemp(s.dir, table+".tmp-*")
	if err != nil {
		return classifyFS(err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return err
	}
	for _, rw := range rows {
		record := make([]string, len(header))
		for i, col := range header {
			record[i] = rw[col]
		}
		if err := w.Write(record); err != nil {
			tmp.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return classifyFS(err)
	}

	return classifyFS(os.Rename(tmp.Name(), s.path(table)))
}

// nextID returns max(id)+1 for a table, treating unparseable ids as 0.
func nextID(rows []row) int64 {
	var max int64
	for _, rw := range rows {
		if id, err := strconv.ParseInt(rw["id"], 10, 64); err == nil && id > max {
			max = id
		}
	}
	return max + 1
}

func transactionFromRow(rw row) model.Transaction {
	id, _ := strconv.ParseInt(rw["id"], 10, 64)
	ts, _ := time.Parse(timeLayout, rw["timestamp"])
	return model.Transaction{
		ID:               id,
		Timestamp:        ts,
		MemberIdentifier: rw["member_identifier"],
		Type:             model.TransactionType(rw["type"]),
		Amount:           coerceAmount(rw["amount"]),
		Status:           coerceStatus(rw["status"]),
		Notes:            rw["notes"],
	}
}

func transactionToRow(tx model.Transaction) row {
	return row{
		"id":                strconv.FormatInt(tx.ID, 10),
		"timestamp":         tx.Timestamp.Format(timeLayout),
		"member_identifier": tx.MemberIdentifier,
		"type":              string(tx.Type),
		"amount":            tx.Amount.String(),
		"status":            string(tx.Status),
		"notes":             tx.Notes,
	}
}

// ListTransactions returns every transaction, ordered by id.
func (s *CSVLedgerStore) ListTransactions(ctx context.Context) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var txs []model.Transaction
	err := withRetry(ctx, func() error {
		rows, err := s.readTable(tableTransactions)
		if err != nil {
			return err
		}
		txs = make([]model.Transaction, 0, len(rows))
		for _, rw := range rows {
			txs = append(txs, transactionFromRow(rw))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return txs, nil
}

// GetTransaction returns a single transaction by id.
func (s *CSVLedgerStore) GetTransaction(ctx context.Context, id int64) (*model.Transaction, error) {
	txs, err := s.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}
	for i := range txs {
		if txs[i].ID == id {
			return &txs[i], nil
		}
	}
	return nil, ErrNotFound
}

// AppendTransaction assigns the next id and appends a single row.
func (s *CSVLedgerStore) AppendTransaction(ctx context.Context, tx model.Transaction) (model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now().UTC()
	}

	err := withRetry(ctx, func() error {
		rows, err := s.readTable(tableTransactions)
		if err != nil {
			return err
		}
		tx.ID = nextID(rows)
		return s.appendRow(tableTransactions, transactionToRow(tx))
	})
	if err != nil {
		return model.Transaction{}, fmt.Errorf("failed to append transaction: %w", err)
	}
	return tx, nil
}

// UpdateTransactionStatus emulates compare-and-swap on a store that only
// supports whole-file rewrite: under the exclusive lock it re-reads the
// target row, verifies the expected status still holds and only then
// rewrites. A stale expectation returns ErrConflict without writing.
func (s *CSVLedgerStore) UpdateTransactionStatus(ctx context.Context, id int64, expected, next model.TransactionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return withRetry(ctx, func() error {
		rows, err := s.readTable(tableTransactions)
		if err != nil {
			return err
		}

		target := -1
		for i, rw := range rows {
			if rowID, _ := strconv.ParseInt(rw["id"], 10, 64); rowID == id {
				target = i
				break
			}
		}
		if target == -1 {
			return ErrNotFound
		}

		current := coerceStatus(rows[target]["status"])
		if current != expected {
			return fmt.Errorf("transaction %d is %s, expected %s: %w", id, current, expected, ErrConflict)
		}

		rows[target]["status"] = string(next)
		return s.rewriteTable(tableTransactions, rows)
	})
}

// GetSetting returns the value for key.
func (s *CSVLedgerStore) GetSetting(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.readTable(tableSettings)
	if err != nil {
		return "", err
	}
	for _, rw := range rows {
		if rw["key"] == key {
			return rw["value"], nil
		}
	}
	return "", ErrNotFound
}

// UpsertSetting updates the singleton row for key in place, appending a
// new row when the key does not exist yet.
func (s *CSVLedgerStore) UpsertSetting(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return withRetry(ctx, func() error {
		rows, err := s.readTable(tableSettings)
		if err != nil {
			return err
		}
		for _, rw := range rows {
			if rw["key"] == key {
				rw["value"] = value
				return s.rewriteTable(tableSettings, rows)
			}
		}
		return s.appendRow(tableSettings, row{"key": key, "value": value})
	})
}

// ListInventoryDeltas returns the full stock-delta log.
func (s *CSVLedgerStore) ListInventoryDeltas(ctx context.Context) ([]model.InventoryDelta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.readTable(tableInventory)
	if err != nil {
		return nil, err
	}

	deltas := make([]model.InventoryDelta, 0, len(rows))
	for _, rw := range rows {
		id, _ := strconv.ParseInt(rw["id"], 10, 64)
		ts, _ := time.Parse(timeLayout, rw["timestamp"])
		qty, _ := strconv.ParseInt(rw["quantity"], 10, 64)
		deltas = append(deltas, model.InventoryDelta{ID: id, Timestamp: ts, Quantity: qty})
	}
	return deltas, nil
}

// AppendInventoryDelta commits a signed stock change.
func (s *CSVLedgerStore) AppendInventoryDelta(ctx context.Context, quantity int64) (model.InventoryDelta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delta := model.InventoryDelta{Timestamp: time.Now().UTC(), Quantity: quantity}
	err := withRetry(ctx, func() error {
		rows, err := s.readTable(tableInventory)
		if err != nil {
			return err
		}
		delta.ID = nextID(rows)
		return s.appendRow(tableInventory, row{
			"id":        strconv.FormatInt(delta.ID, 10),
			"timestamp": delta.Timestamp.Format(timeLayout),
			"quantity":  strconv.FormatInt(quantity, 10),
		})
	})
	if err != nil {
		return model.InventoryDelta{}, fmt.Errorf("failed to append inventory delta: %w", err)
	}
	return delta, nil
}

func memberFromRow(rw row) model.Member {
	status := model.MemberStatus(rw["status"])
	if status != model.MemberPending {
		// Legacy member sheets had no status column; those members are active.
		status = model.MemberActive
	}
	role := model.Role(rw["role"])
	if role != model.RoleAdmin {
		role = model.RoleUser
	}
	return model.Member{
		Identifier: rw["identifier"],
		Name:       rw["name"],
		Secret:     rw["secret"],
		Role:       role,
		Status:     status,
	}
}

func memberToRow(m model.Member) row {
	return row{
		"identifier": m.Identifier,
		"name":       m.Name,
		"secret":     m.Secret,
		"role":       string(m.Role),
		"status":     string(m.Status),
	}
}

// GetMemberByIdentifier finds a member by the immutable identifier.
func (s *CSVLedgerStore) GetMemberByIdentifier(ctx context.Context, identifier string) (*model.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.readTable(tableMembers)
	if err != nil {
		return nil, err
	}
	for _, rw := range rows {
		if rw["identifier"] == identifier {
			m := memberFromRow(rw)
			return &m, nil
		}
	}
	return nil, ErrNotFound
}

// ListMembers returns all members.
func (s *CSVLedgerStore) ListMembers(ctx context.Context) ([]model.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.readTable(tableMembers)
	if err != nil {
		return nil, err
	}
	members := make([]model.Member, 0, len(rows))
	for _, rw := range rows {
		members = append(members, memberFromRow(rw))
	}
	return members, nil
}

// AddMember appends a new member row.
func (s *CSVLedgerStore) AddMember(ctx context.Context, m model.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return withRetry(ctx, func() error {
		rows, err := s.readTable(tableMembers)
		if err != nil {
			return err
		}
		for _, rw := range rows {
			if rw["identifier"] == m.Identifier {
				return fmt.Errorf("member %s: %w", m.Identifier, ErrDuplicate)
			}
		}
		return s.appendRow(tableMembers, memberToRow(m))
	})
}

// SetMemberStatus activates or deactivates a member in place.
func (s *CSVLedgerStore) SetMemberStatus(ctx context.Context, identifier string, status model.MemberStatus) error {
	return s.mutateMember(ctx, identifier, func(rw row) {
		rw["status"] = string(status)
	})
}

// UpdateMemberSecret replaces a member's secret code in place.
func (s *CSVLedgerStore) UpdateMemberSecret(ctx context.Context, identifier, secret string) error {
	return s.mutateMember(ctx, identifier, func(rw row) {
		rw["secret"] = secret
	})
}

func (s *CSVLedgerStore) mutateMember(ctx context.Context, identifier string, mutate func(row)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return withRetry(ctx, func() error {
		rows, err := s.readTable(tableMembers)
		if err != nil {
			return err
		}
		for _, rw := range rows {
			if rw["identifier"] == identifier {
				mutate(rw)
				return s.rewriteTable(tableMembers, rows)
			}
		}
		return ErrNotFound
	})
}

// Close is a no-op; the store holds no long-lived handles.
func (s *CSVLedgerStore) Close() error {
	return nil
}

// Ensure CSVLedgerStore implements LedgerStore
var _ LedgerStore = (*CSVLedgerStore)(nil)
