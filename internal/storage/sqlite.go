package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// Column types understood by the sink
const (
	TypeInteger = "INTEGER"
	TypeReal    = "REAL"
	TypeText    = "TEXT"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Column describes one column of a replaced table
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TableSink persists tables to a SQLite database file
type TableSink struct {
	db     *sql.DB
	path   string
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// OpenTableSink opens (or creates) the database at path
func OpenTableSink(path string, logger *slog.Logger) (*TableSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." && path != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	// one connection serialises statements issued through this handle
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database %s: %w", path, err)
	}

	return &TableSink{
		db:     db,
		path:   path,
		logger: logger.With(slog.String("component", "table_sink")),
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

// Path returns the database location
func (s *TableSink) Path() string {
	return s.path
}

// Ping verifies the database is reachable
func (s *TableSink) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *TableSink) Close() error {
	return s.db.Close()
}

func (s *TableSink) tableLock(table string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[table]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[table] = lock
	}
	return lock
}

// Replace drops table, recreates it with columns and inserts rows, all in one transaction.
// Readers see either the previous table or the complete new one.
func (s *TableSink) Replace(ctx context.Context, table string, columns []Column, rows [][]any) error {
	if !identifierPattern.MatchString(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	if len(columns) == 0 {
		return fmt.Errorf("table %s needs at least one column", table)
	}

	defs := make([]string, len(columns))
	names := make([]string, len(columns))
	for i, col := range columns {
		if !identifierPattern.MatchString(col.Name) {
			return fmt.Errorf("invalid column name %q", col.Name)
		}
		colType := col.Type
		if colType == "" {
			colType = TypeText
		}
		defs[i] = quote(col.Name) + " " + colType
		names[i] = quote(col.Name)
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return fmt.Errorf("row %d has %d values, want %d", i, len(row), len(columns))
		}
	}

	lock := s.tableLock(table)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quote(table)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", quote(table), strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quote(table), strings.Join(names, ", "), placeholders))
	if err != nil {
		return fmt.Errorf("failed to prepare insert into %s: %w", table, err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("failed to insert row %d into %s: %w", i, table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit table %s: %w", table, err)
	}

	s.logger.InfoContext(ctx, "table_replaced",
		slog.String("table", table),
		slog.Int("columns", len(columns)),
		slog.Int("rows", len(rows)))
	return nil
}

func quote(identifier string) string {
	return `"` + identifier + `"`
}
