package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"fintrack/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository stores snapshots in normalised tables, one row set per
// user. Save replaces the user's rows inside a single transaction.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := migrateLedgerSchema(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", dbPath, err)
	}
	slog.Info("Ledger schema ready", "path", dbPath, "version", version)

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping is used by the readiness probe.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Users(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *SQLiteRepository) Load(ctx context.Context, userID string) (*core.Snapshot, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, userID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}

	s := core.NewSnapshot()
	loaders := []struct {
		name string
		fn   func(context.Context, string, *core.Snapshot) error
	}{
		{"transactions", r.loadTransactions},
		{"budgets", r.loadBudgets},
		{"savings goal", r.loadGoal},
		{"approved anomalies", r.loadApproved},
		{"autopays", r.loadAutopays},
		{"custom categories", r.loadCategories},
	}
	for _, l := range loaders {
		if err := l.fn(ctx, userID, s); err != nil {
			return nil, fmt.Errorf("load %s: %w", l.name, err)
		}
	}
	return s, nil
}

func (r *SQLiteRepository) loadTransactions(ctx context.Context, userID string, s *core.Snapshot) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, amount_cents, category, payment_method, description, date, is_autopay, autopay_id
		FROM transactions WHERE user_id = ? ORDER BY position`, userID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			t    core.Transaction
			date string
		)
		if err := rows.Scan(&t.ID, &t.Type, &t.Amount.Cents, &t.Category, &t.PaymentMethod,
			&t.Description, &date, &t.IsAutopay, &t.AutopayID); err != nil {
			return err
		}
		if t.Date, err = core.ParseDate(date); err != nil {
			return fmt.Errorf("transaction %s: %w", t.ID, err)
		}
		s.Transactions = append(s.Transactions, t)
	}
	return rows.Err()
}

func (r *SQLiteRepository) loadBudgets(ctx context.Context, userID string, s *core.Snapshot) error {
	rows, err := r.db.QueryContext(ctx, `SELECT category, amount_cents FROM budgets WHERE user_id = ?`, userID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cat string
			m   core.Money
		)
		if err := rows.Scan(&cat, &m.Cents); err != nil {
			return err
		}
		s.Budgets[cat] = m
	}
	return rows.Err()
}

func (r *SQLiteRepository) loadGoal(ctx context.Context, userID string, s *core.Snapshot) error {
	var g core.SavingsGoal
	err := r.db.QueryRowContext(ctx,
		`SELECT name, target_cents, saved_cents FROM savings_goals WHERE user_id = ?`, userID).
		Scan(&g.Name, &g.Target.Cents, &g.Saved.Cents)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	s.Goal = &g
	return nil
}

func (r *SQLiteRepository) loadApproved(ctx context.Context, userID string, s *core.Snapshot) error {
	rows, err := r.db.QueryContext(ctx, `SELECT transaction_id FROM approved_anomalies WHERE user_id = ?`, userID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		s.ApprovedAnomalies[id] = true
	}
	return rows.Err()
}

func (r *SQLiteRepository) loadAutopays(ctx context.Context, userID string, s *core.Snapshot) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, amount_cents, category, day, description, is_active, last_processed
		FROM autopays WHERE user_id = ? ORDER BY position`, userID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			a    core.AutopayRule
			last sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.Name, &a.Amount.Cents, &a.Category, &a.Day,
			&a.Description, &a.IsActive, &last); err != nil {
			return err
		}
		if last.Valid {
			ym, err := core.ParseYearMonth(last.String)
			if err != nil {
				return fmt.Errorf("autopay %s: %w", a.ID, err)
			}
			a.LastProcessed = &ym
		}
		s.Autopays = append(s.Autopays, a)
	}
	return rows.Err()
}

func (r *SQLiteRepository) loadCategories(ctx context.Context, userID string, s *core.Snapshot) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT type, name FROM custom_categories WHERE user_id = ? ORDER BY type, position`, userID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			t    core.TxType
			name string
		)
		if err := rows.Scan(&t, &name); err != nil {
			return err
		}
		s.Categories[t] = append(s.Categories[t], name)
	}
	return rows.Err()
}

// Save replaces everything stored for the user with the snapshot.
func (r *SQLiteRepository) Save(ctx context.Context, userID string, s *core.Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO users (id) VALUES (?)
		ON CONFLICT(id) DO UPDATE SET updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')`, userID); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}

	for _, table := range []string{"transactions", "budgets", "savings_goals", "approved_anomalies", "autopays", "custom_categories"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for i, t := range s.Transactions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO transactions (user_id, id, position, type, amount_cents, category, payment_method, description, date, is_autopay, autopay_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			userID, t.ID, i, string(t.Type), t.Amount.Cents, t.Category, string(t.PaymentMethod),
			t.Description, t.Date.String(), t.IsAutopay, t.AutopayID); err != nil {
			return fmt.Errorf("insert transaction %s: %w", t.ID, err)
		}
	}

	for cat, m := range s.Budgets {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO budgets (user_id, category, amount_cents) VALUES (?, ?, ?)`,
			userID, cat, m.Cents); err != nil {
			return fmt.Errorf("insert budget %s: %w", cat, err)
		}
	}

	if g := s.Goal; g != nil {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO savings_goals (user_id, name, target_cents, saved_cents) VALUES (?, ?, ?, ?)`,
			userID, g.Name, g.Target.Cents, g.Saved.Cents); err != nil {
			return fmt.Errorf("insert savings goal: %w", err)
		}
	}

	for _, id := range s.ApprovedIDs() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO approved_anomalies (user_id, transaction_id) VALUES (?, ?)`, userID, id); err != nil {
			return fmt.Errorf("insert approved anomaly %s: %w", id, err)
		}
	}

	for i, a := range s.Autopays {
		var last sql.NullString
		if a.LastProcessed != nil {
			last = sql.NullString{String: a.LastProcessed.String(), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO autopays (user_id, id, position, name, amount_cents, category, day, description, is_active, last_processed)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			userID, a.ID, i, a.Name, a.Amount.Cents, a.Category, int(a.Day), a.Description, a.IsActive, last); err != nil {
			return fmt.Errorf("insert autopay %s: %w", a.ID, err)
		}
	}

	for t, names := range s.Categories {
		for i, name := range names {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO custom_categories (user_id, type, name, position) VALUES (?, ?, ?, ?)`,
				userID, string(t), name, i); err != nil {
				return fmt.Errorf("insert category %s: %w", name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}

	slog.InfoContext(ctx, "Snapshot saved to SQLite",
		"user_id", userID,
		"transactions", len(s.Transactions),
		"autopays", len(s.Autopays))
	return nil
}
