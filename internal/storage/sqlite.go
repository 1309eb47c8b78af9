package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log"
	"time"

	"github.com/ernie/teamkeeper/internal/domain"
	_ "modernc.org/sqlite"
)

// formatTimestamp converts time.Time to SQLite-compatible UTC ISO8601 string
// The Z suffix ensures the Go sqlite driver parses it back as UTC
func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

//go:embed schema.sql
var schema string

// Store provides database access
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Enable foreign keys, WAL mode for better performance, and busy timeout for concurrency
	if _, err := db.Exec("PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting pragmas: %w", err)
	}

	// Create tables
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// --- Server methods ---

// UpsertServer creates or updates a server
func (s *Store) UpsertServer(ctx context.Context, srv *domain.GameServer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO servers (name, address, log_path)
		VALUES (?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			name = excluded.name,
			log_path = excluded.log_path
	`, srv.Name, srv.Address, srv.LogPath)
	if err != nil {
		return err
	}

	// Always query for the ID (LastInsertId unreliable with ON CONFLICT)
	return s.db.QueryRowContext(ctx, "SELECT id FROM servers WHERE address = ?", srv.Address).Scan(&srv.ID)
}

// GetServers returns all servers
func (s *Store) GetServers(ctx context.Context) ([]domain.GameServer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, address, log_path, created_at FROM servers ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var servers []domain.GameServer
	for rows.Next() {
		srv, err := scanServer(rows)
		if err != nil {
			return nil, err
		}
		servers = append(servers, *srv)
	}
	return servers, rows.Err()
}

// GetServerByID returns a server by ID
func (s *Store) GetServerByID(ctx context.Context, id int64) (*domain.GameServer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, address, log_path, created_at FROM servers WHERE id = ?
	`, id)
	srv, err := scanServer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return srv, err
}

// --- Assignment methods ---

// FindAssignment looks up a player's stored team by the (username, uuid)
// identity pair. A lookup failure is indistinguishable from an absent
// record on purpose: persistence problems must never block a player
// joining, so errors are logged and swallowed here.
func (s *Store) FindAssignment(ctx context.Context, username, uuid string) *domain.Assignment {
	a, err := s.getAssignment(ctx, username, uuid)
	if err != nil {
		log.Printf("Assignment lookup failed for %s: %v", username, err)
		return nil
	}
	return a
}

// SaveAssignment records a player's current team, replacing any previous
// record for the same (username, uuid) pair. Like FindAssignment it fails
// open: a write failure is logged and otherwise ignored.
func (s *Store) SaveAssignment(ctx context.Context, username, uuid string, team domain.Team) {
	if err := s.upsertAssignment(ctx, username, uuid, team); err != nil {
		log.Printf("Assignment save failed for %s: %v", username, err)
	}
}

func (s *Store) getAssignment(ctx context.Context, username, uuid string) (*domain.Assignment, error) {
	var a domain.Assignment
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, uuid, team FROM assignments
		WHERE username = ? AND uuid = ?
	`, username, uuid).Scan(&a.ID, &a.Username, &a.UUID, &a.Team)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// upsertAssignment does a lookup-then-write inside a transaction. The
// identity index is not unique so ON CONFLICT is unavailable; the
// transaction is what keeps concurrent saves for one pair from racing
// into duplicate rows.
func (s *Store) upsertAssignment(ctx context.Context, username, uuid string, team domain.Team) error {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM assignments WHERE username = ? AND uuid = ?
	`, username, uuid).Scan(&id)

	if err == sql.ErrNoRows {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO assignments (username, uuid, team, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`, username, uuid, int(team), formatTimestamp(now), formatTimestamp(now))
		if err != nil {
			return fmt.Errorf("creating assignment: %w", err)
		}
	} else if err != nil {
		return err
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE assignments SET team = ?, updated_at = ? WHERE id = ?
		`, int(team), formatTimestamp(now), id)
		if err != nil {
			return fmt.Errorf("updating assignment: %w", err)
		}
	}

	return tx.Commit()
}

// ListAssignments returns a page of stored assignments plus the total count
func (s *Store) ListAssignments(ctx context.Context, limit, offset int) ([]domain.Assignment, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM assignments`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, uuid, team FROM assignments
		ORDER BY username, uuid LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var assignments []domain.Assignment
	for rows.Next() {
		var a domain.Assignment
		if err := rows.Scan(&a.ID, &a.Username, &a.UUID, &a.Team); err != nil {
			return nil, 0, err
		}
		assignments = append(assignments, a)
	}
	return assignments, total, rows.Err()
}

// DeleteAssignment removes all rows for a (username, uuid) pair and
// returns how many were removed. Used by the CLI, not the sync path.
func (s *Store) DeleteAssignment(ctx context.Context, username, uuid string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM assignments WHERE username = ? AND uuid = ?
	`, username, uuid)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// --- User methods ---

type User struct {
	ID           int64
	Username     string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// CreateUser creates a new user account
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string, isAdmin bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, is_admin)
		VALUES (?, ?, ?)
	`, username, passwordHash, isAdmin)
	return err
}

// GetUserByUsername retrieves a user by username
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, is_admin, created_at, last_login
		FROM users WHERE username = ?
	`, username)
	return scanUser(row)
}

// GetUserByID retrieves a user by ID
func (s *Store) GetUserByID(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, is_admin, created_at, last_login
		FROM users WHERE id = ?
	`, id)
	return scanUser(row)
}

// DeleteUser removes a user by username
func (s *Store) DeleteUser(ctx context.Context, username string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE username = ?`, username)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("user not found: %s", username)
	}
	return nil
}

// ListUsers returns all users with details
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, password_hash, is_admin, created_at, last_login
		FROM users ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// UpdateUserLastLogin updates the last login timestamp
func (s *Store) UpdateUserLastLogin(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET last_login = CURRENT_TIMESTAMP WHERE id = ?
	`, userID)
	return err
}

// UpdateUserAdmin updates the admin status of a user
func (s *Store) UpdateUserAdmin(ctx context.Context, userID int64, isAdmin bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET is_admin = ? WHERE id = ?
	`, isAdmin, userID)
	return err
}
