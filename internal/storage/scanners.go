package storage

import (
	"database/sql"
	"time"

	"github.com/ernie/teamkeeper/internal/domain"
)

func scanNullTime(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}

// scanner is an interface satisfied by both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

// scanUser scans a user row from the database
func scanUser(s scanner) (*User, error) {
	var user User
	var lastLogin sql.NullTime
	err := s.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.IsAdmin,
		&user.CreatedAt, &lastLogin)
	if err != nil {
		return nil, err
	}
	user.LastLogin = scanNullTime(lastLogin)
	return &user, nil
}

// scanServer scans a server row from the database
func scanServer(s scanner) (*domain.GameServer, error) {
	var srv domain.GameServer
	var logPath sql.NullString
	err := s.Scan(&srv.ID, &srv.Name, &srv.Address, &logPath, &srv.CreatedAt)
	if err != nil {
		return nil, err
	}
	srv.LogPath = logPath.String
	return &srv, nil
}
