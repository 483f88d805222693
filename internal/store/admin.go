package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

// UpsertAdmin creates the admin account or resets its password.
func (s *Store) UpsertAdmin(username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO admins (username, password_hash, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(username) DO UPDATE SET password_hash = ?`,
		username, string(hash), s.now(), string(hash),
	)
	if err != nil {
		slog.Error("failed to save admin", "username", username, "error", err)
		return err
	}
	slog.Info("admin account ready", "username", username)
	return nil
}

// AuthenticateAdmin reports whether the credentials match a stored admin.
func (s *Store) AuthenticateAdmin(username, password string) (bool, error) {
	var hash string
	err := s.db.QueryRow(`SELECT password_hash FROM admins WHERE username = ?`, username).Scan(&hash)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil, nil
}

// AdminCount returns the number of admin accounts.
func (s *Store) AdminCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM admins`).Scan(&count)
	return count, err
}
