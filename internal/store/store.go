// Package store persists finished answer sheets, the question extraction
// cache and admin accounts in SQLite.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pavelanni/examreader/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database dir: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS answer_sheets (
		session_id TEXT PRIMARY KEY,
		exam_title TEXT NOT NULL DEFAULT '',
		total_questions INTEGER NOT NULL DEFAULT 0,
		answered_count INTEGER NOT NULL DEFAULT 0,
		completion_percentage REAL NOT NULL DEFAULT 0,
		completed_at DATETIME,
		written_at DATETIME NOT NULL,
		sheet_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS extraction_cache (
		text_hash TEXT PRIMARY KEY,
		tier TEXT NOT NULL DEFAULT '',
		question_count INTEGER NOT NULL DEFAULT 0,
		questions_json TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS admins (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveAnswerSheet writes a finished sheet. Writing the same session again
// replaces the stored row.
func (s *Store) SaveAnswerSheet(sheet model.AnswerSheet) error {
	data, err := json.Marshal(sheet)
	if err != nil {
		return fmt.Errorf("marshal answer sheet: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO answer_sheets (session_id, exam_title, total_questions, answered_count, completion_percentage, completed_at, written_at, sheet_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
		   exam_title = excluded.exam_title,
		   total_questions = excluded.total_questions,
		   answered_count = excluded.answered_count,
		   completion_percentage = excluded.completion_percentage,
		   completed_at = excluded.completed_at,
		   written_at = excluded.written_at,
		   sheet_json = excluded.sheet_json`,
		sheet.SessionID, sheet.ExamTitle, sheet.TotalQuestions, sheet.AnsweredCount,
		sheet.CompletionPercentage, sheet.CompletedAt, s.now(), string(data),
	)
	if err != nil {
		return fmt.Errorf("save answer sheet %s: %w", sheet.SessionID, err)
	}
	return nil
}

// GetAnswerSheet returns the stored sheet for a session, or nil if there is none.
func (s *Store) GetAnswerSheet(sessionID string) (*model.AnswerSheet, error) {
	var data string
	err := s.db.QueryRow(`SELECT sheet_json FROM answer_sheets WHERE session_id = ?`, sessionID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sheet model.AnswerSheet
	if err := json.Unmarshal([]byte(data), &sheet); err != nil {
		return nil, fmt.Errorf("decode answer sheet %s: %w", sessionID, err)
	}
	return &sheet, nil
}

// ListAnswerSheets returns summaries of all stored sheets, newest first.
func (s *Store) ListAnswerSheets() ([]model.SheetSummary, error) {
	rows, err := s.db.Query(
		`SELECT session_id, exam_title, total_questions, answered_count, completion_percentage, completed_at, written_at
		 FROM answer_sheets ORDER BY written_at DESC, session_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.SheetSummary
	for rows.Next() {
		var sum model.SheetSummary
		var completed sql.NullTime
		if err := rows.Scan(&sum.SessionID, &sum.ExamTitle, &sum.TotalQuestions, &sum.AnsweredCount,
			&sum.CompletionPercentage, &completed, &sum.WrittenAt); err != nil {
			return nil, err
		}
		if completed.Valid {
			t := completed.Time
			sum.CompletedAt = &t
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// AnswerSheetCount returns the number of stored sheets.
func (s *Store) AnswerSheetCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM answer_sheets`).Scan(&count)
	return count, err
}
