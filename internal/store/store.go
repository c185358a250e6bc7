// Package store persists what outlives a conversation: the turn
// transcript and the index of saved artifacts. Step models themselves
// are never written here; they live and die with their session.
package store

import (
	"database/sql"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

type Store struct {
	DB *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS transcripts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT,
			role TEXT,
			content TEXT,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS artifacts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT,
			path TEXT,
			size_bytes INTEGER,
			template_version TEXT,
			created DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return nil, err
		}
	}

	return &Store{DB: db}, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

// Turn is one transcript entry; role is "user" or "engine".
type Turn struct {
	Role      string
	Content   string
	Timestamp time.Time
}

func (s *Store) AddTurn(sessionID, role, content string) error {
	query := `INSERT INTO transcripts (session_id, role, content) VALUES (?, ?, ?)`
	_, err := s.DB.Exec(query, sessionID, role, content)
	return err
}

// RecentTurns returns the last limit turns for a session in
// chronological order.
func (s *Store) RecentTurns(sessionID string, limit int) ([]Turn, error) {
	query := `SELECT role, content, timestamp FROM transcripts WHERE session_id = ? ORDER BY id DESC LIMIT ?`
	rows, err := s.DB.Query(query, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.Role, &t.Content, &t.Timestamp); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// Artifact is one saved rendering.
type Artifact struct {
	Name            string
	Path            string
	SizeBytes       int
	TemplateVersion string
	Created         time.Time
}

func (s *Store) RecordArtifact(name, path string, sizeBytes int, templateVersion string) error {
	query := `INSERT INTO artifacts (name, path, size_bytes, template_version) VALUES (?, ?, ?, ?)`
	_, err := s.DB.Exec(query, name, path, sizeBytes, templateVersion)
	return err
}

func (s *Store) ListArtifacts() ([]Artifact, error) {
	query := `SELECT name, path, size_bytes, template_version, created FROM artifacts ORDER BY id`
	rows, err := s.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.Name, &a.Path, &a.SizeBytes, &a.TemplateVersion, &a.Created); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
