// Package store implements garden.MetadataStore on SQLite. Commit patches
// are stored gzipped in the content column; everything else is plain
// columns.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"lily/internal/garden"
	"lily/internal/pack"
	"lily/internal/patch"
	"lily/internal/store/migrations"
)

// SQLiteStore implements the MetadataStore interface using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ garden.MetadataStore = (*SQLiteStore)(nil)

// Open opens (creating if necessary) the metadata database at path and runs
// pending migrations. path can be ":memory:" for tests.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InsertBranch records a new branch.
func (s *SQLiteStore) InsertBranch(b garden.Branch) error {
	_, err := s.db.Exec(
		"INSERT INTO branches (id, name, timestamp) VALUES (?, ?, ?)",
		b.ID, b.Name, b.Timestamp,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("branch %s: %w", b.ID, garden.ErrMustBeUnique)
		}
		return fmt.Errorf("inserting branch: %w", err)
	}
	return nil
}

// Branch returns a branch by id.
func (s *SQLiteStore) Branch(id string) (garden.Branch, error) {
	return s.scanBranch(s.db.QueryRow(
		"SELECT id, name, timestamp FROM branches WHERE id = ?", id))
}

// BranchByName returns a branch by name. Names are not unique; when several
// branches share one, the earliest-created wins.
func (s *SQLiteStore) BranchByName(name string) (garden.Branch, error) {
	return s.scanBranch(s.db.QueryRow(
		"SELECT id, name, timestamp FROM branches WHERE name = ? ORDER BY rowid LIMIT 1", name))
}

func (s *SQLiteStore) scanBranch(row *sql.Row) (garden.Branch, error) {
	var b garden.Branch
	err := row.Scan(&b.ID, &b.Name, &b.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return garden.Branch{}, fmt.Errorf("branch: %w", garden.ErrNotFound)
	}
	if err != nil {
		return garden.Branch{}, fmt.Errorf("scanning branch: %w", err)
	}
	return b, nil
}

// Branches returns all branches, newest first.
func (s *SQLiteStore) Branches() ([]garden.Branch, error) {
	rows, err := s.db.Query(
		"SELECT id, name, timestamp FROM branches ORDER BY timestamp DESC, name")
	if err != nil {
		return nil, fmt.Errorf("listing branches: %w", err)
	}
	defer rows.Close()

	var branches []garden.Branch
	for rows.Next() {
		var b garden.Branch
		if err := rows.Scan(&b.ID, &b.Name, &b.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning branch: %w", err)
		}
		branches = append(branches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing branches: %w", err)
	}
	return branches, nil
}

// InsertCommit records a new commit. The patch is serialized to JSON and
// gzipped before storage.
func (s *SQLiteStore) InsertCommit(c garden.Commit) error {
	data, err := patch.Marshal(c.Content)
	if err != nil {
		return err
	}
	content, err := pack.Compress(data)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(
		"INSERT INTO commits (id, branch, timestamp, author, message, content) VALUES (?, ?, ?, ?, ?, ?)",
		c.ID, c.Branch, c.Timestamp, c.Author, c.Message, content,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("commit %s: %w", c.ID, garden.ErrMustBeUnique)
		}
		return fmt.Errorf("inserting commit: %w", err)
	}
	return nil
}

// Commit returns a commit by id.
func (s *SQLiteStore) Commit(id string) (garden.Commit, error) {
	return s.scanCommit(s.db.QueryRow(
		"SELECT id, branch, timestamp, author, message, content FROM commits WHERE id = ?", id))
}

// LatestCommit returns the newest commit on the named branch. Timestamps have
// millisecond resolution, so ties are broken by insertion order to keep the
// diff base deterministic.
func (s *SQLiteStore) LatestCommit(branch string) (garden.Commit, error) {
	return s.scanCommit(s.db.QueryRow(
		"SELECT id, branch, timestamp, author, message, content FROM commits WHERE branch = ? ORDER BY timestamp DESC, rowid DESC LIMIT 1",
		branch))
}

func (s *SQLiteStore) scanCommit(row *sql.Row) (garden.Commit, error) {
	var c garden.Commit
	var content []byte
	err := row.Scan(&c.ID, &c.Branch, &c.Timestamp, &c.Author, &c.Message, &content)
	if errors.Is(err, sql.ErrNoRows) {
		return garden.Commit{}, fmt.Errorf("commit: %w", garden.ErrNotFound)
	}
	if err != nil {
		return garden.Commit{}, fmt.Errorf("scanning commit: %w", err)
	}

	c.Content, err = decodeContent(content)
	if err != nil {
		return garden.Commit{}, fmt.Errorf("commit %s: %s: %w", c.ID, err, garden.ErrValue)
	}
	return c, nil
}

// Commits returns all commits on the named branch, newest first.
func (s *SQLiteStore) Commits(branch string) ([]garden.Commit, error) {
	rows, err := s.db.Query(
		"SELECT id, branch, timestamp, author, message, content FROM commits WHERE branch = ? ORDER BY timestamp DESC, rowid DESC",
		branch)
	if err != nil {
		return nil, fmt.Errorf("listing commits: %w", err)
	}
	defer rows.Close()

	var commits []garden.Commit
	for rows.Next() {
		var c garden.Commit
		var content []byte
		if err := rows.Scan(&c.ID, &c.Branch, &c.Timestamp, &c.Author, &c.Message, &content); err != nil {
			return nil, fmt.Errorf("scanning commit: %w", err)
		}
		c.Content, err = decodeContent(content)
		if err != nil {
			return nil, fmt.Errorf("commit %s: %s: %w", c.ID, err, garden.ErrValue)
		}
		commits = append(commits, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing commits: %w", err)
	}
	return commits, nil
}

func decodeContent(content []byte) (patch.Patch, error) {
	data, err := pack.Decompress(content)
	if err != nil {
		return patch.Patch{}, err
	}
	return patch.Unmarshal(data)
}

// isUniqueViolation reports whether err is a SQLite unique-constraint error.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
