package pagefile

import (
	"database/sql"
	"errors"
	"fmt"

	// Pages are kept in an SQLite database.
	_ "github.com/mattn/go-sqlite3"
)

// An SQLiteStore keeps every page as a blob row of an SQLite database.
type SQLiteStore struct {
	*sql.DB
	layout Layout
}

// OpenSQLiteStore opens the page database at path. The pages table is created
// and filled with pseudo-random cells derived from seed if it is empty.
func OpenSQLiteStore(path string, l Layout, seed int64) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("pagefile: %w", err)
	}

	s := &SQLiteStore{DB: db, layout: l}

	err = s.init(seed)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLiteStore) init(seed int64) error {
	_, err := s.Exec(`CREATE TABLE IF NOT EXISTS pages (
	page INTEGER PRIMARY KEY,
	data BLOB NOT NULL
);`)
	if err != nil {
		return fmt.Errorf("pagefile: create pages table: %w", err)
	}

	var count int
	err = s.QueryRow(`SELECT COUNT(*) FROM pages;`).Scan(&count)
	if err != nil {
		return fmt.Errorf("pagefile: count pages: %w", err)
	}

	switch count {
	case s.layout.NumPages:
		return nil
	case 0:
		return s.fill(seed)
	default:
		return fmt.Errorf("pagefile: database has %d pages, want %d",
			count, s.layout.NumPages)
	}
}

func (s *SQLiteStore) fill(seed int64) error {
	tx, err := s.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO pages (page, data) VALUES (?, ?);`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	err = initialPages(s.layout, seed, func(page int, data []int32) error {
		_, err := stmt.Exec(page, encodePage(data))
		return err
	})
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("pagefile: fill pages: %w", err)
	}

	return tx.Commit()
}

// Fetch reads one page from the database.
func (s *SQLiteStore) Fetch(page int) ([]int32, error) {
	if err := s.layout.checkPage(page); err != nil {
		return nil, err
	}

	var buf []byte
	err := s.QueryRow(`SELECT data FROM pages WHERE page = ?;`, page).Scan(&buf)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pagefile: page %d missing", page)
	}

	if err != nil {
		return nil, fmt.Errorf("pagefile: fetch page %d: %w", page, err)
	}

	if len(buf) != s.layout.pageBytes() {
		return nil, fmt.Errorf("%w: page %d has %d bytes", ErrPageSize,
			page, len(buf))
	}

	return decodePage(buf), nil
}

// Store writes one page to the database.
func (s *SQLiteStore) Store(page int, data []int32) error {
	if err := s.layout.checkPage(page); err != nil {
		return err
	}

	if err := s.layout.checkData(data); err != nil {
		return err
	}

	_, err := s.Exec(`INSERT OR REPLACE INTO pages (page, data) VALUES (?, ?);`,
		page, encodePage(data))
	if err != nil {
		return fmt.Errorf("pagefile: store page %d: %w", page, err)
	}

	return nil
}
