package pagefile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
)

// A FileStore keeps the pages in a flat file, one page after the other, each
// cell as a little-endian 32-bit integer.
type FileStore struct {
	lock   sync.Mutex
	layout Layout
	path   string
	file   *os.File
}

// OpenFileStore opens the page file at path. A missing file is created and
// filled with pseudo-random cells derived from seed. An existing file must
// have exactly the size of the layout.
func OpenFileStore(path string, l Layout, seed int64) (*FileStore, error) {
	s := &FileStore{layout: l, path: path}

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		err = s.create(func(store pageWriter) error {
			return initialPages(l, seed, store)
		})
	case err != nil:
		return nil, fmt.Errorf("pagefile: %w", err)
	default:
		err = s.open(info.Size())
	}

	if err != nil {
		return nil, err
	}

	return s, nil
}

type pageWriter func(page int, data []int32) error

// create writes a new page file with fill. A file that could not be filled
// completely is removed, so that the next open creates it again.
func (s *FileStore) create(fill func(store pageWriter) error) error {
	file, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("pagefile: %w", err)
	}

	s.file = file

	err = fill(s.Store)
	if err != nil {
		_ = file.Close()
		_ = os.Remove(s.path)
		s.file = nil

		return err
	}

	return nil
}

func (s *FileStore) open(size int64) error {
	want := int64(s.layout.NumPages * s.layout.pageBytes())
	if size != want {
		return fmt.Errorf("pagefile: %s has %d bytes, want %d",
			s.path, size, want)
	}

	file, err := os.OpenFile(s.path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("pagefile: %w", err)
	}

	s.file = file

	return nil
}

// Path returns the path of the page file.
func (s *FileStore) Path() string {
	return s.path
}

// Fetch reads one page from the file.
func (s *FileStore) Fetch(page int) ([]int32, error) {
	if err := s.layout.checkPage(page); err != nil {
		return nil, err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	buf := make([]byte, s.layout.pageBytes())
	_, err := s.file.ReadAt(buf, int64(page*s.layout.pageBytes()))
	if err != nil {
		return nil, fmt.Errorf("pagefile: fetch page %d: %w", page, err)
	}

	return decodePage(buf), nil
}

// Store writes one page to the file.
func (s *FileStore) Store(page int, data []int32) error {
	if err := s.layout.checkPage(page); err != nil {
		return err
	}

	if err := s.layout.checkData(data); err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	_, err := s.file.WriteAt(encodePage(data), int64(page*s.layout.pageBytes()))
	if err != nil {
		return fmt.Errorf("pagefile: store page %d: %w", page, err)
	}

	return nil
}

// Close syncs and closes the file.
func (s *FileStore) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.file.Sync(); err != nil {
		_ = s.file.Close()
		return err
	}

	return s.file.Close()
}
