package pagefile

import "sync"

// A MemoryStore keeps the pages in memory. It is handy for tests and for
// runs that do not need the pages to outlive the process.
type MemoryStore struct {
	lock   sync.Mutex
	layout Layout
	pages  [][]int32

	numFetches int
	numStores  int
}

// NewMemoryStore creates a MemoryStore filled with pseudo-random cells
// derived from seed.
func NewMemoryStore(l Layout, seed int64) *MemoryStore {
	s := &MemoryStore{
		layout: l,
		pages:  make([][]int32, l.NumPages),
	}

	_ = initialPages(l, seed, func(page int, data []int32) error {
		s.pages[page] = append([]int32(nil), data...)
		return nil
	})

	return s
}

// Fetch returns a copy of the page.
func (s *MemoryStore) Fetch(page int) ([]int32, error) {
	if err := s.layout.checkPage(page); err != nil {
		return nil, err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	s.numFetches++

	return append([]int32(nil), s.pages[page]...), nil
}

// Store replaces the page with a copy of data.
func (s *MemoryStore) Store(page int, data []int32) error {
	if err := s.layout.checkPage(page); err != nil {
		return err
	}

	if err := s.layout.checkData(data); err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	s.numStores++
	s.pages[page] = append([]int32(nil), data...)

	return nil
}

// NumFetches returns how many pages have been fetched.
func (s *MemoryStore) NumFetches() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.numFetches
}

// NumStores returns how many pages have been stored.
func (s *MemoryStore) NumStores() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.numStores
}
