// Package vmappl is a test application for the simulated memory. It fills
// an array in virtual memory with random values, sorts it in place and
// checks the result.
package vmappl

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
)

// ErrNotSorted is returned when the array is not in ascending order after
// sorting.
var ErrNotSorted = errors.New("vmappl: array is not sorted")

// Memory is the view of the simulated memory the application works on.
type Memory interface {
	Size() int
	Read(ctx context.Context, address int) (int32, error)
	Write(ctx context.Context, address int, value int32) error
}

// A ProgressReporter is told whenever cells have been filled or verified.
type ProgressReporter interface {
	IncrementFinished(amount uint64)
}

type noProgress struct{}

func (noProgress) IncrementFinished(uint64) {}

// MaxValue bounds the values the array is filled with.
const MaxValue = 1000

// SortAlgorithm selects how the array is sorted.
type SortAlgorithm int

// The supported sort algorithms.
const (
	QuickSort SortAlgorithm = iota
	BubbleSort
)

func (a SortAlgorithm) String() string {
	switch a {
	case QuickSort:
		return "quicksort"
	case BubbleSort:
		return "bubblesort"
	default:
		return "unknown"
	}
}

// App runs the fill, sort and verify phases on a memory.
type App struct {
	mem      Memory
	length   int
	seed     int64
	sort     SortAlgorithm
	progress ProgressReporter
}

// A Builder can build applications.
type Builder struct {
	length   int
	seed     int64
	sort     SortAlgorithm
	progress ProgressReporter
}

// MakeBuilder creates a builder that sorts the whole memory with quicksort.
func MakeBuilder() Builder {
	return Builder{seed: 1, progress: noProgress{}}
}

// WithLength sets the number of cells to sort. Zero means the whole memory.
func (b Builder) WithLength(n int) Builder {
	b.length = n
	return b
}

// WithSeed sets the seed of the random values.
func (b Builder) WithSeed(seed int64) Builder {
	b.seed = seed
	return b
}

// WithSortAlgorithm sets the sort algorithm.
func (b Builder) WithSortAlgorithm(a SortAlgorithm) Builder {
	b.sort = a
	return b
}

// WithProgressReporter sets who is told about filled and verified cells.
// Every run reports twice the array length.
func (b Builder) WithProgressReporter(p ProgressReporter) Builder {
	b.progress = p
	return b
}

// Build creates an application on the memory.
func (b Builder) Build(mem Memory) *App {
	length := b.length
	if length == 0 {
		length = mem.Size()
	}

	if length < 0 || length > mem.Size() {
		log.Panicf("array length %d does not fit into %d cells",
			length, mem.Size())
	}

	return &App{
		mem:      mem,
		length:   length,
		seed:     b.seed,
		sort:     b.sort,
		progress: b.progress,
	}
}

// Length returns the number of cells in the array.
func (a *App) Length() int {
	return a.length
}

// Run fills, sorts and verifies the array.
func (a *App) Run(ctx context.Context) error {
	if err := a.Fill(ctx); err != nil {
		return fmt.Errorf("vmappl: fill: %w", err)
	}

	if err := a.Sort(ctx); err != nil {
		return fmt.Errorf("vmappl: %s: %w", a.sort, err)
	}

	return a.Verify(ctx)
}

// Fill writes pseudo-random values derived from the seed.
func (a *App) Fill(ctx context.Context) error {
	rng := rand.New(rand.NewSource(a.seed))

	for i := 0; i < a.length; i++ {
		err := a.mem.Write(ctx, i, rng.Int31n(MaxValue))
		if err != nil {
			return err
		}

		a.progress.IncrementFinished(1)
	}

	return nil
}

// Sort sorts the array in place.
func (a *App) Sort(ctx context.Context) error {
	switch a.sort {
	case QuickSort:
		return a.quickSort(ctx, 0, a.length-1)
	case BubbleSort:
		return a.bubbleSort(ctx)
	default:
		log.Panicf("unknown sort algorithm %d", a.sort)
	}

	return nil
}

// Verify checks that the array is in ascending order.
func (a *App) Verify(ctx context.Context) error {
	if a.length == 0 {
		return nil
	}

	prev, err := a.mem.Read(ctx, 0)
	if err != nil {
		return err
	}

	a.progress.IncrementFinished(1)

	for i := 1; i < a.length; i++ {
		v, err := a.mem.Read(ctx, i)
		if err != nil {
			return err
		}

		if v < prev {
			return fmt.Errorf("%w: cell %d holds %d after %d",
				ErrNotSorted, i, v, prev)
		}

		a.progress.IncrementFinished(1)
		prev = v
	}

	return nil
}

func (a *App) swap(ctx context.Context, i, j int) error {
	vi, err := a.mem.Read(ctx, i)
	if err != nil {
		return err
	}

	vj, err := a.mem.Read(ctx, j)
	if err != nil {
		return err
	}

	if err := a.mem.Write(ctx, i, vj); err != nil {
		return err
	}

	return a.mem.Write(ctx, j, vi)
}

func (a *App) quickSort(ctx context.Context, lo, hi int) error {
	for lo < hi {
		p, err := a.partition(ctx, lo, hi)
		if err != nil {
			return err
		}

		// Recurse into the smaller half to bound the stack depth.
		if p-lo < hi-p {
			if err := a.quickSort(ctx, lo, p-1); err != nil {
				return err
			}
			lo = p + 1
		} else {
			if err := a.quickSort(ctx, p+1, hi); err != nil {
				return err
			}
			hi = p - 1
		}
	}

	return nil
}

func (a *App) partition(ctx context.Context, lo, hi int) (int, error) {
	if err := a.swap(ctx, (lo+hi)/2, hi); err != nil {
		return 0, err
	}

	pivot, err := a.mem.Read(ctx, hi)
	if err != nil {
		return 0, err
	}

	store := lo
	for i := lo; i < hi; i++ {
		v, err := a.mem.Read(ctx, i)
		if err != nil {
			return 0, err
		}

		if v >= pivot {
			continue
		}

		if err := a.swap(ctx, i, store); err != nil {
			return 0, err
		}
		store++
	}

	if err := a.swap(ctx, store, hi); err != nil {
		return 0, err
	}

	return store, nil
}

func (a *App) bubbleSort(ctx context.Context) error {
	for n := a.length; n > 1; n-- {
		swapped := false

		for i := 1; i < n; i++ {
			prev, err := a.mem.Read(ctx, i-1)
			if err != nil {
				return err
			}

			cur, err := a.mem.Read(ctx, i)
			if err != nil {
				return err
			}

			if prev <= cur {
				continue
			}

			if err := a.swap(ctx, i-1, i); err != nil {
				return err
			}
			swapped = true
		}

		if !swapped {
			return nil
		}
	}

	return nil
}
