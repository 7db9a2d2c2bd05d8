package vm

import "fmt"

// The default sizes of the simulated memory, in cells.
const (
	DefaultPageSize     = 8
	DefaultVirtualSize  = 1024
	DefaultPhysicalSize = 128
	DefaultAgeInterval  = 20
)

// Geometry describes the sizes of the virtual address space and the physical
// memory. Both the manager and the clients derive their array bounds from it.
type Geometry struct {
	PageSize     int
	VirtualSize  int
	PhysicalSize int
}

// DefaultGeometry returns the geometry of the classic 1024-cell address space
// backed by 128 cells of physical memory.
func DefaultGeometry() Geometry {
	return Geometry{
		PageSize:     DefaultPageSize,
		VirtualSize:  DefaultVirtualSize,
		PhysicalSize: DefaultPhysicalSize,
	}
}

// NumPages returns the number of virtual pages.
func (g Geometry) NumPages() int {
	return g.VirtualSize / g.PageSize
}

// NumFrames returns the number of frames.
func (g Geometry) NumFrames() int {
	return g.PhysicalSize / g.PageSize
}

// Validate checks that the page size is one of 8, 16, 32 and 64 and that both
// memory sizes hold a whole number of pages.
func (g Geometry) Validate() error {
	switch g.PageSize {
	case 8, 16, 32, 64:
	default:
		return fmt.Errorf("page size %d is not one of 8, 16, 32, 64",
			g.PageSize)
	}

	if g.VirtualSize <= 0 || g.VirtualSize%g.PageSize != 0 {
		return fmt.Errorf("virtual size %d is not a multiple of page size %d",
			g.VirtualSize, g.PageSize)
	}

	if g.PhysicalSize <= 0 || g.PhysicalSize%g.PageSize != 0 {
		return fmt.Errorf("physical size %d is not a multiple of page size %d",
			g.PhysicalSize, g.PageSize)
	}

	if g.PhysicalSize > g.VirtualSize {
		return fmt.Errorf("physical size %d exceeds virtual size %d",
			g.PhysicalSize, g.VirtualSize)
	}

	return nil
}

// Split returns the page and the in-page offset of an address.
func (g Geometry) Split(address int) (page, offset int) {
	return address / g.PageSize, address % g.PageSize
}
