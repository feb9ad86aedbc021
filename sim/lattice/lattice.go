// Package lattice provides a fixed-size two-dimensional grid with a fixed
// neighbor order.
package lattice

import "fmt"

// Boundary selects what happens at the edge of the grid.
type Boundary int

const (
	// Bounded grids have no cells outside their dimensions.
	Bounded Boundary = iota
	// Periodic grids wrap around in both directions (a torus).
	Periodic
)

func (b Boundary) String() string {
	switch b {
	case Bounded:
		return "bounded"
	case Periodic:
		return "periodic"
	default:
		return fmt.Sprintf("Boundary(%d)", int(b))
	}
}

// ParseBoundary converts "bounded" or "periodic" to a Boundary.
func ParseBoundary(s string) (Boundary, error) {
	switch s {
	case "bounded":
		return Bounded, nil
	case "periodic", "":
		return Periodic, nil
	default:
		return 0, fmt.Errorf("unknown boundary %q (want bounded or periodic)", s)
	}
}

// Neighborhood selects which cells count as neighbors.
type Neighborhood int

const (
	// VonNeumann is the 4 orthogonal neighbors.
	VonNeumann Neighborhood = iota
	// Moore is the 8 orthogonal and diagonal neighbors.
	Moore
)

func (n Neighborhood) String() string {
	switch n {
	case VonNeumann:
		return "vonneumann"
	case Moore:
		return "moore"
	default:
		return fmt.Sprintf("Neighborhood(%d)", int(n))
	}
}

// ParseNeighborhood converts "vonneumann" or "moore" to a Neighborhood.
func ParseNeighborhood(s string) (Neighborhood, error) {
	switch s {
	case "vonneumann", "von-neumann":
		return VonNeumann, nil
	case "moore", "":
		return Moore, nil
	default:
		return 0, fmt.Errorf("unknown neighborhood %q (want vonneumann or moore)", s)
	}
}

// Size returns the number of neighbors of an interior cell.
func (n Neighborhood) Size() int {
	if n == Moore {
		return len(mooreOffsets)
	}
	return len(vonNeumannOffsets)
}

type offset struct{ dr, dc int }

var (
	vonNeumannOffsets = []offset{{0, 1}, {1, 0}, {0, -1}, {-1, 0}}
	mooreOffsets      = []offset{{1, 1}, {1, 0}, {1, -1}, {0, -1}, {-1, -1}, {-1, 0}, {-1, 1}, {0, 1}}
)

// Lattice is a rows x cols grid of T.
type Lattice[T any] struct {
	rows, cols   int
	boundary     Boundary
	neighborhood Neighborhood
	cells        []T
}

// New creates a lattice with every cell set to the zero value of T.
func New[T any](rows, cols int, boundary Boundary, neighborhood Neighborhood) (*Lattice[T], error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("lattice dimensions must be positive, got %dx%d", rows, cols)
	}
	if boundary != Bounded && boundary != Periodic {
		return nil, fmt.Errorf("unknown boundary %v", boundary)
	}
	if neighborhood != VonNeumann && neighborhood != Moore {
		return nil, fmt.Errorf("unknown neighborhood %v", neighborhood)
	}
	return &Lattice[T]{
		rows:         rows,
		cols:         cols,
		boundary:     boundary,
		neighborhood: neighborhood,
		cells:        make([]T, rows*cols),
	}, nil
}

func (l *Lattice[T]) Rows() int                  { return l.rows }
func (l *Lattice[T]) Cols() int                  { return l.cols }
func (l *Lattice[T]) Boundary() Boundary         { return l.boundary }
func (l *Lattice[T]) Neighborhood() Neighborhood { return l.neighborhood }

// Get returns the cell at (row, col). Periodic lattices wrap any coordinate;
// bounded lattices return (zero, false) outside their dimensions.
func (l *Lattice[T]) Get(row, col int) (T, bool) {
	i, ok := l.index(row, col)
	if !ok {
		var zero T
		return zero, false
	}
	return l.cells[i], true
}

// Put stores v at (row, col), wrapping on periodic lattices. It reports
// whether the coordinate was inside the lattice.
func (l *Lattice[T]) Put(row, col int, v T) bool {
	i, ok := l.index(row, col)
	if !ok {
		return false
	}
	l.cells[i] = v
	return true
}

// Neighbors returns the neighbors of (row, col) in the fixed order of the
// lattice's neighborhood. The slice always has Neighborhood().Size()
// entries; cells outside a bounded lattice are zero values.
func (l *Lattice[T]) Neighbors(row, col int) []T {
	offsets := l.offsets()
	out := make([]T, len(offsets))
	for i, o := range offsets {
		out[i], _ = l.Get(row+o.dr, col+o.dc)
	}
	return out
}

// NeighborCoords is like Neighbors but returns coordinates. ok[i] is false
// for positions outside a bounded lattice.
func (l *Lattice[T]) NeighborCoords(row, col int) (coords [][2]int, ok []bool) {
	offsets := l.offsets()
	coords = make([][2]int, len(offsets))
	ok = make([]bool, len(offsets))
	for i, o := range offsets {
		r, c := row+o.dr, col+o.dc
		if l.boundary == Periodic {
			r, c = mod(r, l.rows), mod(c, l.cols)
		}
		coords[i] = [2]int{r, c}
		ok[i] = r >= 0 && r < l.rows && c >= 0 && c < l.cols
	}
	return coords, ok
}

// Each calls fn for every cell in row-major order.
func (l *Lattice[T]) Each(fn func(row, col int, v T)) {
	for r := 0; r < l.rows; r++ {
		for c := 0; c < l.cols; c++ {
			fn(r, c, l.cells[r*l.cols+c])
		}
	}
}

func (l *Lattice[T]) offsets() []offset {
	if l.neighborhood == Moore {
		return mooreOffsets
	}
	return vonNeumannOffsets
}

func (l *Lattice[T]) index(row, col int) (int, bool) {
	if l.boundary == Periodic {
		row, col = mod(row, l.rows), mod(col, l.cols)
	} else if row < 0 || row >= l.rows || col < 0 || col >= l.cols {
		return 0, false
	}
	return row*l.cols + col, true
}

// mod is the non-negative remainder of a divided by n.
func mod(a, n int) int {
	m := a % n
	if m < 0 {
		m += n
	}
	return m
}
