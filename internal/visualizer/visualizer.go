// Package visualizer holds the per-note marker state of the note grid and
// draws it as text. A Grid is owned by a single goroutine.
package visualizer

import "github.com/olivier-w/notegrid/internal/notes"

const (
	// Columns and Rows give the cell layout: C..D# on top, G#..B at the bottom.
	Columns = 4
	Rows    = 3
)

// Marker is a fading dot centered in its note's cell. Radius is in cell
// units, so 0.5 touches the cell edges.
type Marker struct {
	Radius  float64
	Opacity float64
}

type cell struct {
	markers []Marker
}

// Grid is the set of twelve note cells and their live markers.
type Grid struct {
	cells [notes.Count]cell
	glow  springField
}

// NewGrid creates an empty grid whose cell highlights animate at fps.
func NewGrid(fps int) *Grid {
	if fps < 1 {
		fps = 1
	}
	g := &Grid{glow: newSpringField(fps, 6.0, 1.0)}
	g.glow.resize(notes.Count)
	return g
}

// Spawn adds a marker to n's cell and lights up the cell outline.
func (g *Grid) Spawn(n notes.Note, radius, opacity float64) {
	if !n.Valid() {
		return
	}
	c := &g.cells[n]
	c.markers = append(c.markers, Marker{Radius: radius, Opacity: opacity})
	g.glow.kick(int(n), 1)
}

// Decay shrinks and fades every marker by factor and removes those whose
// opacity has reached threshold. It returns how many markers were removed.
func (g *Grid) Decay(factor, threshold float64) int {
	removed := 0
	for i := range g.cells {
		c := &g.cells[i]
		kept := c.markers[:0]
		for _, m := range c.markers {
			m.Radius *= factor
			m.Opacity *= factor
			if m.Opacity > threshold {
				kept = append(kept, m)
			} else {
				removed++
			}
		}
		clear(c.markers[len(kept):])
		c.markers = kept
		g.glow.step(i, 0)
	}
	return removed
}

// Clear removes every marker.
func (g *Grid) Clear() {
	for i := range g.cells {
		g.cells[i].markers = nil
	}
	g.glow.reset()
}

// markers returns a copy of n's live markers, oldest first.
func (g *Grid) markers(n notes.Note) []Marker {
	if !n.Valid() {
		return nil
	}
	src := g.cells[n].markers
	out := make([]Marker, len(src))
	copy(out, src)
	return out
}

// Count returns the number of live markers in n's cell.
func (g *Grid) Count(n notes.Note) int {
	if !n.Valid() {
		return 0
	}
	return len(g.cells[n].markers)
}

// Len returns the total number of live markers.
func (g *Grid) Len() int {
	total := 0
	for i := range g.cells {
		total += len(g.cells[i].markers)
	}
	return total
}

// Glow returns n's current outline highlight in [0, 1].
func (g *Grid) Glow(n notes.Note) float64 {
	if !n.Valid() {
		return 0
	}
	return clamp01(g.glow.pos[n])
}

// Position returns the column and row of n's cell.
func Position(n notes.Note) (col, row int) {
	return int(n) % Columns, int(n) / Columns
}
