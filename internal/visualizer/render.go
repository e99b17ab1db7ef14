package visualizer

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/olivier-w/notegrid/internal/notes"
)

const (
	minInnerWidth  = 3
	minInnerHeight = 1
)

var (
	background  = colorRGB{R: 0, G: 0, B: 0}
	outlineIdle = colorRGB{R: 88, G: 88, B: 88}
	densityRamp = []rune(" .:-=+*#%@")
)

// Render draws the grid as a width×height block of text: four columns and
// three rows of outlined cells, each labeled with its note and filled with
// its markers.
func (g *Grid) Render(width, height int) string {
	iw := width/Columns - 2
	ih := height/Rows - 2
	if iw < minInnerWidth {
		iw = minInnerWidth
	}
	if ih < minInnerHeight {
		ih = minInnerHeight
	}

	rows := make([]string, Rows)
	for r := range Rows {
		cols := make([]string, Columns)
		for c := range Columns {
			n := notes.Note(r*Columns + c)
			outline := lerpColor(outlineIdle, parseHex(n.Color()), g.Glow(n))
			style := lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color(outline.hex())).
				Width(iw).
				Height(ih)
			cols[c] = style.Render(g.paintCell(n, iw, ih))
		}
		rows[r] = lipgloss.JoinHorizontal(lipgloss.Top, cols...)
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

type pixel struct {
	ch    rune
	color colorRGB
	lit   bool
}

// paintCell rasterizes n's markers onto a w×h character canvas. The cell is
// the unit square with its markers centered at (0.5, 0.5); later markers
// are composited over earlier ones.
func (g *Grid) paintCell(n notes.Note, w, h int) string {
	markers := g.cells[n].markers
	tint := parseHex(n.Color())
	profile := currentColorProfile()
	halfW := 0.5 / float64(w)
	halfH := 0.5 / float64(h)

	canvas := make([][]pixel, h)
	for y := range h {
		canvas[y] = make([]pixel, w)
		for x := range w {
			dx := math.Abs((float64(x)+0.5)/float64(w) - 0.5)
			dy := math.Abs((float64(y)+0.5)/float64(h) - 0.5)
			center := math.Hypot(dx, dy)
			edge := math.Hypot(math.Max(dx-halfW, 0), math.Max(dy-halfH, 0))

			c := background
			alpha := 0.0
			solid := false
			for _, m := range markers {
				if edge > m.Radius {
					continue
				}
				c = lerpColor(c, tint, m.Opacity)
				alpha += (1 - alpha) * clamp01(m.Opacity)
				if center <= m.Radius {
					solid = true
				}
			}
			if alpha == 0 {
				canvas[y][x] = pixel{ch: ' '}
				continue
			}

			ch := '░'
			if solid {
				ch = '█'
			}
			if profile == termenv.Ascii {
				idx := int(alpha * float64(len(densityRamp)-1))
				if idx < 1 {
					idx = 1
				}
				ch = densityRamp[idx]
			}
			canvas[y][x] = pixel{ch: ch, color: c, lit: true}
		}
	}

	for i, r := range n.String() {
		if i >= w {
			break
		}
		canvas[0][i] = pixel{ch: r, color: tint, lit: true}
	}

	lines := make([]string, h)
	for y := range h {
		var sb strings.Builder
		state := newANSIState()
		for _, p := range canvas[y] {
			if p.lit {
				state.set(&sb, p.color)
			} else {
				state.reset(&sb)
			}
			sb.WriteRune(p.ch)
		}
		state.reset(&sb)
		lines[y] = sb.String()
	}
	return strings.Join(lines, "\n")
}
