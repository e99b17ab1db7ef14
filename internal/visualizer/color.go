package visualizer

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

type colorRGB struct {
	R uint8
	G uint8
	B uint8
}

var seqCache sync.Map

// currentColorProfile is the output profile lipgloss detected for stdout.
// termenv.Ascii means color is off.
func currentColorProfile() termenv.Profile {
	return lipgloss.ColorProfile()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func lerpColor(a, b colorRGB, t float64) colorRGB {
	t = clamp01(t)
	return colorRGB{
		R: uint8(float64(a.R) + (float64(b.R)-float64(a.R))*t),
		G: uint8(float64(a.G) + (float64(b.G)-float64(a.G))*t),
		B: uint8(float64(a.B) + (float64(b.B)-float64(a.B))*t),
	}
}

// parseHex decodes a #rrggbb string. Malformed input yields white.
func parseHex(s string) colorRGB {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return colorRGB{R: 255, G: 255, B: 255}
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return colorRGB{R: 255, G: 255, B: 255}
	}
	return colorRGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}
}

func (c colorRGB) hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

type ansiState struct {
	profile termenv.Profile
	current uint32
}

func newANSIState() ansiState {
	return ansiState{profile: currentColorProfile(), current: ^uint32(0)}
}

func (s *ansiState) set(sb *strings.Builder, c colorRGB) {
	if s.profile == termenv.Ascii {
		return
	}
	key := uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
	if key == s.current {
		return
	}
	sb.WriteString(colorSequence(s.profile, c))
	s.current = key
}

func (s *ansiState) reset(sb *strings.Builder) {
	if s.profile == termenv.Ascii || s.current == ^uint32(0) {
		return
	}
	sb.WriteString(termenv.CSI + termenv.ResetSeq + "m")
	s.current = ^uint32(0)
}

// colorSequence returns the SGR foreground sequence for c, degraded to
// profile. Sequences are cached per profile and color.
func colorSequence(profile termenv.Profile, c colorRGB) string {
	key := uint32(profile)<<24 | uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
	if seq, ok := seqCache.Load(key); ok {
		return seq.(string)
	}

	seq := profile.Color(c.hex()).Sequence(false)
	if seq != "" {
		seq = termenv.CSI + seq + "m"
	}
	seqCache.Store(key, seq)
	return seq
}
