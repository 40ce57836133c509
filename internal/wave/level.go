package wave

import (
	"fmt"
	"math"
)

// Level is the digital level of a run of samples
type Level int

const (
	Low  Level = iota // sample below the low threshold
	High              // sample above the high threshold
)

// Invert returns the opposite level
func (l Level) Invert() Level {
	if l == High {
		return Low
	}
	return High
}

// Int returns 0 for Low and 1 for High
func (l Level) Int() int {
	if l == High {
		return 1
	}
	return 0
}

func (l Level) String() string {
	if l == High {
		return "high"
	}
	return "low"
}

// Letter returns the single-letter form used in bit strings
func (l Level) Letter() string {
	if l == High {
		return "H"
	}
	return "L"
}

// MarshalText encodes the level as "low" or "high"
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// ParseLevel converts "low"/"high" (or "L"/"H", "0"/"1") to a Level
func ParseLevel(s string) (Level, error) {
	switch s {
	case "low", "L", "l", "0":
		return Low, nil
	case "high", "H", "h", "1":
		return High, nil
	}
	return Low, fmt.Errorf("invalid level %q", s)
}

// Point is a sample position paired with the level found there
type Point struct {
	Position int   `json:"position"`
	Level    Level `json:"level"`
}

// Sub returns the signed number of samples between two points
func (p Point) Sub(other Point) int {
	return p.Position - other.Position
}

// Add returns the point period samples later, where a pulse starting at p would end.
// The returned level is the opposite of p's level.
func (p Point) Add(period int) Point {
	return Point{Position: p.Position + period, Level: p.Level.Invert()}
}

// Compare orders points by position only
func (p Point) Compare(other Point) int {
	switch {
	case p.Position < other.Position:
		return -1
	case p.Position > other.Position:
		return 1
	}
	return 0
}

func (p Point) String() string {
	return fmt.Sprintf("%s@%d", p.Level, p.Position)
}

// LevelEntry is a run of constant level starting at Start and lasting Period samples
type LevelEntry struct {
	Start  Point `json:"start"`
	Period int   `json:"period"`
}

// End is the point where the run flips to the opposite level
func (e LevelEntry) End() Point {
	return e.Start.Add(e.Period)
}

// Position is the start position of the run
func (e LevelEntry) Position() int {
	return e.Start.Position
}

// Level is the level of the run
func (e LevelEntry) Level() Level {
	return e.Start.Level
}

// Sub returns the number of samples between the starts of two runs
func (e LevelEntry) Sub(other LevelEntry) int {
	return e.Start.Sub(other.Start)
}

func (e LevelEntry) String() string {
	return fmt.Sprintf("%s(%d)", e.Start, e.Period)
}

type startKind int

const (
	startInvalid startKind = iota
	startPosition
	startPoint
	startEntry
)

// Start is the origin of a pulse search. It holds exactly one of a raw position,
// a Point or a LevelEntry; the zero value holds none and is rejected by FindPulse.
type Start struct {
	kind  startKind
	pos   int
	point Point
	entry LevelEntry
}

// At starts a search at a raw sample position
func At(pos int) Start {
	return Start{kind: startPosition, pos: pos}
}

// AtOffset starts a search at a fractional position; runs starting at or after
// x are the runs starting at or after ceil(x).
func AtOffset(x float64) Start {
	return At(int(math.Ceil(x)))
}

// FromPoint starts a search at a point's position
func FromPoint(p Point) Start {
	return Start{kind: startPoint, point: p}
}

// FromEntry starts a search at the start of a level entry
func FromEntry(e LevelEntry) Start {
	return Start{kind: startEntry, entry: e}
}

// Position normalizes the search origin to a sample position
func (s Start) Position() (int, error) {
	switch s.kind {
	case startPosition:
		return s.pos, nil
	case startPoint:
		return s.point.Position, nil
	case startEntry:
		return s.entry.Start.Position, nil
	}
	return 0, ErrInvalidStartType
}

// Width is an inclusive pulse width range in sample periods
type Width struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether period lies within the range
func (w Width) Contains(period int) bool {
	p := float64(period)
	return p >= w.Min && p <= w.Max
}

func (w Width) String() string {
	return fmt.Sprintf("%g..%g", w.Min, w.Max)
}
