package wave

import (
	"fmt"

	"go.uber.org/zap"
)

// LevelSequence is the ordered list of level runs found in a capture.
// It is built once by ExtractLevels and only read afterwards, so it can be
// shared between goroutines.
type LevelSequence struct {
	entries     []LevelEntry
	sampleCount int
}

// NewLevelSequence wraps entries that are already start-ordered, e.g. ones read back from disk
func NewLevelSequence(entries []LevelEntry, sampleCount int) *LevelSequence {
	return &LevelSequence{entries: append([]LevelEntry(nil), entries...), sampleCount: sampleCount}
}

// Len returns the number of runs
func (s *LevelSequence) Len() int { return len(s.entries) }

// At returns run i
func (s *LevelSequence) At(i int) LevelEntry { return s.entries[i] }

// SampleCount is the number of samples the sequence was extracted from
func (s *LevelSequence) SampleCount() int { return s.sampleCount }

// Entries returns a copy of the runs
func (s *LevelSequence) Entries() []LevelEntry {
	return append([]LevelEntry(nil), s.entries...)
}

// ExtractLevels walks the samples and records every run of constant level.
// A final run with no following edge is not emitted.
func (w *Wave) ExtractLevels() (*LevelSequence, error) {
	count := w.SampleCount()
	period, perr := w.SamplePeriod()
	debug := w.logger.Core().Enabled(zap.DebugLevel)

	var entries []LevelEntry
	pos := 0
	for pos < count {
		lvl, err := w.LevelAt(pos)
		if err != nil {
			return nil, fmt.Errorf("extract levels: %w", err)
		}
		start := Point{Position: pos, Level: lvl}

		edge, ok := w.nextEdge(pos, lvl, count)
		if !ok {
			w.logger.Debug("dropping unterminated run", zap.Stringer("start", start), zap.Int("samples", count-pos))
			break
		}

		entry := LevelEntry{Start: start, Period: edge - pos}
		if debug {
			fields := []zap.Field{zap.Stringer("start", start), zap.Int("periods", entry.Period)}
			if perr == nil {
				fields = append(fields, zap.String("duration", FormatTime(period*float64(entry.Period))))
			}
			w.logger.Debug("level", fields...)
		}
		entries = append(entries, entry)
		pos = edge
	}

	w.logger.Info("levels extracted", zap.Int("count", len(entries)))
	return &LevelSequence{entries: entries, sampleCount: count}, nil
}

// nextEdge finds the first sample after pos that crosses the opposite threshold
func (w *Wave) nextEdge(pos int, current Level, count int) (int, bool) {
	t := w.thresholds
	for i := pos + 1; i < count; i++ {
		v := w.Samples[i]
		if current == High && v < t.Low {
			return i, true
		}
		if current == Low && v > t.High {
			return i, true
		}
	}
	return 0, false
}

// FindPulse returns the first run starting at or after start with the given
// level and a period inside width.
//
// With an empty complain message the search is lenient and reports a miss as
// ok == false. Otherwise a miss is an error carrying the message and wrapping
// ErrPulseNotFound.
func (s *LevelSequence) FindPulse(start Start, level Level, width Width, complain string) (LevelEntry, bool, error) {
	pos, err := start.Position()
	if err != nil {
		return LevelEntry{}, false, err
	}
	if pos < 0 || pos > s.sampleCount {
		return LevelEntry{}, false, fmt.Errorf("%w: search start %d not in [0, %d]", ErrPositionOutOfRange, pos, s.sampleCount)
	}

	for _, e := range s.entries {
		if e.Start.Position >= pos && e.Start.Level == level && width.Contains(e.Period) {
			return e, true, nil
		}
	}

	if complain != "" {
		return LevelEntry{}, false, fmt.Errorf("didn't find pulse: %s: %w", complain, ErrPulseNotFound)
	}
	return LevelEntry{}, false, nil
}

// Periods tallies run periods for one level
func (s *LevelSequence) Periods(level Level) map[int]int {
	tally := make(map[int]int)
	for _, e := range s.entries {
		if e.Start.Level == level {
			tally[e.Period]++
		}
	}
	return tally
}
