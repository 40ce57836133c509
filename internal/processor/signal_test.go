package processor

import (
	"testing"

	"oscwave/internal/wave"

	"github.com/stretchr/testify/require"
)

const (
	lowVolts  = 0.0
	highVolts = 5.0
	bitWidth  = 40
)

// signal builds synthetic captures with HIGH start bits and HIGH ones
type signal struct {
	samples []float64
}

func (s *signal) level(l wave.Level, n int) *signal {
	v := lowVolts
	if l == wave.High {
		v = highVolts
	}
	for i := 0; i < n; i++ {
		s.samples = append(s.samples, v)
	}
	return s
}

func (s *signal) low(n int) *signal  { return s.level(wave.Low, n) }
func (s *signal) high(n int) *signal { return s.level(wave.High, n) }

// char appends a start bit, eight data bits LSB first and LOW padding up to length samples
func (s *signal) char(b byte, length int) *signal {
	s.high(bitWidth)
	for i := 0; i < 8; i++ {
		if b&(1<<i) != 0 {
			s.high(bitWidth)
		} else {
			s.low(bitWidth)
		}
	}
	return s.low(length - 9*bitWidth)
}

func (s *signal) pos() int { return len(s.samples) }

func (s *signal) wave(t *testing.T) (*wave.Wave, *wave.LevelSequence) {
	t.Helper()
	w, err := wave.New(wave.Header{SamplingRate: "400kSa/s"}, s.samples, nil)
	require.NoError(t, err)
	seq, err := w.ExtractLevels()
	require.NoError(t, err)
	return w, seq
}

// levelsAt serves fixed bit levels, each bitWidth samples wide
type levelsAt []wave.Level

func (l levelsAt) LevelAt(pos int) (wave.Level, error) {
	i := pos / bitWidth
	if pos < 0 || i >= len(l) {
		return wave.Low, wave.ErrPositionOutOfRange
	}
	return l[i], nil
}
