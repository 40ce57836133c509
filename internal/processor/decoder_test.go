package processor

import (
	"testing"

	"oscwave/internal/wave"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var defaultStartBit = wave.Width{Min: 37, Max: 53}

// training characters avoid isolated HIGH data bits, which would pass for a start bit
func TestExtractCharactersUntrained(t *testing.T) {
	s := &signal{}
	s.low(2000).char(0x06, 500).char(0x18, 500)
	s.low(2000).high(bitWidth).low(10)
	w, seq := s.wave(t)

	frames, err := ExtractFrames(seq, defaultGap, 0, seq.SampleCount(), nil)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, 2000, frames[0].Start)
	assert.Equal(t, 2740, frames[0].Finish)

	dec := NewDecoder(w, seq, bitWidth, nil)
	chars, err := dec.ExtractCharacters(frames[0], 4, defaultStartBit)
	require.NoError(t, err)
	require.Len(t, chars, 2)

	assert.Equal(t, byte(0x06), chars[0].Value)
	assert.Equal(t, 2000, chars[0].Start)
	assert.Equal(t, 2500, chars[0].Finish)
	assert.Equal(t, 2040.0, chars[0].Origin, "untrained search resumes at the end of the start bit")

	assert.Equal(t, byte(0x18), chars[1].Value)
	assert.Equal(t, 2500, chars[1].Start)
	assert.Equal(t, 5000, chars[1].Finish)

	assert.Equal(t, chars, frames[0].Characters)
}

func TestExtractCharactersTraining(t *testing.T) {
	values := []byte{0x06, 0x18, 0x60, 0xC0, 0x0E, 0x30}
	lengths := []int{480, 500, 520, 500, 500, 500}

	s := &signal{}
	s.low(2000)
	for i, v := range values {
		s.char(v, lengths[i])
	}
	s.low(2000).high(bitWidth).low(10)
	w, seq := s.wave(t)

	frames, err := ExtractFrames(seq, defaultGap, 0, seq.SampleCount(), nil)
	require.NoError(t, err)
	require.Len(t, frames, 1)

	startBit := defaultStartBit
	dec := NewDecoder(w, seq, bitWidth, nil)
	chars, err := dec.ExtractCharacters(frames[0], 4, startBit)
	require.NoError(t, err)
	require.Len(t, chars, len(values))

	for i, v := range values {
		assert.Equal(t, v, chars[i].Value, "character %d", i)
	}

	learned := float64(480+500+520+500) / 4
	assert.InDelta(t, float64(chars[4].Start)+0.9*learned, chars[4].Origin, 1e-9)
	assert.InDelta(t, float64(chars[5].Start)+0.9*learned, chars[5].Origin, 1e-9)
	assert.Equal(t, defaultStartBit, startBit, "caller's width is not modified")
}

func TestExtractCharactersTrainingProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(5, 8).Draw(t, "chars")
		lengths := make([]int, n)
		for i := range lengths {
			lengths[i] = rapid.IntRange(460, 500).Draw(t, "length")
		}

		s := &signal{}
		s.low(2000)
		for _, l := range lengths {
			s.char(0x00, l)
		}
		s.low(2000).high(bitWidth).low(10)
		w, err := wave.New(wave.Header{}, s.samples, nil)
		require.NoError(t, err)
		seq, err := w.ExtractLevels()
		require.NoError(t, err)

		frames, err := ExtractFrames(seq, defaultGap, 0, seq.SampleCount(), nil)
		require.NoError(t, err)
		require.Len(t, frames, 1)

		chars, err := NewDecoder(w, seq, bitWidth, nil).ExtractCharacters(frames[0], 4, defaultStartBit)
		require.NoError(t, err)
		require.Len(t, chars, n)

		mean := float64(lengths[0]+lengths[1]+lengths[2]+lengths[3]) / 4
		for i := 0; i < n; i++ {
			assert.Equal(t, byte(0), chars[i].Value)
			if i < 4 {
				assert.Equal(t, float64(chars[i].Start+bitWidth), chars[i].Origin)
			} else {
				assert.InDelta(t, float64(chars[i].Start)+0.9*mean, chars[i].Origin, 1e-9)
			}
			if i+1 < n {
				assert.Equal(t, lengths[i], chars[i].Length())
			}
		}
	})
}

func TestExtractCharactersMissingStart(t *testing.T) {
	s := &signal{}
	s.low(2000).high(bitWidth).low(2000).high(5)
	w, seq := s.wave(t)
	dec := NewDecoder(w, seq, bitWidth, nil)

	_, err := dec.ExtractCharacters(&Frame{Start: 2100, Finish: 3000}, 4, defaultStartBit)
	require.ErrorIs(t, err, wave.ErrPulseNotFound)
	assert.Contains(t, err.Error(), "Start of character")

	_, err = dec.ExtractCharacters(&Frame{Start: 1990, Finish: 3000}, 4, defaultStartBit)
	require.ErrorIs(t, err, wave.ErrPulseNotFound)
	assert.Contains(t, err.Error(), "Start of next character")
}

func TestExtractCharactersEmptyFrame(t *testing.T) {
	s := &signal{}
	s.low(2000).high(bitWidth).low(2000).high(5)
	w, seq := s.wave(t)

	chars, err := NewDecoder(w, seq, bitWidth, nil).ExtractCharacters(&Frame{Start: 3000, Finish: 3000}, 4, defaultStartBit)
	require.NoError(t, err)
	assert.Empty(t, chars)
}
