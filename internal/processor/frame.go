package processor

import (
	"fmt"
	"strings"

	"oscwave/internal/wave"

	"go.uber.org/zap"
)

// Frame is the active region between two idle gaps
type Frame struct {
	Index      int             `json:"index"`
	Start      int             `json:"start"`  // first sample after the leading gap
	Finish     int             `json:"finish"` // start of the trailing gap
	Length     int             `json:"length"` // Start to the end of the trailing gap
	Gap        wave.LevelEntry `json:"gap"`    // trailing gap
	Characters []Character     `json:"characters,omitempty"`
}

func (f *Frame) String() string {
	return fmt.Sprintf("%d/%d", f.Start, f.Finish)
}

// Hex renders the decoded characters as space separated hex bytes
func (f *Frame) Hex() string {
	parts := make([]string, len(f.Characters))
	for i, c := range f.Characters {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}

// Bytes returns the decoded character values
func (f *Frame) Bytes() []byte {
	out := make([]byte, len(f.Characters))
	for i, c := range f.Characters {
		out[i] = c.Value
	}
	return out
}

// ExtractFrames splits the level sequence at LOW pulses whose width lies in gap.
// There must be a gap at or after searchStart; data after the last gap is not a frame.
func ExtractFrames(seq *wave.LevelSequence, gap wave.Width, searchStart, searchEnd int, logger *zap.Logger) ([]*Frame, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	first, _, err := seq.FindPulse(wave.At(searchStart), wave.Low, gap, "Gap before first frame")
	if err != nil {
		return nil, err
	}

	var frames []*Frame
	pos := first.End().Position
	for pos < searchEnd {
		logger.Debug("frame starts", zap.Int("frame", len(frames)), zap.Int("position", pos))
		end, ok, err := seq.FindPulse(wave.At(pos), wave.Low, gap, "")
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", len(frames), err)
		}
		if !ok {
			break
		}

		f := &Frame{
			Index:  len(frames),
			Start:  pos,
			Finish: end.Start.Position,
			Length: end.End().Position - pos,
			Gap:    end,
		}
		frames = append(frames, f)
		logger.Debug("frame", zap.Int("frame", f.Index), zap.Stringer("span", f), zap.Int("length", f.Length))
		pos = end.End().Position
	}
	return frames, nil
}
