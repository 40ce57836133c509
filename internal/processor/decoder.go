package processor

import (
	"fmt"

	"oscwave/internal/wave"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// relaxation is the fraction of the learned character length used both as
// the relaxed start bit limit and as the predicted distance to the next start.
const relaxation = 0.9

// Decoder turns frames into characters. It only reads the level sequence and
// the samples, so one Decoder may serve several goroutines.
type Decoder struct {
	src          LevelSource
	seq          *wave.LevelSequence
	bitWidth     float64
	samplePeriod float64 // seconds, 0 when unknown
	logger       *zap.Logger
}

// NewDecoder creates a decoder sampling bits bitWidth sample periods apart
func NewDecoder(src LevelSource, seq *wave.LevelSequence, bitWidth float64, logger *zap.Logger) *Decoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{src: src, seq: seq, bitWidth: bitWidth, logger: logger}
}

// WithSamplePeriod lets the decoder log character lengths as durations
func (d *Decoder) WithSamplePeriod(seconds float64) *Decoder {
	d.samplePeriod = seconds
	return d
}

// ExtractCharacters decodes the characters of a frame and attaches them to it.
//
// Start bits are found with startBit until trainChars characters have been
// decoded. From then on the mean character length L of those characters
// raises the start bit limit to 0.9*L, and the search for each following
// start bit begins 0.9*L after the current one instead of at the end of the
// current start bit.
func (d *Decoder) ExtractCharacters(frame *Frame, trainChars int, startBit wave.Width) ([]Character, error) {
	width := startBit
	var chars []Character
	var learned float64
	trained := false

	pos := wave.At(frame.Start)
	for {
		p, err := pos.Position()
		if err != nil {
			return nil, err
		}
		if p >= frame.Finish {
			break
		}

		start, _, err := d.seq.FindPulse(pos, wave.High, width, "Start of character")
		if err != nil {
			return nil, fmt.Errorf("frame %d character %d: %w", frame.Index, len(chars), err)
		}
		d.logger.Debug("start of character", zap.Stringer("pulse", start))

		if trainChars > 0 && len(chars) == trainChars {
			learned = meanLength(chars)
			trained = true
			width.Max = relaxation * learned
			d.logger.Debug("learned character length",
				zap.Int("frame", frame.Index),
				zap.Float64("length", learned),
				zap.Stringer("start_bit", width))
		}

		var origin float64
		var next wave.Start
		if !trained {
			end := start.End()
			origin = float64(end.Position)
			next = wave.FromPoint(end)
		} else {
			origin = float64(start.Start.Position) + relaxation*learned
			next = wave.AtOffset(origin)
		}

		following, _, err := d.seq.FindPulse(next, wave.High, width, "Start of next character")
		if err != nil {
			return nil, fmt.Errorf("frame %d character %d: %w", frame.Index, len(chars), err)
		}

		c, err := NewCharacter(d.src, start.Start.Position, following.Start.Position, d.bitWidth, d.logger)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", frame.Index, err)
		}
		c.Origin = origin

		fields := []zap.Field{
			zap.Int("frame", frame.Index),
			zap.Int("character", len(chars)),
			zap.Int("start", c.Start),
			zap.Int("length", c.Length()),
		}
		if d.samplePeriod > 0 {
			fields = append(fields, zap.String("duration", wave.FormatTime(float64(c.Length())*d.samplePeriod)))
		}
		d.logger.Info("character", fields...)

		chars = append(chars, c)
		pos = wave.FromEntry(following)
	}

	frame.Characters = chars
	return chars, nil
}

func meanLength(chars []Character) float64 {
	if len(chars) == 0 {
		return 0
	}
	lengths := make([]float64, len(chars))
	for i, c := range chars {
		lengths[i] = float64(c.Length())
	}
	return stat.Mean(lengths, nil)
}
