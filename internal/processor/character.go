package processor

import (
	"fmt"
	"math"
	"strings"

	"oscwave/internal/wave"

	"go.uber.org/zap"
)

// MaxCharacterSamples is the most bit centres sampled for one character
const MaxCharacterSamples = 12

// LevelSource classifies individual samples; *wave.Wave implements it
type LevelSource interface {
	LevelAt(pos int) (wave.Level, error)
}

// Character is one decoded UART character
type Character struct {
	Value  byte         `json:"value"`
	Start  int          `json:"start"`  // position of the start bit
	Finish int          `json:"finish"` // position of the following start bit
	Origin float64      `json:"origin"` // where the search for Finish began
	Bits   []wave.Level `json:"bits"`   // sampled levels, start bit first
}

// NewCharacter samples bit centres in [start, finish) and packs bits 1..8
// LSB-first into a byte. Bit 0 is the start bit and is not part of the value.
func NewCharacter(src LevelSource, start, finish int, bitWidth float64, logger *zap.Logger) (Character, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bitWidth <= 0 {
		return Character{}, fmt.Errorf("bit width must be positive, got %g", bitWidth)
	}

	c := Character{Start: start, Finish: finish}
	for pos := float64(start); pos < float64(finish) && len(c.Bits) < MaxCharacterSamples; pos += bitWidth {
		lvl, err := src.LevelAt(int(math.Floor(pos + bitWidth/2)))
		if err != nil {
			return Character{}, fmt.Errorf("character at %d: %w", start, err)
		}
		c.Bits = append(c.Bits, lvl)
	}

	for i := 1; i <= 8 && i < len(c.Bits); i++ {
		if c.Bits[i] == wave.High {
			c.Value |= 1 << (i - 1)
		}
	}

	logger.Debug("character",
		zap.Int("start", start),
		zap.Int("finish", finish),
		zap.Float64("bit_periods", float64(finish-start)/bitWidth),
		zap.String("bits", c.Bitstring()),
		zap.String("data", c.DataBits()),
		zap.String("value", fmt.Sprintf("0x%02x", c.Value)))
	return c, nil
}

// Length is the distance to the next character's start bit
func (c Character) Length() int {
	return c.Finish - c.Start
}

// Bitstring renders the sampled levels as H/L letters
func (c Character) Bitstring() string {
	var sb strings.Builder
	for _, b := range c.Bits {
		sb.WriteString(b.Letter())
	}
	return sb.String()
}

// DataBits renders bits 8 down to 1, most significant first
func (c Character) DataBits() string {
	var sb strings.Builder
	for i := 8; i >= 1; i-- {
		if i < len(c.Bits) {
			sb.WriteString(c.Bits[i].Letter())
		}
	}
	return sb.String()
}

func (c Character) String() string {
	return fmt.Sprintf("%02X", c.Value)
}
