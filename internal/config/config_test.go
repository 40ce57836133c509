package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, Range{Min: 1000, Max: 5000}, cfg.Decode.FrameGap)
	assert.Equal(t, Range{Min: 37, Max: 53}, cfg.Decode.StartBit)
	assert.Equal(t, 40.0, cfg.Decode.BitWidth)
	assert.Equal(t, 4, cfg.Decode.TrainChars)
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"inverted gap", func(c *Config) { c.Decode.FrameGap = Range{Min: 10, Max: 5} }},
		{"inverted start bit", func(c *Config) { c.Decode.StartBit = Range{Min: 60, Max: 50} }},
		{"zero width", func(c *Config) { c.Decode.StartBit = Range{Min: 0, Max: 50} }},
		{"bit width", func(c *Config) { c.Decode.BitWidth = 0 }},
		{"train chars", func(c *Config) { c.Decode.TrainChars = 0 }},
		{"workers", func(c *Config) { c.Decode.Workers = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("37..53")
	require.NoError(t, err)
	assert.Equal(t, Range{Min: 37, Max: 53}, r)
	assert.Equal(t, "37..53", r.String())

	r, err = ParseRange(" 1000 .. 5000 ")
	require.NoError(t, err)
	assert.Equal(t, Range{Min: 1000, Max: 5000}, r)

	for _, bad := range []string{"", "37", "37..", "a..b", "53..37", "1..2..3"} {
		_, err := ParseRange(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("100..900")
	require.NoError(t, err)
	assert.Equal(t, Window{From: 100, To: 900}, w)

	w, err = ParseWindow("100..900..-20")
	require.NoError(t, err)
	assert.Equal(t, Window{From: 100, To: 900, Slide: -20}, w)

	for _, bad := range []string{"100", "900..100", "-5..10", "1..2..3..4", "x..10"} {
		_, err := ParseWindow(bad)
		assert.Error(t, err, bad)
	}
}
