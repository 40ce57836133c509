package processor

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"oscwave/internal/config"
	"oscwave/internal/wave"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return ConfigFrom(config.DefaultConfig().Decode)
}

// export renders samples in the scope's text format
func export(samples []float64) string {
	var buf bytes.Buffer
	buf.WriteString("Time Base:500us\n")
	buf.WriteString("Sampling Rate:400kSa/s\n")
	buf.WriteString("Amplitude:5.00V\n")
	buf.WriteString("Amplitude resolution:0.20V\n")
	buf.WriteString("Data Uint:mv\n")
	fmt.Fprintf(&buf, "Data points:%d\n", len(samples))
	for _, v := range samples {
		fmt.Fprintf(&buf, "%g\n", v)
	}
	return buf.String()
}

// singleFrame is two 2000 sample gaps around a 500 sample active region
func singleFrame() *signal {
	s := &signal{}
	s.low(2000).high(45).low(415).high(40)
	s.low(2000).high(45).low(10)
	return s
}

func TestNewProcessor(t *testing.T) {
	_, err := NewProcessor(nil, nil)
	assert.Error(t, err)

	cfg := testConfig()
	cfg.StartBit = wave.Width{Min: 60, Max: 50}
	_, err = NewProcessor(cfg, nil)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.BitWidth = 0
	_, err = NewProcessor(cfg, nil)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.TrainChars = 0
	_, err = NewProcessor(cfg, nil)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Workers = 0
	p, err := NewProcessor(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, p.config.Workers)
}

func TestProcessEndToEnd(t *testing.T) {
	p, err := NewProcessor(testConfig(), nil)
	require.NoError(t, err)

	result, err := p.Process(context.Background(), strings.NewReader(export(singleFrame().samples)))
	require.NoError(t, err)

	assert.Equal(t, "mV", result.Header.DataUnit)
	assert.InDelta(t, 2.5e-6, result.SamplePeriod, 1e-15)
	assert.Equal(t, 4555, result.SampleCount)

	require.Len(t, result.Frames, 1)
	f := result.Frames[0]
	assert.Equal(t, 2000, f.Start)
	assert.Equal(t, 2500, f.Finish)
	assert.Equal(t, 2500, f.Length)

	require.Len(t, f.Characters, 2)
	assert.Equal(t, 2000, f.Characters[0].Start)
	assert.Equal(t, 2460, f.Characters[0].Finish)
	assert.Equal(t, 2460, f.Characters[1].Start)
	assert.Equal(t, 4500, f.Characters[1].Finish)
	assert.Equal(t, 2, result.CharacterCount())
}

func TestProcessIdempotent(t *testing.T) {
	p, err := NewProcessor(testConfig(), nil)
	require.NoError(t, err)
	input := export(twoFrameSignal().samples)

	first, err := p.Process(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	second, err := p.Process(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, first.Frames, second.Frames)
	assert.Equal(t, first.Levels.Entries(), second.Levels.Entries())
}

func TestProcessParallelMatchesSequential(t *testing.T) {
	s := &signal{}
	s.low(2000)
	for frame := 0; frame < 6; frame++ {
		for _, v := range []byte{0x06, 0x18, 0x60, 0xC0, 0x0E, 0x30} {
			s.char(v, 480+frame*4)
		}
		s.low(1500)
	}
	s.high(bitWidth).low(10)
	w, err := wave.New(wave.Header{SamplingRate: "400kSa/s"}, s.samples, nil)
	require.NoError(t, err)

	seqCfg := testConfig()
	sequential, err := NewProcessor(seqCfg, nil)
	require.NoError(t, err)
	want, err := sequential.ProcessWave(context.Background(), w)
	require.NoError(t, err)
	require.Len(t, want.Frames, 6)

	parCfg := testConfig()
	parCfg.Workers = 4
	parallel, err := NewProcessor(parCfg, nil)
	require.NoError(t, err)
	got, err := parallel.ProcessWave(context.Background(), w)
	require.NoError(t, err)

	assert.Equal(t, want.Frames, got.Frames)
	for _, f := range got.Frames {
		assert.Equal(t, []byte{0x06, 0x18, 0x60, 0xC0, 0x0E, 0x30}, f.Bytes(), "frame %d", f.Index)
	}
}

func TestProcessNoChars(t *testing.T) {
	cfg := testConfig()
	cfg.NoChars = true
	p, err := NewProcessor(cfg, nil)
	require.NoError(t, err)

	result, err := p.Process(context.Background(), strings.NewReader(export(singleFrame().samples)))
	require.NoError(t, err)
	require.Len(t, result.Frames, 1)
	assert.Empty(t, result.Frames[0].Characters)
}

func TestProcessErrors(t *testing.T) {
	p, err := NewProcessor(testConfig(), nil)
	require.NoError(t, err)

	s := &signal{}
	s.low(500).high(45).low(500).high(45).low(10)
	_, err = p.Process(context.Background(), strings.NewReader(export(s.samples)))
	assert.ErrorIs(t, err, wave.ErrPulseNotFound)

	_, err = p.Process(context.Background(), strings.NewReader("Time Base:1ms\n"))
	assert.ErrorIs(t, err, wave.ErrNoSamples)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Process(ctx, strings.NewReader(export(singleFrame().samples)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessUnknownRate(t *testing.T) {
	w, err := wave.New(wave.Header{}, singleFrame().samples, nil)
	require.NoError(t, err)
	p, err := NewProcessor(testConfig(), nil)
	require.NoError(t, err)

	result, err := p.ProcessWave(context.Background(), w)
	require.NoError(t, err)
	assert.Zero(t, result.SamplePeriod)
	assert.Equal(t, "2500 samples", result.FormatSamples(2500))
}
