package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"oscwave/internal/wave"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entriesWithPeriods(level wave.Level, periods ...int) *wave.LevelSequence {
	var entries []wave.LevelEntry
	pos := 0
	for _, p := range periods {
		entries = append(entries, wave.LevelEntry{Start: wave.Point{Position: pos, Level: level}, Period: p})
		pos += p
		entries = append(entries, wave.LevelEntry{Start: wave.Point{Position: pos, Level: level.Invert()}, Period: 1})
		pos++
	}
	return wave.NewLevelSequence(entries, pos)
}

func TestHistogram(t *testing.T) {
	seq := entriesWithPeriods(wave.High, 3, 3, 5, 1)

	bins := Histogram(seq, wave.High)
	assert.Equal(t, []HistogramBin{
		{Period: 0, Count: 0},
		{Period: 1, Count: 1},
		{Period: 2, Count: 0},
		{Period: 3, Count: 2},
		{Period: 4, Count: 0},
		{Period: 5, Count: 1},
	}, bins)

	// every LOW separator is one sample long
	low := Histogram(seq, wave.Low)
	assert.Equal(t, []HistogramBin{{Period: 0, Count: 0}, {Period: 1, Count: 4}}, low)
}

func TestHistogramKeepsMostFrequent(t *testing.T) {
	var periods []int
	for p := 1; p <= HistogramKeep; p++ {
		periods = append(periods, p, p)
	}
	periods = append(periods, 100) // seen once, dropped
	seq := entriesWithPeriods(wave.High, periods...)

	bins := Histogram(seq, wave.High)
	require.Len(t, bins, HistogramKeep+1)
	assert.Equal(t, HistogramBin{Period: HistogramKeep, Count: 2}, bins[HistogramKeep])
}

func TestHistogramEmpty(t *testing.T) {
	seq := wave.NewLevelSequence(nil, 0)
	assert.Empty(t, Histogram(seq, wave.High))
}

func TestWriteHistogram(t *testing.T) {
	seq := entriesWithPeriods(wave.High, 2, 2, 1)
	var buf bytes.Buffer
	require.NoError(t, WriteHistogram(&buf, seq, wave.High))
	assert.Equal(t, "0,0\n1,1\n2,2\n", buf.String())
}

func TestExportHistogram(t *testing.T) {
	result := &Result{Levels: entriesWithPeriods(wave.Low, 4)}
	path := filepath.Join(t.TempDir(), "lows.csv")
	require.NoError(t, result.ExportHistogram(path, wave.Low))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0,0\n1,0\n2,0\n3,0\n4,1\n", string(data))
}

func decodedResult(t *testing.T) *Result {
	t.Helper()
	p, err := NewProcessor(testConfig(), nil)
	require.NoError(t, err)
	result, err := p.Process(context.Background(), strings.NewReader(export(singleFrame().samples)))
	require.NoError(t, err)
	return result
}

func TestWriteText(t *testing.T) {
	result := decodedResult(t)
	var buf bytes.Buffer
	require.NoError(t, result.WriteText(&buf))

	out := buf.String()
	assert.Contains(t, out, "frames: 1, characters: 2")
	assert.Contains(t, out, "Sample period: 2.5 µs")
	assert.Contains(t, out, "Frame 0: 2000/2500, length: 2500 or 6.25 ms")
	assert.Contains(t, out, "2 characters: 00 00")
}

func TestWriteJSON(t *testing.T) {
	result := decodedResult(t)
	var buf bytes.Buffer
	require.NoError(t, result.WriteJSON(&buf))

	var decoded struct {
		SampleCount int `json:"sample_count"`
		Frames      []struct {
			Start      int `json:"start"`
			Finish     int `json:"finish"`
			Characters []struct {
				Value int      `json:"value"`
				Bits  []string `json:"bits"`
			} `json:"characters"`
		} `json:"frames"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 4555, decoded.SampleCount)
	require.Len(t, decoded.Frames, 1)
	assert.Equal(t, 2500, decoded.Frames[0].Finish)
	require.Len(t, decoded.Frames[0].Characters, 2)
	assert.Equal(t, "high", decoded.Frames[0].Characters[0].Bits[0])
}

func TestWritePulses(t *testing.T) {
	result := decodedResult(t)
	var buf bytes.Buffer
	require.NoError(t, result.WritePulses(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, result.LevelCount)
	assert.Equal(t, "low@0(2000) 5 ms", lines[0])
	assert.Equal(t, "high@2000(45) 112.5 µs", lines[1])
}
