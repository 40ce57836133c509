// Package filewriter stores decoded level sequences and characters as parquet files
package filewriter

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"oscwave/internal/processor"
	"oscwave/internal/wave"

	parquet "github.com/parquet-go/parquet-go"
)

// LevelRow is one level period
type LevelRow struct {
	Index    int64   `parquet:"index"`
	Position int64   `parquet:"position"`
	Level    string  `parquet:"level"`
	Period   int64   `parquet:"period"`
	Seconds  float64 `parquet:"seconds"`
}

// CharacterRow is one decoded character with the frame it belongs to
type CharacterRow struct {
	Frame  int64   `parquet:"frame"`
	Index  int64   `parquet:"index"`
	Value  int32   `parquet:"value"`
	Hex    string  `parquet:"hex"`
	Start  int64   `parquet:"start"`
	Finish int64   `parquet:"finish"`
	Origin float64 `parquet:"origin"`
	Bits   string  `parquet:"bits"`
}

type Writer struct {
	compression parquet.WriterOption
	codec       string
}

// NewWriter accepts zstd, gzip, snappy or none. Empty selects zstd.
func NewWriter(compression string) (*Writer, error) {
	name := strings.ToLower(strings.TrimSpace(compression))
	var codec parquet.WriterOption
	switch name {
	case "", "zstd":
		name = "zstd"
		codec = parquet.Compression(&parquet.Zstd)
	case "gzip", "gz":
		name = "gzip"
		codec = parquet.Compression(&parquet.Gzip)
	case "snappy":
		codec = parquet.Compression(&parquet.Snappy)
	case "none":
		codec = parquet.Compression(&parquet.Uncompressed)
	default:
		return nil, fmt.Errorf("unknown parquet compression %q", compression)
	}
	return &Writer{compression: codec, codec: name}, nil
}

// Codec returns the normalised compression name
func (w *Writer) Codec() string {
	return w.codec
}

// LevelRows flattens a level sequence. Seconds is zero when the sample period is unknown.
func LevelRows(seq *wave.LevelSequence, samplePeriod float64) []LevelRow {
	rows := make([]LevelRow, 0, seq.Len())
	for i, e := range seq.Entries() {
		rows = append(rows, LevelRow{
			Index:    int64(i),
			Position: int64(e.Position()),
			Level:    e.Level().String(),
			Period:   int64(e.Period),
			Seconds:  float64(e.Period) * samplePeriod,
		})
	}
	return rows
}

// CharacterRows flattens the characters of every frame
func CharacterRows(frames []*processor.Frame) []CharacterRow {
	var rows []CharacterRow
	for _, f := range frames {
		for i, c := range f.Characters {
			rows = append(rows, CharacterRow{
				Frame:  int64(f.Index),
				Index:  int64(i),
				Value:  int32(c.Value),
				Hex:    c.String(),
				Start:  int64(c.Start),
				Finish: int64(c.Finish),
				Origin: c.Origin,
				Bits:   c.Bitstring(),
			})
		}
	}
	return rows
}

func (w *Writer) WriteLevels(filename string, seq *wave.LevelSequence, samplePeriod float64) error {
	return writeRows(filename, LevelRows(seq, samplePeriod), w.compression)
}

func (w *Writer) WriteCharacters(filename string, frames []*processor.Frame) error {
	return writeRows(filename, CharacterRows(frames), w.compression)
}

func writeRows[T any](filename string, rows []T, compression parquet.WriterOption) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	pw := parquet.NewGenericWriter[T](file, compression)
	if len(rows) > 0 {
		if _, err := pw.Write(rows); err != nil {
			return fmt.Errorf("failed to write rows: %w", err)
		}
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("failed to finish parquet file: %w", err)
	}
	return file.Close()
}

// ReadLevelRows reads every row of a levels file
func ReadLevelRows(filename string) ([]LevelRow, error) {
	return readRows[LevelRow](filename)
}

// ReadCharacterRows reads every row of a characters file
func ReadCharacterRows(filename string) ([]CharacterRow, error) {
	return readRows[CharacterRow](filename)
}

// ReadLevels rebuilds a level sequence. The sample count is taken as the end
// of the last period, since samples after the final edge are not stored.
func ReadLevels(filename string) (*wave.LevelSequence, error) {
	rows, err := ReadLevelRows(filename)
	if err != nil {
		return nil, err
	}

	entries := make([]wave.LevelEntry, 0, len(rows))
	count := 0
	for _, r := range rows {
		level, err := wave.ParseLevel(r.Level)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", r.Index, err)
		}
		e := wave.LevelEntry{
			Start:  wave.Point{Position: int(r.Position), Level: level},
			Period: int(r.Period),
		}
		entries = append(entries, e)
		count = e.End().Position
	}
	return wave.NewLevelSequence(entries, count), nil
}

func readRows[T any](filename string) ([]T, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	gr := parquet.NewGenericReader[T](file)
	defer gr.Close()

	out := make([]T, 0, gr.NumRows())
	batch := make([]T, 1024)
	for {
		n, err := gr.Read(batch)
		if n > 0 {
			out = append(out, batch[:n]...)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read rows: %w", err)
		}
	}
	return out, nil
}
