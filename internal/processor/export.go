// Package processor - Export functions for decode results
package processor

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"oscwave/internal/wave"
)

// HistogramKeep is how many of the most frequent periods a histogram keeps
const HistogramKeep = 15

// HistogramBin is one row of a period histogram
type HistogramBin struct {
	Period int
	Count  int
}

// WriteText writes the human-readable frame report
func (r *Result) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "Samples: %d, levels: %d, frames: %d, characters: %d\n",
		r.SampleCount, r.LevelCount, len(r.Frames), r.CharacterCount())
	if r.SamplePeriod > 0 {
		fmt.Fprintf(w, "Sample period: %s\n", wave.FormatTime(r.SamplePeriod))
	}
	for _, f := range r.Frames {
		fmt.Fprintf(w, "Frame %d: %s, length: %d or %s\n", f.Index, f, f.Length, r.FormatSamples(f.Length))
		if len(f.Characters) > 0 {
			fmt.Fprintf(w, "  %d characters: %s\n", len(f.Characters), f.Hex())
		}
	}
	return nil
}

// WriteJSON writes the whole result as indented JSON
func (r *Result) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}

// WritePulses lists every level period with its duration
func (r *Result) WritePulses(w io.Writer) error {
	if r.Levels == nil {
		return nil
	}
	for i := 0; i < r.Levels.Len(); i++ {
		e := r.Levels.At(i)
		if _, err := fmt.Fprintf(w, "%s %s\n", e, r.FormatSamples(e.Period)); err != nil {
			return err
		}
	}
	return nil
}

// Histogram tallies the periods of one level, keeps the HistogramKeep most
// frequent and returns a bin for every period from 0 to the largest kept one.
// Periods that were not kept have a zero count.
func Histogram(seq *wave.LevelSequence, level wave.Level) []HistogramBin {
	tally := seq.Periods(level)
	if len(tally) == 0 {
		return nil
	}

	bins := make([]HistogramBin, 0, len(tally))
	for p, c := range tally {
		bins = append(bins, HistogramBin{Period: p, Count: c})
	}
	sort.Slice(bins, func(i, j int) bool {
		if bins[i].Count != bins[j].Count {
			return bins[i].Count > bins[j].Count
		}
		return bins[i].Period < bins[j].Period
	})
	if len(bins) > HistogramKeep {
		bins = bins[:HistogramKeep]
	}

	kept := make(map[int]int, len(bins))
	maxPeriod := 0
	for _, b := range bins {
		kept[b.Period] = b.Count
		if b.Period > maxPeriod {
			maxPeriod = b.Period
		}
	}

	out := make([]HistogramBin, maxPeriod+1)
	for p := range out {
		out[p] = HistogramBin{Period: p, Count: kept[p]}
	}
	return out
}

// WriteHistogram writes a period histogram as "period,count" CSV rows
func WriteHistogram(w io.Writer, seq *wave.LevelSequence, level wave.Level) error {
	writer := csv.NewWriter(w)
	for _, b := range Histogram(seq, level) {
		if err := writer.Write([]string{strconv.Itoa(b.Period), strconv.Itoa(b.Count)}); err != nil {
			return fmt.Errorf("failed to write histogram: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// ExportHistogram writes the period histogram of one level to a CSV file
func (r *Result) ExportHistogram(filename string, level wave.Level) error {
	if r.Levels == nil {
		return fmt.Errorf("no level sequence to export")
	}
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create histogram file: %w", err)
	}
	defer file.Close()

	if err := WriteHistogram(file, r.Levels, level); err != nil {
		return err
	}
	return file.Close()
}

// ExportJSON writes the result to a JSON file
func (r *Result) ExportJSON(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	if err := r.WriteJSON(file); err != nil {
		return err
	}
	return file.Close()
}
