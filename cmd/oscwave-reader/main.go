// oscwave-reader - display the contents of an oscilloscope capture or a saved
// parquet level file without decoding characters
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"oscwave/internal/capture"
	"oscwave/internal/filewriter"
	"oscwave/internal/processor"
	"oscwave/internal/version"
	"oscwave/internal/wave"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	showSamples  bool
	showStats    bool
	showLevels   bool
	outputFormat string
	showGraph    bool
	graphWidth   int
	graphHeight  int
	graphFrom    int
	graphSamples int
	showVersion  bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "oscwave-reader [capture | levels.parquet]",
	Short: "Display the contents of oscilloscope captures",
	Long: `oscwave-reader displays the header and samples of a scope export, or the
level periods stored by oscwave --levels-parquet.

Display modes:
  --samples    List every sample with its classified level
  --stats      Show statistics of the sample values
  --levels     Show the level period histogram
  --graph      Draw an ASCII graph of a sample window`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion {
			fmt.Println(version.Get().Banner("oscwave-reader"))
			return
		}

		if len(args) == 0 {
			fmt.Fprintf(os.Stderr, "Error: filename required\n")
			cmd.Usage()
			os.Exit(1)
		}

		var err error
		if strings.HasSuffix(args[0], ".parquet") {
			err = displayLevelFile(os.Stdout, args[0])
		} else {
			err = displayCapture(cmd.Context(), os.Stdout, args[0])
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "show version information")
	rootCmd.Flags().BoolVarP(&showSamples, "samples", "s", false, "list every sample")
	rootCmd.Flags().BoolVar(&showStats, "stats", false, "show statistical analysis of samples")
	rootCmd.Flags().BoolVarP(&showLevels, "levels", "l", false, "show level period histograms")
	rootCmd.Flags().StringVarP(&outputFormat, "format", "f", "table", "output format (table, json)")
	rootCmd.Flags().BoolVarP(&showGraph, "graph", "g", false, "draw an ASCII graph of the samples")
	rootCmd.Flags().IntVar(&graphWidth, "graph-width", 80, "width of the ASCII graph in characters")
	rootCmd.Flags().IntVar(&graphHeight, "graph-height", 20, "height of the ASCII graph in lines")
	rootCmd.Flags().IntVar(&graphFrom, "graph-from", 0, "first sample in the graph")
	rootCmd.Flags().IntVar(&graphSamples, "graph-samples", 1000, "number of samples to include in graph")
}

// Summary is the machine readable form of the capture overview
type Summary struct {
	Header       wave.Header     `json:"header"`
	SampleCount  int             `json:"sample_count"`
	SamplePeriod float64         `json:"sample_period_s,omitempty"`
	Thresholds   wave.Thresholds `json:"thresholds"`
	Stats        *Stats          `json:"stats,omitempty"`
	Levels       int             `json:"levels,omitempty"`
}

// Stats describes the sample values
type Stats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
	RMS    float64 `json:"rms"`
}

// displayCapture loads a capture and prints what was asked for
func displayCapture(ctx context.Context, out io.Writer, source string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rc, err := capture.Open(ctx, source, capture.Options{})
	if err != nil {
		return fmt.Errorf("failed to open capture: %w", err)
	}
	defer rc.Close()

	w, err := wave.Parse(rc, nil)
	if err != nil {
		return fmt.Errorf("failed to read capture: %w", err)
	}

	summary := Summary{
		Header:      w.Header,
		SampleCount: w.SampleCount(),
		Thresholds:  w.Thresholds(),
	}
	period, periodErr := w.SamplePeriod()
	if periodErr == nil {
		summary.SamplePeriod = period
	}
	if showStats {
		s := sampleStats(w.Samples)
		summary.Stats = &s
	}

	var seq *wave.LevelSequence
	if showLevels || showSamples {
		if seq, err = w.ExtractLevels(); err != nil {
			return fmt.Errorf("failed to extract levels: %w", err)
		}
		summary.Levels = seq.Len()
	}

	if outputFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	fmt.Fprintf(out, "OSCWAVE CAPTURE READER %s\n\n", version.Get().Short())
	if info, err := os.Stat(source); err == nil {
		fmt.Fprintf(out, "📁 File Information:\n")
		fmt.Fprintf(out, "Name: %s\n", filepath.Base(source))
		fmt.Fprintf(out, "Size: %.2f MB (%d bytes)\n", float64(info.Size())/(1024*1024), info.Size())
		fmt.Fprintf(out, "Modified: %s\n\n", info.ModTime().Format("2006-01-02 15:04:05"))
	}

	displayHeader(out, w.Header)

	fmt.Fprintf(out, "📡 Sample Information:\n")
	fmt.Fprintf(out, "Total Samples: %d\n", len(w.Samples))
	if summary.SampleCount != len(w.Samples) {
		fmt.Fprintf(out, "Declared Samples: %d\n", summary.SampleCount)
	}
	if periodErr == nil {
		fmt.Fprintf(out, "Sample Period: %s\n", wave.FormatTime(period))
		fmt.Fprintf(out, "Capture Duration: %s\n", wave.FormatTime(period*float64(len(w.Samples))))
	} else {
		fmt.Fprintf(out, "Sample Period: unknown (%v)\n", periodErr)
	}
	t := summary.Thresholds
	fmt.Fprintf(out, "Thresholds: low < %g, high > %g (min %g, max %g)\n\n", t.Low, t.High, t.Min, t.Max)

	if showSamples {
		displaySamples(out, w)
	}
	if showGraph {
		displayGraph(out, w.Samples, graphFrom, graphSamples, summary.SamplePeriod)
	}
	if summary.Stats != nil {
		displayStatistics(out, *summary.Stats)
	}
	if showLevels {
		displayLevels(out, seq, summary.SamplePeriod)
	}
	return nil
}

// displayLevelFile prints a parquet level file written by oscwave
func displayLevelFile(out io.Writer, filename string) error {
	seq, err := filewriter.ReadLevels(filename)
	if err != nil {
		return fmt.Errorf("failed to read levels: %w", err)
	}
	rows, err := filewriter.ReadLevelRows(filename)
	if err != nil {
		return fmt.Errorf("failed to read levels: %w", err)
	}

	period := 0.0
	if len(rows) > 0 && rows[0].Period > 0 {
		period = rows[0].Seconds / float64(rows[0].Period)
	}

	if outputFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	fmt.Fprintf(out, "OSCWAVE LEVEL FILE READER %s\n\n", version.Get().Short())
	fmt.Fprintf(out, "Levels: %d spanning %d samples\n", seq.Len(), seq.SampleCount())
	if period > 0 {
		fmt.Fprintf(out, "Sample Period: %s\n", wave.FormatTime(period))
	}
	fmt.Fprintln(out)
	displayLevels(out, seq, period)
	return nil
}

// displayHeader shows the scope header fields
func displayHeader(out io.Writer, h wave.Header) {
	fmt.Fprintf(out, "📊 Capture Header:\n")
	fmt.Fprintf(out, "Time Base: %s\n", quantity(h.TimeBase))
	fmt.Fprintf(out, "Sampling Rate: %s\n", orUnknown(h.SamplingRate))
	fmt.Fprintf(out, "Amplitude: %s\n", quantity(h.Amplitude))
	fmt.Fprintf(out, "Amplitude Resolution: %s\n", quantity(h.AmplitudeRes))
	fmt.Fprintf(out, "Data Unit: %s\n", orUnknown(h.DataUnit))
	fmt.Fprintf(out, "Data Points: %d\n", h.DataPoints)
	for _, f := range h.Others {
		fmt.Fprintf(out, "%s: %s\n", f.Key, f.Value)
	}
	fmt.Fprintln(out)
}

func quantity(q wave.Quantity) string {
	if q.Raw == "" {
		return "Unknown"
	}
	return q.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// displaySamples lists every sample with its level, or "?" between the thresholds
func displaySamples(out io.Writer, w *wave.Wave) {
	fmt.Fprintf(out, "📈 Sample Data (%d samples):\n", len(w.Samples))
	fmt.Fprintf(out, "%-8s %-14s %-6s\n", "#", "Value", "Level")
	for i, v := range w.Samples {
		level := "?"
		if l, err := w.LevelAt(i); err == nil {
			level = l.Letter()
		}
		fmt.Fprintf(out, "%-8d %-14g %-6s\n", i, v, level)
	}
	fmt.Fprintln(out)
}

func sampleStats(samples []float64) Stats {
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)

	mean, std := stat.MeanStdDev(samples, nil)
	return Stats{
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(samples),
		Max:    floats.Max(samples),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		RMS:    math.Sqrt(floats.Dot(samples, samples) / float64(len(samples))),
	}
}

// displayStatistics shows statistical analysis of the samples
func displayStatistics(out io.Writer, s Stats) {
	fmt.Fprintf(out, "📊 Statistical Analysis:\n")
	fmt.Fprintf(out, "Mean: %12.6f\n", s.Mean)
	fmt.Fprintf(out, "Std Dev: %12.6f\n", s.StdDev)
	fmt.Fprintf(out, "Min: %12.6f\n", s.Min)
	fmt.Fprintf(out, "Max: %12.6f\n", s.Max)
	fmt.Fprintf(out, "Median: %12.6f\n", s.Median)
	fmt.Fprintf(out, "RMS: %12.6f\n\n", s.RMS)
}

// displayLevels shows the period histogram of both levels
func displayLevels(out io.Writer, seq *wave.LevelSequence, period float64) {
	for _, level := range []wave.Level{wave.High, wave.Low} {
		total := 0
		for _, c := range seq.Periods(level) {
			total += c
		}
		fmt.Fprintf(out, "📶 %s periods: %d\n", strings.ToUpper(level.String()), total)
		fmt.Fprintf(out, "%-10s %-8s %s\n", "Period", "Count", "Duration")
		for _, b := range processor.Histogram(seq, level) {
			if b.Count == 0 {
				continue
			}
			duration := "-"
			if period > 0 {
				duration = wave.FormatTime(float64(b.Period) * period)
			}
			fmt.Fprintf(out, "%-10d %-8d %s\n", b.Period, b.Count, duration)
		}
		fmt.Fprintln(out)
	}
}

// displayGraph draws count samples from first as an ASCII graph
func displayGraph(out io.Writer, samples []float64, first, count int, period float64) {
	if first < 0 {
		first = 0
	}
	if first >= len(samples) || count <= 0 {
		fmt.Fprintf(out, "📈 Signal Graph: No samples to display\n\n")
		return
	}
	window := samples[first:min(first+count, len(samples))]

	lo, hi := floats.Min(window), floats.Max(window)
	if hi == lo {
		hi = lo + 1e-6
	}

	fmt.Fprintf(out, "📈 Samples %d..%d:\n", first, first+len(window)-1)
	if period > 0 {
		fmt.Fprintf(out, "Duration: %s\n", wave.FormatTime(period*float64(len(window))))
	}
	fmt.Fprintf(out, "Range: %g to %g\n\n", lo, hi)

	graph := make([][]rune, graphHeight)
	for i := range graph {
		graph[i] = []rune(strings.Repeat(" ", graphWidth))
	}

	for i, v := range window {
		x := 0
		if len(window) > 1 {
			x = i * (graphWidth - 1) / (len(window) - 1)
		}
		y := int(float64(graphHeight-1) * (1.0 - (v-lo)/(hi-lo)))
		y = max(0, min(y, graphHeight-1))

		if graph[y][x] == ' ' {
			graph[y][x] = '*'
		} else {
			graph[y][x] = '#'
		}
	}

	for i, row := range graph {
		value := lo + float64(graphHeight-1-i)/float64(max(graphHeight-1, 1))*(hi-lo)
		fmt.Fprintf(out, "%8.3f |%s|\n", value, string(row))
	}
	fmt.Fprintf(out, "         +%s+\n", strings.Repeat("-", graphWidth))
	fmt.Fprintf(out, "\nLegend: * = sample, # = multiple samples, Time →\n\n")
}

// main is the entry point of the application
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
