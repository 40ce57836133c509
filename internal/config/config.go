// Package config provides configuration structures and defaults for oscwave
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Decode     DecodeConfig     `yaml:"decode" mapstructure:"decode"`         // Pulse search and bit sampling parameters
	Source     SourceConfig     `yaml:"source" mapstructure:"source"`         // Capture source settings
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`         // Reports, plots and exports
	Collection CollectionConfig `yaml:"collection" mapstructure:"collection"` // Serial capture settings
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`       // Logging configuration
}

// Range is an inclusive width range in sample periods
type Range struct {
	Min float64 `yaml:"min" mapstructure:"min"`
	Max float64 `yaml:"max" mapstructure:"max"`
}

func (r Range) String() string {
	return fmt.Sprintf("%g..%g", r.Min, r.Max)
}

// DecodeConfig contains the decoder's timing parameters
type DecodeConfig struct {
	FrameGap   Range   `yaml:"frame_gap" mapstructure:"frame_gap"`     // LOW pulse width separating frames
	StartBit   Range   `yaml:"start_bit" mapstructure:"start_bit"`     // HIGH start bit width accepted before training
	BitWidth   float64 `yaml:"bit_width" mapstructure:"bit_width"`     // UART bit period used for sampling
	TrainChars int     `yaml:"train_chars" mapstructure:"train_chars"` // Characters decoded before the spacing is learned
	Workers    int     `yaml:"workers" mapstructure:"workers"`         // Frames decoded in parallel
	NoChars    bool    `yaml:"no_chars" mapstructure:"no_chars"`       // Stop after frame segmentation
}

// SourceConfig contains capture source parameters
type SourceConfig struct {
	S3Region      string        `yaml:"s3_region" mapstructure:"s3_region"`           // Region for s3:// sources (empty uses the AWS default chain)
	S3Endpoint    string        `yaml:"s3_endpoint" mapstructure:"s3_endpoint"`       // Custom endpoint, e.g. a local MinIO
	S3PathStyle   bool          `yaml:"s3_path_style" mapstructure:"s3_path_style"`   // Force path-style addressing
	S3AccessKey   string        `yaml:"s3_access_key" mapstructure:"s3_access_key"`   // Static credentials, optional
	S3SecretKey   string        `yaml:"s3_secret_key" mapstructure:"s3_secret_key"`   // Paired with S3AccessKey
	SerialBaud    int           `yaml:"serial_baud" mapstructure:"serial_baud"`       // Baud rate for serial: sources
	SerialTimeout time.Duration `yaml:"serial_timeout" mapstructure:"serial_timeout"` // Idle time that ends a serial transfer
}

// OutputConfig contains reporting and export parameters
type OutputConfig struct {
	JSON          bool   `yaml:"json" mapstructure:"json"`                     // Emit the result as JSON
	Pulses        bool   `yaml:"pulses" mapstructure:"pulses"`                 // List every level period
	HighsFile     string `yaml:"highs_file" mapstructure:"highs_file"`         // HIGH period histogram CSV
	LowsFile      string `yaml:"lows_file" mapstructure:"lows_file"`           // LOW period histogram CSV
	PlotRaw       string `yaml:"plot_raw" mapstructure:"plot_raw"`             // Raw sample window "from..to"
	PlotLevels    string `yaml:"plot_levels" mapstructure:"plot_levels"`       // Level window "from..to[..slide]"
	PlotFile      string `yaml:"plot_file" mapstructure:"plot_file"`           // PNG output path
	LevelsParquet string `yaml:"levels_parquet" mapstructure:"levels_parquet"` // Level sequence export
	CharsParquet  string `yaml:"chars_parquet" mapstructure:"chars_parquet"`   // Decoded character export
	Compression   string `yaml:"compression" mapstructure:"compression"`       // Parquet codec: zstd, gzip, snappy or none
	MetricsFile   string `yaml:"metrics_file" mapstructure:"metrics_file"`     // Prometheus textfile output
}

// CollectionConfig contains serial capture parameters
type CollectionConfig struct {
	Port         string        `yaml:"port" mapstructure:"port"`                   // Serial port the scope is attached to
	BaudRate     int           `yaml:"baud_rate" mapstructure:"baud_rate"`         // Serial communication baud rate
	Duration     time.Duration `yaml:"duration" mapstructure:"duration"`           // Maximum capture duration
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`   // Stop after the link is quiet this long
	OutputDir    string        `yaml:"output_dir" mapstructure:"output_dir"`       // Output directory for capture files
	FilePrefix   string        `yaml:"file_prefix" mapstructure:"file_prefix"`     // Prefix for output filenames
	CollectionID string        `yaml:"collection_id" mapstructure:"collection_id"` // Collection identifier for filename
}

// LoggingConfig contains logging configuration parameters
type LoggingConfig struct {
	Level string `yaml:"level" mapstructure:"level"` // Log level (debug, info, warn, error)
	File  string `yaml:"file" mapstructure:"file"`   // Log file path, stderr when empty
}

// DefaultConfig returns a configuration with sensible default values
func DefaultConfig() *Config {
	return &Config{
		Decode: DecodeConfig{
			FrameGap:   Range{Min: 1000, Max: 5000}, // Idle time between messages
			StartBit:   Range{Min: 37, Max: 53},     // One bit at 9600 baud sampled at ~400 kSa/s
			BitWidth:   40,                          // Sample periods per bit
			TrainChars: 4,                           // Learn spacing after four characters
			Workers:    1,                           // Sequential decode
		},
		Source: SourceConfig{
			SerialBaud:    115200,          // Typical scope USB-serial rate
			SerialTimeout: 2 * time.Second, // Export finished when the line idles
		},
		Output: OutputConfig{
			PlotFile:    "oscwave.png", // Plot output
			Compression: "zstd",        // Parquet codec
		},
		Collection: CollectionConfig{
			Port:        "/dev/ttyUSB0",   // Common USB serial device path
			BaudRate:    115200,           // Typical scope USB-serial rate
			Duration:    60 * time.Second, // 60 second capture window
			IdleTimeout: 2 * time.Second,  // Export finished when the line idles
			OutputDir:   "./data",         // Current directory data folder
			FilePrefix:  "oscwave",        // File prefix for output files
		},
		Logging: LoggingConfig{
			Level: "error", // Errors only
			File:  "",      // Log to stderr
		},
	}
}

// Validate checks the decode parameters for consistency
func (c *Config) Validate() error {
	d := c.Decode
	if d.FrameGap.Min > d.FrameGap.Max {
		return fmt.Errorf("frame gap range %s is inverted", d.FrameGap)
	}
	if d.StartBit.Min > d.StartBit.Max {
		return fmt.Errorf("start bit range %s is inverted", d.StartBit)
	}
	if d.FrameGap.Min <= 0 || d.StartBit.Min <= 0 {
		return errors.New("pulse widths must be positive")
	}
	if d.BitWidth <= 0 {
		return fmt.Errorf("bit width must be positive, got %g", d.BitWidth)
	}
	if d.TrainChars < 1 {
		return fmt.Errorf("train chars must be at least 1, got %d", d.TrainChars)
	}
	if d.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", d.Workers)
	}
	return nil
}

// ParseRange parses "small..large"
func ParseRange(s string) (Range, error) {
	parts := strings.Split(strings.TrimSpace(s), "..")
	if len(parts) != 2 {
		return Range{}, fmt.Errorf("invalid range %q, want small..large", s)
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Range{}, fmt.Errorf("invalid range %q: %w", s, err)
	}
	hi, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Range{}, fmt.Errorf("invalid range %q: %w", s, err)
	}
	if lo > hi {
		return Range{}, fmt.Errorf("invalid range %q: %g > %g", s, lo, hi)
	}
	return Range{Min: lo, Max: hi}, nil
}

// Window is a sample index window for plots
type Window struct {
	From  int
	To    int
	Slide int // x offset applied to the level trace
}

// ParseWindow parses "from..to" or "from..to..slide"
func ParseWindow(s string) (Window, error) {
	parts := strings.Split(strings.TrimSpace(s), "..")
	if len(parts) < 2 || len(parts) > 3 {
		return Window{}, fmt.Errorf("invalid window %q, want from..to[..slide]", s)
	}
	vals := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Window{}, fmt.Errorf("invalid window %q: %w", s, err)
		}
		vals[i] = v
	}
	w := Window{From: vals[0], To: vals[1]}
	if len(vals) == 3 {
		w.Slide = vals[2]
	}
	if w.From < 0 || w.To <= w.From {
		return Window{}, fmt.Errorf("invalid window %q: empty or negative", s)
	}
	return w, nil
}
