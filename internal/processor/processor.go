// Package processor segments a reconstructed RS-232 waveform into frames and
// decodes the characters of each frame
package processor

import (
	"context"
	"fmt"
	"io"
	"time"

	"oscwave/internal/config"
	"oscwave/internal/wave"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config holds the configuration for a decode run
type Config struct {
	FrameGap   wave.Width // LOW pulse width separating frames
	StartBit   wave.Width // HIGH start bit width accepted before training
	BitWidth   float64    // Sample periods per bit
	TrainChars int        // Characters decoded before the spacing is learned
	Workers    int        // Frames decoded concurrently
	NoChars    bool       // Stop after frame segmentation
}

// ConfigFrom converts the decode section of the application configuration
func ConfigFrom(c config.DecodeConfig) *Config {
	return &Config{
		FrameGap:   wave.Width{Min: c.FrameGap.Min, Max: c.FrameGap.Max},
		StartBit:   wave.Width{Min: c.StartBit.Min, Max: c.StartBit.Max},
		BitWidth:   c.BitWidth,
		TrainChars: c.TrainChars,
		Workers:    c.Workers,
		NoChars:    c.NoChars,
	}
}

// Result holds everything a decode run produced
type Result struct {
	Header         wave.Header         `json:"header"`
	Thresholds     wave.Thresholds     `json:"thresholds"`
	SamplePeriod   float64             `json:"sample_period_s"` // 0 when the header has no usable rate
	SampleCount    int                 `json:"sample_count"`
	LevelCount     int                 `json:"level_count"`
	Frames         []*Frame            `json:"frames"`
	ProcessingTime time.Time           `json:"processing_time"`
	Elapsed        time.Duration       `json:"elapsed_ns"`
	Wave           *wave.Wave          `json:"-"`
	Levels         *wave.LevelSequence `json:"-"`
}

// CharacterCount returns the number of characters over all frames
func (r *Result) CharacterCount() int {
	n := 0
	for _, f := range r.Frames {
		n += len(f.Characters)
	}
	return n
}

// FormatSamples renders a sample count as a duration when the sample period is known
func (r *Result) FormatSamples(n int) string {
	if r.SamplePeriod <= 0 {
		return fmt.Sprintf("%d samples", n)
	}
	return wave.FormatTime(float64(n) * r.SamplePeriod)
}

// Processor runs the decode pipeline
type Processor struct {
	config *Config
	logger *zap.Logger
}

// NewProcessor creates a new processor with the given configuration
func NewProcessor(config *Config, logger *zap.Logger) (*Processor, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.FrameGap.Min > config.FrameGap.Max {
		return nil, fmt.Errorf("frame gap range %s is inverted", config.FrameGap)
	}
	if config.StartBit.Min > config.StartBit.Max {
		return nil, fmt.Errorf("start bit range %s is inverted", config.StartBit)
	}
	if config.BitWidth <= 0 {
		return nil, fmt.Errorf("bit width must be positive")
	}
	if config.TrainChars < 1 {
		return nil, fmt.Errorf("train chars must be at least 1")
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{config: config, logger: logger}, nil
}

// Process parses a capture and decodes it
func (p *Processor) Process(ctx context.Context, r io.Reader) (*Result, error) {
	w, err := wave.Parse(r, p.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load capture: %w", err)
	}
	return p.ProcessWave(ctx, w)
}

// ProcessWave decodes an already loaded capture
func (p *Processor) ProcessWave(ctx context.Context, w *wave.Wave) (*Result, error) {
	began := time.Now()
	result := &Result{
		Header:         w.Header,
		Thresholds:     w.Thresholds(),
		SampleCount:    w.SampleCount(),
		ProcessingTime: began,
		Wave:           w,
	}

	if period, err := w.SamplePeriod(); err != nil {
		p.logger.Warn("sample period unknown, durations reported in samples", zap.Error(err))
	} else {
		result.SamplePeriod = period
		p.logger.Info("sample period", zap.String("period", wave.FormatTime(period)))
	}
	p.logger.Info("capture",
		zap.Stringer("amplitude", w.Header.Amplitude),
		zap.String("data_unit", w.Header.DataUnit),
		zap.Stringer("timebase", w.Header.TimeBase),
		zap.String("rate", w.Header.SamplingRate))

	seq, err := w.ExtractLevels()
	if err != nil {
		return nil, err
	}
	result.Levels = seq
	result.LevelCount = seq.Len()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	frames, err := ExtractFrames(seq, p.config.FrameGap, 0, seq.SampleCount(), p.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to extract frames: %w", err)
	}
	result.Frames = frames
	for _, f := range frames {
		p.logger.Info("frame",
			zap.Int("frame", f.Index),
			zap.Stringer("span", f),
			zap.Int("length", f.Length),
			zap.String("duration", result.FormatSamples(f.Length)))
	}

	if !p.config.NoChars {
		if err := p.decodeFrames(ctx, w, seq, result); err != nil {
			return nil, err
		}
	}

	result.Elapsed = time.Since(began)
	return result, nil
}

// decodeFrames decodes frames concurrently; the level sequence and samples are shared read-only
func (p *Processor) decodeFrames(ctx context.Context, w *wave.Wave, seq *wave.LevelSequence, result *Result) error {
	dec := NewDecoder(w, seq, p.config.BitWidth, p.logger).WithSamplePeriod(result.SamplePeriod)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Workers)
	for _, f := range result.Frames {
		f := f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			chars, err := dec.ExtractCharacters(f, p.config.TrainChars, p.config.StartBit)
			if err != nil {
				return err
			}
			p.logger.Info("frame decoded",
				zap.Int("frame", f.Index),
				zap.Int("characters", len(chars)),
				zap.String("hex", f.Hex()))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to extract characters: %w", err)
	}
	return nil
}
