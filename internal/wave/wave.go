// Package wave reads oscilloscope text exports and reconstructs the digital
// level sequence carried by the captured signal.
package wave

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

// Quantity is a header value with a unit, e.g. "500us" or "2.00V"
type Quantity struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
	Raw   string  `json:"raw"`
}

func (q Quantity) String() string {
	return strings.TrimSpace(fmt.Sprintf("%g %s", q.Value, q.Unit))
}

// Field is a header line the decoder does not interpret
type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Header holds the metadata lines at the top of an export
type Header struct {
	TimeBase     Quantity `json:"time_base"`
	SamplingRate string   `json:"sampling_rate"` // e.g. "1MSa/s"
	Amplitude    Quantity `json:"amplitude"`
	AmplitudeRes Quantity `json:"amplitude_resolution"`
	DataUnit     string   `json:"data_unit"`
	DataPoints   int      `json:"data_points"`
	Others       []Field  `json:"others,omitempty"`
}

// Thresholds are the decision levels derived from the sample range
type Thresholds struct {
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Midpoint float64 `json:"midpoint"`
	Low      float64 `json:"low"`
	High     float64 `json:"high"`
}

// NewThresholds computes the decision levels for a sample range
func NewThresholds(min, max float64) Thresholds {
	mid := (min + max) / 2
	return Thresholds{
		Min:      min,
		Max:      max,
		Midpoint: mid,
		High:     (max + mid) / 2,
		Low:      (min + mid) / 2,
	}
}

// Classify maps a sample value to a level
func (t Thresholds) Classify(v float64) (Level, error) {
	switch {
	case v < t.Low:
		return Low, nil
	case v > t.High:
		return High, nil
	}
	return Low, fmt.Errorf("%w: %g not outside range %g to %g", ErrIndeterminateLevel, v, t.Low, t.High)
}

// Wave is a loaded capture. It is not modified after Parse returns.
type Wave struct {
	Header     Header
	Samples    []float64
	thresholds Thresholds
	logger     *zap.Logger
}

var floatPattern = regexp.MustCompile(`(([1-9][0-9]*\.?[0-9]*)|(\.[0-9]+)|(0\.?[0-9]*))([Ee][+-]?[0-9]+)?`)

// New wraps an in-memory sample slice, mostly for synthetic captures
func New(header Header, samples []float64, logger *zap.Logger) (*Wave, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Wave{
		Header:     header,
		Samples:    samples,
		thresholds: NewThresholds(floats.Min(samples), floats.Max(samples)),
		logger:     logger,
	}
	logger.Debug("thresholds",
		zap.Float64("midpoint", w.thresholds.Midpoint),
		zap.Float64("high", w.thresholds.High),
		zap.Float64("low", w.thresholds.Low))
	return w, nil
}

// Parse reads an oscilloscope text export
func Parse(r io.Reader, logger *zap.Logger) (*Wave, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var header Header
	var samples []float64

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		if line[0] >= 'A' && line[0] <= 'Z' {
			if err := header.set(line); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			continue
		}

		v, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid sample %q: %w", lineNo, line, err)
		}
		samples = append(samples, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read capture: %w", err)
	}

	logger.Debug("capture loaded", zap.Int("samples", len(samples)), zap.Int("declared", header.DataPoints))
	return New(header, samples, logger)
}

func (h *Header) set(line string) error {
	key, value, _ := strings.Cut(line, ":")
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)

	switch key {
	case "Time Base":
		h.TimeBase = parseQuantity(value)
	case "Sampling Rate":
		h.SamplingRate = value
	case "Amplitude":
		h.Amplitude = parseQuantity(value)
	case "Amplitude resolution":
		h.AmplitudeRes = parseQuantity(value)
	case "Data Uint":
		h.DataUnit = parseDataUnit(value)
	case "Data points":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid data points %q: %w", value, err)
		}
		h.DataPoints = n
	default:
		h.Others = append(h.Others, Field{Key: key, Value: value})
	}
	return nil
}

func parseQuantity(s string) Quantity {
	q := Quantity{Raw: s}
	loc := floatPattern.FindStringIndex(s)
	if loc == nil {
		q.Unit = s
		return q
	}
	q.Value, _ = strconv.ParseFloat(s[loc[0]:loc[1]], 64)
	q.Unit = strings.TrimSpace(s[loc[1]:])
	return q
}

// "mv" becomes "mV"; anything without a 'v' is kept verbatim
func parseDataUnit(s string) string {
	i := strings.Index(s, "v")
	if i < 1 {
		return s
	}
	return s[i-1:i] + "V"
}

var rateMultipliers = map[byte]float64{
	'k': 1e3,
	'M': 1e6,
	'G': 1e9,
	'T': 1e12,
}

// SamplingRate returns the header rate in samples per second
func (w *Wave) SamplingRate() (float64, error) {
	return ParseSamplingRate(w.Header.SamplingRate)
}

// ParseSamplingRate converts strings like "1MSa/s" or "250kSa/s" to samples per second
func ParseSamplingRate(s string) (float64, error) {
	body := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "Sa/s"))
	if body == "" {
		return 0, fmt.Errorf("%w: %q", ErrBadSamplingRate, s)
	}
	mult := 1.0
	if m, ok := rateMultipliers[body[len(body)-1]]; ok {
		mult = m
		body = body[:len(body)-1]
	}
	num, err := strconv.ParseFloat(strings.TrimSpace(body), 64)
	if err != nil || num <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadSamplingRate, s)
	}
	return num * mult, nil
}

// SamplePeriod returns the time between samples in seconds
func (w *Wave) SamplePeriod() (float64, error) {
	rate, err := w.SamplingRate()
	if err != nil {
		return 0, err
	}
	return 1.0 / rate, nil
}

// SampleCount is the number of samples the extractor walks: the declared
// "Data points" when present, capped at the samples actually read.
func (w *Wave) SampleCount() int {
	n := len(w.Samples)
	if d := w.Header.DataPoints; d > 0 && d < n {
		return d
	}
	return n
}

// Thresholds returns the decision levels computed from all samples
func (w *Wave) Thresholds() Thresholds {
	return w.thresholds
}

// LevelAt classifies the sample at pos
func (w *Wave) LevelAt(pos int) (Level, error) {
	if pos < 0 || pos >= len(w.Samples) {
		return Low, fmt.Errorf("%w: %d not in [0, %d)", ErrPositionOutOfRange, pos, len(w.Samples))
	}
	lvl, err := w.thresholds.Classify(w.Samples[pos])
	if err != nil {
		return Low, fmt.Errorf("sample %d: %w", pos, err)
	}
	return lvl, nil
}
