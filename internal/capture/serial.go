package capture

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

// pollInterval bounds each blocking read so cancellation is noticed
const pollInterval = 100 * time.Millisecond

// OpenSerial opens a scope's serial export. The stream ends once data has
// arrived and the line then stays quiet for idle.
func OpenSerial(ctx context.Context, portName string, baud int, idle time.Duration, logger *zap.Logger) (io.ReadCloser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if baud <= 0 {
		baud = 115200
	}
	if idle <= 0 {
		idle = 2 * time.Second
	}

	mode := &serial.Mode{
		BaudRate: baud,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(pollInterval); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", portName, err)
	}

	logger.Info("waiting for scope export", zap.String("port", portName), zap.Int("baud", baud))
	return NewIdleReader(ctx, port, idle), nil
}

// IdleReader turns a polling reader, one that returns (0, nil) when no data
// is ready, into a stream that ends after a quiet period.
type IdleReader struct {
	ctx      context.Context
	src      io.ReadCloser
	idle     time.Duration
	started  bool
	lastData time.Time
	now      func() time.Time
}

// NewIdleReader wraps src
func NewIdleReader(ctx context.Context, src io.ReadCloser, idle time.Duration) *IdleReader {
	return &IdleReader{ctx: ctx, src: src, idle: idle, now: time.Now}
}

// Read blocks until data arrives, the quiet period expires after data has
// been seen, or the context is cancelled.
func (r *IdleReader) Read(p []byte) (int, error) {
	for {
		if err := r.ctx.Err(); err != nil {
			return 0, err
		}
		n, err := r.src.Read(p)
		if n > 0 {
			r.started = true
			r.lastData = r.now()
			return n, err
		}
		if err != nil {
			return 0, err
		}
		if r.started && r.now().Sub(r.lastData) >= r.idle {
			return 0, io.EOF
		}
	}
}

// Close closes the underlying port
func (r *IdleReader) Close() error {
	return r.src.Close()
}
