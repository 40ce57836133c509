// Package collector records scope exports arriving over a serial link to disk
package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"oscwave/internal/capture"
	"oscwave/internal/config"
	"oscwave/internal/wave"

	"go.uber.org/zap"
)

// SourceFunc opens the stream a collection reads from
type SourceFunc func(ctx context.Context) (io.ReadCloser, error)

type Collector struct {
	config   *config.Config
	logger   *zap.Logger
	open     SourceFunc
	source   io.ReadCloser
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type copyResult struct {
	n   int64
	err error
}

// Summary describes a finished collection
type Summary struct {
	CollectionID string
	Filename     string
	Bytes        int64
	Samples      int
	SamplePeriod float64
}

func NewCollector(cfg *config.Config, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		config:   cfg,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
	c.open = func(ctx context.Context) (io.ReadCloser, error) {
		col := cfg.Collection
		return capture.OpenSerial(ctx, col.Port, col.BaudRate, col.IdleTimeout, logger)
	}
	return c
}

// WithSource replaces the serial port, e.g. with a file or a pipe
func (c *Collector) WithSource(open SourceFunc) *Collector {
	c.open = open
	return c
}

func (c *Collector) Initialize(ctx context.Context) error {
	if err := os.MkdirAll(c.config.Collection.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	src, err := c.open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open capture source: %w", err)
	}
	c.source = src
	return nil
}

// CollectWithContext copies the source to a timestamped file until the
// source ends, the configured duration passes, Stop is called or ctx is done.
// The file is then parsed to confirm it holds a usable export.
func (c *Collector) CollectWithContext(ctx context.Context) (*Summary, error) {
	if c.source == nil {
		return nil, errors.New("collector not initialized")
	}

	startTime := time.Now()
	collectionID := c.collectionID(startTime)
	filename := filepath.Join(c.config.Collection.OutputDir, collectionID+".txt")

	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create capture file: %w", err)
	}

	c.logger.Info("starting collection",
		zap.String("id", collectionID),
		zap.Duration("duration", c.config.Collection.Duration))

	done := make(chan copyResult, 1)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		n, err := io.Copy(file, c.source)
		done <- copyResult{n, err}
	}()

	var written int64
	var cancelled error
	select {
	case res := <-done:
		written = res.n
		if res.err != nil {
			file.Close()
			return nil, fmt.Errorf("collection failed: %w", res.err)
		}
	case <-time.After(c.config.Collection.Duration):
		c.logger.Info("collection duration reached")
		written = c.interrupt(done)
	case <-c.stopChan:
		c.logger.Info("collection stopped")
		written = c.interrupt(done)
	case <-ctx.Done():
		c.interrupt(done)
		cancelled = ctx.Err()
	}

	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close capture file: %w", err)
	}
	if cancelled != nil {
		return nil, fmt.Errorf("collection cancelled: %w", cancelled)
	}

	summary := &Summary{CollectionID: collectionID, Filename: filename, Bytes: written}
	if err := c.verify(summary); err != nil {
		return summary, err
	}

	c.logger.Info("collection saved",
		zap.String("file", filename),
		zap.Int64("bytes", written),
		zap.Int("samples", summary.Samples))
	return summary, nil
}

// interrupt closes the source so the copy returns, and reports what it wrote
func (c *Collector) interrupt(done <-chan copyResult) int64 {
	c.source.Close()
	res := <-done
	return res.n
}

func (c *Collector) verify(s *Summary) error {
	f, err := os.Open(s.Filename)
	if err != nil {
		return fmt.Errorf("failed to reopen capture: %w", err)
	}
	defer f.Close()

	w, err := wave.Parse(f, c.logger)
	if err != nil {
		return fmt.Errorf("captured file is not a usable export: %w", err)
	}
	s.Samples = len(w.Samples)
	if period, err := w.SamplePeriod(); err == nil {
		s.SamplePeriod = period
	}
	return nil
}

func (c *Collector) collectionID(start time.Time) string {
	col := c.config.Collection
	if col.CollectionID != "" {
		return fmt.Sprintf("%s_%d", col.CollectionID, start.Unix())
	}
	prefix := col.FilePrefix
	if prefix == "" {
		prefix = "oscwave"
	}
	port := strings.Trim(strings.ReplaceAll(filepath.Base(col.Port), " ", ""), ".")
	if port == "" || port == "/" {
		return fmt.Sprintf("%s_%d", prefix, start.Unix())
	}
	return fmt.Sprintf("%s-%s_%d", prefix, port, start.Unix())
}

func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

func (c *Collector) Close() error {
	c.Stop()
	c.wg.Wait()
	if c.source != nil {
		if err := c.source.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			return fmt.Errorf("source close error: %w", err)
		}
	}
	return nil
}
