package activity

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/scanwatch/pkg/types"
	"github.com/projectdiscovery/utils/batcher"
)

const (
	// DefaultBatchSize is the number of entries buffered before a write
	DefaultBatchSize = 100
	// DefaultFlushInterval is the maximum delay before buffered entries are written
	DefaultFlushInterval = 5 * time.Second
)

// SinkOption configures a FileSink
type SinkOption func(*FileSink)

// WithBatchSize sets how many entries are buffered before a write.
// Non positive values keep the default.
func WithBatchSize(size int) SinkOption {
	return func(s *FileSink) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithFlushInterval sets the maximum delay before buffered entries are
// written. Non positive values keep the default.
func WithFlushInterval(interval time.Duration) SinkOption {
	return func(s *FileSink) {
		if interval > 0 {
			s.flushInterval = interval
		}
	}
}

// FileSink appends activity entries to a file as JSON lines
type FileSink struct {
	mu      sync.Mutex
	file    *os.File
	writer  *bufio.Writer
	batcher *batcher.Batcher[types.ActivityEntry]

	batchSize     int
	flushInterval time.Duration
}

// NewFileSink opens (or creates) path in append mode and starts the batcher
func NewFileSink(path string, opts ...SinkOption) (*FileSink, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("could not open activity output %s: %w", path, err)
	}

	s := &FileSink{
		file:          file,
		writer:        bufio.NewWriter(file),
		batchSize:     DefaultBatchSize,
		flushInterval: DefaultFlushInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.batcher = batcher.New(
		batcher.WithMaxCapacity[types.ActivityEntry](s.batchSize),
		batcher.WithFlushInterval[types.ActivityEntry](s.flushInterval),
		batcher.WithFlushCallback[types.ActivityEntry](s.flush),
	)

	s.batcher.Run()

	return s, nil
}

// Record queues an entry for writing
func (s *FileSink) Record(entry types.ActivityEntry) {
	s.batcher.Append(entry)
}

func (s *FileSink) flush(entries []types.ActivityEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	encoder := json.NewEncoder(s.writer)
	for _, entry := range entries {
		if err := encoder.Encode(entry); err != nil {
			gologger.Warning().Msgf("could not encode activity entry %s: %v", entry.ID, err)
		}
	}
	if err := s.writer.Flush(); err != nil {
		gologger.Warning().Msgf("could not write activity entries: %v", err)
	}
}

// Close flushes pending entries and closes the file
func (s *FileSink) Close() error {
	s.batcher.Stop()
	s.batcher.WaitDone()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writer.Flush(); err != nil {
		_ = s.file.Close()
		return err
	}
	return s.file.Close()
}
