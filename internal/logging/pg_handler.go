package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/customer-onboarding/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultBatchSize     = 50
	defaultFlushInterval = 5 * time.Second
)

// LogWriter persists a batch of log rows.
type LogWriter interface {
	WriteLogs(batch []models.SystemLog) error
}

type gormLogWriter struct {
	db *gorm.DB
}

func (w gormLogWriter) WriteLogs(batch []models.SystemLog) error {
	return w.db.CreateInBatches(batch, defaultBatchSize).Error
}

// PGHandler is an slog.Handler that batches ERROR+ logs to PostgreSQL.
type PGHandler struct {
	core  *pgCore
	attrs []slog.Attr
}

type pgCore struct {
	writer    LogWriter
	batchSize int
	mu        sync.Mutex
	buffer    []models.SystemLog
	closed    bool
	ticker    *time.Ticker
	done      chan struct{}
	stopOnce  sync.Once
	stopped   chan struct{}
}

func NewPGHandler(db *gorm.DB) *PGHandler {
	return NewBatchHandler(gormLogWriter{db: db}, defaultBatchSize, defaultFlushInterval)
}

// NewBatchHandler buffers ERROR+ records and hands them to w every interval,
// or as soon as batchSize records are waiting.
func NewBatchHandler(w LogWriter, batchSize int, interval time.Duration) *PGHandler {
	core := &pgCore{
		writer:    w,
		batchSize: batchSize,
		buffer:    make([]models.SystemLog, 0, batchSize),
		ticker:    time.NewTicker(interval),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	go core.flushLoop()
	return &PGHandler{core: core}
}

func (c *pgCore) flushLoop() {
	defer close(c.stopped)
	for {
		select {
		case <-c.ticker.C:
			c.flush()
		case <-c.done:
			c.flush()
			return
		}
	}
}

func (c *pgCore) flush() {
	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.buffer
	c.buffer = make([]models.SystemLog, 0, c.batchSize)
	c.mu.Unlock()

	if err := c.writer.WriteLogs(batch); err != nil {
		// stdout only; routing this through the default logger would loop back here
		slog.New(NewJSONHandler(stdout)).Warn("failed to flush system logs to DB", "error", err, "count", len(batch))
	}
}

// Stop flushes what is buffered and waits for the flush loop to exit.
// Records handled after Stop are dropped; stdout still carries them.
func (h *PGHandler) Stop() {
	h.core.stopOnce.Do(func() {
		h.core.mu.Lock()
		h.core.closed = true
		h.core.mu.Unlock()
		h.core.ticker.Stop()
		close(h.core.done)
	})
	<-h.core.stopped
}

// Enabled only handles ERROR and above.
func (h *PGHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelError
}

func (h *PGHandler) Handle(_ context.Context, record slog.Record) error {
	entry := models.SystemLog{
		ID:        uuid.New(),
		Timestamp: record.Time,
		Level:     record.Level.String(),
		Message:   record.Message,
	}

	extra := make(map[string]any)
	apply := func(a slog.Attr) bool {
		switch a.Key {
		case "request_id":
			entry.RequestID = a.Value.String()
		case "method":
			entry.Method = a.Value.String()
		case "path":
			entry.Path = a.Value.String()
		case "customer_uid":
			s := a.Value.String()
			entry.CustomerUID = &s
		case "error":
			entry.Error = a.Value.String()
		case "latency_ms":
			switch v := a.Value.Any().(type) {
			case float64:
				entry.LatencyMs = int(math.Round(v))
			case int64:
				entry.LatencyMs = int(v)
			}
		default:
			extra[a.Key] = a.Value.Any()
		}
		return true
	}
	for _, a := range h.attrs {
		apply(a)
	}
	record.Attrs(apply)

	if len(extra) > 0 {
		if b, err := json.Marshal(extra); err == nil {
			entry.Extra = datatypes.JSON(b)
		}
	}

	c := h.core
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.buffer = append(c.buffer, entry)
	needFlush := len(c.buffer) >= c.batchSize
	c.mu.Unlock()

	if needFlush {
		go c.flush()
	}
	return nil
}

func (h *PGHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &PGHandler{core: h.core, attrs: merged}
}

// WithGroup is a no-op: system_logs columns are flat.
func (h *PGHandler) WithGroup(string) slog.Handler {
	return h
}
