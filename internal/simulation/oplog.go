package simulation

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Entry is one executed operation. Entries are diagnostics only; the engine
// never reads them back.
type Entry struct {
	Time   time.Time `json:"ts"`
	Step   int       `json:"step"`
	User   string    `json:"user"`
	Action Action    `json:"action"`
	Path   string    `json:"path"`
	Note   string    `json:"note,omitempty"`
}

// OpLog is an append-only sink for executed operations.
type OpLog interface {
	Record(e Entry)
}

// MemoryLog keeps entries in memory.
type MemoryLog struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemoryLog creates an empty in-memory log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (m *MemoryLog) Record(e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
}

// Entries returns a copy of everything recorded so far.
func (m *MemoryLog) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}

// ZapLog emits each entry as a structured "op" line.
type ZapLog struct {
	logger *zap.Logger
}

// NewZapLog wraps logger.
func NewZapLog(logger *zap.Logger) *ZapLog {
	return &ZapLog{logger: logger}
}

func (z *ZapLog) Record(e Entry) {
	fields := []zap.Field{
		zap.Int("step", e.Step),
		zap.String("user", e.User),
		zap.Stringer("action", e.Action),
		zap.String("path", e.Path),
		zap.Time("ts", e.Time),
	}
	if e.Note != "" {
		fields = append(fields, zap.String("note", e.Note))
	}
	z.logger.Info("op", fields...)
}

// MultiLog fans each entry out to several sinks.
type MultiLog []OpLog

func (m MultiLog) Record(e Entry) {
	for _, l := range m {
		if l != nil {
			l.Record(e)
		}
	}
}

type discardLog struct{}

func (discardLog) Record(Entry) {}
