package simulation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMultiLog(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	mem := NewMemoryLog()
	log := MultiLog{mem, nil, NewZapLog(zap.New(core))}

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	log.Record(Entry{Time: ts, Step: 1, User: "left", Action: MakeDir, Path: "/left/0"})
	log.Record(Entry{Time: ts, Step: 2, User: "left", Action: GrantReadFile, Path: "/left/1", Note: "with grantee right"})

	entries := mem.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "/left/1", entries[1].Path)

	require.Equal(t, 2, logs.Len())
	first := logs.All()[0]
	assert.Equal(t, "op", first.Message)
	assert.Equal(t, "mkdir", first.ContextMap()["action"])
	assert.NotContains(t, first.ContextMap(), "note")
	assert.Equal(t, "with grantee right", logs.All()[1].ContextMap()["note"])
}
