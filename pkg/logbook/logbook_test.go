package logbook_test

import (
	"strings"
	"testing"

	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/icvsb/icvsb/pkg/logbook"
)

func TestBookAppendAndRender(t *testing.T) {
	book := logbook.NewBook(10)
	book.Append(logbook.LevelInfo, "benchmark started over %d dataset uris", 3)
	book.Append(logbook.LevelWarn, "drift detected")

	require.Equal(t, 2, book.Len())

	entries := book.Entries()
	assert.Equal(t, "benchmark started over 3 dataset uris", entries[0].Message)
	assert.Equal(t, logbook.LevelWarn, entries[1].Level)

	rendered := book.Render()
	lines := strings.Split(strings.TrimSuffix(rendered, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[INFO] benchmark started over 3 dataset uris")
	assert.Contains(t, lines[1], "[WARN] drift detected")
}

func TestBookDropsOldestBeyondLimit(t *testing.T) {
	book := logbook.NewBook(3)
	for i := 0; i < 5; i++ {
		book.Append(logbook.LevelInfo, "entry %d", i)
	}

	entries := book.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "entry 2", entries[0].Message)
	assert.Equal(t, "entry 4", entries[2].Message)
}

func TestRecorderMirrorsIntoBook(t *testing.T) {
	zapLogger, _ := zap.NewDevelopment()
	logger := zapadapter.NewZapEctoLogger(zapLogger, nil)

	book := logbook.NewBook(10)
	recorder := logbook.NewRecorder(book, logger, 42)

	recorder.Infof("benchmark completed: key %d", 7)
	recorder.Errorf("benchmark failed: %v", "boom")

	entries := book.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, logbook.LevelInfo, entries[0].Level)
	assert.Equal(t, "benchmark completed: key 7", entries[0].Message)
	assert.Equal(t, logbook.LevelError, entries[1].Level)
}
