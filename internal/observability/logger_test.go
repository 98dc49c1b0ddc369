package observability

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/softlight/wayfinder/internal/config"
)

type memSyncer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (m *memSyncer) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buf.Write(p)
}

func (m *memSyncer) Sync() error { return nil }

func (m *memSyncer) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buf.String()
}

func TestInitialize_ConsoleCore(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	sink := &memSyncer{}
	Initialize(config.LogConfig{Level: "debug"}, sink)

	log := GetLogger()
	log.Info("run started", zap.String("app", "shoppinglist"))
	_ = log.Sync()

	out := sink.String()
	assert.Contains(t, out, "run started")
	assert.Contains(t, out, "shoppinglist")
	assert.Contains(t, out, "wayfinder")
}

func TestInitialize_LevelFiltering(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	sink := &memSyncer{}
	Initialize(config.LogConfig{Level: "warn"}, sink)

	log := GetLogger()
	log.Info("too quiet")
	log.Warn("loud enough")
	_ = log.Sync()

	out := sink.String()
	assert.NotContains(t, out, "too quiet")
	assert.Contains(t, out, "loud enough")
}

func TestInitialize_JSONConsoleFormat(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	sink := &memSyncer{}
	Initialize(config.LogConfig{Level: "info", Format: "json"}, sink)

	log := GetLogger()
	log.Info("structured line")
	_ = log.Sync()

	line := strings.SplitN(strings.TrimSpace(sink.String()), "\n", 2)[0]
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "structured line", entry["msg"])
}

func TestInitialize_FileCoreWritesJSON(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logFile := filepath.Join(t.TempDir(), "wayfinder.log")
	Initialize(config.LogConfig{Level: "info", File: logFile, MaxSizeMB: 1}, &memSyncer{})

	log := GetLogger()
	log.Info("step executed")
	_ = log.Sync()

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	line := strings.SplitN(strings.TrimSpace(string(data)), "\n", 2)[0]

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "step executed", entry["msg"])
}

func TestInitialize_OnlyFirstCallWins(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	first := &memSyncer{}
	second := &memSyncer{}
	Initialize(config.LogConfig{Level: "info"}, first)
	Initialize(config.LogConfig{Level: "info"}, second)

	log := GetLogger()
	log.Info("routed to first sink")
	_ = log.Sync()

	assert.Contains(t, first.String(), "routed to first sink")
	assert.Empty(t, second.String())
}

func TestGetLogger_FallbackBeforeInitialize(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	assert.NotNil(t, GetLogger())
}
