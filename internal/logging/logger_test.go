package logging

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger("generator", &buf, INFO)

	l.Debug("скрытое сообщение")
	l.Info("карта %dx%d готова", 4, 4)
	l.Error("ошибка: %v", "degenerate input")

	out := buf.String()
	assert.NotContains(t, out, "скрытое сообщение")
	assert.Contains(t, out, "[INFO] [generator] карта 4x4 готова")
	assert.Contains(t, out, "[ERROR] [generator] ошибка: degenerate input")
}

func TestNilLoggerIsNoop(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() { l.Info("ничего") })

	SetDefaultLogger(nil)
	assert.NotPanics(t, func() { Info("ничего") })
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, DEBUG, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, INFO, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestLoggerManagerFileLogger(t *testing.T) {
	dir := t.TempDir()
	SetLogDir(dir)
	defer SetLogDir("logs")

	lm := GetLoggerManager()
	l, err := lm.GetLogger("storage-test")
	require.NoError(t, err)

	same, err := lm.GetLogger("storage-test")
	require.NoError(t, err)
	assert.Same(t, l, same, "логгер компонента создаётся один раз")
	assert.Contains(t, lm.ListComponents(), "storage-test")

	require.NoError(t, lm.SetLogLevel("storage-test", ERROR, TRACE))
	l.Trace("запись в файл")

	assert.Error(t, lm.SetLogLevel("missing", INFO, INFO))
	require.NoError(t, lm.CloseAll())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(dir + "/" + entries[0].Name())
	require.NoError(t, err)
	assert.Contains(t, string(data), "[TRACE] [storage-test] запись в файл")
}
