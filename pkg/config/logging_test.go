package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/mpapenbr/trackprogress/log"
)

func TestLoadLogConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.yml")
	assert.NilError(t, os.WriteFile(path, []byte("level: warn\nfilter: \"info+:sim*\"\n"), 0o600))

	got, err := LoadLogConfig(path, LogSettings{Level: "info", Format: "json"})
	assert.NilError(t, err)
	assert.DeepEqual(t, *got, LogSettings{Level: "warn", Format: "json", Filter: "info+:sim*"})

	_, err = LoadLogConfig(filepath.Join(t.TempDir(), "missing.yml"), LogSettings{})
	assert.ErrorContains(t, err, "missing.yml")
}

func TestNewLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	l, err := NewLogger(buf, LogSettings{Level: "info", Format: "json"})
	assert.NilError(t, err)
	l.Debug("hidden")
	l.Info("shown")
	assert.Check(t, is.Contains(buf.String(), `"msg":"shown"`))
	assert.Check(t, !bytes.Contains(buf.Bytes(), []byte("hidden")))

	buf.Reset()
	l, err = NewLogger(buf, LogSettings{Level: "debug", Format: "text", Filter: "debug+:session*"})
	assert.NilError(t, err)
	l.Named("session").Debug("from session")
	l.Named("sim").Info("from sim")
	assert.Check(t, is.Contains(buf.String(), "from session"))
	assert.Check(t, !bytes.Contains(buf.Bytes(), []byte("from sim")))

	_, err = NewLogger(buf, LogSettings{Filter: "loud+:*"})
	assert.Check(t, err != nil)
}

func TestSetupLogger(t *testing.T) {
	prev := log.Default()
	t.Cleanup(func() {
		log.ResetDefault(prev)
		LogLevel, LogFormat, LogConfig = "", "", ""
	})

	path := filepath.Join(t.TempDir(), "log.yml")
	assert.NilError(t, os.WriteFile(path, []byte("level: error\n"), 0o600))
	LogLevel, LogFormat, LogConfig = "debug", "json", path

	buf := &bytes.Buffer{}
	l, err := SetupLogger(buf)
	assert.NilError(t, err)
	assert.Equal(t, l, log.Default())
	assert.Equal(t, l.Level(), log.ErrorLevel)
}
