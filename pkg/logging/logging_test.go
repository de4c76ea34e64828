package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLevel("WARNING"))
	assert.Equal(t, ErrorLevel, ParseLevel("error"))
	assert.Equal(t, InfoLevel, ParseLevel("nonsense"))
}

func TestComponentAddsPrefixAndPreservesLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: "debug", Output: &buf})

	ledgerLog := l.Component("ledger")
	assert.Equal(t, DebugLevel, ledgerLog.GetLevel())

	ledgerLog.Info("block committed")
	assert.Contains(t, buf.String(), "ledger")
	assert.Contains(t, buf.String(), "block committed")
}

func TestWithFileSinkTeesOutput(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{Level: "info", Output: &buf}

	path := filepath.Join(t.TempDir(), "node.log")
	teed, closer, err := WithFileSink(cfg, path)
	require.NoError(t, err)
	require.NotNil(t, closer)
	defer closer.Close()

	l := New(teed)
	l.Info("hello file sink")

	assert.Contains(t, buf.String(), "hello file sink")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "hello file sink"))
}

func TestWithFileSinkNoPathReturnsConfigUnchanged(t *testing.T) {
	cfg := &Config{Level: "info"}
	out, closer, err := WithFileSink(cfg, "")
	require.NoError(t, err)
	assert.Nil(t, closer)
	assert.Same(t, cfg, out)
}
