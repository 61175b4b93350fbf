package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

func TestNew_Defaults(t *testing.T) {
	logger, err := New(Options{})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
	assert.Equal(t, os.Stderr, logger.Out)
}

func TestNew_JSON(t *testing.T) {
	logger, err := New(Options{Level: "DEBUG", Format: "json"})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	var buf bytes.Buffer
	logger.SetOutput(&buf)
	logger.WithField("pool", "0xabc").Info("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["message"])
	assert.Equal(t, "0xabc", line["pool"])
	assert.Contains(t, line, "timestamp")
}

func TestNew_FileOutputRotates(t *testing.T) {
	p := filepath.Join(t.TempDir(), "run.log")
	logger, err := New(Options{Output: p, MaxAge: 7})
	require.NoError(t, err)

	lj, ok := logger.Out.(*lumberjack.Logger)
	require.True(t, ok)
	assert.Equal(t, p, lj.Filename)
	assert.Equal(t, 7, lj.MaxAge)
	require.NoError(t, lj.Close())
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)

	_, err = New(Options{Format: "xml"})
	assert.Error(t, err)
}
