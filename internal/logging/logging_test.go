package logging_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"chatflow/client/internal/logging"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New("debug", &buf)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	logging.Component(logger, "transport").Debug("hello")
	assert.Contains(t, buf.String(), "component=transport")
}

func TestNewUnknownLevelFallsBack(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New("chatty", &buf)

	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.Contains(t, buf.String(), "unknown log level")
}

func TestNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.log")

	logger, closer, err := logging.NewFile("info", path)
	require.NoError(t, err)
	logger.Info("written")
	require.NoError(t, closer.Close())

	assert.FileExists(t, path)
}
