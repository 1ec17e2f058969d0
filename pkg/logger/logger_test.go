package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "collection_log.txt")

	log, closeFn, err := New(Config{Level: "debug", Format: "text", File: path})
	require.NoError(t, err)

	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	WithComponent(log, "collector").WithField("market", "bonds").Error("Error fetching DGS10")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.True(t, strings.Contains(content, "level=error"), "文件日志不应包含颜色控制符")
	assert.Contains(t, content, "component=collector")
	assert.Contains(t, content, "market=bonds")
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	log, closeFn, err := New(Config{Level: "verbose"})
	require.NoError(t, err)
	defer closeFn()

	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}

func TestWithComponent_NilLogger(t *testing.T) {
	entry := WithComponent(nil, "tracker")
	assert.Equal(t, "tracker", entry.Data["component"])
}
