package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"AirlinesAnalysis/src/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWrite(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "analysis.log")

	logger, err := NewLogger(logPath)
	require.NoError(t, err)

	logger.Info("数据处理完成")
	logger.Error("读取文件失败")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)

	content := string(data)
	assert.Contains(t, content, "INFO: 数据处理完成")
	assert.Contains(t, content, "ERROR: 读取文件失败")
}

func TestLoggerSubscribe(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "analysis.log")

	logger, err := NewLogger(logPath)
	require.NoError(t, err)
	defer logger.Close()

	ch := logger.Subscribe()
	logger.Warning("磁盘空间不足")

	select {
	case entry := <-ch:
		assert.Contains(t, entry, "WARNING: 磁盘空间不足")
	case <-time.After(time.Second):
		t.Fatal("未收到订阅的日志消息")
	}
}

func TestLoggerRotate(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "analysis.log")

	logger, err := NewLogger(logPath)
	require.NoError(t, err)
	defer logger.Close()

	for i := 0; i < 10; i++ {
		logger.Info("填充日志内容以触发轮转")
	}

	cfg := &config.Config{LogMaxSize: "16"}
	require.NoError(t, logger.CheckRotate(cfg))

	// 原文件被重命名，新文件重建
	rotated, err := filepath.Glob(logPath + ".*")
	require.NoError(t, err)
	assert.NotEmpty(t, rotated)

	info, err := os.Stat(logPath)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", DEBUG.String())
	assert.Equal(t, "INFO", INFO.String())
	assert.Equal(t, "WARNING", WARNING.String())
	assert.Equal(t, "ERROR", ERROR.String())
	assert.Equal(t, "FATAL", FATAL.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}

func TestEvalSizeExpr(t *testing.T) {
	assert.Equal(t, int64(10*1024*1024), eval("10 * 1024 * 1024"))
	assert.Equal(t, int64(16), eval("16"))
}
