// monitor.go
package file

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileMonitor 监听目录里数据文件的写入事件
type FileMonitor struct {
	watchDir string
	watcher  *fsnotify.Watcher
	lastFile string
	lastMod  time.Time
	mu       sync.Mutex
}

func NewFileMonitor(dir string) (*FileMonitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	return &FileMonitor{
		watchDir: dir,
		watcher:  watcher,
	}, nil
}

// Watch 阻塞监听，csv或xlsx文件有新的写入时回调handler
// 同一文件的连续写入按修改时间去抖，handler在独立goroutine里执行
func (m *FileMonitor) Watch(handler func(string)) error {
	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Write == fsnotify.Write && isDataFile(event.Name) {
				info, err := os.Stat(event.Name)
				if err != nil {
					continue
				}

				m.mu.Lock()
				if info.ModTime().After(m.lastMod) {
					m.lastMod = info.ModTime()
					m.lastFile = event.Name
					go handler(event.Name)
				}
				m.mu.Unlock()
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

// Close 停止监听，Watch随之返回
func (m *FileMonitor) Close() error {
	return m.watcher.Close()
}

// LastFile 最近一次触发处理的文件
func (m *FileMonitor) LastFile() (string, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastFile, m.lastMod
}

func isDataFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".csv" || ext == ".xlsx"
}

// SetupSignalHandler 收到中断信号时取消上下文
func SetupSignalHandler(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		fmt.Printf("\n收到信号: %v，准备退出...\n", sig)
		cancel()
	}()
}
