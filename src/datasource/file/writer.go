// writer.go
package file

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-gota/gota/dataframe"
)

// WriteCSV 将DataFrame导出为带表头的csv文件，目录不存在时自动创建
func WriteCSV(df dataframe.DataFrame, filePath string) error {
	if df.Err != nil {
		return fmt.Errorf("导出的表无效: %w", df.Err)
	}
	if err := ensureDir(filepath.Dir(filePath)); err != nil {
		return err
	}

	f, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("创建导出文件失败: %w", err)
	}
	defer f.Close()

	if err := df.WriteCSV(f, dataframe.WriteHeader(true)); err != nil {
		return fmt.Errorf("写入csv失败: %w", err)
	}
	return nil
}

// ensureDir 确保目录存在
func ensureDir(dirPath string) error {
	if dirPath == "" || dirPath == "." {
		return nil
	}
	if info, err := os.Stat(dirPath); err == nil {
		if info.IsDir() {
			return nil
		}
		return fmt.Errorf("%s 已存在但不是目录", dirPath)
	}
	return os.MkdirAll(dirPath, 0755)
}
