// Package storage 提供文件的原子写入：先写同目录临时文件并落盘，再重命名覆盖目标。
// 中途失败或进程中断时，目标文件保持上一次完整写入的内容。
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteFunc 向临时文件写入内容
type WriteFunc func(w io.Writer) error

// WriteFileAtomic 原子地替换 path 处的文件
func WriteFileAtomic(path string, write WriteFunc) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err = write(tmp); err != nil {
		return fmt.Errorf("写入临时文件失败: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("同步临时文件失败: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("关闭临时文件失败: %w", err)
	}
	if err = os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("设置文件权限失败: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("重命名文件失败: %w", err)
	}
	return nil
}

// WriteJSONAtomic 以缩进 JSON 原子地写入 v
func WriteJSONAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化失败: %w", err)
	}
	data = append(data, '\n')
	return WriteFileAtomic(path, func(w io.Writer) error {
		_, err := io.Copy(w, bytes.NewReader(data))
		return err
	})
}

// Exists 判断文件是否存在
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
