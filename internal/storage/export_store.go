// internal/storage/export_store.go
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Corphon/MySlides/internal/models"
)

// ExportArchive 把导出的文件落盘留底，供用户事后重新下载。
// 导出本身走HTTP响应流，归档失败不影响下载
type ExportArchive struct {
	BaseDir string

	mu sync.Mutex
}

// ArchiveEntry 归档目录里的一个文件
type ArchiveEntry struct {
	FileName  string    `json:"fileName"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewExportArchive 创建导出归档，目录不存在时自动建立
func NewExportArchive(baseDir string) (*ExportArchive, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("创建归档目录失败: %w", err)
	}
	return &ExportArchive{BaseDir: baseDir}, nil
}

// Save 把一次导出写入归档，返回落盘路径。
// 文件名加时间戳前缀避免同主题导出互相覆盖；
// 先写临时文件再重命名，读方不会看到半截文件
func (a *ExportArchive) Save(result *models.ExportResult) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	stamp := result.GeneratedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}
	name := stamp.Format("20060102-150405") + "_" + filepath.Base(result.FileName)
	fullPath := filepath.Join(a.BaseDir, name)

	tempPath := fullPath + ".tmp"
	if err := os.WriteFile(tempPath, result.Content, 0644); err != nil {
		return "", fmt.Errorf("写入归档临时文件失败: %w", err)
	}
	if err := os.Rename(tempPath, fullPath); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("归档文件重命名失败: %w", err)
	}

	return fullPath, nil
}

// List 按创建时间倒序列出归档内容，临时文件被忽略
func (a *ExportArchive) List() ([]ArchiveEntry, error) {
	dirEntries, err := os.ReadDir(a.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("读取归档目录失败: %w", err)
	}

	archived := make([]ArchiveEntry, 0, len(dirEntries))
	for _, entry := range dirEntries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".tmp") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		archived = append(archived, ArchiveEntry{
			FileName:  entry.Name(),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}

	sort.Slice(archived, func(i, j int) bool {
		return archived[i].CreatedAt.After(archived[j].CreatedAt)
	})
	return archived, nil
}

// Open 打开一个归档文件供下载。
// 文件名先做Base清洗，拒绝路径穿越
func (a *ExportArchive) Open(fileName string) (*os.File, error) {
	clean := filepath.Base(fileName)
	if clean != fileName || clean == "." || clean == ".." {
		return nil, fmt.Errorf("非法的归档文件名: %s", fileName)
	}
	return os.Open(filepath.Join(a.BaseDir, clean))
}

// Prune 删除超过保留期的归档文件，返回删除数量
func (a *ExportArchive) Prune(maxAge time.Duration) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	dirEntries, err := os.ReadDir(a.BaseDir)
	if err != nil {
		return 0, fmt.Errorf("读取归档目录失败: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range dirEntries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) || strings.HasSuffix(entry.Name(), ".tmp") {
			if err := os.Remove(filepath.Join(a.BaseDir, entry.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}
