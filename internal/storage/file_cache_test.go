// internal/storage/file_cache_test.go
package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Corphon/MySlides/internal/models"
)

func TestFileCacheReadAndInvalidate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	if err := os.WriteFile(path, []byte(`{"name":"first"}`), 0644); err != nil {
		t.Fatalf("写入测试文件失败: %v", err)
	}

	cache := NewFileCacheService(8, time.Minute)

	var got struct {
		Name string `json:"name"`
	}
	if err := cache.ReadFile(path, &got); err != nil {
		t.Fatalf("首次读取失败: %v", err)
	}
	if got.Name != "first" {
		t.Fatalf("读取内容不符: %+v", got)
	}

	// 改写文件并前移修改时间，缓存应失效
	if err := os.WriteFile(path, []byte(`{"name":"second"}`), 0644); err != nil {
		t.Fatalf("改写测试文件失败: %v", err)
	}
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("修改文件时间失败: %v", err)
	}

	if err := cache.ReadFile(path, &got); err != nil {
		t.Fatalf("二次读取失败: %v", err)
	}
	if got.Name != "second" {
		t.Fatalf("文件修改后应读到新内容: %+v", got)
	}
}

func TestFileCacheHitDoesNotAliasTargets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "list.json")
	if err := os.WriteFile(path, []byte(`["a","b"]`), 0644); err != nil {
		t.Fatalf("写入测试文件失败: %v", err)
	}

	cache := NewFileCacheService(8, time.Minute)

	var first, second []string
	if err := cache.ReadFile(path, &first); err != nil {
		t.Fatalf("首次读取失败: %v", err)
	}
	first[0] = "mutated"

	if err := cache.ReadFile(path, &second); err != nil {
		t.Fatalf("命中缓存读取失败: %v", err)
	}
	if second[0] != "a" {
		t.Fatalf("缓存命中不应受之前调用方修改影响: %v", second)
	}
}

func TestFileCacheWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.json")

	cache := NewFileCacheService(8, time.Minute)
	if err := cache.WriteFile(path, map[string]int{"count": 3}); err != nil {
		t.Fatalf("写入失败: %v", err)
	}

	var got map[string]int
	if err := cache.ReadFile(path, &got); err != nil {
		t.Fatalf("回读失败: %v", err)
	}
	if got["count"] != 3 {
		t.Fatalf("回读内容不符: %v", got)
	}
}

func TestExportArchiveSaveListPrune(t *testing.T) {
	dir := t.TempDir()
	archive, err := NewExportArchive(dir)
	if err != nil {
		t.Fatalf("创建归档失败: %v", err)
	}

	result := &models.ExportResult{
		FileName:    "quantum@MySlides.pdf",
		Content:     []byte("%PDF-1.4 fake"),
		GeneratedAt: time.Now(),
	}
	path, err := archive.Save(result)
	if err != nil {
		t.Fatalf("归档失败: %v", err)
	}

	saved, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取归档文件失败: %v", err)
	}
	if !bytes.Equal(saved, result.Content) {
		t.Fatal("归档内容与导出内容不一致")
	}

	entries, err := archive.List()
	if err != nil {
		t.Fatalf("列举归档失败: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("归档条目数量不符: %d", len(entries))
	}

	// 未超过保留期时不应删除
	removed, err := archive.Prune(time.Hour)
	if err != nil {
		t.Fatalf("清理归档失败: %v", err)
	}
	if removed != 0 {
		t.Fatalf("保留期内不应清理: %d", removed)
	}

	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("修改归档时间失败: %v", err)
	}
	removed, err = archive.Prune(time.Hour)
	if err != nil {
		t.Fatalf("清理归档失败: %v", err)
	}
	if removed != 1 {
		t.Fatalf("过期归档应被清理: %d", removed)
	}
}

func TestExportArchiveOpenRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	archive, err := NewExportArchive(dir)
	if err != nil {
		t.Fatalf("创建归档失败: %v", err)
	}

	if _, err := archive.Open("../outside.pdf"); err == nil {
		t.Fatal("路径穿越应被拒绝")
	}
	if _, err := archive.Open(".."); err == nil {
		t.Fatal("上级目录引用应被拒绝")
	}
}
