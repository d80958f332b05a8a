// internal/storage/file_cache.go
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FileCacheService 缓存JSON文件的原始字节，避免重复读盘
// 缓存键为绝对路径，条目随文件修改或超过过期时间而失效
type FileCacheService struct {
	mu         sync.Mutex
	entries    map[string]*fileCacheEntry
	maxSize    int
	expiration time.Duration
}

// fileCacheEntry 记录一次读取的原始内容与校验依据
type fileCacheEntry struct {
	raw      []byte
	modTime  time.Time
	size     int64
	loadedAt time.Time
	lastRead time.Time
}

// NewFileCacheService 创建文件缓存服务
func NewFileCacheService(maxSize int, expiration time.Duration) *FileCacheService {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if expiration <= 0 {
		expiration = 5 * time.Minute
	}

	return &FileCacheService{
		entries:    make(map[string]*fileCacheEntry),
		maxSize:    maxSize,
		expiration: expiration,
	}
}

// ReadFile 读取JSON文件并反序列化到target，命中缓存时不触发磁盘读取
func (s *FileCacheService) ReadFile(path string, target interface{}) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("获取文件绝对路径失败: %w", err)
	}

	if raw, ok := s.lookup(absPath); ok {
		return json.Unmarshal(raw, target)
	}

	raw, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("读取文件失败: %w", err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("解析JSON失败: %w", err)
	}

	if info, statErr := os.Stat(absPath); statErr == nil {
		s.store(absPath, raw, info)
	}
	return nil
}

// WriteFile 将data序列化为JSON写入磁盘并刷新缓存
func (s *FileCacheService) WriteFile(path string, data interface{}) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("获取文件绝对路径失败: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}
	if err := os.WriteFile(absPath, raw, 0644); err != nil {
		return fmt.Errorf("写入文件失败: %w", err)
	}

	if info, statErr := os.Stat(absPath); statErr == nil {
		s.store(absPath, raw, info)
	}
	return nil
}

// DeleteFromCache 移除单个缓存条目，磁盘文件不受影响
func (s *FileCacheService) DeleteFromCache(path string) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return
	}

	s.mu.Lock()
	delete(s.entries, absPath)
	s.mu.Unlock()
}

// ClearCache 清空全部缓存条目
func (s *FileCacheService) ClearCache() {
	s.mu.Lock()
	s.entries = make(map[string]*fileCacheEntry)
	s.mu.Unlock()
}

// lookup 返回仍然有效的缓存内容，过期或文件已变化的条目被剔除
func (s *FileCacheService) lookup(absPath string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[absPath]
	if !ok {
		return nil, false
	}

	if time.Since(entry.loadedAt) > s.expiration {
		delete(s.entries, absPath)
		return nil, false
	}

	info, err := os.Stat(absPath)
	if err != nil || info.ModTime().After(entry.modTime) || info.Size() != entry.size {
		delete(s.entries, absPath)
		return nil, false
	}

	entry.lastRead = time.Now()
	return entry.raw, true
}

// store 写入缓存条目，超出容量时按最后读取时间淘汰约20%
func (s *FileCacheService) store(absPath string, raw []byte, info os.FileInfo) {
	now := time.Now()

	s.mu.Lock()
	s.entries[absPath] = &fileCacheEntry{
		raw:      raw,
		modTime:  info.ModTime(),
		size:     info.Size(),
		loadedAt: now,
		lastRead: now,
	}
	if len(s.entries) > s.maxSize {
		s.evictLRU(max(1, s.maxSize/5))
	}
	s.mu.Unlock()
}

// evictLRU 淘汰最久未读取的count个条目，调用方需持有锁
func (s *FileCacheService) evictLRU(count int) {
	type keyAge struct {
		key      string
		lastRead time.Time
	}

	aged := make([]keyAge, 0, len(s.entries))
	for key, entry := range s.entries {
		aged = append(aged, keyAge{key, entry.lastRead})
	}
	sort.Slice(aged, func(i, j int) bool {
		return aged[i].lastRead.Before(aged[j].lastRead)
	})

	for i := 0; i < count && i < len(aged); i++ {
		delete(s.entries, aged[i].key)
	}
}
