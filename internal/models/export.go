// internal/models/export.go
package models

import (
	"time"
)

// SlideCapture 浏览器端渲染后逐页截取的位图（html2canvas 的产物），
// 作为导出的输入按幻灯片顺序上传
type SlideCapture struct {
	SlideID  string `json:"slide_id"`
	MimeType string `json:"mime_type"` // image/jpeg 或 image/png
	Data     []byte `json:"-"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// ExportResult 导出结果
type ExportResult struct {
	SessionID   string    `json:"session_id"`
	Topic       string    `json:"topic"`
	Format      string    `json:"format"` // pdf 或 html
	FileName    string    `json:"file_name"`
	Content     []byte    `json:"-"`
	ContentType string    `json:"content_type"`
	PageCount   int       `json:"page_count"`
	FileSize    int64     `json:"file_size"`
	GeneratedAt time.Time `json:"generated_at"`
}

// ExportProgress 导出过程中的逐页进度
type ExportProgress struct {
	Message    string `json:"message"`
	Percentage int    `json:"percentage"`
}
