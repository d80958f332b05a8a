// internal/models/session.go
package models

import (
	"time"
)

// SessionState 会话所处的界面/流程状态
type SessionState string

const (
	StateTopic        SessionState = "topic"        // 等待用户输入主题
	StateOutline      SessionState = "outline"      // 大纲已生成，可编辑
	StateTemplate     SessionState = "template"     // 选择模板
	StateGenerating   SessionState = "generating"   // 生成管线进行中
	StatePresentation SessionState = "presentation" // 演示文稿就绪
)

// Session 一次演示文稿生成会话的全部可变状态。
// 归编排服务独占持有，其余组件只接收输入并返回新值
type Session struct {
	ID         string       `json:"id"`
	State      SessionState `json:"state"`
	Topic      string       `json:"topic,omitempty"`
	Outline    []string     `json:"outline,omitempty"`
	TemplateID string       `json:"template_id,omitempty"`
	Slides     []*Slide     `json:"slides,omitempty"`
	Error      string       `json:"error,omitempty"` // 最近一次失败的用户可见消息
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// SlideImageUpdate 后台配图任务完成后发布的单张幻灯片更新，
// 按幻灯片ID匹配应用，与完成顺序无关
type SlideImageUpdate struct {
	SessionID string `json:"session_id"`
	SlideID   string `json:"slide_id"`
	ImageData string `json:"image_data,omitempty"` // 为空表示该幻灯片配图失败或被跳过
}
