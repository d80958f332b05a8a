// internal/models/template.go
package models

// Theme 模板的视觉主题（颜色为不带#前缀的十六进制值）
type Theme struct {
	BackgroundColor string `json:"backgroundColor"`
	TextColor       string `json:"textColor"`
	AccentColor     string `json:"accentColor"`
	FontFamily      string `json:"fontFamily"`
}

// AvailableLayouts 模板按语义分类声明的候选版式集合。
// 每个序列有序：content 类按计数器轮转，divider/quote 类取首个
type AvailableLayouts struct {
	Content []Layout `json:"content"`
	Divider []Layout `json:"divider"`
	Quote   []Layout `json:"quote"`
}

// Template 演示模板：主题加各语义分类允许的版式集合。
// 静态只读配置，用户在内容生成前选定，之后不再变更
type Template struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Description      string           `json:"description"`
	Theme            Theme            `json:"theme"`
	AvailableLayouts AvailableLayouts `json:"availableLayouts"`
}
