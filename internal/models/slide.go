// internal/models/slide.go
package models

// SlideType 幻灯片的语义类型，由大纲内容生成阶段决定
type SlideType string

const (
	SlideTypeIntroduction SlideType = "introduction" // 开场幻灯片
	SlideTypeDivider      SlideType = "divider"      // 章节分隔页
	SlideTypeMainPoint    SlideType = "main_point"   // 标准内容页
	SlideTypeQuote        SlideType = "quote"        // 引用页
	SlideTypeConclusion   SlideType = "conclusion"   // 结尾页
)

// IsValid 检查语义类型是否为已知值
func (t SlideType) IsValid() bool {
	switch t {
	case SlideTypeIntroduction, SlideTypeDivider, SlideTypeMainPoint,
		SlideTypeQuote, SlideTypeConclusion:
		return true
	}
	return false
}

// Layout 幻灯片的视觉版式，由版式分配阶段根据模板决定
type Layout string

const (
	LayoutTitleAndContent    Layout = "title_and_content"
	LayoutSectionHeader      Layout = "section_header"
	LayoutImageFullBleed     Layout = "image_full_bleed"
	LayoutTwoColumnText      Layout = "two_column_text"
	LayoutImageLeftTextRight Layout = "image_left_text_right"
	LayoutQuote              Layout = "quote"
)

// NeedsImage 判断该版式是否包含图片区域。
// 纯文字版式（双栏、章节头、引用）跳过配图阶段。
func (l Layout) NeedsImage() bool {
	switch l {
	case LayoutTwoColumnText, LayoutSectionHeader, LayoutQuote:
		return false
	}
	return true
}

// SlidePrototype 内容生成阶段产出的幻灯片原型，
// 只有语义内容，尚未分配版式和配图
type SlidePrototype struct {
	SlideType   SlideType `json:"slideType"`
	Title       string    `json:"title"`
	Subtitle    string    `json:"subtitle"`
	Content     []string  `json:"content"`
	ImagePrompt string    `json:"image_prompt"`
}

// Slide 已分配版式的幻灯片。ImageData 在配图阶段异步填充，
// 每张幻灯片最多填充一次，失败时保持为空
type Slide struct {
	ID string `json:"id"`

	SlidePrototype

	Layout    Layout `json:"layout"`
	ImageData string `json:"imageData,omitempty"` // data URI，未生成或生成失败时为空
}
