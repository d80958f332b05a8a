// internal/services/layout_service.go
package services

import (
	"github.com/Corphon/MySlides/internal/models"

	"github.com/google/uuid"
)

// 版式分配的固定兜底值：模板声明的分类为空时使用
const (
	fallbackDividerLayout = models.LayoutSectionHeader
	fallbackQuoteLayout   = models.LayoutQuote
	defaultContentLayout  = models.LayoutTitleAndContent
)

// LayoutService 把幻灯片原型的语义类型映射到模板允许的视觉版式。
// 规则确定且无随机性：divider类取首个，quote类取首个，
// main_point在content类候选中按计数器轮转
type LayoutService struct{}

// NewLayoutService 创建版式分配服务
func NewLayoutService() *LayoutService {
	return &LayoutService{}
}

// AssignLayout 为单个原型分配版式，返回版式和更新后的轮转计数器。
// 纯函数，计数器由调用方在原型序列间串联传递
func (s *LayoutService) AssignLayout(prototype models.SlidePrototype, template *models.Template, contentCounter int) (models.Layout, int) {
	layouts := template.AvailableLayouts

	switch prototype.SlideType {
	case models.SlideTypeDivider, models.SlideTypeIntroduction, models.SlideTypeConclusion:
		// 分隔类：固定取divider分类的首个候选，与计数器无关
		if len(layouts.Divider) > 0 {
			return layouts.Divider[0], contentCounter
		}
		return fallbackDividerLayout, contentCounter

	case models.SlideTypeQuote:
		if len(layouts.Quote) > 0 {
			return layouts.Quote[0], contentCounter
		}
		return fallbackQuoteLayout, contentCounter

	default:
		// main_point：在content候选中轮转；候选为空时用默认版式且计数器不前进
		if len(layouts.Content) == 0 {
			return defaultContentLayout, contentCounter
		}
		layout := layouts.Content[contentCounter%len(layouts.Content)]
		return layout, contentCounter + 1
	}
}

// AssignLayouts 为整个原型序列分配版式并生成带ID的幻灯片。
// 计数器从0开始在序列间串联，保证确定性轮转
func (s *LayoutService) AssignLayouts(prototypes []models.SlidePrototype, template *models.Template) []*models.Slide {
	slides := make([]*models.Slide, 0, len(prototypes))

	counter := 0
	for _, prototype := range prototypes {
		layout, next := s.AssignLayout(prototype, template, counter)
		counter = next

		slides = append(slides, &models.Slide{
			ID:             uuid.NewString(),
			SlidePrototype: prototype,
			Layout:         layout,
		})
	}

	return slides
}
