// internal/services/slide_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "github.com/Corphon/MySlides/internal/errors"
	"github.com/Corphon/MySlides/internal/llm"
	"github.com/Corphon/MySlides/internal/models"
)

// SlideService 把有序大纲变成逐条对应的幻灯片原型
type SlideService struct {
	LLMService *LLMService
}

// NewSlideService 创建幻灯片内容服务
func NewSlideService(llmService *LLMService) *SlideService {
	return &SlideService{
		LLMService: llmService,
	}
}

// slidePayload 上游返回的原始条目，先收进宽松的形状再逐字段校验
type slidePayload struct {
	SlideType   string           `json:"slideType"`
	Title       string           `json:"title"`
	Subtitle    string           `json:"subtitle"`
	Content     *json.RawMessage `json:"content"`
	ImagePrompt *string          `json:"image_prompt"`
}

// GenerateSlides 为大纲的每一项生成一个幻灯片原型。
// 原型数量与大纲条目数一致；任何字段缺失或形状不符都按生成错误处理。
// 提示词要求首张为introduction/divider，这是软约定，不在代码里强制
func (s *SlideService) GenerateSlides(ctx context.Context, outline []string) ([]models.SlidePrototype, error) {
	if len(outline) == 0 {
		return nil, apperrors.NewValidationError("大纲不能为空", nil)
	}

	outlineJSON, err := json.Marshal(outline)
	if err != nil {
		return nil, apperrors.NewValidationError("大纲序列化失败", err)
	}

	prompt := fmt.Sprintf(`Generate presentation content based on the following outline: %s.
For each outline item, create a slide object. Each object must have:
1. "slideType": Choose the most appropriate semantic type from this list: ['introduction', 'divider', 'main_point', 'quote', 'conclusion']. Use 'divider' for major topic introductions. Use 'quote' if the content is a quotation. Use 'main_point' for standard content slides.
2. "title": The outline item itself.
3. "subtitle": A brief, engaging subtitle. For a 'quote' slideType, this should be the attribution (e.g., "- Author Name").
4. "content": An array of strings. For 'main_point', this should be 3-4 bullet points of normal text. For 'quote', it should be a single string with the full quote. For 'divider', this should be an empty array.
5. "image_prompt": A descriptive prompt for an AI image generator that fits the content. For 'divider', this can be an abstract background concept.

Return the result as a JSON array of these objects. Ensure the first slide is an 'introduction' or 'divider'.`, string(outlineJSON))

	var payloads []slidePayload
	err = s.LLMService.CompleteStructured(ctx, prompt, slideSchema(), &payloads)
	if err != nil {
		return nil, apperrors.WrapError(err, "生成幻灯片内容失败", apperrors.ErrorTypeGeneration)
	}

	if len(payloads) != len(outline) {
		return nil, apperrors.NewGenerationError(
			fmt.Sprintf("幻灯片数量与大纲不一致: 期望%d，实际%d", len(outline), len(payloads)), nil)
	}

	prototypes := make([]models.SlidePrototype, 0, len(payloads))
	for i, p := range payloads {
		prototype, err := validatePayload(i, p)
		if err != nil {
			return nil, err
		}
		prototypes = append(prototypes, prototype)
	}

	return prototypes, nil
}

// validatePayload 校验五个必需字段的存在与形状
func validatePayload(index int, p slidePayload) (models.SlidePrototype, error) {
	var zero models.SlidePrototype

	slideType := models.SlideType(p.SlideType)
	if !slideType.IsValid() {
		return zero, apperrors.NewGenerationError(
			fmt.Sprintf("第%d张幻灯片的slideType无效: %q", index+1, p.SlideType), nil)
	}

	if p.Title == "" {
		return zero, apperrors.NewGenerationError(
			fmt.Sprintf("第%d张幻灯片缺少title", index+1), nil)
	}

	if p.Subtitle == "" {
		return zero, apperrors.NewGenerationError(
			fmt.Sprintf("第%d张幻灯片缺少subtitle", index+1), nil)
	}

	if p.Content == nil {
		return zero, apperrors.NewGenerationError(
			fmt.Sprintf("第%d张幻灯片缺少content", index+1), nil)
	}

	// content必须是字符串数组（divider允许为空数组）
	var content []string
	if err := json.Unmarshal(*p.Content, &content); err != nil {
		return zero, apperrors.NewGenerationError(
			fmt.Sprintf("第%d张幻灯片的content不是字符串数组", index+1), err)
	}

	if p.ImagePrompt == nil {
		return zero, apperrors.NewGenerationError(
			fmt.Sprintf("第%d张幻灯片缺少image_prompt", index+1), nil)
	}

	return models.SlidePrototype{
		SlideType:   slideType,
		Title:       p.Title,
		Subtitle:    p.Subtitle,
		Content:     content,
		ImagePrompt: *p.ImagePrompt,
	}, nil
}

// slideSchema 五字段对象数组的响应约束声明
func slideSchema() llm.ResponseSchema {
	return llm.ObjectArraySchema(map[string]interface{}{
		"slideType":    map[string]interface{}{"type": "STRING"},
		"title":        map[string]interface{}{"type": "STRING"},
		"subtitle":     map[string]interface{}{"type": "STRING"},
		"content":      map[string]interface{}{"type": "ARRAY", "items": map[string]interface{}{"type": "STRING"}},
		"image_prompt": map[string]interface{}{"type": "STRING"},
	}, []string{"slideType", "title", "subtitle", "content", "image_prompt"})
}
