// internal/services/outline_service.go
package services

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/Corphon/MySlides/internal/errors"
	"github.com/Corphon/MySlides/internal/llm"
)

// OutlineService 把主题字符串变成有序的章节标题列表
type OutlineService struct {
	LLMService *LLMService
}

// NewOutlineService 创建大纲服务
func NewOutlineService(llmService *LLMService) *OutlineService {
	return &OutlineService{
		LLMService: llmService,
	}
}

// GenerateOutline 为主题生成8-10条章节标题。
// 调用方负责保证topic非空；这里的检查是最后防线
func (s *OutlineService) GenerateOutline(ctx context.Context, topic string) ([]string, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, apperrors.NewValidationError("主题不能为空", nil)
	}

	prompt := fmt.Sprintf(`Create a concise presentation outline for the topic: "%s". `+
		`The outline should be a list of 8-10 key sections or slide titles. `+
		`Return the result as a JSON array of strings.`, topic)

	var outline []string
	err := s.LLMService.CompleteStructured(ctx, prompt, llm.StringArraySchema(), &outline)
	if err != nil {
		return nil, apperrors.WrapError(err, "生成大纲失败", apperrors.ErrorTypeGeneration)
	}

	if len(outline) == 0 {
		return nil, apperrors.NewGenerationError("上游返回了空的大纲", nil)
	}

	// JSON数组里混入非字符串时json.Unmarshal已经报错，
	// 这里只过滤空白项，保持顺序
	cleaned := make([]string, 0, len(outline))
	for _, item := range outline {
		item = strings.TrimSpace(item)
		if item != "" {
			cleaned = append(cleaned, item)
		}
	}

	if len(cleaned) == 0 {
		return nil, apperrors.NewGenerationError("大纲中没有有效的章节标题", nil)
	}

	return cleaned, nil
}
