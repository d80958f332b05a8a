// internal/services/outline_service_test.go
package services

import (
	"context"
	"testing"

	apperrors "github.com/Corphon/MySlides/internal/errors"
)

func TestGenerateOutlineEmptyTopic(t *testing.T) {
	llmService, _ := newStubLLMService(`["a"]`)
	service := NewOutlineService(llmService)

	_, err := service.GenerateOutline(context.Background(), "   ")
	if err == nil {
		t.Fatal("空主题应返回错误")
	}
	if !apperrors.IsValidationError(err) {
		t.Fatalf("错误类型不符: %v", err)
	}
}

func TestGenerateOutlineFiltersBlankItems(t *testing.T) {
	llmService, _ := newStubLLMService(`["Introduction", "  ", "", "  History  ", "Summary"]`)
	service := NewOutlineService(llmService)

	outline, err := service.GenerateOutline(context.Background(), "Go语言的历史")
	if err != nil {
		t.Fatalf("生成大纲失败: %v", err)
	}

	expected := []string{"Introduction", "History", "Summary"}
	if len(outline) != len(expected) {
		t.Fatalf("条目数不符: 期望%d，实际%d (%v)", len(expected), len(outline), outline)
	}
	for i, item := range expected {
		if outline[i] != item {
			t.Fatalf("第%d条不符: 期望 %q，实际 %q", i+1, item, outline[i])
		}
	}
}

func TestGenerateOutlineEmptyResult(t *testing.T) {
	llmService, _ := newStubLLMService(`[]`)
	service := NewOutlineService(llmService)

	_, err := service.GenerateOutline(context.Background(), "quantum computing")
	if err == nil {
		t.Fatal("空大纲应返回错误")
	}
	if !apperrors.IsGenerationError(err) {
		t.Fatalf("错误类型不符: %v", err)
	}
}

func TestGenerateOutlineAllBlankResult(t *testing.T) {
	llmService, _ := newStubLLMService(`["", "   "]`)
	service := NewOutlineService(llmService)

	_, err := service.GenerateOutline(context.Background(), "quantum computing")
	if err == nil {
		t.Fatal("全空白大纲应返回错误")
	}
	if !apperrors.IsGenerationError(err) {
		t.Fatalf("错误类型不符: %v", err)
	}
}

func TestGenerateOutlineWrapsUpstreamFailure(t *testing.T) {
	provider := &stubProvider{err: context.DeadlineExceeded}
	service := NewOutlineService(NewLLMServiceWithProvider(provider, "stub"))

	_, err := service.GenerateOutline(context.Background(), "quantum computing")
	if err == nil {
		t.Fatal("上游失败应返回错误")
	}
	if !apperrors.IsGenerationError(err) {
		t.Fatalf("错误类型不符: %v", err)
	}
}
