// internal/services/llm_service_test.go
package services

import (
	"context"
	"testing"

	apperrors "github.com/Corphon/MySlides/internal/errors"
	"github.com/Corphon/MySlides/internal/llm"

	_ "github.com/Corphon/MySlides/internal/llm/providers/openrouter"
)

// stubProvider 按顺序返回预置响应的假提供者
type stubProvider struct {
	responses []string
	err       error
	calls     int
}

func (p *stubProvider) Initialize(config map[string]string) error { return nil }
func (p *stubProvider) GetName() string                           { return "stub" }
func (p *stubProvider) GetSupportedModels() []string              { return []string{"stub-model"} }

func (p *stubProvider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if p.err != nil {
		return nil, p.err
	}
	index := p.calls
	if index >= len(p.responses) {
		index = len(p.responses) - 1
	}
	p.calls++
	return &llm.CompletionResponse{Text: p.responses[index]}, nil
}

func newStubLLMService(responses ...string) (*LLMService, *stubProvider) {
	provider := &stubProvider{responses: responses}
	return NewLLMServiceWithProvider(provider, "stub"), provider
}

func TestCleanJSONString(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		expected string
	}{
		{"纯JSON原样返回", `["a","b"]`, `["a","b"]`},
		{"剥离Markdown围栏", "```json\n[\"a\",\"b\"]\n```", `["a","b"]`},
		{"丢弃JSON前的说明文字", `Here is the outline: ["a","b"]`, `["a","b"]`},
		{"丢弃JSON后的说明文字", `{"k":"v"} Hope this helps!`, `{"k":"v"}`},
		{"字符串内的括号不参与配对", `["a]b","c"] trailing`, `["a]b","c"]`},
		{"移除BOM和零宽字符", "\uFEFF[\"a\"​]", `["a"]`},
		{"嵌套对象取到配对结束符", `{"a":{"b":[1,2]}} extra`, `{"a":{"b":[1,2]}}`},
		{"没有JSON时原样返回", "no json here", "no json here"},
		{"空字符串", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CleanJSONString(tc.input)
			if got != tc.expected {
				t.Fatalf("清理结果不符: 期望 %q，实际 %q", tc.expected, got)
			}
		})
	}
}

func TestCompleteStructuredStripsFences(t *testing.T) {
	service, _ := newStubLLMService("```json\n[\"Intro\",\"Body\",\"End\"]\n```")

	var outline []string
	err := service.CompleteStructured(context.Background(), "test prompt", llm.StringArraySchema(), &outline)
	if err != nil {
		t.Fatalf("结构化请求失败: %v", err)
	}

	if len(outline) != 3 || outline[0] != "Intro" {
		t.Fatalf("解析结果不符: %v", outline)
	}
}

func TestCompleteStructuredMalformedResponse(t *testing.T) {
	service, _ := newStubLLMService("I cannot produce JSON for that request.")

	var outline []string
	err := service.CompleteStructured(context.Background(), "test prompt", llm.StringArraySchema(), &outline)
	if err == nil {
		t.Fatal("期望malformed_response错误，实际成功")
	}
	if !apperrors.IsMalformedResponseError(err) {
		t.Fatalf("错误类型不符: %v", err)
	}
}

func TestCompleteStructuredWrongShapeIsGenerationError(t *testing.T) {
	// 合法JSON但元素类型不符，属于内容缺陷而非解析失败
	service, _ := newStubLLMService(`[1, 2, 3]`)

	var outline []string
	err := service.CompleteStructured(context.Background(), "test prompt", llm.StringArraySchema(), &outline)
	if err == nil {
		t.Fatal("期望generation_error，实际成功")
	}
	if apperrors.IsMalformedResponseError(err) {
		t.Fatalf("合法JSON不应归为malformed_response: %v", err)
	}
	if !apperrors.IsGenerationError(err) {
		t.Fatalf("错误类型不符: %v", err)
	}
}

func TestCompleteStructuredNotReady(t *testing.T) {
	service := createBaseLLMService()

	var outline []string
	err := service.CompleteStructured(context.Background(), "test prompt", llm.StringArraySchema(), &outline)
	if err != ErrLLMNotReady {
		t.Fatalf("期望ErrLLMNotReady，实际: %v", err)
	}
}

func TestCompleteStructuredUsesCache(t *testing.T) {
	service, provider := newStubLLMService(`["a","b"]`)

	var first, second []string
	if err := service.CompleteStructured(context.Background(), "same prompt", llm.StringArraySchema(), &first); err != nil {
		t.Fatalf("首次请求失败: %v", err)
	}
	if err := service.CompleteStructured(context.Background(), "same prompt", llm.StringArraySchema(), &second); err != nil {
		t.Fatalf("二次请求失败: %v", err)
	}

	if provider.calls != 1 {
		t.Fatalf("相同提示词应命中缓存，实际上游调用次数: %d", provider.calls)
	}
	if len(second) != 2 {
		t.Fatalf("缓存结果解析不符: %v", second)
	}
}

func TestUpdateProviderSwitchesAndFlushes(t *testing.T) {
	service, _ := newStubLLMService(`["a"]`)

	var outline []string
	if err := service.CompleteStructured(context.Background(), "prompt", llm.StringArraySchema(), &outline); err != nil {
		t.Fatalf("请求失败: %v", err)
	}

	err := service.UpdateProvider("openrouter", map[string]string{"api_key": "test-key"})
	if err != nil {
		t.Fatalf("切换提供商失败: %v", err)
	}

	if service.ProviderName() != "openrouter" {
		t.Fatalf("提供商名称不符: %s", service.ProviderName())
	}
	if !service.IsReady() {
		t.Fatal("切换后服务应处于就绪状态")
	}
}
