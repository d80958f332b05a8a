// internal/llm/interface.go
package llm

import (
	"context"
	"errors"
)

// 错误定义
var ErrUnknownProvider = errors.New("未知的AI提供者")

// ResponseSchema 结构化输出的JSON Schema声明。
// 支持 responseSchema 的提供商（如Gemini）会把它附加到请求上，
// 其余提供商忽略它，由调用方在解析阶段自行校验
type ResponseSchema map[string]interface{}

// StringArraySchema 字符串数组的响应约束
func StringArraySchema() ResponseSchema {
	return ResponseSchema{
		"type":  "ARRAY",
		"items": map[string]interface{}{"type": "STRING"},
	}
}

// ObjectArraySchema 对象数组的响应约束，properties 的键为字段名
func ObjectArraySchema(properties map[string]interface{}, required []string) ResponseSchema {
	return ResponseSchema{
		"type": "ARRAY",
		"items": map[string]interface{}{
			"type":       "OBJECT",
			"properties": properties,
			"required":   required,
		},
	}
}

// 请求参数标准化
type CompletionRequest struct {
	Prompt         string                 `json:"prompt"`
	SystemPrompt   string                 `json:"system_prompt,omitempty"`
	MaxTokens      int                    `json:"max_tokens,omitempty"`
	Temperature    float32                `json:"temperature,omitempty"`
	Model          string                 `json:"model,omitempty"`
	ResponseSchema ResponseSchema         `json:"response_schema,omitempty"`
	ExtraParams    map[string]interface{} `json:"extra_params,omitempty"`
}

// 响应结构标准化
type CompletionResponse struct {
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason,omitempty"`
	TokensUsed   int    `json:"tokens_used,omitempty"`
	ModelName    string `json:"model_name,omitempty"`
	ProviderName string `json:"provider_name,omitempty"`
}

// Provider 定义所有LLM提供者必须实现的接口
type Provider interface {
	// 初始化提供者，传入配置
	Initialize(config map[string]string) error

	// 获取提供者名称
	GetName() string

	// 获取支持的模型列表
	GetSupportedModels() []string

	// 文本生成
	CompleteText(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// 注册表和工厂函数类型
type ProviderFactory func() Provider

var providers = make(map[string]ProviderFactory)

// Register 注册提供者工厂
func Register(name string, factory ProviderFactory) {
	providers[name] = factory
}

// GetProvider 创建指定名称的提供者实例
func GetProvider(name string, config map[string]string) (Provider, error) {
	factory, exists := providers[name]
	if !exists {
		return nil, errors.New("未知的提供者: " + name)
	}

	provider := factory()
	err := provider.Initialize(config)
	return provider, err
}

// SupportedModels 返回指定提供者声明支持的模型列表，
// 提供者未注册时返回空列表
func SupportedModels(name string) []string {
	factory, exists := providers[name]
	if !exists {
		return nil
	}
	return factory().GetSupportedModels()
}

// ListProviders 返回所有已注册的提供者名称
func ListProviders() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	return names
}
