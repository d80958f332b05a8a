// internal/services/llm_service.go
package services

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/Corphon/MySlides/internal/config"
	apperrors "github.com/Corphon/MySlides/internal/errors"
	"github.com/Corphon/MySlides/internal/llm"
	"github.com/Corphon/MySlides/internal/utils"

	gocache "github.com/patrickmn/go-cache"
)

var ErrLLMNotReady = errors.New("llm service not ready")

var providerDefaultModels = map[string]string{
	"openai":     "gpt-4o-mini",
	"google":     "gemini-2.5-flash",
	"openrouter": "mistralai/mistral-7b-instruct",
}

// LLMService 提供统一的大语言模型调用接口。
// 负责提供商桥接、结构化输出解析和响应缓存
type LLMService struct {
	providerMutex      sync.RWMutex
	provider           llm.Provider
	providerName       string
	cache              *gocache.Cache
	metrics            *utils.APIMetrics
	isReady            bool
	readyState         string
	activeDefaultModel string
}

// NewLLMService 创建一个新的LLM服务
func NewLLMService() (*LLMService, error) {
	service := createBaseLLMService()

	// 尝试从配置初始化
	cfg := config.GetCurrentConfig()
	if cfg == nil {
		service.readyState = "Failed to retrieve configuration"
		return service, nil
	}

	if cfg.LLMProvider == "" || (cfg.LLMConfig != nil && cfg.LLMConfig["api_key"] == "") {
		service.readyState = "API key not configured"
		return service, nil
	}

	provider, err := llm.GetProvider(cfg.LLMProvider, cfg.LLMConfig)
	if err != nil {
		service.readyState = fmt.Sprintf("Initialization failed: %v", err)
		return service, nil // 返回未就绪服务而不是错误
	}

	service.provider = provider
	service.providerName = cfg.LLMProvider
	service.activeDefaultModel = extractDefaultModel(cfg.LLMProvider, cfg.LLMConfig)
	service.isReady = true
	service.readyState = "Ready"

	return service, nil
}

// NewLLMServiceWithProvider 使用现成的提供者创建服务，测试时注入假提供者用
func NewLLMServiceWithProvider(provider llm.Provider, name string) *LLMService {
	service := createBaseLLMService()
	service.provider = provider
	service.providerName = name
	service.isReady = true
	service.readyState = "Ready"
	return service
}

func createBaseLLMService() *LLMService {
	return &LLMService{
		provider:   nil,
		isReady:    false,
		readyState: "Uninitialized",
		cache:      gocache.New(30*time.Minute, 10*time.Minute),
		metrics:    utils.NewAPIMetrics(),
	}
}

func extractDefaultModel(providerName string, llmConfig map[string]string) string {
	if llmConfig != nil && llmConfig["default_model"] != "" {
		return llmConfig["default_model"]
	}
	return providerDefaultModels[providerName]
}

// IsReady 返回服务是否就绪
func (s *LLMService) IsReady() bool {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.isReady
}

// ReadyState 返回就绪状态描述
func (s *LLMService) ReadyState() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.readyState
}

// ProviderName 返回当前提供商名称
func (s *LLMService) ProviderName() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.providerName
}

// UpdateProvider 切换LLM提供商（设置页面保存后调用）
func (s *LLMService) UpdateProvider(name string, providerConfig map[string]string) error {
	provider, err := llm.GetProvider(name, providerConfig)
	if err != nil {
		return err
	}

	s.providerMutex.Lock()
	defer s.providerMutex.Unlock()

	s.provider = provider
	s.providerName = name
	s.activeDefaultModel = extractDefaultModel(name, providerConfig)
	s.isReady = true
	s.readyState = "Ready"
	s.cache.Flush()
	return nil
}

// CompleteStructured 请求结构化JSON输出并解析到outputSchema。
// 响应先经过围栏剥离和噪声清理，剥离后仍不是合法JSON时
// 返回可区分的malformed_response错误
func (s *LLMService) CompleteStructured(ctx context.Context, prompt string, schema llm.ResponseSchema, outputSchema interface{}) error {
	s.providerMutex.RLock()
	provider := s.provider
	ready := s.isReady
	model := s.activeDefaultModel
	s.providerMutex.RUnlock()

	if !ready || provider == nil {
		return ErrLLMNotReady
	}

	providerName := provider.GetName()

	// 命中缓存直接返回
	cacheKey := buildCacheKey(prompt, model)
	if cached, found := s.cache.Get(cacheKey); found {
		s.metrics.RecordLLMRequest(providerName, model, true, 0)
		return json.Unmarshal([]byte(cached.(string)), outputSchema)
	}

	req := llm.CompletionRequest{
		Prompt:         prompt,
		Temperature:    0.3,
		Model:          model,
		ResponseSchema: schema,
	}

	started := time.Now()
	resp, err := provider.CompleteText(ctx, req)
	if err != nil {
		s.metrics.RecordError("generation", "llm")
		return apperrors.NewGenerationError("上游生成服务调用失败", err)
	}
	s.metrics.RecordLLMRequest(providerName, model, false, time.Since(started))

	text := CleanJSONString(resp.Text)

	if err := json.Unmarshal([]byte(text), outputSchema); err != nil {
		// 按失败原因区分：文本本身不是JSON与JSON形状不符是两类错误
		if !json.Valid([]byte(text)) {
			return apperrors.NewMalformedResponseError(
				fmt.Sprintf("剥离围栏后仍无法解析为JSON: %s", truncateForLog(text, 200)), err)
		}
		return apperrors.NewGenerationError(
			fmt.Sprintf("上游返回的JSON形状不符: %s", truncateForLog(text, 200)), err)
	}

	s.cache.Set(cacheKey, text, gocache.DefaultExpiration)
	return nil
}

func buildCacheKey(prompt, model string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(model+"|"+prompt)))
}

func truncateForLog(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// 清理JSON字符串，去除前后非JSON内容
var jsonNoiseReplacer = strings.NewReplacer(
	"```json", "",
	"```", "",
	"\ufeff", "",
	"\u00a0", " ",
)

// CleanJSONString 剥离Markdown代码围栏和噪声字符，
// 截取首个 { 或 [ 到与之配对的结束符之间的内容。
// 模型在JSON前后附加说明文字时也能恢复出有效载荷
func CleanJSONString(s string) string {
	if s == "" {
		return s
	}

	// 统一替换常见的噪声与Markdown围栏标记
	s = jsonNoiseReplacer.Replace(s)
	s = strings.TrimSpace(s)

	// 移除零宽字符及除换行/制表符外的控制字符
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\u2060', '\ufeff':
			return -1
		}
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	// 查找第一个 { 或 [，将其之前的内容全部丢弃
	start := strings.IndexAny(s, "[{")
	if start == -1 {
		return s
	}

	s = strings.TrimSpace(s[start:])
	if s == "" {
		return s
	}

	isArray := s[0] == '['

	// 简单的括号计数匹配
	balance := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		char := s[i]

		if escaped {
			escaped = false
			continue
		}

		if char == '\\' {
			escaped = true
			continue
		}

		if char == '"' {
			inString = !inString
			continue
		}

		if !inString {
			if isArray {
				if char == '[' {
					balance++
				} else if char == ']' {
					balance--
				}
			} else {
				if char == '{' {
					balance++
				} else if char == '}' {
					balance--
				}
			}

			if balance == 0 {
				// 找到了匹配的结束符
				return strings.TrimSpace(s[:i+1])
			}
		}
	}

	// 没找到匹配的结束符时回退到最后一个可能的结束位置
	end := -1
	if isArray {
		end = strings.LastIndex(s, "]")
	} else {
		end = strings.LastIndex(s, "}")
	}

	if end != -1 {
		return strings.TrimSpace(s[:end+1])
	}

	return strings.TrimSpace(s)
}
