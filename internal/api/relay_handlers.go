// internal/api/relay_handlers.go
package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Corphon/MySlides/internal/config"
	"github.com/gin-gonic/gin"
)

// 中继上游地址
const (
	openRouterChatURL = "https://openrouter.ai/api/v1/chat/completions"
	hfImageModelURL   = "https://api-inference.huggingface.co/models/prompthero/openjourney"
)

// 文本中继超时。上游在此之前不回应时返回504
const relayTextTimeout = 25 * time.Second

// 图像中继允许更久，扩散模型冷启动很慢
const relayImageTimeout = 60 * time.Second

// RelayHandler 面向浏览器直连模式的中继端点。
// 密钥只存在于服务端，响应形状与上游保持一致
type RelayHandler struct {
	client   *http.Client
	textURL  string
	imageURL string
}

// NewRelayHandler 创建中继处理器
func NewRelayHandler() *RelayHandler {
	return &RelayHandler{
		client:   &http.Client{},
		textURL:  openRouterChatURL,
		imageURL: hfImageModelURL,
	}
}

// GenerateText 中继文本生成请求到OpenRouter。
// 上游的响应体原样透传，调用方按OpenAI chat格式解析
func (rh *RelayHandler) GenerateText(c *gin.Context) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Prompt == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Prompt is required"})
		return
	}

	cfg := config.GetCurrentConfig()
	apiKey := cfg.OpenRouterAPIKey
	if apiKey == "" && cfg.LLMProvider == "openrouter" && cfg.LLMConfig != nil {
		apiKey = cfg.LLMConfig["api_key"]
	}
	if apiKey == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "API key missing on server"})
		return
	}

	body, err := json.Marshal(map[string]interface{}{
		"model": "mistralai/mistral-7b-instruct",
		"messages": []map[string]string{
			{"role": "user", "content": req.Prompt},
		},
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unexpected server error"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), relayTextTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, "POST", rh.textURL, bytes.NewReader(body))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unexpected server error"})
		return
	}
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Title", "MySlides")

	resp, err := rh.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.JSON(http.StatusGatewayTimeout, gin.H{"error": "OpenRouter request timed out"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Unexpected server error",
			"details": err.Error(),
		})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorText, _ := io.ReadAll(resp.Body)
		c.JSON(resp.StatusCode, gin.H{"error": string(errorText)})
		return
	}

	// 上游JSON原样透传
	c.DataFromReader(http.StatusOK, resp.ContentLength, "application/json", resp.Body, nil)
}

// GenerateImage 中继图像生成请求到Hugging Face。
// 上游返回二进制图像时包装为data URI信封返回
func (rh *RelayHandler) GenerateImage(c *gin.Context) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Prompt == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Prompt is required"})
		return
	}

	cfg := config.GetCurrentConfig()
	apiKey := cfg.HuggingFaceAPIKey
	if apiKey == "" && cfg.ImageProvider == "huggingface" && cfg.ImageConfig != nil {
		apiKey = cfg.ImageConfig["api_key"]
	}
	if apiKey == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "API key missing on server"})
		return
	}

	body, err := json.Marshal(map[string]string{"inputs": req.Prompt})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), relayImageTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, "POST", rh.imageURL, bytes.NewReader(body))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := rh.client.Do(httpReq)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorText, _ := io.ReadAll(resp.Body)
		c.JSON(resp.StatusCode, gin.H{"error": string(errorText)})
		return
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	// 上游2xx仍需按Content-Type辨识：图像字节或JSON信封
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "image/") {
		c.JSON(http.StatusOK, gin.H{
			"image": "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw),
		})
		return
	}

	var envelope struct {
		Error string `json:"error"`
		Image string `json:"image"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unrecognized upstream response"})
		return
	}
	if envelope.Error != "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": envelope.Error})
		return
	}
	if envelope.Image != "" {
		// 旧式base64信封原样转交
		c.JSON(http.StatusOK, gin.H{"image": envelope.Image})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": "Unrecognized upstream response"})
}
