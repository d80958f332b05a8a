// internal/imagegen/providers/huggingface/huggingface.go
package huggingface

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Corphon/MySlides/internal/imagegen"
)

func init() {
	imagegen.Register("huggingface", func() imagegen.Provider {
		return &Provider{
			baseURL:      "https://api-inference.huggingface.co/models",
			defaultModel: "prompthero/openjourney",
		}
	})
}

type Provider struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	defaultModel string
}

func (p *Provider) Initialize(config map[string]string) error {
	apiKey, exists := config["api_key"]
	if !exists || apiKey == "" {
		return errors.New("Hugging Face API密钥未提供")
	}

	p.apiKey = apiKey
	p.client = &http.Client{}

	if model, exists := config["default_model"]; exists && model != "" {
		p.defaultModel = model
	}

	if baseURL, exists := config["base_url"]; exists && baseURL != "" {
		p.baseURL = baseURL
	}

	return nil
}

func (p *Provider) GetName() string {
	return "Hugging Face Inference"
}

// GenerateImage 调用推理端点。
// 上游既可能直接返回图像字节，也可能返回JSON（错误信封或base64载荷），
// 这里按Content-Type辨识，统一解码为ImageResult
func (p *Provider) GenerateImage(ctx context.Context, req imagegen.ImageRequest) (*imagegen.ImageResult, error) {
	requestBody := map[string]interface{}{
		"inputs": req.Prompt,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s", p.baseURL, p.defaultModel)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Hugging Face API错误(%d): %s", httpResp.StatusCode, string(body))
	}

	contentType := httpResp.Header.Get("Content-Type")

	// 二进制图像字节
	if strings.HasPrefix(contentType, "image/") {
		return &imagegen.ImageResult{MimeType: contentType, Data: body}, nil
	}

	// JSON信封：可能携带错误字段，也可能是base64载荷
	var envelope struct {
		Error string `json:"error"`
		Image string `json:"image"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("无法识别的上游响应: %w", err)
	}

	if envelope.Error != "" {
		return nil, fmt.Errorf("Hugging Face上游错误: %s", envelope.Error)
	}

	if envelope.Image != "" {
		return decodeDataURI(envelope.Image)
	}

	return nil, errors.New("上游响应既不是图像也不含有效载荷")
}

// decodeDataURI 解析 data:image/png;base64,xxx 形式的载荷
func decodeDataURI(uri string) (*imagegen.ImageResult, error) {
	const marker = ";base64,"
	idx := strings.Index(uri, marker)
	if idx < 0 || !strings.HasPrefix(uri, "data:") {
		return nil, errors.New("无效的data URI载荷")
	}

	mime := strings.TrimPrefix(uri[:idx], "data:")
	raw, err := base64.StdEncoding.DecodeString(uri[idx+len(marker):])
	if err != nil {
		return nil, fmt.Errorf("base64解码失败: %w", err)
	}

	return &imagegen.ImageResult{MimeType: mime, Data: raw}, nil
}
