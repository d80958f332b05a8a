// internal/imagegen/interface.go
package imagegen

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
)

// 错误定义
var ErrUnknownProvider = errors.New("未知的图像提供者")

// ImageRequest 图像生成请求的标准化参数
type ImageRequest struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio,omitempty"` // 如 "16:9"，不支持的提供商忽略
	MimeType    string `json:"mime_type,omitempty"`    // 期望的输出格式
}

// ImageResult 服务边界处归一化后的唯一内存表示。
// 上游可能返回二进制字节、base64信封或带错误字段的JSON，
// 各提供者在自己的边界完成辨识解码，之后的业务逻辑只见到这一种形状
type ImageResult struct {
	MimeType string
	Data     []byte
}

// DataURI 把图像编码为浏览器可直接使用的 data URI
func (r *ImageResult) DataURI() string {
	if r == nil || len(r.Data) == 0 {
		return ""
	}
	mime := r.MimeType
	if mime == "" {
		mime = "image/png"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(r.Data))
}

// Provider 定义所有图像提供者必须实现的接口
type Provider interface {
	// 初始化提供者，传入配置
	Initialize(config map[string]string) error

	// 获取提供者名称
	GetName() string

	// 图像生成，单次尝试，不在提供者层重试
	GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, error)
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

// ListProviders 返回所有已注册的提供者名称
func ListProviders() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	return names
}
