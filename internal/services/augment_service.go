// internal/services/augment_service.go
package services

import (
	"context"
	"time"

	"github.com/Corphon/MySlides/internal/imagegen"
	"github.com/Corphon/MySlides/internal/models"
	"github.com/Corphon/MySlides/internal/utils"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// 全部配图共用的风格后缀，与前端原型保持一致
const imagePromptSuffix = ", minimalist, professional presentation, dark theme, high resolution"

// 相邻图像请求的最小间隔。Burst 2 允许开始时并发发出两个请求
const defaultImageInterval = 2 * time.Second

// AugmentService 为已分配版式的幻灯片逐张请求配图。
// 每张幻灯片单次尝试，失败只记录日志并保持ImageData为空，
// 绝不让单张失败波及兄弟幻灯片或整个演示文稿
type AugmentService struct {
	provider imagegen.Provider
	interval time.Duration
	logger   *utils.Logger
	metrics  *utils.APIMetrics
}

// NewAugmentService 创建配图服务
func NewAugmentService(provider imagegen.Provider) *AugmentService {
	return &AugmentService{
		provider: provider,
		interval: defaultImageInterval,
		logger:   utils.GetLogger(),
		metrics:  utils.NewAPIMetrics(),
	}
}

// SetInterval 覆盖请求间隔（测试用）
func (s *AugmentService) SetInterval(d time.Duration) {
	s.interval = d
}

// AugmentSlide 为单张幻灯片请求配图。
// 版式不含图片区域或image_prompt为空时直接跳过；
// 任何失败都降级为"无图"，错误不向上传播
func (s *AugmentService) AugmentSlide(ctx context.Context, slide *models.Slide) string {
	if !slide.Layout.NeedsImage() || slide.ImagePrompt == "" {
		return ""
	}

	if s.provider == nil {
		s.logger.Warn("图像提供者未配置，跳过配图", map[string]interface{}{
			"slide_id": slide.ID,
		})
		return ""
	}

	started := time.Now()
	result, err := s.provider.GenerateImage(ctx, imagegen.ImageRequest{
		Prompt:      slide.ImagePrompt + imagePromptSuffix,
		AspectRatio: "16:9",
		MimeType:    "image/jpeg",
	})
	if err != nil {
		s.metrics.RecordImageGeneration(s.provider.GetName(), false, time.Since(started))
		s.logger.Warn("幻灯片配图失败，保持无图", map[string]interface{}{
			"slide_id": slide.ID,
			"error":    err.Error(),
		})
		return ""
	}
	s.metrics.RecordImageGeneration(s.provider.GetName(), true, time.Since(started))

	return result.DataURI()
}

// AugmentAll 并发地为全部幻灯片配图，结果通过updates按幻灯片ID发布。
// 各任务相互独立，完成顺序不定；调用方按ID匹配应用，每张至多应用一次。
// 本方法在全部任务结束后关闭updates，永远不返回错误
func (s *AugmentService) AugmentAll(ctx context.Context, sessionID string, slides []*models.Slide, updates chan<- models.SlideImageUpdate) {
	defer close(updates)

	eg, egCtx := errgroup.WithContext(ctx)
	limiter := rate.NewLimiter(rate.Every(s.interval), 2)

	s.logger.Info("开始并行配图", map[string]interface{}{
		"session_id": sessionID,
		"count":      len(slides),
		"interval":   s.interval.String(),
	})

	for _, slide := range slides {
		slide := slide

		eg.Go(func() error {
			// 按流量限制等待自己的轮次
			if err := limiter.Wait(egCtx); err != nil {
				return nil
			}

			imageData := s.AugmentSlide(egCtx, slide)

			select {
			case updates <- models.SlideImageUpdate{
				SessionID: sessionID,
				SlideID:   slide.ID,
				ImageData: imageData,
			}:
			case <-egCtx.Done():
			}
			return nil
		})
	}

	// 任务自身不返回错误，Wait只等待全部完成
	_ = eg.Wait()

	s.logger.Info("配图阶段结束", map[string]interface{}{
		"session_id": sessionID,
		"count":      len(slides),
	})
}
