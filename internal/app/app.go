// internal/app/app.go
package app

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/Corphon/MySlides/internal/config"
	"github.com/Corphon/MySlides/internal/di"
	"github.com/Corphon/MySlides/internal/imagegen"
	"github.com/Corphon/MySlides/internal/services"
	"github.com/Corphon/MySlides/internal/storage"
	"github.com/Corphon/MySlides/internal/utils"

	// 注册所有提供商工厂
	_ "github.com/Corphon/MySlides/internal/imagegen/providers/google"
	_ "github.com/Corphon/MySlides/internal/imagegen/providers/huggingface"
	_ "github.com/Corphon/MySlides/internal/llm/providers/google"
	_ "github.com/Corphon/MySlides/internal/llm/providers/openai"
	_ "github.com/Corphon/MySlides/internal/llm/providers/openrouter"
)

// 文件缓存参数：模板等小JSON文件，条目少、刷新快
const (
	fileCacheMaxEntries = 128
	fileCacheExpiration = 5 * time.Minute
)

// 导出归档保留7天，每小时清理一次
const (
	exportRetention     = 7 * 24 * time.Hour
	exportPruneInterval = time.Hour
)

// InitServices 按依赖顺序创建所有服务并注册到容器。
// 路由层只从容器获取服务，不再创建新实例
func InitServices() error {
	container := di.GetContainer()
	logger := utils.GetLogger()
	cfg := config.GetCurrentConfig()

	// 基础设施层
	fileCache := storage.NewFileCacheService(fileCacheMaxEntries, fileCacheExpiration)
	container.Register("fileCache", fileCache)

	configService := services.NewConfigService()
	container.Register("config", configService)

	// LLM服务允许未就绪启动，用户可在设置页面补齐密钥
	llmService, err := services.NewLLMService()
	if err != nil {
		return fmt.Errorf("创建LLM服务失败: %w", err)
	}
	if !llmService.IsReady() {
		logger.Warn("LLM服务未就绪，等待设置页面配置", map[string]interface{}{
			"state": llmService.ReadyState(),
		})
	}
	container.Register("llm", llmService)

	// 图像提供商同样允许缺失，配图是尽力而为的增强
	imageProvider := buildImageProvider(cfg, logger)

	// 领域服务层
	progressService := services.NewProgressService()
	container.Register("progress", progressService)

	templateService := services.NewTemplateService(cfg.DataDir, fileCache)
	container.Register("template", templateService)

	outlineService := services.NewOutlineService(llmService)
	slideService := services.NewSlideService(llmService)
	layoutService := services.NewLayoutService()
	augmentService := services.NewAugmentService(imageProvider)

	presentationService := services.NewPresentationService(
		outlineService,
		slideService,
		layoutService,
		templateService,
		augmentService,
		progressService,
	)
	container.Register("presentation", presentationService)

	exportService := services.NewExportService(presentationService, templateService)

	// 导出留底可选，归档目录创建失败只影响重新下载
	if archive, err := storage.NewExportArchive(filepath.Join(cfg.DataDir, "exports")); err != nil {
		logger.Warn("导出归档不可用", map[string]interface{}{"error": err.Error()})
	} else {
		exportService.Archive = archive
		go pruneArchiveLoop(archive, logger)
	}
	container.Register("export", exportService)

	// 配置热更新时定期清理失效缓存
	configService.StartCacheRefresher(10 * time.Minute)

	logger.Info("服务初始化完成", map[string]interface{}{
		"services":       container.GetNames(),
		"llm_provider":   llmService.ProviderName(),
		"image_provider": cfg.ImageProvider,
	})

	return nil
}

// pruneArchiveLoop 定期清理超过保留期的导出归档
func pruneArchiveLoop(archive *storage.ExportArchive, logger *utils.Logger) {
	ticker := time.NewTicker(exportPruneInterval)
	defer ticker.Stop()

	for range ticker.C {
		removed, err := archive.Prune(exportRetention)
		if err != nil {
			logger.Warn("清理导出归档失败", map[string]interface{}{"error": err.Error()})
			continue
		}
		if removed > 0 {
			logger.Info("清理过期导出归档", map[string]interface{}{"removed": removed})
		}
	}
}

// buildImageProvider 按配置创建图像提供商，失败时返回nil让配图静默跳过
func buildImageProvider(cfg *config.AppConfig, logger *utils.Logger) imagegen.Provider {
	if cfg.ImageProvider == "" {
		return nil
	}

	provider, err := imagegen.GetProvider(cfg.ImageProvider, cfg.ImageConfig)
	if err != nil {
		logger.Warn("图像提供商初始化失败，幻灯片配图将被跳过", map[string]interface{}{
			"provider": cfg.ImageProvider,
			"error":    err.Error(),
		})
		return nil
	}

	return provider
}
