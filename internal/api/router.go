// internal/api/router.go
package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Corphon/MySlides/internal/config"
	"github.com/Corphon/MySlides/internal/di"
	"github.com/Corphon/MySlides/internal/services"
	"github.com/gin-gonic/gin"
)

// SetupRouter 配置HTTP路由
func SetupRouter() (*gin.Engine, error) {
	// 获取配置
	cfg := config.GetCurrentConfig()

	// 获取依赖注入容器
	container := di.GetContainer()

	// 只从容器获取服务，不再创建新实例
	presentationService, ok := container.Get("presentation").(*services.PresentationService)
	if !ok {
		return nil, fmt.Errorf("会话编排服务未正确初始化")
	}

	templateService, ok := container.Get("template").(*services.TemplateService)
	if !ok {
		return nil, fmt.Errorf("模板服务未正确初始化")
	}

	exportService, ok := container.Get("export").(*services.ExportService)
	if !ok {
		return nil, fmt.Errorf("导出服务未正确初始化")
	}

	progressService, ok := container.Get("progress").(*services.ProgressService)
	if !ok {
		return nil, fmt.Errorf("进度服务未正确初始化")
	}

	configService, ok := container.Get("config").(*services.ConfigService)
	if !ok {
		return nil, fmt.Errorf("配置服务未正确初始化")
	}

	// 创建API处理器
	handler := NewHandler(
		presentationService,
		templateService,
		exportService,
		progressService,
		configService,
	)

	relayHandler := NewRelayHandler()

	// 后台配图结果经WebSocket推送给会话的客户端
	presentationService.AddImageUpdateListener(PushSlideImage)

	// 进度更新同样经WebSocket推送。
	// 导出任务的tracker以"<会话ID>:export"命名，推送前去掉后缀
	progressService.AddListener(func(taskID string, update services.ProgressUpdate) {
		sessionID, _, _ := strings.Cut(taskID, ":")
		PushProgress(sessionID, update)
	})

	// 创建路由
	r := gin.Default()

	// 启用CORS
	r.Use(corsMiddleware())

	// HTTPS重定向（生产环境）
	if !cfg.DebugMode {
		r.Use(func(c *gin.Context) {
			if c.Request.Header.Get("X-Forwarded-Proto") != "https" {
				c.Redirect(http.StatusPermanentRedirect,
					"https://"+c.Request.Host+c.Request.URL.Path)
				return
			}
			c.Next()
		})
	}

	// 静态文件服务（前端单页应用）
	r.Static("/static", cfg.StaticDir)
	r.StaticFile("/", cfg.StaticDir+"/index.html")

	// WebSocket 支持
	r.GET("/ws/sessions/:id", handler.SessionWebSocket)

	// ===============================
	// API路由组
	// ===============================
	api := r.Group("/api")
	api.Use(DefaultRateLimit())
	api.Use(MetricsMiddleware())
	{
		// ===============================
		// 会话相关路由
		// ===============================
		sessionsGroup := api.Group("/sessions")
		{
			sessionsGroup.POST("", handler.CreateSession)
			sessionsGroup.GET("/:id", handler.GetSession)
			sessionsGroup.POST("/:id/topic", GenerateRateLimit(), handler.SubmitTopic)
			sessionsGroup.PUT("/:id/outline", handler.UpdateOutline)
			sessionsGroup.POST("/:id/template", handler.SelectTemplate)
			sessionsGroup.POST("/:id/generate", GenerateRateLimit(), handler.GenerateSlides)
			sessionsGroup.POST("/:id/reset", handler.ResetSession)
			sessionsGroup.POST("/:id/export", ExportRateLimit(), handler.ExportPresentation)
		}

		// ===============================
		// 导出归档（重新下载历史导出）
		// ===============================
		exportsGroup := api.Group("/exports")
		{
			exportsGroup.GET("", handler.ListExports)
			exportsGroup.GET("/:file", handler.DownloadExport)
		}

		// ===============================
		// 模板相关路由
		// ===============================
		templatesGroup := api.Group("/templates")
		{
			templatesGroup.GET("", handler.GetTemplates)
			templatesGroup.GET("/:id", handler.GetTemplate)
		}

		// ===============================
		// 中继路由（浏览器直连模式）
		// ===============================
		api.POST("/generate-text", RelayRateLimit(), relayHandler.GenerateText)
		api.POST("/generate-image", RelayRateLimit(), relayHandler.GenerateImage)

		// ===============================
		// 设置相关路由
		// ===============================
		settingsGroup := api.Group("/settings")
		{
			settingsGroup.GET("", handler.GetSettings)
			settingsGroup.POST("", handler.SaveSettings)
		}

		// ===============================
		// LLM配置相关路由
		// ===============================
		llmGroup := api.Group("/llm")
		{
			llmGroup.GET("/status", handler.GetLLMStatus)
			llmGroup.GET("/models", handler.GetLLMModels)
		}

		// ===============================
		// 进度相关
		// ===============================
		api.GET("/progress/:taskID", handler.SubscribeProgress)
		api.POST("/cancel/:taskID", handler.CancelTask)

		// 运行期指标
		api.GET("/stats", handler.GetStats)

		// WebSocket 管理路由
		wsGroup := api.Group("/ws")
		{
			wsGroup.GET("/status", handler.GetWebSocketStatus)
		}
	}

	return r, nil
}

// corsMiddleware 实现跨域资源共享
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
