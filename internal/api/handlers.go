// internal/api/handlers.go
package api

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Corphon/MySlides/internal/config"
	"github.com/Corphon/MySlides/internal/di"
	apperrors "github.com/Corphon/MySlides/internal/errors"
	"github.com/Corphon/MySlides/internal/llm"
	"github.com/Corphon/MySlides/internal/models"
	"github.com/Corphon/MySlides/internal/services"
	"github.com/Corphon/MySlides/internal/storage"
	"github.com/Corphon/MySlides/internal/utils"
	"github.com/gin-gonic/gin"
)

// Handler 处理API请求
type Handler struct {
	// 核心服务
	PresentationService *services.PresentationService // 会话编排服务
	TemplateService     *services.TemplateService     // 模板服务
	ExportService       *services.ExportService       // 导出服务
	ProgressService     *services.ProgressService     // 进度跟踪服务
	ConfigService       *services.ConfigService       // 配置服务
	WebSocketHandler    *WebSocketHandler             // WebSocket 处理器
	Response            *ResponseHelper               // 响应助手
}

// NewHandler 创建API处理器
func NewHandler(
	presentationService *services.PresentationService,
	templateService *services.TemplateService,
	exportService *services.ExportService,
	progressService *services.ProgressService,
	configService *services.ConfigService,
) *Handler {
	return &Handler{
		PresentationService: presentationService,
		TemplateService:     templateService,
		ExportService:       exportService,
		ProgressService:     progressService,
		ConfigService:       configService,
		WebSocketHandler:    NewWebSocketHandler(),
		Response:            NewResponseHelper(),
	}
}

// APIResponse 标准API响应格式
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"` // 用于调试和追踪
}

// APIError 标准错误格式
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// PaginationMeta 分页元数据
type PaginationMeta struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// PaginatedResponse 带分页的响应
type PaginatedResponse struct {
	*APIResponse
	Meta *PaginationMeta `json:"meta,omitempty"`
}

// ------------------------------------------------
// SessionWebSocket 处理会话 WebSocket 连接
func (h *Handler) SessionWebSocket(c *gin.Context) {
	h.WebSocketHandler.SessionWebSocket(c)
}

// BroadcastToSession 提供外部调用的广播方法
func (h *Handler) BroadcastToSession(sessionID string, message map[string]interface{}) {
	wsManager.BroadcastToSession(sessionID, message)
}

// GetWebSocketStatus 获取 WebSocket 连接状态（调试用）
func (h *Handler) GetWebSocketStatus(c *gin.Context) {
	status := wsManager.GetStatus()
	status["ping_timeout_seconds"] = int(wsManager.pingTimeout.Seconds())
	status["timestamp"] = time.Now().Format(time.RFC3339)

	c.JSON(http.StatusOK, status)
}

// GetStats 返回运行期指标快照
func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, utils.GetMetricsCollector().GetMetrics())
}

// ================================================
// 会话生命周期
// ================================================

// CreateSession 创建新会话
func (h *Handler) CreateSession(c *gin.Context) {
	session := h.PresentationService.CreateSession()
	h.Response.Created(c, session, "会话创建成功")
}

// GetSession 获取会话当前状态
func (h *Handler) GetSession(c *gin.Context) {
	session, err := h.PresentationService.GetSession(c.Param("id"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	h.Response.Success(c, session)
}

// SubmitTopic 提交主题并生成大纲
func (h *Handler) SubmitTopic(c *gin.Context) {
	var req struct {
		Topic string `json:"topic" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求数据", err.Error())
		return
	}

	session, err := h.PresentationService.SubmitTopic(c.Request.Context(), c.Param("id"), req.Topic)
	if err != nil {
		// 大纲生成失败时会话保留在topic状态，把会话一并返回便于前端重试
		if session != nil && apperrors.IsGenerationError(err) {
			h.Response.Error(c, http.StatusBadGateway, ErrorOutlineFailed, "大纲生成失败", err.Error())
			return
		}
		h.respondServiceError(c, err)
		return
	}

	h.Response.Success(c, session, "大纲生成成功")
}

// UpdateOutline 编辑大纲
func (h *Handler) UpdateOutline(c *gin.Context) {
	var req struct {
		Outline []string `json:"outline" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求数据", err.Error())
		return
	}

	session, err := h.PresentationService.UpdateOutline(c.Param("id"), req.Outline)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	h.Response.Success(c, session, "大纲更新成功")
}

// SelectTemplate 选择模板
func (h *Handler) SelectTemplate(c *gin.Context) {
	var req struct {
		TemplateID string `json:"template_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求数据", err.Error())
		return
	}

	session, err := h.PresentationService.SelectTemplate(c.Param("id"), req.TemplateID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	h.Response.Success(c, session, "模板选择成功")
}

// GenerateSlides 启动内容生成管线。
// 返回时内容和版式已就绪，配图继续在后台进行并经WebSocket推送
func (h *Handler) GenerateSlides(c *gin.Context) {
	session, err := h.PresentationService.Generate(c.Request.Context(), c.Param("id"))
	if err != nil {
		if apperrors.IsGenerationError(err) {
			h.Response.Error(c, http.StatusBadGateway, ErrorSlidesFailed, "幻灯片生成失败", err.Error())
			return
		}
		h.respondServiceError(c, err)
		return
	}

	h.Response.Success(c, session, "演示文稿生成成功")
}

// ResetSession 清空会话回到主题输入状态
func (h *Handler) ResetSession(c *gin.Context) {
	session, err := h.PresentationService.Reset(c.Param("id"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	h.Response.Success(c, session, "会话已重置")
}

// ================================================
// 模板
// ================================================

// GetTemplates 返回全部模板
func (h *Handler) GetTemplates(c *gin.Context) {
	h.Response.Success(c, h.TemplateService.ListTemplates())
}

// GetTemplate 按ID返回单个模板
func (h *Handler) GetTemplate(c *gin.Context) {
	template, err := h.TemplateService.GetTemplate(c.Param("id"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	h.Response.Success(c, template)
}

// ================================================
// 导出
// ================================================

// exportCaptureRequest 客户端上传的单页截图
type exportCaptureRequest struct {
	SlideID  string `json:"slide_id"`
	MimeType string `json:"mime_type"`
	Data     string `json:"data"` // base64编码的图像字节
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// ExportPresentation 导出演示文稿。
// format=pdf 需要body携带逐页截图；format=html 直接从会话数据渲染
func (h *Handler) ExportPresentation(c *gin.Context) {
	sessionID := c.Param("id")
	format := strings.ToLower(c.DefaultQuery("format", "pdf"))

	tracker := h.ProgressService.CreateTracker(sessionID + ":export")
	onProgress := func(p models.ExportProgress) {
		tracker.UpdateProgress(p.Percentage, p.Message)
		h.BroadcastToSession(sessionID, map[string]interface{}{
			"type":       "export_progress",
			"session_id": sessionID,
			"message":    p.Message,
			"percentage": p.Percentage,
		})
	}

	var result *models.ExportResult
	var err error

	switch format {
	case "pdf":
		var req struct {
			Captures []exportCaptureRequest `json:"captures" binding:"required"`
		}
		if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
			tracker.Fail("请求格式无效")
			h.Response.BadRequest(c, "无效的请求数据", bindErr.Error())
			return
		}

		captures := make([]models.SlideCapture, 0, len(req.Captures))
		for i, capture := range req.Captures {
			raw, decodeErr := base64.StdEncoding.DecodeString(capture.Data)
			if decodeErr != nil {
				tracker.Fail("截图解码失败")
				h.Response.BadRequest(c, fmt.Sprintf("第%d页截图不是有效的base64", i+1), decodeErr.Error())
				return
			}
			captures = append(captures, models.SlideCapture{
				SlideID:  capture.SlideID,
				MimeType: capture.MimeType,
				Data:     raw,
				Width:    capture.Width,
				Height:   capture.Height,
			})
		}

		result, err = h.ExportService.ExportPDF(sessionID, captures, onProgress)

	case "html":
		result, err = h.ExportService.ExportHTML(sessionID, onProgress)

	default:
		tracker.Fail("不支持的导出格式")
		h.Response.Error(c, http.StatusBadRequest, ErrorExportFormatInvalid,
			"不支持的导出格式: "+format)
		return
	}

	if err != nil {
		tracker.Fail(err.Error())
		if apperrors.IsExportError(err) {
			h.Response.Error(c, http.StatusUnprocessableEntity, ErrorExportFailed, "导出失败", err.Error())
			return
		}
		h.respondServiceError(c, err)
		return
	}

	tracker.Complete("导出完成")
	h.Response.ExportResponse(c, result)
}

// ListExports 列出归档的历史导出文件
func (h *Handler) ListExports(c *gin.Context) {
	archive := h.ExportService.Archive
	if archive == nil {
		h.Response.Success(c, []storage.ArchiveEntry{})
		return
	}

	entries, err := archive.List()
	if err != nil {
		h.Response.InternalError(c, "读取导出归档失败", err.Error())
		return
	}
	h.Response.Success(c, entries)
}

// DownloadExport 重新下载一份归档的导出文件
func (h *Handler) DownloadExport(c *gin.Context) {
	archive := h.ExportService.Archive
	if archive == nil {
		h.Response.Error(c, http.StatusNotFound, ErrorNotFound, "导出归档不可用")
		return
	}

	fileName := c.Param("file")
	file, err := archive.Open(fileName)
	if err != nil {
		h.Response.Error(c, http.StatusNotFound, ErrorNotFound, "归档文件不存在")
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		h.Response.InternalError(c, "读取归档文件失败", err.Error())
		return
	}

	contentType := "application/octet-stream"
	switch {
	case strings.HasSuffix(fileName, ".pdf"):
		contentType = "application/pdf"
	case strings.HasSuffix(fileName, ".html"):
		contentType = "text/html; charset=utf-8"
	}

	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", fileName),
	})
}

// ================================================
// 进度
// ================================================

// SubscribeProgress 订阅任务进度的SSE端点
func (h *Handler) SubscribeProgress(c *gin.Context) {
	taskID := c.Param("taskID")

	tracker, exists := h.ProgressService.GetTracker(taskID)
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "任务不存在"})
		return
	}

	// 设置SSE响应头
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("Transfer-Encoding", "chunked")

	clientGone := c.Request.Context().Done()

	updateChan := tracker.Subscribe()
	defer tracker.Unsubscribe(updateChan)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	// 发送初始事件保持连接打开
	fmt.Fprintf(c.Writer, "event: connected\ndata: {\"message\":\"连接已建立\"}\n\n")
	c.Writer.Flush()

	for {
		select {
		case <-clientGone:
			return
		case update, ok := <-updateChan:
			if !ok {
				return
			}
			data, _ := json.Marshal(update)
			fmt.Fprintf(c.Writer, "event: progress\ndata: %s\n\n", string(data))
			c.Writer.Flush()

			if update.Status == "completed" || update.Status == "failed" {
				return
			}
		case <-ticker.C:
			fmt.Fprintf(c.Writer, "event: heartbeat\ndata: {\"time\":%d}\n\n", time.Now().Unix())
			c.Writer.Flush()
		}
	}
}

// CancelTask 取消正在进行的任务
func (h *Handler) CancelTask(c *gin.Context) {
	taskID := c.Param("taskID")

	tracker, exists := h.ProgressService.GetTracker(taskID)
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "任务不存在"})
		return
	}

	// 生成任务的tracker以会话ID命名，先终止后台配图再标记失败
	h.PresentationService.CancelGeneration(taskID)
	tracker.Fail("用户取消了任务")

	c.JSON(http.StatusOK, gin.H{"message": "任务已取消"})
}

// ================================================
// 设置
// ================================================

// GetSettings 获取当前设置（密钥只暴露有无）
func (h *Handler) GetSettings(c *gin.Context) {
	cfg := config.GetCurrentConfig()

	llmConfig := make(map[string]interface{})
	if cfg.LLMConfig != nil {
		llmConfig["model"] = cfg.LLMConfig["default_model"]
		llmConfig["has_api_key"] = cfg.LLMConfig["api_key"] != ""
	}

	imageConfig := make(map[string]interface{})
	if cfg.ImageConfig != nil {
		imageConfig["model"] = cfg.ImageConfig["default_model"]
		imageConfig["has_api_key"] = cfg.ImageConfig["api_key"] != ""
	}

	data := map[string]interface{}{
		"llm_provider":   cfg.LLMProvider,
		"image_provider": cfg.ImageProvider,
		"debug_mode":     cfg.DebugMode,
		"port":           cfg.Port,
		"llm_config":     llmConfig,
		"image_config":   imageConfig,
	}

	h.Response.Success(c, data, "设置获取成功")
}

// SaveSettings 保存设置
func (h *Handler) SaveSettings(c *gin.Context) {
	var request struct {
		LLMProvider   string            `json:"llm_provider"`
		LLMConfig     map[string]string `json:"llm_config"`
		ImageProvider string            `json:"image_provider"`
		ImageConfig   map[string]string `json:"image_config"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		h.Response.BadRequest(c, "无效的请求数据", err.Error())
		return
	}

	// 保存文本生成配置
	if request.LLMProvider != "" && request.LLMConfig != nil {
		err := h.ConfigService.UpdateLLMConfig(request.LLMProvider, request.LLMConfig, "web_ui")
		if err != nil {
			h.Response.InternalError(c, "保存文本生成配置失败", err.Error())
			return
		}

		// 同步运行中的LLM服务
		container := di.GetContainer()
		if llmService, ok := container.Get("llm").(*services.LLMService); ok {
			if err := llmService.UpdateProvider(request.LLMProvider, request.LLMConfig); err != nil {
				h.Response.Error(c, http.StatusPartialContent, "CONFIG_UPDATED_LLM_FAILED",
					"配置已保存，但文本生成服务更新失败", err.Error())
				return
			}
		}
	}

	// 保存图像生成配置
	if request.ImageProvider != "" && request.ImageConfig != nil {
		err := h.ConfigService.UpdateImageConfig(request.ImageProvider, request.ImageConfig, "web_ui")
		if err != nil {
			h.Response.InternalError(c, "保存图像生成配置失败", err.Error())
			return
		}
	}

	h.Response.Success(c, nil, "设置保存成功")
}

// GetLLMStatus 获取文本生成服务状态
func (h *Handler) GetLLMStatus(c *gin.Context) {
	container := di.GetContainer()
	llmService, ok := container.Get("llm").(*services.LLMService)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "无法获取LLM服务实例",
		})
		return
	}

	cfg := config.GetCurrentConfig()

	status := map[string]interface{}{
		"ready":    llmService.IsReady(),
		"status":   llmService.ReadyState(),
		"provider": llmService.ProviderName(),
		"config": map[string]interface{}{
			"provider":    cfg.LLMProvider,
			"has_api_key": cfg.LLMConfig != nil && cfg.LLMConfig["api_key"] != "",
		},
	}

	if cfg.LLMConfig != nil {
		if model, ok := cfg.LLMConfig["default_model"]; ok {
			status["config"].(map[string]interface{})["model"] = model
		}
	}

	c.JSON(http.StatusOK, status)
}

// GetLLMModels 获取指定提供商支持的模型列表
func (h *Handler) GetLLMModels(c *gin.Context) {
	provider := c.Query("provider")
	if provider == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少提供商参数"})
		return
	}

	supported := llm.SupportedModels(provider)
	if len(supported) == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "未知的提供商: " + provider,
			"available": llm.ListProviders(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"provider": provider,
		"models":   supported,
	})
}

// ================================================
// 错误映射
// ================================================

// respondServiceError 把服务层错误翻译为HTTP响应
func (h *Handler) respondServiceError(c *gin.Context, err error) {
	switch {
	case apperrors.IsValidationError(err):
		h.Response.BadRequest(c, err.Error())
	case apperrors.IsNotFoundError(err):
		h.Response.Error(c, http.StatusNotFound, ErrorNotFound, err.Error())
	case apperrors.IsConflictError(err):
		h.Response.Conflict(c, err.Error())
	case apperrors.IsExportError(err):
		h.Response.Error(c, http.StatusUnprocessableEntity, ErrorExportFailed, err.Error())
	case apperrors.IsGenerationError(err):
		h.Response.Error(c, http.StatusBadGateway, ErrorGenerationFailed, err.Error())
	default:
		h.Response.InternalError(c, err.Error())
	}
}
