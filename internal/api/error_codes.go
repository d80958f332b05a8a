// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorConflict      = "CONFLICT"
	ErrorForbidden     = "FORBIDDEN"

	// 会话相关错误
	ErrorSessionNotFound = "SESSION_NOT_FOUND"
	ErrorSessionInvalid  = "SESSION_INVALID"
	ErrorSessionBusy     = "SESSION_BUSY"

	// 生成相关错误
	ErrorGenerationFailed = "GENERATION_FAILED"
	ErrorOutlineFailed    = "OUTLINE_FAILED"
	ErrorSlidesFailed     = "SLIDES_FAILED"
	ErrorImageFailed      = "IMAGE_FAILED"

	// 模板相关错误
	ErrorTemplateNotFound = "TEMPLATE_NOT_FOUND"
	ErrorTemplateInvalid  = "TEMPLATE_INVALID"

	// LLM服务相关错误
	ErrorLLMServiceUnavailable = "LLM_SERVICE_UNAVAILABLE"
	ErrorLLMConfigInvalid      = "LLM_CONFIG_INVALID"
	ErrorConnectionFailed      = "CONNECTION_FAILED"

	// 中继相关错误
	ErrorRelayUpstream = "RELAY_UPSTREAM_ERROR"
	ErrorRelayTimeout  = "RELAY_TIMEOUT"

	// 导出相关错误
	ErrorExportFailed        = "EXPORT_FAILED"
	ErrorExportFormatInvalid = "EXPORT_FORMAT_INVALID"
	ErrorExportDataEmpty     = "EXPORT_DATA_EMPTY"
)
