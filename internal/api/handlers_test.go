// internal/api/handlers_test.go
package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Corphon/MySlides/internal/di"
	"github.com/Corphon/MySlides/internal/llm"
	"github.com/Corphon/MySlides/internal/services"
	"github.com/Corphon/MySlides/internal/storage"
	"github.com/gin-gonic/gin"
)

// fakeLLMProvider 按顺序返回预置响应
type fakeLLMProvider struct {
	responses []string
	calls     int
}

func (p *fakeLLMProvider) Initialize(config map[string]string) error { return nil }
func (p *fakeLLMProvider) GetName() string                           { return "fake" }
func (p *fakeLLMProvider) GetSupportedModels() []string              { return []string{"fake-model"} }

func (p *fakeLLMProvider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	index := p.calls
	if index >= len(p.responses) {
		index = len(p.responses) - 1
	}
	p.calls++
	return &llm.CompletionResponse{Text: p.responses[index]}, nil
}

const apiTestOutline = `["Opening", "Point A", "Closing"]`

const apiTestSlides = `[
	{"slideType":"introduction","title":"Opening","subtitle":"Welcome","content":[],"image_prompt":"abstract"},
	{"slideType":"main_point","title":"Point A","subtitle":"First","content":["a1","a2"],"image_prompt":"diagram"},
	{"slideType":"conclusion","title":"Closing","subtitle":"Bye","content":[],"image_prompt":"sunset"}
]`

// setupAPITest 注册测试服务图并构建只含被测路由的引擎
func setupAPITest(t *testing.T, llmResponses ...string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	container := di.GetContainer()
	container.Clear()

	llmService := services.NewLLMServiceWithProvider(&fakeLLMProvider{responses: llmResponses}, "fake")

	progressService := services.NewProgressService()
	templateService := services.NewTemplateService("", nil)
	augmentService := services.NewAugmentService(nil)
	augmentService.SetInterval(time.Millisecond)

	presentationService := services.NewPresentationService(
		services.NewOutlineService(llmService),
		services.NewSlideService(llmService),
		services.NewLayoutService(),
		templateService,
		augmentService,
		progressService,
	)
	exportService := services.NewExportService(presentationService, templateService)
	archive, err := storage.NewExportArchive(t.TempDir())
	if err != nil {
		t.Fatalf("创建导出归档失败: %v", err)
	}
	exportService.Archive = archive

	container.Register("llm", llmService)
	container.Register("progress", progressService)
	container.Register("template", templateService)
	container.Register("presentation", presentationService)
	container.Register("export", exportService)
	container.Register("config", services.NewConfigService())

	handler := NewHandler(presentationService, templateService, exportService, progressService, nil)

	r := gin.New()
	sessions := r.Group("/api/sessions")
	{
		sessions.POST("", handler.CreateSession)
		sessions.GET("/:id", handler.GetSession)
		sessions.POST("/:id/topic", handler.SubmitTopic)
		sessions.PUT("/:id/outline", handler.UpdateOutline)
		sessions.POST("/:id/template", handler.SelectTemplate)
		sessions.POST("/:id/generate", handler.GenerateSlides)
		sessions.POST("/:id/reset", handler.ResetSession)
		sessions.POST("/:id/export", handler.ExportPresentation)
	}
	r.GET("/api/templates", handler.GetTemplates)
	r.GET("/api/templates/:id", handler.GetTemplate)
	r.GET("/api/exports", handler.ListExports)
	r.GET("/api/exports/:file", handler.DownloadExport)

	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("序列化请求失败: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeAPIResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()

	var resp APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析响应失败: %v (%s)", err, w.Body.String())
	}
	return resp
}

func sessionData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	resp := decodeAPIResponse(t, w)
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("响应data形状不符: %s", w.Body.String())
	}
	return data
}

func TestSessionEndpointsFullFlow(t *testing.T) {
	r := setupAPITest(t, apiTestOutline, apiTestSlides)

	// 创建会话
	w := doJSON(t, r, "POST", "/api/sessions", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("创建会话状态码不符: %d (%s)", w.Code, w.Body.String())
	}
	session := sessionData(t, w)
	sessionID, _ := session["id"].(string)
	if sessionID == "" {
		t.Fatal("会话ID缺失")
	}
	if session["state"] != "topic" {
		t.Fatalf("初始状态不符: %v", session["state"])
	}

	// 提交主题
	w = doJSON(t, r, "POST", "/api/sessions/"+sessionID+"/topic", map[string]string{"topic": "Test Topic"})
	if w.Code != http.StatusOK {
		t.Fatalf("提交主题状态码不符: %d (%s)", w.Code, w.Body.String())
	}
	session = sessionData(t, w)
	if session["state"] != "outline" {
		t.Fatalf("提交主题后状态不符: %v", session["state"])
	}

	// 编辑大纲
	w = doJSON(t, r, "PUT", "/api/sessions/"+sessionID+"/outline",
		map[string]interface{}{"outline": []string{"Opening", "Point A", "Closing"}})
	if w.Code != http.StatusOK {
		t.Fatalf("编辑大纲状态码不符: %d (%s)", w.Code, w.Body.String())
	}

	// 选择模板
	w = doJSON(t, r, "POST", "/api/sessions/"+sessionID+"/template", map[string]string{"template_id": "midnight-blue"})
	if w.Code != http.StatusOK {
		t.Fatalf("选择模板状态码不符: %d (%s)", w.Code, w.Body.String())
	}

	// 生成
	w = doJSON(t, r, "POST", "/api/sessions/"+sessionID+"/generate", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("生成状态码不符: %d (%s)", w.Code, w.Body.String())
	}
	session = sessionData(t, w)
	if session["state"] != "presentation" {
		t.Fatalf("生成后状态不符: %v", session["state"])
	}
	slides, _ := session["slides"].([]interface{})
	if len(slides) != 3 {
		t.Fatalf("幻灯片数量不符: %d", len(slides))
	}

	// 重置
	w = doJSON(t, r, "POST", "/api/sessions/"+sessionID+"/reset", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("重置状态码不符: %d (%s)", w.Code, w.Body.String())
	}
	session = sessionData(t, w)
	if session["state"] != "topic" {
		t.Fatalf("重置后状态不符: %v", session["state"])
	}
}

func TestGetSessionNotFound(t *testing.T) {
	r := setupAPITest(t, apiTestOutline)

	w := doJSON(t, r, "GET", "/api/sessions/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("状态码不符: %d", w.Code)
	}

	resp := decodeAPIResponse(t, w)
	if resp.Success {
		t.Fatal("失败响应success应为false")
	}
	if resp.Error == nil || resp.Error.Code != ErrorSessionNotFound {
		t.Fatalf("错误代码不符: %+v", resp.Error)
	}
}

func TestSubmitTopicValidation(t *testing.T) {
	r := setupAPITest(t, apiTestOutline)

	w := doJSON(t, r, "POST", "/api/sessions", nil)
	sessionID := sessionData(t, w)["id"].(string)

	// 缺少topic字段
	w = doJSON(t, r, "POST", "/api/sessions/"+sessionID+"/topic", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("缺少字段应返回400: %d", w.Code)
	}
}

func TestSubmitTopicUpstreamFailure(t *testing.T) {
	r := setupAPITest(t, "no JSON in this response")

	w := doJSON(t, r, "POST", "/api/sessions", nil)
	sessionID := sessionData(t, w)["id"].(string)

	w = doJSON(t, r, "POST", "/api/sessions/"+sessionID+"/topic", map[string]string{"topic": "anything"})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("上游失败应返回502: %d (%s)", w.Code, w.Body.String())
	}

	resp := decodeAPIResponse(t, w)
	if resp.Error == nil || resp.Error.Code != ErrorOutlineFailed {
		t.Fatalf("错误代码不符: %+v", resp.Error)
	}

	// 会话停留在topic状态，允许重试
	w = doJSON(t, r, "GET", "/api/sessions/"+sessionID, nil)
	if sessionData(t, w)["state"] != "topic" {
		t.Fatal("失败后会话应停在topic状态")
	}
}

func TestTemplatesEndpoints(t *testing.T) {
	r := setupAPITest(t, apiTestOutline)

	w := doJSON(t, r, "GET", "/api/templates", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("状态码不符: %d", w.Code)
	}
	resp := decodeAPIResponse(t, w)
	templates, _ := resp.Data.([]interface{})
	if len(templates) != 10 {
		t.Fatalf("模板数量不符: %d", len(templates))
	}

	w = doJSON(t, r, "GET", "/api/templates/tech-noir", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("状态码不符: %d", w.Code)
	}

	w = doJSON(t, r, "GET", "/api/templates/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("未知模板应返回404: %d", w.Code)
	}
}

func TestExportPresentationPDF(t *testing.T) {
	r := setupAPITest(t, apiTestOutline, apiTestSlides)

	w := doJSON(t, r, "POST", "/api/sessions", nil)
	sessionID := sessionData(t, w)["id"].(string)
	doJSON(t, r, "POST", "/api/sessions/"+sessionID+"/topic", map[string]string{"topic": "Solar Energy"})
	doJSON(t, r, "POST", "/api/sessions/"+sessionID+"/template", map[string]string{"template_id": "midnight-blue"})
	w = doJSON(t, r, "POST", "/api/sessions/"+sessionID+"/generate", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("生成失败: %d (%s)", w.Code, w.Body.String())
	}

	// 构造一页截图
	img := image.NewRGBA(image.Rect(0, 0, 160, 90))
	for y := 0; y < 90; y++ {
		for x := 0; x < 160; x++ {
			img.Set(x, y, color.RGBA{10, 20, 30, 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("编码截图失败: %v", err)
	}

	body := map[string]interface{}{
		"captures": []map[string]interface{}{
			{
				"slide_id":  "s1",
				"mime_type": "image/jpeg",
				"data":      base64.StdEncoding.EncodeToString(buf.Bytes()),
				"width":     160,
				"height":    90,
			},
		},
	}

	w = doJSON(t, r, "POST", fmt.Sprintf("/api/sessions/%s/export?format=pdf", sessionID), body)
	if w.Code != http.StatusOK {
		t.Fatalf("导出状态码不符: %d (%s)", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("内容类型不符: %s", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd == "" {
		t.Fatal("应设置Content-Disposition")
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")) {
		t.Fatal("响应体应为PDF文档")
	}
}

func TestExportPresentationHTML(t *testing.T) {
	r := setupAPITest(t, apiTestOutline, apiTestSlides)

	w := doJSON(t, r, "POST", "/api/sessions", nil)
	sessionID := sessionData(t, w)["id"].(string)
	doJSON(t, r, "POST", "/api/sessions/"+sessionID+"/topic", map[string]string{"topic": "Solar Energy"})
	doJSON(t, r, "POST", "/api/sessions/"+sessionID+"/template", map[string]string{"template_id": "midnight-blue"})
	doJSON(t, r, "POST", "/api/sessions/"+sessionID+"/generate", nil)

	w = doJSON(t, r, "POST", fmt.Sprintf("/api/sessions/%s/export?format=html", sessionID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("导出状态码不符: %d (%s)", w.Code, w.Body.String())
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("<!DOCTYPE html>")) {
		t.Fatal("响应体应为HTML文档")
	}
}

func TestExportArchiveEndpoints(t *testing.T) {
	r := setupAPITest(t, apiTestOutline, apiTestSlides)

	// 归档为空时返回空列表
	w := doJSON(t, r, "GET", "/api/exports", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("状态码不符: %d (%s)", w.Code, w.Body.String())
	}
	resp := decodeAPIResponse(t, w)
	if entries, _ := resp.Data.([]interface{}); len(entries) != 0 {
		t.Fatalf("初始归档应为空: %v", resp.Data)
	}

	// 走完整流程产生一次HTML导出
	w = doJSON(t, r, "POST", "/api/sessions", nil)
	sessionID := sessionData(t, w)["id"].(string)
	doJSON(t, r, "POST", "/api/sessions/"+sessionID+"/topic", map[string]string{"topic": "Solar Energy"})
	doJSON(t, r, "POST", "/api/sessions/"+sessionID+"/template", map[string]string{"template_id": "midnight-blue"})
	doJSON(t, r, "POST", "/api/sessions/"+sessionID+"/generate", nil)
	w = doJSON(t, r, "POST", fmt.Sprintf("/api/sessions/%s/export?format=html", sessionID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("导出失败: %d (%s)", w.Code, w.Body.String())
	}

	// 列表应出现归档条目
	w = doJSON(t, r, "GET", "/api/exports", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("状态码不符: %d (%s)", w.Code, w.Body.String())
	}
	resp = decodeAPIResponse(t, w)
	entries, _ := resp.Data.([]interface{})
	if len(entries) != 1 {
		t.Fatalf("归档条目数量不符: %v", resp.Data)
	}
	entry, _ := entries[0].(map[string]interface{})
	fileName, _ := entry["fileName"].(string)
	if fileName == "" {
		t.Fatalf("归档条目缺少文件名: %v", entry)
	}

	// 按文件名重新下载
	w = doJSON(t, r, "GET", "/api/exports/"+fileName, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("下载状态码不符: %d (%s)", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !bytes.Contains([]byte(ct), []byte("text/html")) {
		t.Fatalf("内容类型不符: %s", ct)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("<!DOCTYPE html>")) {
		t.Fatal("下载内容应为导出的HTML文档")
	}

	// 未知文件返回404
	w = doJSON(t, r, "GET", "/api/exports/nope.pdf", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("未知文件应返回404: %d", w.Code)
	}
}

func TestExportBeforeGenerate(t *testing.T) {
	r := setupAPITest(t, apiTestOutline)

	w := doJSON(t, r, "POST", "/api/sessions", nil)
	sessionID := sessionData(t, w)["id"].(string)

	w = doJSON(t, r, "POST", "/api/sessions/"+sessionID+"/export?format=html", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("未就绪导出应返回409: %d (%s)", w.Code, w.Body.String())
	}
}
