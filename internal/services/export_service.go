// internal/services/export_service.go
package services

import (
	"bytes"
	"fmt"
	"html"
	"image"
	"strings"
	"time"

	_ "image/jpeg"
	_ "image/png"

	apperrors "github.com/Corphon/MySlides/internal/errors"
	"github.com/Corphon/MySlides/internal/models"
	"github.com/Corphon/MySlides/internal/storage"
	"github.com/Corphon/MySlides/internal/utils"

	"github.com/jung-kurt/gofpdf"
	"github.com/yuin/goldmark"
)

// ExportProgressFunc 逐页导出进度回调，可为nil
type ExportProgressFunc func(progress models.ExportProgress)

// ExportService 把就绪的演示文稿装配成可下载的文件。
// PDF走浏览器截图装配路线，HTML直接从幻灯片数据渲染
type ExportService struct {
	PresentationService *PresentationService
	TemplateService     *TemplateService

	// Archive 为nil时跳过落盘留底
	Archive *storage.ExportArchive

	markdown goldmark.Markdown
	logger   *utils.Logger
	metrics  *utils.APIMetrics
}

// NewExportService 创建导出服务
func NewExportService(presentationService *PresentationService, templateService *TemplateService) *ExportService {
	return &ExportService{
		PresentationService: presentationService,
		TemplateService:     templateService,
		markdown:            goldmark.New(),
		logger:              utils.GetLogger(),
		metrics:             utils.NewAPIMetrics(),
	}
}

// finishExport 统一处理导出完成后的记录与归档
func (s *ExportService) finishExport(result *models.ExportResult, started time.Time) {
	s.metrics.RecordExport(result.Format, result.PageCount, result.FileSize, time.Since(started))

	if s.Archive != nil {
		if path, err := s.Archive.Save(result); err != nil {
			s.logger.Warn("导出归档失败", map[string]interface{}{
				"file":  result.FileName,
				"error": err.Error(),
			})
		} else {
			s.logger.Debug("导出已归档", map[string]interface{}{"path": path})
		}
	}
}

// ExportPDF 把逐页截图装配成A4横向PDF。
// 每页一图，保持截图宽高比在页面内contain并居中，不拉伸。
// captures按幻灯片顺序排列；为空时返回导出错误
func (s *ExportService) ExportPDF(sessionID string, captures []models.SlideCapture, onProgress ExportProgressFunc) (*models.ExportResult, error) {
	session, err := s.PresentationService.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if session.State != models.StatePresentation {
		return nil, apperrors.NewConflictError("演示文稿尚未就绪，无法导出", nil)
	}
	if len(captures) == 0 {
		return nil, apperrors.NewExportError("没有可导出的幻灯片截图", nil)
	}

	reportProgress(onProgress, "Initializing...", 0)
	started := time.Now()

	pdf := gofpdf.New("L", "mm", "A4", "")
	pageWidth, pageHeight := pdf.GetPageSize()

	for i, capture := range captures {
		percentage := i * 100 / len(captures)
		reportProgress(onProgress, fmt.Sprintf("Slide %d of %d", i+1, len(captures)), percentage)

		width, height, err := captureDimensions(capture)
		if err != nil {
			return nil, apperrors.NewExportError(
				fmt.Sprintf("第%d页截图无法解析", i+1), err)
		}

		pdf.AddPage()

		finalWidth, finalHeight, x, y := containFit(pageWidth, pageHeight, width, height)

		imageType := "JPG"
		if capture.MimeType == "image/png" {
			imageType = "PNG"
		}
		options := gofpdf.ImageOptions{ImageType: imageType, ReadDpi: false}
		name := fmt.Sprintf("slide-%d", i)
		pdf.RegisterImageOptionsReader(name, options, bytes.NewReader(capture.Data))
		pdf.ImageOptions(name, x, y, finalWidth, finalHeight, false, options, 0, "")

		if pdf.Err() {
			return nil, apperrors.NewExportError(
				fmt.Sprintf("第%d页写入PDF失败", i+1), pdf.Error())
		}
	}

	reportProgress(onProgress, "Finalizing...", 100)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, apperrors.NewExportError("PDF装配失败", err)
	}

	result := &models.ExportResult{
		SessionID:   sessionID,
		Topic:       session.Topic,
		Format:      "pdf",
		FileName:    ExportFileName(session.Topic, "pdf"),
		Content:     buf.Bytes(),
		ContentType: "application/pdf",
		PageCount:   len(captures),
		FileSize:    int64(buf.Len()),
		GeneratedAt: time.Now(),
	}

	s.logger.Info("PDF导出完成", map[string]interface{}{
		"session_id": sessionID,
		"pages":      result.PageCount,
		"bytes":      result.FileSize,
	})
	s.finishExport(result, started)
	return result, nil
}

// ExportHTML 把幻灯片数据渲染成单文件HTML。
// 配图以data URI内联，离线打开也完整
func (s *ExportService) ExportHTML(sessionID string, onProgress ExportProgressFunc) (*models.ExportResult, error) {
	session, err := s.PresentationService.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if session.State != models.StatePresentation {
		return nil, apperrors.NewConflictError("演示文稿尚未就绪，无法导出", nil)
	}
	if len(session.Slides) == 0 {
		return nil, apperrors.NewExportError("没有可导出的幻灯片", nil)
	}

	template, err := s.TemplateService.GetTemplate(session.TemplateID)
	if err != nil {
		return nil, err
	}

	reportProgress(onProgress, "Initializing...", 0)
	started := time.Now()

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	b.WriteString("<title>" + html.EscapeString(session.Topic) + "</title>\n")
	b.WriteString("<style>\n")
	fmt.Fprintf(&b, "body { margin: 0; background: #000; font-family: %q, sans-serif; }\n", template.Theme.FontFamily)
	fmt.Fprintf(&b, ".slide { width: 100vw; height: 100vh; box-sizing: border-box; padding: 6vh 8vw; background: #%s; color: #%s; overflow: hidden; }\n",
		template.Theme.BackgroundColor, template.Theme.TextColor)
	fmt.Fprintf(&b, ".slide h1 { color: #%s; margin: 0 0 0.2em; }\n", template.Theme.AccentColor)
	b.WriteString(".slide h2 { font-weight: normal; opacity: 0.8; margin: 0 0 1em; }\n")
	b.WriteString(".slide img { max-width: 45vw; max-height: 60vh; float: right; margin-left: 2vw; }\n")
	b.WriteString(".slide ul { font-size: 1.3em; line-height: 1.8; }\n")
	b.WriteString(".slide blockquote { font-size: 1.8em; font-style: italic; margin: 1em 2em; }\n")
	b.WriteString("</style>\n</head>\n<body>\n")

	for i, slide := range session.Slides {
		percentage := i * 100 / len(session.Slides)
		reportProgress(onProgress, fmt.Sprintf("Slide %d of %d", i+1, len(session.Slides)), percentage)

		fmt.Fprintf(&b, "<section class=\"slide\" data-layout=%q>\n", string(slide.Layout))
		b.WriteString("<h1>" + html.EscapeString(slide.Title) + "</h1>\n")
		if slide.Subtitle != "" {
			b.WriteString("<h2>" + html.EscapeString(slide.Subtitle) + "</h2>\n")
		}
		if slide.ImageData != "" {
			fmt.Fprintf(&b, "<img src=%q alt=\"\">\n", slide.ImageData)
		}

		if slide.Layout == models.LayoutQuote {
			for _, line := range slide.Content {
				b.WriteString("<blockquote>")
				b.WriteString(s.renderMarkdownInline(line))
				b.WriteString("</blockquote>\n")
			}
		} else if len(slide.Content) > 0 {
			b.WriteString("<ul>\n")
			for _, line := range slide.Content {
				b.WriteString("<li>")
				b.WriteString(s.renderMarkdownInline(line))
				b.WriteString("</li>\n")
			}
			b.WriteString("</ul>\n")
		}
		b.WriteString("</section>\n")
	}

	b.WriteString("</body>\n</html>\n")
	reportProgress(onProgress, "Finalizing...", 100)

	content := []byte(b.String())
	result := &models.ExportResult{
		SessionID:   sessionID,
		Topic:       session.Topic,
		Format:      "html",
		FileName:    ExportFileName(session.Topic, "html"),
		Content:     content,
		ContentType: "text/html; charset=utf-8",
		PageCount:   len(session.Slides),
		FileSize:    int64(len(content)),
		GeneratedAt: time.Now(),
	}

	s.logger.Info("HTML导出完成", map[string]interface{}{
		"session_id": sessionID,
		"pages":      result.PageCount,
		"bytes":      result.FileSize,
	})
	s.finishExport(result, started)
	return result, nil
}

// renderMarkdownInline 把单行Markdown转成HTML并去掉外层<p>包裹
func (s *ExportService) renderMarkdownInline(source string) string {
	var out bytes.Buffer
	if err := s.markdown.Convert([]byte(source), &out); err != nil {
		return html.EscapeString(source)
	}
	rendered := strings.TrimSpace(out.String())
	rendered = strings.TrimPrefix(rendered, "<p>")
	rendered = strings.TrimSuffix(rendered, "</p>")
	return rendered
}

// containFit 保持截图宽高比把它放进页面并居中，不拉伸。
// 返回放置尺寸和左上角坐标
func containFit(pageWidth, pageHeight float64, width, height int) (finalWidth, finalHeight, x, y float64) {
	pageRatio := pageWidth / pageHeight
	captureRatio := float64(width) / float64(height)

	if captureRatio > pageRatio {
		finalWidth = pageWidth
		finalHeight = pageWidth / captureRatio
		x = 0
		y = (pageHeight - finalHeight) / 2
	} else {
		finalHeight = pageHeight
		finalWidth = pageHeight * captureRatio
		x = (pageWidth - finalWidth) / 2
		y = 0
	}
	return finalWidth, finalHeight, x, y
}

// captureDimensions 取截图像素尺寸。客户端没报告时从图像头解出
func captureDimensions(capture models.SlideCapture) (int, int, error) {
	if capture.Width > 0 && capture.Height > 0 {
		return capture.Width, capture.Height, nil
	}

	config, _, err := image.DecodeConfig(bytes.NewReader(capture.Data))
	if err != nil {
		return 0, 0, err
	}
	if config.Width <= 0 || config.Height <= 0 {
		return 0, 0, fmt.Errorf("无效的图像尺寸: %dx%d", config.Width, config.Height)
	}
	return config.Width, config.Height, nil
}

// ExportFileName 从主题取首个单词，转小写并去掉非字母数字字符。
// 结果为空时退回presentation
func ExportFileName(topic, extension string) string {
	fields := strings.Fields(strings.TrimSpace(topic))
	word := ""
	if len(fields) > 0 {
		var b strings.Builder
		for _, r := range strings.ToLower(fields[0]) {
			if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
				b.WriteRune(r)
			}
		}
		word = b.String()
	}
	if word == "" {
		word = "presentation"
	}
	return word + "@MySlides." + extension
}

// reportProgress 进度回调的nil安全包装
func reportProgress(onProgress ExportProgressFunc, message string, percentage int) {
	if onProgress != nil {
		onProgress(models.ExportProgress{Message: message, Percentage: percentage})
	}
}
