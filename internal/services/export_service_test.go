// internal/services/export_service_test.go
package services

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"testing"

	apperrors "github.com/Corphon/MySlides/internal/errors"
	"github.com/Corphon/MySlides/internal/models"
)

// encodeTestJPEG 生成指定尺寸的纯色JPEG字节
func encodeTestJPEG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{30, 30, 60, 255})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 60}); err != nil {
		t.Fatalf("编码测试图像失败: %v", err)
	}
	return buf.Bytes()
}

// seedPresentation 直接注入一个presentation状态的会话
func seedPresentation(topic string, slides []*models.Slide) (*ExportService, string) {
	presentation := NewPresentationService(nil, nil, NewLayoutService(), NewTemplateService("", nil), nil, NewProgressService())
	service := NewExportService(presentation, presentation.TemplateService)

	session := presentation.CreateSession()
	presentation.mu.Lock()
	stored := presentation.sessions[session.ID]
	stored.Topic = topic
	stored.TemplateID = "midnight-blue"
	stored.Slides = slides
	stored.State = models.StatePresentation
	presentation.mu.Unlock()

	return service, session.ID
}

func TestExportPDF(t *testing.T) {
	slides := []*models.Slide{
		{ID: "s1", SlidePrototype: models.SlidePrototype{Title: "One"}, Layout: models.LayoutTitleAndContent},
		{ID: "s2", SlidePrototype: models.SlidePrototype{Title: "Two"}, Layout: models.LayoutQuote},
	}
	service, sessionID := seedPresentation("Quantum Computing Basics", slides)

	captures := []models.SlideCapture{
		{SlideID: "s1", MimeType: "image/jpeg", Data: encodeTestJPEG(t, 160, 90), Width: 160, Height: 90},
		{SlideID: "s2", MimeType: "image/jpeg", Data: encodeTestJPEG(t, 90, 160)},
	}

	var progress []models.ExportProgress
	result, err := service.ExportPDF(sessionID, captures, func(p models.ExportProgress) {
		progress = append(progress, p)
	})
	if err != nil {
		t.Fatalf("导出PDF失败: %v", err)
	}

	if result.FileName != "quantum@MySlides.pdf" {
		t.Fatalf("文件名不符: %s", result.FileName)
	}
	if result.ContentType != "application/pdf" {
		t.Fatalf("内容类型不符: %s", result.ContentType)
	}
	if result.PageCount != 2 {
		t.Fatalf("页数不符: %d", result.PageCount)
	}
	if !bytes.HasPrefix(result.Content, []byte("%PDF")) {
		t.Fatal("导出内容应为PDF文档")
	}
	if int64(len(result.Content)) != result.FileSize {
		t.Fatalf("文件大小不一致: %d vs %d", len(result.Content), result.FileSize)
	}

	if len(progress) < 2 {
		t.Fatalf("进度回调次数过少: %d", len(progress))
	}
	if progress[len(progress)-1].Percentage != 100 {
		t.Fatalf("最后一次进度应为100: %d", progress[len(progress)-1].Percentage)
	}
}

func TestContainFitGeometry(t *testing.T) {
	const pageWidth, pageHeight = 297.0, 210.0
	const tolerance = 1e-9

	cases := []struct {
		name   string
		width  int
		height int
	}{
		{"比页面更宽的截图", 1920, 800},
		{"比页面更窄的截图", 800, 1200},
		{"与页面同比例的截图", 1188, 840},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, h, x, y := containFit(pageWidth, pageHeight, tc.width, tc.height)

			// 宽高比保持不变
			captureRatio := float64(tc.width) / float64(tc.height)
			if got := w / h; got < captureRatio-tolerance || got > captureRatio+tolerance {
				t.Fatalf("宽高比未保持: 期望 %v，实际 %v", captureRatio, got)
			}

			// 不超出页面
			if w > pageWidth+tolerance || h > pageHeight+tolerance {
				t.Fatalf("放置尺寸超出页面: %vx%v", w, h)
			}
			if x < 0 || y < 0 {
				t.Fatalf("放置坐标不应为负: (%v, %v)", x, y)
			}

			// 贴满一条边并在另一方向居中
			fillsWidth := w >= pageWidth-tolerance
			fillsHeight := h >= pageHeight-tolerance
			if !fillsWidth && !fillsHeight {
				t.Fatalf("应至少贴满页面的一边: %vx%v", w, h)
			}
			if dx := x - (pageWidth-w)/2; dx < -tolerance || dx > tolerance {
				t.Fatalf("水平方向未居中: x=%v", x)
			}
			if dy := y - (pageHeight-h)/2; dy < -tolerance || dy > tolerance {
				t.Fatalf("垂直方向未居中: y=%v", y)
			}
		})
	}
}

func TestExportPDFEmptyCaptures(t *testing.T) {
	service, sessionID := seedPresentation("topic", []*models.Slide{{ID: "s1"}})

	_, err := service.ExportPDF(sessionID, nil, nil)
	if err == nil {
		t.Fatal("没有截图应返回错误")
	}
	if !apperrors.IsExportError(err) {
		t.Fatalf("错误类型不符: %v", err)
	}
}

func TestExportPDFRequiresPresentationState(t *testing.T) {
	presentation := NewPresentationService(nil, nil, NewLayoutService(), NewTemplateService("", nil), nil, NewProgressService())
	service := NewExportService(presentation, presentation.TemplateService)
	session := presentation.CreateSession()

	_, err := service.ExportPDF(session.ID, []models.SlideCapture{{Data: []byte("x")}}, nil)
	if err == nil {
		t.Fatal("topic状态导出应返回错误")
	}
	if !apperrors.IsConflictError(err) {
		t.Fatalf("错误类型不符: %v", err)
	}
}

func TestExportPDFRejectsUndecodableCapture(t *testing.T) {
	service, sessionID := seedPresentation("topic", []*models.Slide{{ID: "s1"}})

	// 未报告尺寸且字节不是图像
	captures := []models.SlideCapture{{SlideID: "s1", MimeType: "image/jpeg", Data: []byte("definitely not a jpeg")}}
	_, err := service.ExportPDF(sessionID, captures, nil)
	if err == nil {
		t.Fatal("无法解析的截图应返回错误")
	}
	if !apperrors.IsExportError(err) {
		t.Fatalf("错误类型不符: %v", err)
	}
}

func TestExportHTML(t *testing.T) {
	slides := []*models.Slide{
		{
			ID: "s1",
			SlidePrototype: models.SlidePrototype{
				Title:    "Opening",
				Subtitle: "Welcome",
				Content:  []string{"**bold** point", "plain point"},
			},
			Layout:    models.LayoutTitleAndContent,
			ImageData: "data:image/png;base64,aWhvcGU=",
		},
		{
			ID: "s2",
			SlidePrototype: models.SlidePrototype{
				Title:    "Wisdom",
				Subtitle: "- Author",
				Content:  []string{"A quote to remember."},
			},
			Layout: models.LayoutQuote,
		},
	}
	service, sessionID := seedPresentation("Go <Basics>", slides)

	result, err := service.ExportHTML(sessionID, nil)
	if err != nil {
		t.Fatalf("导出HTML失败: %v", err)
	}

	if result.FileName != "go@MySlides.html" {
		t.Fatalf("文件名不符: %s", result.FileName)
	}

	body := string(result.Content)
	if !strings.Contains(body, "Go &lt;Basics&gt;") {
		t.Fatal("标题应做HTML转义")
	}
	if !strings.Contains(body, "background: #03045E") {
		t.Fatal("应内联模板背景色")
	}
	if !strings.Contains(body, "<strong>bold</strong>") {
		t.Fatal("内容行应经过Markdown渲染")
	}
	if !strings.Contains(body, "<blockquote>A quote to remember.</blockquote>") {
		t.Fatal("quote版式应渲染为引用块")
	}
	if !strings.Contains(body, "data:image/png;base64,aWhvcGU=") {
		t.Fatal("配图应以data URI内联")
	}
}

func TestExportFileName(t *testing.T) {
	cases := []struct {
		topic    string
		expected string
	}{
		{"Quantum Computing", "quantum@MySlides.pdf"},
		{"  Go 1.22 Release  ", "go@MySlides.pdf"},
		{"C++ Templates", "c@MySlides.pdf"},
		{"!!!", "presentation@MySlides.pdf"},
		{"", "presentation@MySlides.pdf"},
		{"людина перший", "presentation@MySlides.pdf"},
		{"42things", "42things@MySlides.pdf"},
	}

	for _, tc := range cases {
		got := ExportFileName(tc.topic, "pdf")
		if got != tc.expected {
			t.Fatalf("主题 %q 的文件名不符: 期望 %q，实际 %q", tc.topic, tc.expected, got)
		}
	}
}
