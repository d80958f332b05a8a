// internal/services/template_service.go
package services

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	apperrors "github.com/Corphon/MySlides/internal/errors"
	"github.com/Corphon/MySlides/internal/models"
	"github.com/Corphon/MySlides/internal/storage"
	"github.com/Corphon/MySlides/internal/utils"
)

// TemplateService 提供演示模板。内置十套模板随二进制发布，
// data目录下的templates.json存在时整体覆盖内置集合
type TemplateService struct {
	mu        sync.RWMutex
	templates []models.Template
	byID      map[string]int
	fileCache *storage.FileCacheService
	dataDir   string
	logger    *utils.Logger
}

// NewTemplateService 创建模板服务并载入模板集合
func NewTemplateService(dataDir string, fileCache *storage.FileCacheService) *TemplateService {
	s := &TemplateService{
		fileCache: fileCache,
		dataDir:   dataDir,
		logger:    utils.GetLogger(),
	}
	s.Reload()
	return s
}

// Reload 重新载入模板：优先读data/templates.json，失败时退回内置集合
func (s *TemplateService) Reload() {
	templates := builtinTemplates()

	if s.dataDir != "" {
		path := filepath.Join(s.dataDir, "templates.json")
		if _, err := os.Stat(path); err == nil {
			var custom []models.Template
			if s.fileCache != nil {
				err = s.fileCache.ReadFile(path, &custom)
			} else {
				err = readJSONFile(path, &custom)
			}
			if err != nil {
				s.logger.Warn("自定义模板文件读取失败，使用内置模板", map[string]interface{}{
					"path":  path,
					"error": err.Error(),
				})
			} else if len(custom) > 0 {
				templates = custom
				s.logger.Info("载入自定义模板", map[string]interface{}{
					"path":  path,
					"count": len(custom),
				})
			}
		}
	}

	byID := make(map[string]int, len(templates))
	for i, t := range templates {
		byID[t.ID] = i
	}

	s.mu.Lock()
	s.templates = templates
	s.byID = byID
	s.mu.Unlock()
}

// ListTemplates 返回全部模板（声明顺序）
func (s *TemplateService) ListTemplates() []models.Template {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.Template, len(s.templates))
	copy(result, s.templates)
	return result
}

// GetTemplate 按ID查找模板
func (s *TemplateService) GetTemplate(templateID string) (*models.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index, exists := s.byID[templateID]
	if !exists {
		return nil, apperrors.NewNotFoundError("模板不存在: "+templateID, nil)
	}

	template := s.templates[index]
	return &template, nil
}

// readJSONFile 无缓存时的直接读取
func readJSONFile(path string, target interface{}) error {
	cache := storage.NewFileCacheService(1, time.Second)
	return cache.ReadFile(path, target)
}

// builtinTemplates 十套内置模板
func builtinTemplates() []models.Template {
	return []models.Template{
		{
			ID:          "midnight-blue",
			Name:        "Midnight Blue",
			Description: "A sleek, dark theme with cool blue accents for a modern and professional look.",
			Theme: models.Theme{
				BackgroundColor: "03045E",
				TextColor:       "FFFFFF",
				AccentColor:     "00B4D8",
				FontFamily:      "Michroma",
			},
			AvailableLayouts: models.AvailableLayouts{
				Content: []models.Layout{models.LayoutTitleAndContent, models.LayoutImageLeftTextRight},
				Divider: []models.Layout{models.LayoutSectionHeader},
				Quote:   []models.Layout{models.LayoutQuote},
			},
		},
		{
			ID:          "corporate-clean",
			Name:        "Corporate Clean",
			Description: "A bright, clean, and professional theme with a classic blue accent.",
			Theme: models.Theme{
				BackgroundColor: "FFFFFF",
				TextColor:       "333333",
				AccentColor:     "005f99",
				FontFamily:      "Arial",
			},
			AvailableLayouts: models.AvailableLayouts{
				Content: []models.Layout{models.LayoutTitleAndContent, models.LayoutTwoColumnText, models.LayoutImageLeftTextRight},
				Divider: []models.Layout{models.LayoutSectionHeader},
				Quote:   []models.Layout{models.LayoutQuote},
			},
		},
		{
			ID:          "minimalist-dark",
			Name:        "Minimalist Dark",
			Description: "A simple, elegant, and high-contrast dark theme for focused content.",
			Theme: models.Theme{
				BackgroundColor: "121212",
				TextColor:       "FFFFFF",
				AccentColor:     "BB86FC",
				FontFamily:      "Michroma",
			},
			AvailableLayouts: models.AvailableLayouts{
				Content: []models.Layout{models.LayoutTitleAndContent, models.LayoutQuote},
				Divider: []models.Layout{models.LayoutSectionHeader},
				Quote:   []models.Layout{models.LayoutQuote},
			},
		},
		{
			ID:          "creative-burst",
			Name:        "Creative Burst",
			Description: "A vibrant and energetic theme with bold colors to make your content pop.",
			Theme: models.Theme{
				BackgroundColor: "2D2A4A",
				TextColor:       "FFFFFF",
				AccentColor:     "F72585",
				FontFamily:      "Michroma",
			},
			AvailableLayouts: models.AvailableLayouts{
				Content: []models.Layout{models.LayoutImageFullBleed, models.LayoutImageLeftTextRight},
				Divider: []models.Layout{models.LayoutSectionHeader},
				Quote:   []models.Layout{models.LayoutQuote},
			},
		},
		{
			ID:          "eco-friendly",
			Name:        "Eco-Friendly",
			Description: "An earthy and natural theme with shades of green and brown.",
			Theme: models.Theme{
				BackgroundColor: "F0F4F0",
				TextColor:       "283618",
				AccentColor:     "606C38",
				FontFamily:      "Georgia",
			},
			AvailableLayouts: models.AvailableLayouts{
				Content: []models.Layout{models.LayoutTitleAndContent, models.LayoutTwoColumnText},
				Divider: []models.Layout{models.LayoutSectionHeader},
				Quote:   []models.Layout{models.LayoutQuote},
			},
		},
		{
			ID:          "academic-journal",
			Name:        "Academic Journal",
			Description: "A classic, scholarly theme with a cream background and serif fonts.",
			Theme: models.Theme{
				BackgroundColor: "FDFBF7",
				TextColor:       "222222",
				AccentColor:     "8B0000",
				FontFamily:      "Times New Roman",
			},
			AvailableLayouts: models.AvailableLayouts{
				Content: []models.Layout{models.LayoutTwoColumnText, models.LayoutTitleAndContent},
				Divider: []models.Layout{models.LayoutSectionHeader},
				Quote:   []models.Layout{models.LayoutQuote},
			},
		},
		{
			ID:          "tech-noir",
			Name:        "Tech Noir",
			Description: "A futuristic, cyberpunk-inspired theme with electric blue and cyan accents.",
			Theme: models.Theme{
				BackgroundColor: "0A0A0A",
				TextColor:       "E0E0E0",
				AccentColor:     "00FFFF",
				FontFamily:      "Michroma",
			},
			AvailableLayouts: models.AvailableLayouts{
				Content: []models.Layout{models.LayoutImageLeftTextRight, models.LayoutImageFullBleed},
				Divider: []models.Layout{models.LayoutSectionHeader},
				Quote:   []models.Layout{models.LayoutQuote},
			},
		},
		{
			ID:          "simple-light",
			Name:        "Simple Light",
			Description: "The quintessential classic: black text on a clean white background.",
			Theme: models.Theme{
				BackgroundColor: "FFFFFF",
				TextColor:       "000000",
				AccentColor:     "007BFF",
				FontFamily:      "Helvetica",
			},
			AvailableLayouts: models.AvailableLayouts{
				Content: []models.Layout{models.LayoutTitleAndContent, models.LayoutTwoColumnText},
				Divider: []models.Layout{models.LayoutSectionHeader},
				Quote:   []models.Layout{models.LayoutQuote},
			},
		},
		{
			ID:          "sunset-hues",
			Name:        "Sunset Hues",
			Description: "A warm and inviting theme inspired by the colors of a sunset.",
			Theme: models.Theme{
				BackgroundColor: "FFF3E0",
				TextColor:       "4E342E",
				AccentColor:     "FF7043",
				FontFamily:      "Verdana",
			},
			AvailableLayouts: models.AvailableLayouts{
				Content: []models.Layout{models.LayoutImageLeftTextRight, models.LayoutTitleAndContent},
				Divider: []models.Layout{models.LayoutSectionHeader},
				Quote:   []models.Layout{models.LayoutQuote},
			},
		},
		{
			ID:          "modern-slate",
			Name:        "Modern Slate",
			Description: "A sophisticated and modern gray theme with a striking yellow accent.",
			Theme: models.Theme{
				BackgroundColor: "343A40",
				TextColor:       "F8F9FA",
				AccentColor:     "FFC107",
				FontFamily:      "Michroma",
			},
			AvailableLayouts: models.AvailableLayouts{
				Content: []models.Layout{models.LayoutTitleAndContent, models.LayoutImageLeftTextRight},
				Divider: []models.Layout{models.LayoutSectionHeader},
				Quote:   []models.Layout{models.LayoutQuote},
			},
		},
	}
}
