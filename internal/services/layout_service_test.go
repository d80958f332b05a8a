// internal/services/layout_service_test.go
package services

import (
	"testing"

	"github.com/Corphon/MySlides/internal/models"
)

func testTemplate() *models.Template {
	return &models.Template{
		ID: "test-template",
		AvailableLayouts: models.AvailableLayouts{
			Content: []models.Layout{models.LayoutTitleAndContent, models.LayoutImageLeftTextRight},
			Divider: []models.Layout{models.LayoutSectionHeader},
			Quote:   []models.Layout{models.LayoutQuote},
		},
	}
}

func TestAssignLayoutDividerTypes(t *testing.T) {
	service := NewLayoutService()
	template := testTemplate()

	for _, slideType := range []models.SlideType{
		models.SlideTypeIntroduction,
		models.SlideTypeDivider,
		models.SlideTypeConclusion,
	} {
		layout, counter := service.AssignLayout(models.SlidePrototype{SlideType: slideType}, template, 5)
		if layout != models.LayoutSectionHeader {
			t.Fatalf("%s 应取divider首个候选，实际: %s", slideType, layout)
		}
		if counter != 5 {
			t.Fatalf("%s 不应推进计数器，实际: %d", slideType, counter)
		}
	}
}

func TestAssignLayoutQuote(t *testing.T) {
	service := NewLayoutService()

	layout, counter := service.AssignLayout(models.SlidePrototype{SlideType: models.SlideTypeQuote}, testTemplate(), 3)
	if layout != models.LayoutQuote {
		t.Fatalf("quote版式不符: %s", layout)
	}
	if counter != 3 {
		t.Fatalf("quote不应推进计数器，实际: %d", counter)
	}
}

func TestAssignLayoutContentRotation(t *testing.T) {
	service := NewLayoutService()
	template := testTemplate()

	prototype := models.SlidePrototype{SlideType: models.SlideTypeMainPoint}

	layout, counter := service.AssignLayout(prototype, template, 0)
	if layout != models.LayoutTitleAndContent || counter != 1 {
		t.Fatalf("第一次轮转不符: %s / %d", layout, counter)
	}

	layout, counter = service.AssignLayout(prototype, template, counter)
	if layout != models.LayoutImageLeftTextRight || counter != 2 {
		t.Fatalf("第二次轮转不符: %s / %d", layout, counter)
	}

	// 回绕到首个候选
	layout, counter = service.AssignLayout(prototype, template, counter)
	if layout != models.LayoutTitleAndContent || counter != 3 {
		t.Fatalf("回绕不符: %s / %d", layout, counter)
	}
}

func TestAssignLayoutFallbacks(t *testing.T) {
	service := NewLayoutService()
	empty := &models.Template{ID: "empty"}

	layout, _ := service.AssignLayout(models.SlidePrototype{SlideType: models.SlideTypeDivider}, empty, 0)
	if layout != models.LayoutSectionHeader {
		t.Fatalf("divider兜底不符: %s", layout)
	}

	layout, _ = service.AssignLayout(models.SlidePrototype{SlideType: models.SlideTypeQuote}, empty, 0)
	if layout != models.LayoutQuote {
		t.Fatalf("quote兜底不符: %s", layout)
	}

	layout, counter := service.AssignLayout(models.SlidePrototype{SlideType: models.SlideTypeMainPoint}, empty, 7)
	if layout != models.LayoutTitleAndContent {
		t.Fatalf("content兜底不符: %s", layout)
	}
	if counter != 7 {
		t.Fatalf("兜底时计数器不应推进，实际: %d", counter)
	}
}

func TestAssignLayoutsDeterministic(t *testing.T) {
	service := NewLayoutService()
	template := testTemplate()

	prototypes := []models.SlidePrototype{
		{SlideType: models.SlideTypeIntroduction, Title: "Intro"},
		{SlideType: models.SlideTypeMainPoint, Title: "One"},
		{SlideType: models.SlideTypeQuote, Title: "Quote"},
		{SlideType: models.SlideTypeMainPoint, Title: "Two"},
		{SlideType: models.SlideTypeMainPoint, Title: "Three"},
		{SlideType: models.SlideTypeConclusion, Title: "End"},
	}

	slides := service.AssignLayouts(prototypes, template)
	if len(slides) != len(prototypes) {
		t.Fatalf("幻灯片数量不符: %d", len(slides))
	}

	expected := []models.Layout{
		models.LayoutSectionHeader,
		models.LayoutTitleAndContent,
		models.LayoutQuote,
		models.LayoutImageLeftTextRight,
		models.LayoutTitleAndContent,
		models.LayoutSectionHeader,
	}
	for i, layout := range expected {
		if slides[i].Layout != layout {
			t.Fatalf("第%d张版式不符: 期望 %s，实际 %s", i+1, layout, slides[i].Layout)
		}
	}

	// quote和divider不占用content轮转位置
	seen := make(map[string]bool)
	for _, slide := range slides {
		if slide.ID == "" {
			t.Fatal("幻灯片应分配非空ID")
		}
		if seen[slide.ID] {
			t.Fatalf("幻灯片ID重复: %s", slide.ID)
		}
		seen[slide.ID] = true
	}
}
