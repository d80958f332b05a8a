// internal/services/presentation_service.go
package services

import (
	"context"
	"strings"
	"sync"
	"time"

	apperrors "github.com/Corphon/MySlides/internal/errors"
	"github.com/Corphon/MySlides/internal/models"
	"github.com/Corphon/MySlides/internal/utils"

	"github.com/google/uuid"
)

// 单次生成管线的整体超时
const generateTimeout = 5 * time.Minute

// ImageUpdateListener 接收后台配图结果的回调（WebSocket推送用）
type ImageUpdateListener func(update models.SlideImageUpdate)

// PresentationService 持有全部会话并驱动
// topic -> outline -> template -> generating -> presentation 的状态机。
// 会话数据只在锁内读写；后台配图通过通道回流，按幻灯片ID应用
type PresentationService struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session

	// 会话ID -> 正在进行的生成任务，用于拒绝重复触发
	inflight map[string]context.CancelFunc

	// 每张幻灯片至多应用一次图像更新
	applied map[string]map[string]bool

	OutlineService  *OutlineService
	SlideService    *SlideService
	LayoutService   *LayoutService
	TemplateService *TemplateService
	AugmentService  *AugmentService
	ProgressService *ProgressService

	listeners []ImageUpdateListener
	logger    *utils.Logger
}

// NewPresentationService 创建会话编排服务
func NewPresentationService(
	outlineService *OutlineService,
	slideService *SlideService,
	layoutService *LayoutService,
	templateService *TemplateService,
	augmentService *AugmentService,
	progressService *ProgressService,
) *PresentationService {
	return &PresentationService{
		sessions:        make(map[string]*models.Session),
		inflight:        make(map[string]context.CancelFunc),
		applied:         make(map[string]map[string]bool),
		OutlineService:  outlineService,
		SlideService:    slideService,
		LayoutService:   layoutService,
		TemplateService: templateService,
		AugmentService:  augmentService,
		ProgressService: progressService,
		logger:          utils.GetLogger(),
	}
}

// AddImageUpdateListener 注册配图结果监听器。
// 必须在服务开始接收请求前完成注册
func (s *PresentationService) AddImageUpdateListener(listener ImageUpdateListener) {
	s.listeners = append(s.listeners, listener)
}

// CreateSession 创建处于topic状态的新会话
func (s *PresentationService) CreateSession() *models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	session := &models.Session{
		ID:        uuid.NewString(),
		State:     models.StateTopic,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[session.ID] = session
	s.applied[session.ID] = make(map[string]bool)

	s.logger.Info("创建会话", map[string]interface{}{"session_id": session.ID})
	return s.snapshotLocked(session)
}

// GetSession 返回会话的只读快照
func (s *PresentationService) GetSession(sessionID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return nil, apperrors.NewNotFoundError("会话不存在", nil)
	}
	return s.snapshotLocked(session), nil
}

// SubmitTopic 提交主题并生成大纲。
// 成功后会话进入outline状态；失败保持topic状态并记录错误
func (s *PresentationService) SubmitTopic(ctx context.Context, sessionID, topic string) (*models.Session, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, apperrors.NewValidationError("主题不能为空", nil)
	}

	s.mu.Lock()
	session, exists := s.sessions[sessionID]
	if !exists {
		s.mu.Unlock()
		return nil, apperrors.NewNotFoundError("会话不存在", nil)
	}
	if session.State != models.StateTopic {
		s.mu.Unlock()
		return nil, apperrors.NewConflictError("当前状态不能提交主题", nil)
	}
	session.Topic = topic
	session.Error = ""
	session.UpdatedAt = time.Now()
	s.mu.Unlock()

	outline, err := s.OutlineService.GenerateOutline(ctx, topic)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		// 大纲失败：停在topic状态，主题保留以便重试
		session.State = models.StateTopic
		session.Error = err.Error()
		session.UpdatedAt = time.Now()
		return s.snapshotLocked(session), err
	}

	session.Outline = outline
	session.State = models.StateOutline
	session.UpdatedAt = time.Now()
	return s.snapshotLocked(session), nil
}

// UpdateOutline 用户在outline状态下编辑大纲（增删改排序）
func (s *PresentationService) UpdateOutline(sessionID string, outline []string) (*models.Session, error) {
	cleaned := make([]string, 0, len(outline))
	for _, item := range outline {
		item = strings.TrimSpace(item)
		if item != "" {
			cleaned = append(cleaned, item)
		}
	}
	if len(cleaned) == 0 {
		return nil, apperrors.NewValidationError("大纲不能为空", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return nil, apperrors.NewNotFoundError("会话不存在", nil)
	}
	if session.State != models.StateOutline {
		return nil, apperrors.NewConflictError("当前状态不能编辑大纲", nil)
	}

	session.Outline = cleaned
	session.UpdatedAt = time.Now()
	return s.snapshotLocked(session), nil
}

// SelectTemplate 确认大纲并选择模板，会话进入template状态
func (s *PresentationService) SelectTemplate(sessionID, templateID string) (*models.Session, error) {
	template, err := s.TemplateService.GetTemplate(templateID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return nil, apperrors.NewNotFoundError("会话不存在", nil)
	}
	if session.State != models.StateOutline && session.State != models.StateTemplate {
		return nil, apperrors.NewConflictError("当前状态不能选择模板", nil)
	}
	if len(session.Outline) == 0 {
		return nil, apperrors.NewConflictError("尚未生成大纲", nil)
	}

	session.TemplateID = template.ID
	session.State = models.StateTemplate
	session.UpdatedAt = time.Now()
	return s.snapshotLocked(session), nil
}

// Generate 启动内容生成管线。
// 同步部分（内容生成+版式分配）完成后立即返回presentation状态的会话，
// 配图在后台继续，结果经监听器推送。重复触发返回冲突错误
func (s *PresentationService) Generate(ctx context.Context, sessionID string) (*models.Session, error) {
	s.mu.Lock()
	session, exists := s.sessions[sessionID]
	if !exists {
		s.mu.Unlock()
		return nil, apperrors.NewNotFoundError("会话不存在", nil)
	}
	if session.State == models.StateGenerating {
		s.mu.Unlock()
		return nil, apperrors.NewConflictError("生成已在进行中", nil)
	}
	if session.State != models.StateTemplate {
		s.mu.Unlock()
		return nil, apperrors.NewConflictError("请先选择模板", nil)
	}
	if _, busy := s.inflight[sessionID]; busy {
		s.mu.Unlock()
		return nil, apperrors.NewConflictError("生成已在进行中", nil)
	}

	template, err := s.TemplateService.GetTemplate(session.TemplateID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	outline := append([]string(nil), session.Outline...)
	session.State = models.StateGenerating
	session.Error = ""
	session.UpdatedAt = time.Now()
	s.mu.Unlock()

	tracker := s.ProgressService.CreateTracker(sessionID)
	tracker.UpdateProgress(10, "正在生成幻灯片内容...")

	genCtx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	prototypes, err := s.SlideService.GenerateSlides(genCtx, outline)

	s.mu.Lock()
	if err != nil {
		// 内容生成失败：回到template状态，大纲和模板选择保留
		session.State = models.StateTemplate
		session.Error = err.Error()
		session.UpdatedAt = time.Now()
		s.mu.Unlock()
		tracker.Fail(err.Error())
		return nil, err
	}

	slides := s.LayoutService.AssignLayouts(prototypes, template)
	session.Slides = slides
	session.State = models.StatePresentation
	session.UpdatedAt = time.Now()
	s.applied[sessionID] = make(map[string]bool)

	// 后台配图操作的快照，避免与会话内的切片共享
	augmentSlides := make([]*models.Slide, len(slides))
	for i, slide := range slides {
		copied := *slide
		augmentSlides[i] = &copied
	}
	result := s.snapshotLocked(session)
	s.mu.Unlock()

	tracker.UpdateProgress(60, "内容就绪，正在后台配图...")

	// 配图阶段独立于请求生命周期
	augCtx, augCancel := context.WithTimeout(context.Background(), generateTimeout)
	s.mu.Lock()
	s.inflight[sessionID] = augCancel
	s.mu.Unlock()

	go s.runAugmentation(augCtx, augCancel, sessionID, augmentSlides, tracker)

	return result, nil
}

// runAugmentation 驱动后台配图并把结果应用回会话
func (s *PresentationService) runAugmentation(ctx context.Context, cancel context.CancelFunc, sessionID string, slides []*models.Slide, tracker *ProgressTracker) {
	defer func() {
		cancel()
		s.mu.Lock()
		delete(s.inflight, sessionID)
		s.mu.Unlock()
	}()

	updates := make(chan models.SlideImageUpdate, len(slides))
	go s.AugmentService.AugmentAll(ctx, sessionID, slides, updates)

	total := len(slides)
	done := 0
	for update := range updates {
		done++
		if s.ApplyImageUpdate(update) {
			for _, listener := range s.listeners {
				listener(update)
			}
		}
		if total > 0 {
			tracker.UpdateProgress(60+40*done/total, "配图进行中...")
		}
	}

	tracker.Complete("演示文稿生成完成")
}

// ApplyImageUpdate 按幻灯片ID把配图结果写入会话。
// 空ImageData、未知会话、未知幻灯片、重复更新都静默忽略，
// 返回值表示此次更新是否真正生效
func (s *PresentationService) ApplyImageUpdate(update models.SlideImageUpdate) bool {
	if update.ImageData == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[update.SessionID]
	if !exists {
		return false
	}

	applied := s.applied[update.SessionID]
	if applied == nil {
		applied = make(map[string]bool)
		s.applied[update.SessionID] = applied
	}
	if applied[update.SlideID] {
		return false
	}

	for _, slide := range session.Slides {
		if slide.ID == update.SlideID {
			slide.ImageData = update.ImageData
			applied[update.SlideID] = true
			session.UpdatedAt = time.Now()
			return true
		}
	}
	return false
}

// CancelGeneration 取消会话正在进行的配图任务。
// 返回值表示是否确有任务被取消
func (s *PresentationService) CancelGeneration(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cancel, busy := s.inflight[sessionID]
	if !busy {
		return false
	}
	cancel()
	delete(s.inflight, sessionID)
	return true
}

// Reset 把会话清回topic状态。进行中的配图任务被取消，
// 其迟到的结果因applied表重建而不会污染新一轮内容
func (s *PresentationService) Reset(sessionID string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return nil, apperrors.NewNotFoundError("会话不存在", nil)
	}

	if cancel, busy := s.inflight[sessionID]; busy {
		cancel()
		delete(s.inflight, sessionID)
	}

	session.State = models.StateTopic
	session.Topic = ""
	session.Outline = nil
	session.TemplateID = ""
	session.Slides = nil
	session.Error = ""
	session.UpdatedAt = time.Now()
	s.applied[sessionID] = make(map[string]bool)

	return s.snapshotLocked(session), nil
}

// snapshotLocked 在持锁状态下深拷贝会话，避免调用方看到后续修改
func (s *PresentationService) snapshotLocked(session *models.Session) *models.Session {
	copied := *session
	copied.Outline = append([]string(nil), session.Outline...)
	if session.Slides != nil {
		copied.Slides = make([]*models.Slide, len(session.Slides))
		for i, slide := range session.Slides {
			slideCopy := *slide
			copied.Slides[i] = &slideCopy
		}
	}
	return &copied
}
