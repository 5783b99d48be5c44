package service

import (
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"time"

	"go.uber.org/zap"
)

// ProgressService 维护学员在课程内的位置、完成集合与章节门禁
type ProgressService struct {
	ProgressRepo    *repository.ProgressRepository
	CourseRepo      *repository.CourseRepository
	QuizRepo        *repository.QuizRepository
	CertificateRepo *repository.CertificateRepository
}

func NewProgressService(
	progressRepo *repository.ProgressRepository,
	courseRepo *repository.CourseRepository,
	quizRepo *repository.QuizRepository,
	certificateRepo *repository.CertificateRepository,
) *ProgressService {
	return &ProgressService{
		ProgressRepo:    progressRepo,
		CourseRepo:      courseRepo,
		QuizRepo:        quizRepo,
		CertificateRepo: certificateRepo,
	}
}

// ChapterAccessible 纯函数门禁：第 0 章永远可进，
// 第 i 章 (i>0) 仅当第 i-1 章的测验已通过
func ChapterAccessible(progress *model.CourseProgress, chapters []model.Chapter, index int) bool {
	if index < 0 || index >= len(chapters) {
		return false
	}
	if index == 0 {
		return true
	}
	return progress.QuizPassed.Has(model.IDString(chapters[index-1].ID))
}

// EvaluateCompletion 纯函数派生完成状态：全部章节的测验都已通过即完成
func EvaluateCompletion(progress *model.CourseProgress, chapters []model.Chapter) bool {
	if len(chapters) == 0 {
		return false
	}
	for _, ch := range chapters {
		if !progress.CompletedChapters.Has(model.IDString(ch.ID)) {
			return false
		}
	}
	return true
}

func (s *ProgressService) Get(userID, courseID uint) (*model.CourseProgress, error) {
	return s.ProgressRepo.GetOrCreate(userID, courseID)
}

// ChapterAccess 课程各章节的可进入状态
func (s *ProgressService) ChapterAccess(userID, courseID uint) ([]bool, error) {
	progress, err := s.ProgressRepo.GetOrCreate(userID, courseID)
	if err != nil {
		return nil, err
	}

	chapters, err := s.CourseRepo.OrderedChapters(courseID)
	if err != nil {
		return nil, err
	}

	access := make([]bool, len(chapters))
	for i := range chapters {
		access[i] = ChapterAccessible(progress, chapters, i)
	}
	return access, nil
}

// MarkVideoComplete 幂等加入已完成视频集合，不驱动任何解锁
func (s *ProgressService) MarkVideoComplete(userID, courseID, videoID uint) (*model.CourseProgress, error) {
	progress, err := s.ProgressRepo.GetOrCreate(userID, courseID)
	if err != nil {
		return nil, err
	}

	key := model.IDString(videoID)
	if progress.CompletedVideos.Has(key) {
		return progress, nil
	}

	progress.CompletedVideos = progress.CompletedVideos.Add(key)
	if err := s.ProgressRepo.Save(progress); err != nil {
		return nil, err
	}
	return progress, nil
}

// MarkQuizPassed 测验通过的唯一入口：同一操作里同时写入
// QuizPassed 与 CompletedChapters，保证后者恒为前者子集。
// 在未完成→完成的边沿上打完成时间戳并签发证书。
func (s *ProgressService) MarkQuizPassed(userID, courseID, chapterID uint) (*model.CourseProgress, *model.CourseCompletionState, error) {
	progress, err := s.ProgressRepo.GetOrCreate(userID, courseID)
	if err != nil {
		return nil, nil, err
	}

	chapters, err := s.CourseRepo.OrderedChapters(courseID)
	if err != nil {
		return nil, nil, err
	}

	wasCompleted := EvaluateCompletion(progress, chapters)

	key := model.IDString(chapterID)
	progress.QuizPassed = progress.QuizPassed.Add(key)
	progress.CompletedChapters = progress.CompletedChapters.Add(key)

	state := &model.CourseCompletionState{}
	nowCompleted := EvaluateCompletion(progress, chapters)
	state.IsCompleted = nowCompleted

	// 边沿触发：只在本次通过使课程首次完成时处理
	if nowCompleted && !wasCompleted && progress.CompletedAt == nil {
		now := time.Now()
		progress.CompletedAt = &now
		state.CompletionDate = &now
		state.FinalScore = s.finalScore(userID, courseID)

		s.issueCertificate(userID, courseID, state.FinalScore, now)
		logger.Log.Info("course completed",
			zap.Uint("userID", userID),
			zap.Uint("courseID", courseID),
			zap.Float64("finalScore", state.FinalScore))
	} else if progress.CompletedAt != nil {
		state.CompletionDate = progress.CompletedAt
		state.FinalScore = s.finalScore(userID, courseID)
	}

	if err := s.ProgressRepo.Save(progress); err != nil {
		return nil, nil, err
	}
	return progress, state, nil
}

// finalScore 已通过测验的平均分；查询失败只记日志，不阻塞进度写入
func (s *ProgressService) finalScore(userID, courseID uint) float64 {
	scores, err := s.QuizRepo.PassedScores(userID, courseID)
	if err != nil {
		logger.Log.Error("failed to load passed quiz scores", zap.Error(err))
		return 0
	}
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, score := range scores {
		sum += score
	}
	return sum / float64(len(scores))
}

// issueCertificate 证书签发失败不阻塞完成本身
func (s *ProgressService) issueCertificate(userID, courseID uint, finalScore float64, issuedAt time.Time) {
	existing, err := s.CertificateRepo.FindByUserCourse(userID, courseID)
	if err != nil {
		logger.Log.Error("certificate lookup failed", zap.Error(err))
		return
	}
	if existing != nil {
		return
	}

	cert := &model.Certificate{
		UserID:     userID,
		CourseID:   courseID,
		Serial:     model.GenerateUUID(),
		FinalScore: finalScore,
		IssuedAt:   issuedAt,
	}
	if err := s.CertificateRepo.Create(cert); err != nil {
		logger.Log.Error("certificate issue failed", zap.Error(err))
	}
}

// UpdatePosition 覆盖写当前位置，负数下标视为调用方错误
func (s *ProgressService) UpdatePosition(userID, courseID uint, chapterIdx, videoIdx int) (*model.CourseProgress, error) {
	if chapterIdx < 0 || videoIdx < 0 {
		return nil, util.ErrInvalidPosition
	}

	progress, err := s.ProgressRepo.GetOrCreate(userID, courseID)
	if err != nil {
		return nil, err
	}

	progress.CurrentChapter = chapterIdx
	progress.CurrentVideo = videoIdx
	if err := s.ProgressRepo.Save(progress); err != nil {
		return nil, err
	}
	return progress, nil
}

// AddWatchTime 累加播放毫秒数
func (s *ProgressService) AddWatchTime(userID, courseID uint, deltaMs int64) (*model.CourseProgress, error) {
	if deltaMs < 0 {
		deltaMs = 0
	}

	progress, err := s.ProgressRepo.GetOrCreate(userID, courseID)
	if err != nil {
		return nil, err
	}

	progress.TotalTimeSpent += deltaMs
	if err := s.ProgressRepo.Save(progress); err != nil {
		return nil, err
	}
	return progress, nil
}

// Reset 进度回到初始状态（空集合、位置 (0,0)、累计时长 0）
func (s *ProgressService) Reset(userID, courseID uint) (*model.CourseProgress, error) {
	progress, err := s.ProgressRepo.GetOrCreate(userID, courseID)
	if err != nil {
		return nil, err
	}

	if err := s.ProgressRepo.Reset(progress); err != nil {
		return nil, err
	}
	return progress, nil
}

// MyProgress 学员全部课程的进度总览
func (s *ProgressService) MyProgress(userID uint) ([]model.CourseProgress, error) {
	return s.ProgressRepo.ListByUser(userID)
}

// MyCertificates 学员已获得的证书
func (s *ProgressService) MyCertificates(userID uint) ([]model.Certificate, error) {
	return s.CertificateRepo.ListByUser(userID)
}

// Completion 对外暴露的完成状态查询
func (s *ProgressService) Completion(userID, courseID uint) (*model.CourseCompletionState, error) {
	progress, err := s.ProgressRepo.GetOrCreate(userID, courseID)
	if err != nil {
		return nil, err
	}

	chapters, err := s.CourseRepo.OrderedChapters(courseID)
	if err != nil {
		return nil, err
	}

	state := &model.CourseCompletionState{
		IsCompleted:    EvaluateCompletion(progress, chapters),
		CompletionDate: progress.CompletedAt,
	}
	if state.IsCompleted {
		state.FinalScore = s.finalScore(userID, courseID)
	}
	return state, nil
}
