package service

import (
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"lms_backend/pkg/monitoring"
	"time"

	"go.uber.org/zap"
)

const (
	// QuizDuration 单次测验的答题时限
	QuizDuration = 300 * time.Second
	// PassThreshold 及格线（百分制），平台策略常量
	PassThreshold = 70.0
)

// QuizService 章节测验状态机：
// in_progress -> passed / failed；failed 后重新 Start 即为重试（答案与计时全部重置）
type QuizService struct {
	QuizRepo        *repository.QuizRepository
	CourseRepo      *repository.CourseRepository
	ProgressService *ProgressService
}

func NewQuizService(
	quizRepo *repository.QuizRepository,
	courseRepo *repository.CourseRepository,
	progressService *ProgressService,
) *QuizService {
	return &QuizService{
		QuizRepo:        quizRepo,
		CourseRepo:      courseRepo,
		ProgressService: progressService,
	}
}

// QuizResult 一次提交的判卷结果
type QuizResult struct {
	AttemptID   uint    `json:"attemptId"`
	Score       float64 `json:"score"`
	Passed      bool    `json:"passed"`
	TotalPoints int     `json:"totalPoints"`
	Earned      int     `json:"earned"`
	AutoClosed  bool    `json:"autoClosed"`
}

// ScoreAnswers 纯函数判卷：
// score = 答对题目分值之和 / 全部题目分值之和 * 100。
// 未作答按答错计，不存在“未判”状态。
func ScoreAnswers(questions []model.QuizQuestion, answers map[uint]int) (score float64, earned, total int) {
	for _, q := range questions {
		total += q.Points
		answer, ok := answers[q.ID]
		if !ok {
			continue
		}
		if answerCorrect(q, answer) {
			earned += q.Points
		}
	}
	if total == 0 {
		return 0, 0, 0
	}
	return float64(earned) / float64(total) * 100, earned, total
}

// answerCorrect 题型分支在判卷边界上穷举
func answerCorrect(q model.QuizQuestion, answer int) bool {
	switch q.Type {
	case model.MultipleChoice:
		return answer >= 0 && answer < len(q.Options) && answer == q.Answer
	case model.TrueFalse:
		return (answer == 0 || answer == 1) && answer == q.Answer
	default:
		return false
	}
}

// validAnswer 选项下标是否对该题型合法
func validAnswer(q model.QuizQuestion, answer int) bool {
	switch q.Type {
	case model.MultipleChoice:
		return answer >= 0 && answer < len(q.Options)
	case model.TrueFalse:
		return answer == 0 || answer == 1
	default:
		return false
	}
}

// Start 开始（或恢复）一次测验。
// 已有未过期的 in_progress 尝试则直接返回它；否则新建一条，
// 上一次失败后再 Start 即为 RETRY：全新的答案与截止时间。
func (s *QuizService) Start(userID, courseID, chapterID uint) (*model.QuizAttempt, []model.QuizQuestion, error) {
	chapters, err := s.CourseRepo.OrderedChapters(courseID)
	if err != nil {
		return nil, nil, err
	}
	if len(chapters) == 0 {
		return nil, nil, util.ErrCourseNotFound
	}

	chapterIndex := -1
	for i := range chapters {
		if chapters[i].ID == chapterID {
			chapterIndex = i
			break
		}
	}
	if chapterIndex < 0 {
		return nil, nil, util.ErrChapterNotFound
	}

	// 门禁：前一章测验未通过不允许开考
	progress, err := s.ProgressService.Get(userID, courseID)
	if err != nil {
		return nil, nil, err
	}
	if !ChapterAccessible(progress, chapters, chapterIndex) {
		return nil, nil, util.ErrChapterLocked
	}

	questions, err := s.CourseRepo.QuestionsByChapter(chapterID)
	if err != nil {
		return nil, nil, err
	}
	if len(questions) == 0 {
		return nil, nil, util.ErrChapterNotFound
	}

	active, err := s.QuizRepo.ActiveAttempt(userID, chapterID)
	if err != nil {
		return nil, nil, err
	}
	if active != nil && time.Now().Before(active.Deadline) {
		return active, questions, nil
	}
	if active != nil {
		// 已过期但扫描器还没处理到，先强制判卷
		if _, err := s.forceSubmit(active, questions); err != nil {
			return nil, nil, err
		}
	}

	now := time.Now()
	attempt := &model.QuizAttempt{
		UserID:    userID,
		ChapterID: chapterID,
		CourseID:  courseID,
		Status:    model.AttemptInProgress,
		Answers:   map[uint]int{},
		StartedAt: now,
		Deadline:  now.Add(QuizDuration),
	}
	if err := s.QuizRepo.CreateAttempt(attempt); err != nil {
		return nil, nil, err
	}
	return attempt, questions, nil
}

// Answer 记录某题答案，重复作答覆盖之前的选择
func (s *QuizService) Answer(userID, attemptID, questionID uint, answer int) (*model.QuizAttempt, error) {
	attempt, err := s.QuizRepo.FindAttempt(attemptID)
	if err != nil {
		return nil, util.ErrAttemptNotFound
	}
	if attempt.UserID != userID {
		return nil, util.ErrPermissionDenied
	}
	if attempt.Status != model.AttemptInProgress {
		return nil, util.ErrAttemptClosed
	}
	if time.Now().After(attempt.Deadline) {
		return nil, util.ErrAttemptExpired
	}

	questions, err := s.CourseRepo.QuestionsByChapter(attempt.ChapterID)
	if err != nil {
		return nil, err
	}

	var question *model.QuizQuestion
	for i := range questions {
		if questions[i].ID == questionID {
			question = &questions[i]
			break
		}
	}
	if question == nil {
		return nil, util.ErrQuestionNotInQuiz
	}
	if !validAnswer(*question, answer) {
		return nil, util.ErrInvalidAnswer
	}

	if attempt.Answers == nil {
		attempt.Answers = map[uint]int{}
	}
	attempt.Answers[questionID] = answer
	if err := s.QuizRepo.SaveAttempt(attempt); err != nil {
		return nil, err
	}
	return attempt, nil
}

// Submit 判卷并推进状态机。通过时由本服务代为调用进度侧的
// MarkQuizPassed（章节解锁只由测验结果驱动）。
func (s *QuizService) Submit(userID, attemptID uint) (*QuizResult, error) {
	attempt, err := s.QuizRepo.FindAttempt(attemptID)
	if err != nil {
		return nil, util.ErrAttemptNotFound
	}
	if attempt.UserID != userID {
		return nil, util.ErrPermissionDenied
	}
	if attempt.Status != model.AttemptInProgress {
		return nil, util.ErrAttemptClosed
	}

	questions, err := s.CourseRepo.QuestionsByChapter(attempt.ChapterID)
	if err != nil {
		return nil, err
	}

	return s.grade(attempt, questions, false)
}

// forceSubmit 截止后的自动提交：只用已记录的答案判卷
func (s *QuizService) forceSubmit(attempt *model.QuizAttempt, questions []model.QuizQuestion) (*QuizResult, error) {
	return s.grade(attempt, questions, true)
}

func (s *QuizService) grade(attempt *model.QuizAttempt, questions []model.QuizQuestion, autoClosed bool) (*QuizResult, error) {
	score, earned, total := ScoreAnswers(questions, attempt.Answers)
	passed := score >= PassThreshold

	now := time.Now()
	attempt.Score = score
	attempt.SubmittedAt = &now
	attempt.AutoClosed = autoClosed
	if passed {
		attempt.Status = model.AttemptPassed
	} else {
		attempt.Status = model.AttemptFailed
	}

	if err := s.QuizRepo.SaveAttempt(attempt); err != nil {
		return nil, err
	}

	result := "failed"
	if passed {
		result = "passed"
	}
	monitoring.QuizSubmissions.WithLabelValues(result).Inc()

	if passed {
		if _, _, err := s.ProgressService.MarkQuizPassed(attempt.UserID, attempt.CourseID, attempt.ChapterID); err != nil {
			// 进度写失败要暴露给调用方：静默会让学员停在已通过却未解锁的状态
			return nil, err
		}
	}

	return &QuizResult{
		AttemptID:   attempt.ID,
		Score:       score,
		Passed:      passed,
		TotalPoints: total,
		Earned:      earned,
		AutoClosed:  autoClosed,
	}, nil
}

// CloseExpiredAttempts 后台扫描：到期未提交的尝试按已记录答案强制判卷
func (s *QuizService) CloseExpiredAttempts() error {
	attempts, err := s.QuizRepo.ExpiredAttempts(time.Now(), 100)
	if err != nil {
		return err
	}

	for i := range attempts {
		attempt := &attempts[i]
		questions, err := s.CourseRepo.QuestionsByChapter(attempt.ChapterID)
		if err != nil {
			logger.Log.Error("expired attempt: load questions failed",
				zap.Uint("attemptID", attempt.ID), zap.Error(err))
			continue
		}
		if _, err := s.forceSubmit(attempt, questions); err != nil {
			logger.Log.Error("expired attempt: force submit failed",
				zap.Uint("attemptID", attempt.ID), zap.Error(err))
		}
	}
	return nil
}
