package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const catalogCacheKey = "catalog:published:page:%d:%d"

// CourseService 课程目录、创作与访问授权（购买/兑换/免费领取）
type CourseService struct {
	CourseRepo   *repository.CourseRepository
	PurchaseRepo *repository.PurchaseRepository
	Storage      *StorageService
	Redis        *redis.Client
	Config       *config.Config
}

func NewCourseService(
	courseRepo *repository.CourseRepository,
	purchaseRepo *repository.PurchaseRepository,
	storage *StorageService,
	rdb *redis.Client,
	cfg *config.Config,
) *CourseService {
	return &CourseService{
		CourseRepo:   courseRepo,
		PurchaseRepo: purchaseRepo,
		Storage:      storage,
		Redis:        rdb,
		Config:       cfg,
	}
}

// Catalog 已发布课程分页，短 TTL 的 Redis 缓存
func (s *CourseService) Catalog(page, limit int) ([]model.Course, int64, error) {
	type cached struct {
		List  []model.Course `json:"list"`
		Total int64          `json:"total"`
	}

	key := fmt.Sprintf(catalogCacheKey, page, limit)
	if s.Redis != nil {
		if val, err := s.Redis.Get(context.Background(), key).Result(); err == nil {
			var c cached
			if json.Unmarshal([]byte(val), &c) == nil {
				return c.List, c.Total, nil
			}
		}
	}

	courses, total, err := s.CourseRepo.ListPublished(page, limit)
	if err != nil {
		return nil, 0, err
	}

	if s.Redis != nil {
		if raw, err := json.Marshal(cached{List: courses, Total: total}); err == nil {
			s.Redis.Set(context.Background(), key, raw, 30*time.Second)
		}
	}
	return courses, total, nil
}

// Detail 学员视角的课程详情：未发布即视为不存在
// Detail 未发布课程仅对作者与管理员可见，游客 viewer 传 nil
func (s *CourseService) Detail(courseID uint, viewer *util.Claims) (*model.Course, error) {
	course, err := s.CourseRepo.FindByIDWithContent(courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCourseNotFound
	}
	if err != nil {
		return nil, err
	}
	if !course.Published && !canPreviewDraft(course, viewer) {
		return nil, util.ErrCourseNotFound
	}
	return course, nil
}

func canPreviewDraft(course *model.Course, viewer *util.Claims) bool {
	if viewer == nil {
		return false
	}
	return viewer.Role == model.Admin || viewer.UserID == course.InstructorID
}

func (s *CourseService) HasAccess(userID, courseID uint) (bool, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		return false, util.ErrCourseNotFound
	}
	if course.Price == 0 {
		return true, nil
	}
	return s.PurchaseRepo.Exists(userID, courseID)
}

// --- 创作 ---

func (s *CourseService) Create(course *model.Course) error {
	return s.CourseRepo.Create(course)
}

func (s *CourseService) Update(userID uint, role model.UserRole, course *model.Course) error {
	existing, err := s.CourseRepo.FindByID(course.ID)
	if err != nil {
		return util.ErrCourseNotFound
	}
	if existing.InstructorID != userID && role != model.Admin {
		return util.ErrPermissionDenied
	}
	return s.CourseRepo.Save(course)
}

// MyCourses 讲师名下全部课程（含未发布）
func (s *CourseService) MyCourses(instructorID uint) ([]model.Course, error) {
	return s.CourseRepo.ListByInstructor(instructorID)
}

// SetPublished 发布/下架开关
func (s *CourseService) SetPublished(userID uint, role model.UserRole, courseID uint, published bool) (*model.Course, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		return nil, util.ErrCourseNotFound
	}
	if course.InstructorID != userID && role != model.Admin {
		return nil, util.ErrPermissionDenied
	}

	course.Published = published
	if err := s.CourseRepo.Save(course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) AddChapter(userID uint, role model.UserRole, chapter *model.Chapter) error {
	course, err := s.CourseRepo.FindByID(chapter.CourseID)
	if err != nil {
		return util.ErrCourseNotFound
	}
	if course.InstructorID != userID && role != model.Admin {
		return util.ErrPermissionDenied
	}
	return s.CourseRepo.CreateChapter(chapter)
}

func (s *CourseService) AddQuestion(userID uint, role model.UserRole, q *model.QuizQuestion) error {
	chapter, err := s.CourseRepo.FindChapter(q.ChapterID)
	if err != nil {
		return util.ErrChapterNotFound
	}
	course, err := s.CourseRepo.FindByID(chapter.CourseID)
	if err != nil {
		return util.ErrCourseNotFound
	}
	if course.InstructorID != userID && role != model.Admin {
		return util.ErrPermissionDenied
	}

	// 判卷边界要求答案下标对题型合法，创作时就校验
	if !validAnswer(*q, q.Answer) {
		return util.ErrInvalidAnswer
	}
	return s.CourseRepo.CreateQuestion(q)
}

// UploadVideo 把临时文件探测时长、生成缩略图后推到对象存储，
// 再落 Video 记录。已发布课程的视频不可变。
func (s *CourseService) UploadVideo(userID uint, role model.UserRole, video *model.Video, tempPath string) (*model.Video, error) {
	chapter, err := s.CourseRepo.FindChapter(video.ChapterID)
	if err != nil {
		return nil, util.ErrChapterNotFound
	}
	course, err := s.CourseRepo.FindByID(chapter.CourseID)
	if err != nil {
		return nil, util.ErrCourseNotFound
	}
	if course.InstructorID != userID && role != model.Admin {
		return nil, util.ErrPermissionDenied
	}
	if course.Published {
		return nil, util.ErrVideoImmutable
	}
	video.CourseID = course.ID

	info, err := util.ProbeVideo(tempPath)
	if err != nil {
		return nil, err
	}
	video.Duration = info.Duration

	ext := filepath.Ext(tempPath)
	objectName := fmt.Sprintf("courses/%d/videos/%s%s", course.ID, model.GenerateUUID(), ext)
	url, err := s.Storage.UploadFile(context.Background(), objectName, tempPath, "video/"+strings.TrimPrefix(ext, "."))
	if err != nil {
		return nil, err
	}
	video.URL = url

	// 缩略图失败不阻塞上传
	thumbPath := tempPath + ".jpg"
	if err := util.GenerateThumbnail(tempPath, thumbPath, "00:00:01"); err == nil {
		thumbObject := strings.TrimSuffix(objectName, ext) + ".jpg"
		if thumbURL, err := s.Storage.UploadFile(context.Background(), thumbObject, thumbPath, "image/jpeg"); err == nil {
			video.ThumbnailURL = thumbURL
		}
		os.Remove(thumbPath)
	} else {
		logger.Log.Warn("thumbnail generation failed", zap.Error(err))
	}

	if err := s.CourseRepo.CreateVideo(video); err != nil {
		return nil, err
	}
	return video, nil
}

// UpdateVideo 改标题/顺序等元数据，课程发布后同样锁定
func (s *CourseService) UpdateVideo(userID uint, role model.UserRole, videoID uint, title string, order int) (*model.Video, error) {
	video, err := s.CourseRepo.FindVideo(videoID)
	if err != nil {
		return nil, util.ErrChapterNotFound
	}
	course, err := s.CourseRepo.FindByID(video.CourseID)
	if err != nil {
		return nil, util.ErrCourseNotFound
	}
	if course.InstructorID != userID && role != model.Admin {
		return nil, util.ErrPermissionDenied
	}
	if course.Published {
		return nil, util.ErrVideoImmutable
	}

	if title != "" {
		video.Title = title
	}
	if order >= 0 {
		video.Order = order
	}
	if err := s.CourseRepo.SaveVideo(video); err != nil {
		return nil, err
	}
	return video, nil
}

// --- 访问授权 ---

// CreateRedeemCode 讲师为自己的课程签发兑换码
func (s *CourseService) CreateRedeemCode(userID uint, role model.UserRole, courseID uint, code string, maxUses int) (*model.RedeemCode, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		return nil, util.ErrCourseNotFound
	}
	if course.InstructorID != userID && role != model.Admin {
		return nil, util.ErrPermissionDenied
	}

	if code == "" {
		code = strings.ToUpper(strings.ReplaceAll(model.GenerateUUID(), "-", "")[:10])
	}
	if maxUses <= 0 {
		maxUses = 1
	}

	rc := &model.RedeemCode{Code: code, CourseID: courseID, MaxUses: maxUses}
	if err := s.CourseRepo.CreateRedeemCode(rc); err != nil {
		return nil, err
	}
	return rc, nil
}

// RedeemPreview 兑换前的只读校验：码对应哪门课、还剩多少次
func (s *CourseService) RedeemPreview(code string) (*model.RedeemCode, *model.Course, error) {
	rc, err := s.CourseRepo.FindRedeemCode(code)
	if err != nil {
		return nil, nil, util.ErrRedeemCodeInvalid
	}
	course, err := s.CourseRepo.FindByID(rc.CourseID)
	if err != nil {
		return nil, nil, util.ErrCourseNotFound
	}
	return rc, course, nil
}

// MyPurchases 学员已开通的课程记录
func (s *CourseService) MyPurchases(userID uint) ([]model.CoursePurchase, error) {
	return s.PurchaseRepo.ListByUser(userID)
}

// Redeem 兑换码开通课程，使用次数在一条 UPDATE 里原子消耗
func (s *CourseService) Redeem(userID uint, code string) (*model.CoursePurchase, error) {
	rc, err := s.CourseRepo.FindRedeemCode(code)
	if err != nil {
		return nil, util.ErrRedeemCodeInvalid
	}

	purchased, err := s.PurchaseRepo.Exists(userID, rc.CourseID)
	if err != nil {
		return nil, err
	}
	if purchased {
		return nil, util.ErrAlreadyPurchased
	}

	consumed, err := s.CourseRepo.ConsumeRedeemCode(code)
	if err != nil {
		return nil, err
	}
	if !consumed {
		return nil, util.ErrRedeemCodeUsedUp
	}

	purchase := &model.CoursePurchase{
		UserID:   userID,
		CourseID: rc.CourseID,
		Source:   model.PurchaseByRedeem,
	}
	if err := s.PurchaseRepo.Create(purchase); err != nil {
		return nil, err
	}
	return purchase, nil
}

// ClaimFree 免费课程领取，(user, course) 唯一索引兜底防重复领取
func (s *CourseService) ClaimFree(userID, courseID uint) (*model.CoursePurchase, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		return nil, util.ErrCourseNotFound
	}
	if course.Price > 0 {
		return nil, util.ErrCourseNotFree
	}

	purchased, err := s.PurchaseRepo.Exists(userID, courseID)
	if err != nil {
		return nil, err
	}
	if purchased {
		return nil, util.ErrAlreadyPurchased
	}

	purchase := &model.CoursePurchase{
		UserID:   userID,
		CourseID: courseID,
		Source:   model.PurchaseByFree,
	}
	if err := s.PurchaseRepo.Create(purchase); err != nil {
		return nil, err
	}
	return purchase, nil
}
