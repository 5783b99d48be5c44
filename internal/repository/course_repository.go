package repository

import (
	"lms_backend/internal/model"

	"gorm.io/gorm"
)

type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

func (r *CourseRepository) Create(course *model.Course) error {
	return r.DB.Create(course).Error
}

func (r *CourseRepository) Save(course *model.Course) error {
	return r.DB.Save(course).Error
}

func (r *CourseRepository) FindByID(id uint) (*model.Course, error) {
	var course model.Course
	err := r.DB.First(&course, id).Error
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// FindByIDWithContent 带章节/视频/题目的完整课程，chapters 按 order 排序
func (r *CourseRepository) FindByIDWithContent(id uint) (*model.Course, error) {
	var course model.Course
	err := r.DB.
		Preload("Chapters", func(db *gorm.DB) *gorm.DB {
			return db.Order("chapters.`order` ASC")
		}).
		Preload("Chapters.Videos", func(db *gorm.DB) *gorm.DB {
			return db.Order("videos.`order` ASC")
		}).
		Preload("Chapters.Questions").
		First(&course, id).Error
	if err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *CourseRepository) ListPublished(page, limit int) ([]model.Course, int64, error) {
	var courses []model.Course
	var total int64

	query := r.DB.Model(&model.Course{}).Where("published = ?", true)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Offset((page - 1) * limit).Limit(limit).Order("created_at DESC").Find(&courses).Error
	return courses, total, err
}

func (r *CourseRepository) ListByInstructor(instructorID uint) ([]model.Course, error) {
	var courses []model.Course
	err := r.DB.Where("instructor_id = ?", instructorID).Order("created_at DESC").Find(&courses).Error
	return courses, err
}

// OrderedChapters 章节按 order 升序，门禁判定依赖这个顺序
func (r *CourseRepository) OrderedChapters(courseID uint) ([]model.Chapter, error) {
	var chapters []model.Chapter
	err := r.DB.Where("course_id = ?", courseID).Order("`order` ASC").Find(&chapters).Error
	return chapters, err
}

func (r *CourseRepository) FindChapter(id uint) (*model.Chapter, error) {
	var chapter model.Chapter
	err := r.DB.First(&chapter, id).Error
	if err != nil {
		return nil, err
	}
	return &chapter, nil
}

func (r *CourseRepository) CreateChapter(chapter *model.Chapter) error {
	return r.DB.Create(chapter).Error
}

func (r *CourseRepository) CreateVideo(video *model.Video) error {
	return r.DB.Create(video).Error
}

func (r *CourseRepository) FindVideo(id uint) (*model.Video, error) {
	var video model.Video
	err := r.DB.First(&video, id).Error
	if err != nil {
		return nil, err
	}
	return &video, nil
}

func (r *CourseRepository) SaveVideo(video *model.Video) error {
	return r.DB.Save(video).Error
}

func (r *CourseRepository) CreateQuestion(q *model.QuizQuestion) error {
	return r.DB.Create(q).Error
}

// QuestionsByChapter 章节的测验 = ChapterID 匹配的题目集合
func (r *CourseRepository) QuestionsByChapter(chapterID uint) ([]model.QuizQuestion, error) {
	var questions []model.QuizQuestion
	err := r.DB.Where("chapter_id = ?", chapterID).Find(&questions).Error
	return questions, err
}

func (r *CourseRepository) FindRedeemCode(code string) (*model.RedeemCode, error) {
	var rc model.RedeemCode
	err := r.DB.Where("code = ?", code).First(&rc).Error
	if err != nil {
		return nil, err
	}
	return &rc, nil
}

func (r *CourseRepository) CreateRedeemCode(rc *model.RedeemCode) error {
	return r.DB.Create(rc).Error
}

// ConsumeRedeemCode 原子消耗一次使用次数，超限时影响行数为 0
func (r *CourseRepository) ConsumeRedeemCode(code string) (bool, error) {
	res := r.DB.Model(&model.RedeemCode{}).
		Where("code = ? AND used_count < max_uses", code).
		Update("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *CourseRepository) Count() (int64, error) {
	var count int64
	err := r.DB.Model(&model.Course{}).Count(&count).Error
	return count, err
}
