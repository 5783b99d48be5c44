package service

import (
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"testing"
)

func TestChapterAccessible(t *testing.T) {
	chapters := []model.Chapter{
		{BaseModel: model.BaseModel{ID: 10}},
		{BaseModel: model.BaseModel{ID: 20}},
		{BaseModel: model.BaseModel{ID: 30}},
	}

	fresh := &model.CourseProgress{QuizPassed: model.IDSet{}}
	if !ChapterAccessible(fresh, chapters, 0) {
		t.Error("first chapter must always be accessible")
	}
	if ChapterAccessible(fresh, chapters, 1) {
		t.Error("second chapter must stay locked until the first quiz passes")
	}
	if ChapterAccessible(fresh, chapters, -1) || ChapterAccessible(fresh, chapters, 3) {
		t.Error("out-of-range indices must be inaccessible")
	}

	passedFirst := &model.CourseProgress{QuizPassed: model.IDSet{"10"}}
	if !ChapterAccessible(passedFirst, chapters, 1) {
		t.Error("second chapter must unlock after the first quiz passes")
	}
	if ChapterAccessible(passedFirst, chapters, 2) {
		t.Error("third chapter must stay locked while the second quiz is unpassed")
	}

	// 解锁只看直接前驱，跳过中间章节的通过记录也能开下一章
	skipped := &model.CourseProgress{QuizPassed: model.IDSet{"20"}}
	if !ChapterAccessible(skipped, chapters, 2) {
		t.Error("third chapter must unlock when the second quiz passed")
	}
}

func TestEvaluateCompletion(t *testing.T) {
	chapters := []model.Chapter{
		{BaseModel: model.BaseModel{ID: 1}},
		{BaseModel: model.BaseModel{ID: 2}},
	}

	if EvaluateCompletion(&model.CourseProgress{CompletedChapters: model.IDSet{"1"}}, chapters) {
		t.Error("course with an incomplete chapter must not be completed")
	}
	if !EvaluateCompletion(&model.CourseProgress{CompletedChapters: model.IDSet{"1", "2"}}, chapters) {
		t.Error("course with all chapters completed must be completed")
	}
	if EvaluateCompletion(&model.CourseProgress{CompletedChapters: model.IDSet{}}, nil) {
		t.Error("course without chapters must not count as completed")
	}
}

func TestGetCreatesInitialProgress(t *testing.T) {
	db := newTestDB(t)
	course, _ := seedCourse(t, db, 2, 0)
	svc := newProgressService(db)

	progress, err := svc.Get(7, course.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if progress.CurrentChapter != 0 || progress.CurrentVideo != 0 {
		t.Errorf("initial position = (%d,%d), want (0,0)", progress.CurrentChapter, progress.CurrentVideo)
	}
	if len(progress.CompletedVideos) != 0 || len(progress.QuizPassed) != 0 || len(progress.CompletedChapters) != 0 {
		t.Error("initial progress sets must be empty")
	}

	again, err := svc.Get(7, course.ID)
	if err != nil {
		t.Fatalf("Get again: %v", err)
	}
	if again.ID != progress.ID {
		t.Error("repeated Get must return the same progress row")
	}
}

func TestMarkVideoCompleteIdempotent(t *testing.T) {
	db := newTestDB(t)
	course, _ := seedCourse(t, db, 1, 0)
	svc := newProgressService(db)

	first, err := svc.MarkVideoComplete(7, course.ID, 42)
	if err != nil {
		t.Fatalf("MarkVideoComplete: %v", err)
	}
	second, err := svc.MarkVideoComplete(7, course.ID, 42)
	if err != nil {
		t.Fatalf("MarkVideoComplete again: %v", err)
	}
	if len(first.CompletedVideos) != 1 || len(second.CompletedVideos) != 1 {
		t.Errorf("completed videos = %d then %d, want 1 and 1", len(first.CompletedVideos), len(second.CompletedVideos))
	}
}

func TestMarkQuizPassedUnlocksAndCompletes(t *testing.T) {
	db := newTestDB(t)
	course, chapters := seedCourse(t, db, 2, 0)
	svc := newProgressService(db)

	access, err := svc.ChapterAccess(7, course.ID)
	if err != nil {
		t.Fatalf("ChapterAccess: %v", err)
	}
	if !access[0] || access[1] {
		t.Fatalf("fresh access = %v, want [true false]", access)
	}

	progress, state, err := svc.MarkQuizPassed(7, course.ID, chapters[0].ID)
	if err != nil {
		t.Fatalf("MarkQuizPassed: %v", err)
	}
	if state.IsCompleted {
		t.Error("course must not be completed after one of two chapters")
	}
	if !progress.QuizPassed.Has(model.IDString(chapters[0].ID)) {
		t.Error("QuizPassed must record the chapter")
	}
	if !progress.CompletedChapters.Has(model.IDString(chapters[0].ID)) {
		t.Error("CompletedChapters must move with QuizPassed in the same operation")
	}

	access, _ = svc.ChapterAccess(7, course.ID)
	if !access[1] {
		t.Error("second chapter must unlock after first quiz passes")
	}

	progress, state, err = svc.MarkQuizPassed(7, course.ID, chapters[1].ID)
	if err != nil {
		t.Fatalf("MarkQuizPassed chapter 2: %v", err)
	}
	if !state.IsCompleted {
		t.Fatal("course must be completed after all chapter quizzes pass")
	}
	if progress.CompletedAt == nil || state.CompletionDate == nil {
		t.Fatal("completion timestamp must be stamped on the completing pass")
	}
	firstCompletion := *progress.CompletedAt

	// 证书随完成签发一次
	certRepo := repository.NewCertificateRepository(db)
	cert, err := certRepo.FindByUserCourse(7, course.ID)
	if err != nil {
		t.Fatalf("certificate lookup: %v", err)
	}
	if cert == nil {
		t.Fatal("certificate must be issued at completion")
	}

	// 重复通过不能移动完成时间戳，也不能再发证书
	progress, _, err = svc.MarkQuizPassed(7, course.ID, chapters[1].ID)
	if err != nil {
		t.Fatalf("MarkQuizPassed repeat: %v", err)
	}
	if progress.CompletedAt == nil || !progress.CompletedAt.Equal(firstCompletion) {
		t.Error("completion timestamp must be stable across repeated passes")
	}
	var certCount int64
	db.Model(&model.Certificate{}).Where("user_id = ? AND course_id = ?", 7, course.ID).Count(&certCount)
	if certCount != 1 {
		t.Errorf("certificates = %d, want 1", certCount)
	}
}

func TestUpdatePositionRejectsNegative(t *testing.T) {
	db := newTestDB(t)
	course, _ := seedCourse(t, db, 1, 0)
	svc := newProgressService(db)

	if _, err := svc.UpdatePosition(7, course.ID, -1, 0); err != util.ErrInvalidPosition {
		t.Errorf("negative chapter index: err = %v, want ErrInvalidPosition", err)
	}
	if _, err := svc.UpdatePosition(7, course.ID, 0, -2); err != util.ErrInvalidPosition {
		t.Errorf("negative video index: err = %v, want ErrInvalidPosition", err)
	}

	progress, err := svc.UpdatePosition(7, course.ID, 1, 3)
	if err != nil {
		t.Fatalf("UpdatePosition: %v", err)
	}
	if progress.CurrentChapter != 1 || progress.CurrentVideo != 3 {
		t.Errorf("position = (%d,%d), want (1,3)", progress.CurrentChapter, progress.CurrentVideo)
	}
}

func TestAddWatchTimeAccumulates(t *testing.T) {
	db := newTestDB(t)
	course, _ := seedCourse(t, db, 1, 0)
	svc := newProgressService(db)

	if _, err := svc.AddWatchTime(7, course.ID, 1500); err != nil {
		t.Fatalf("AddWatchTime: %v", err)
	}
	progress, err := svc.AddWatchTime(7, course.ID, 500)
	if err != nil {
		t.Fatalf("AddWatchTime: %v", err)
	}
	if progress.TotalTimeSpent != 2000 {
		t.Errorf("TotalTimeSpent = %d, want 2000", progress.TotalTimeSpent)
	}
}

func TestResetRestoresInitialState(t *testing.T) {
	db := newTestDB(t)
	course, chapters := seedCourse(t, db, 1, 0)
	svc := newProgressService(db)

	if _, _, err := svc.MarkQuizPassed(7, course.ID, chapters[0].ID); err != nil {
		t.Fatalf("MarkQuizPassed: %v", err)
	}
	if _, err := svc.MarkVideoComplete(7, course.ID, 42); err != nil {
		t.Fatalf("MarkVideoComplete: %v", err)
	}
	if _, err := svc.AddWatchTime(7, course.ID, 999); err != nil {
		t.Fatalf("AddWatchTime: %v", err)
	}

	progress, err := svc.Reset(7, course.ID)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if len(progress.CompletedVideos) != 0 || len(progress.QuizPassed) != 0 || len(progress.CompletedChapters) != 0 {
		t.Error("reset must clear all progress sets")
	}
	if progress.CurrentChapter != 0 || progress.CurrentVideo != 0 || progress.TotalTimeSpent != 0 {
		t.Error("reset must restore position (0,0) and zero watch time")
	}
	if progress.CompletedAt != nil {
		t.Error("reset must clear the completion timestamp")
	}

	reloaded, err := svc.Get(7, course.ID)
	if err != nil {
		t.Fatalf("Get after reset: %v", err)
	}
	if len(reloaded.QuizPassed) != 0 || reloaded.TotalTimeSpent != 0 {
		t.Error("reset must persist, not just mutate in memory")
	}
}
