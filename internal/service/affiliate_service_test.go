package service

import (
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"testing"
)

// Redis 传 nil：点击去重降级为不去重，其余逻辑不受影响
func buildAffiliateService(t *testing.T) (*AffiliateService, *model.Course) {
	t.Helper()
	db := newTestDB(t)
	course, _ := seedCourse(t, db, 1, 4900)
	svc := NewAffiliateService(
		repository.NewAffiliateRepository(db),
		repository.NewCourseRepository(db),
		nil,
		testConfig(),
	)
	return svc, course
}

func TestGenerateCodeIsStablePerUserCourse(t *testing.T) {
	svc, course := buildAffiliateService(t)

	link, shareURL, err := svc.GenerateCode(7, course.ID)
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	if len(link.Code) != 8 {
		t.Errorf("code %q length = %d, want 8", link.Code, len(link.Code))
	}
	if shareURL == "" {
		t.Error("share URL must not be empty")
	}

	again, _, err := svc.GenerateCode(7, course.ID)
	if err != nil {
		t.Fatalf("GenerateCode again: %v", err)
	}
	if again.Code != link.Code {
		t.Errorf("same (user, course) minted two codes: %q and %q", link.Code, again.Code)
	}

	other, _, err := svc.GenerateCode(8, course.ID)
	if err != nil {
		t.Fatalf("GenerateCode other user: %v", err)
	}
	if other.Code == link.Code {
		t.Error("different users must get different codes")
	}
}

func TestGenerateCodeUnknownCourse(t *testing.T) {
	svc, _ := buildAffiliateService(t)
	if _, _, err := svc.GenerateCode(7, 99999); err != util.ErrCourseNotFound {
		t.Errorf("err = %v, want ErrCourseNotFound", err)
	}
}

func TestTrackClickIncrements(t *testing.T) {
	svc, course := buildAffiliateService(t)
	link, _, err := svc.GenerateCode(7, course.ID)
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}

	svc.TrackClick(link.Code, course.ID, "session-a")
	svc.TrackClick(link.Code, course.ID, "session-b")

	// 坏数据只记日志，绝不报错
	svc.TrackClick("", course.ID, "session-a")
	svc.TrackClick("NOSUCHCODE", course.ID, "session-a")
	svc.TrackClick(link.Code, course.ID+1, "session-a")

	reloaded, err := svc.FindByCode(link.Code)
	if err != nil {
		t.Fatalf("FindByCode: %v", err)
	}
	if reloaded.Clicks != 2 {
		t.Errorf("clicks = %d, want 2", reloaded.Clicks)
	}
}

func TestRecordConversionAppliesPlatformFee(t *testing.T) {
	svc, course := buildAffiliateService(t)
	link, _, err := svc.GenerateCode(7, course.ID)
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}

	// 抽成 10%：4900 全额入账 4410
	svc.RecordConversion(link.Code, course.ID, 4900)
	svc.RecordConversion("", course.ID, 4900)          // 无码购买是 no-op
	svc.RecordConversion("NOSUCHCODE", course.ID, 100) // 未知码只记日志
	svc.RecordConversion(link.Code, course.ID+1, 100)  // 课程不匹配不入账

	reloaded, err := svc.FindByCode(link.Code)
	if err != nil {
		t.Fatalf("FindByCode: %v", err)
	}
	if reloaded.Conversions != 1 {
		t.Errorf("conversions = %d, want 1", reloaded.Conversions)
	}
	if reloaded.TotalEarnings != 4410 {
		t.Errorf("earnings = %v, want 4410", reloaded.TotalEarnings)
	}
}
