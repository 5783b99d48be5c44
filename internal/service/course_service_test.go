package service

import (
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"testing"

	"gorm.io/gorm"
)

func buildCourseService(t *testing.T) (*CourseService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	svc := NewCourseService(
		repository.NewCourseRepository(db),
		repository.NewPurchaseRepository(db),
		nil,
		nil,
		testConfig(),
	)
	return svc, db
}

func TestCatalogListsOnlyPublished(t *testing.T) {
	svc, db := buildCourseService(t)

	published := &model.Course{Title: "已发布", Published: true}
	draft := &model.Course{Title: "草稿", Published: false}
	if err := db.Create(published).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := db.Create(draft).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	list, total, err := svc.Catalog(1, 10)
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	if total != 1 || len(list) != 1 {
		t.Fatalf("catalog size = %d/%d, want 1", len(list), total)
	}
	if list[0].ID != published.ID {
		t.Error("catalog must contain only published courses")
	}
}

func TestRedeemConsumesCodeAtomically(t *testing.T) {
	svc, db := buildCourseService(t)

	course := &model.Course{Title: "付费课", Price: 4900, Published: true}
	if err := db.Create(course).Error; err != nil {
		t.Fatalf("seed course: %v", err)
	}
	code := &model.RedeemCode{Code: "ONCE", CourseID: course.ID, MaxUses: 1}
	if err := db.Create(code).Error; err != nil {
		t.Fatalf("seed code: %v", err)
	}

	purchase, err := svc.Redeem(7, "ONCE")
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if purchase.Source != model.PurchaseByRedeem || purchase.CourseID != course.ID {
		t.Errorf("unexpected purchase %+v", purchase)
	}

	if _, err := svc.Redeem(8, "ONCE"); err != util.ErrRedeemCodeUsedUp {
		t.Errorf("exhausted code err = %v, want ErrRedeemCodeUsedUp", err)
	}
	if _, err := svc.Redeem(7, "NOSUCH"); err != util.ErrRedeemCodeInvalid {
		t.Errorf("unknown code err = %v, want ErrRedeemCodeInvalid", err)
	}
	if _, err := svc.Redeem(7, "ONCE"); err != util.ErrAlreadyPurchased {
		t.Errorf("repeat redeem err = %v, want ErrAlreadyPurchased", err)
	}
}

func TestClaimFree(t *testing.T) {
	svc, db := buildCourseService(t)

	free := &model.Course{Title: "免费课", Price: 0, Published: true}
	paid := &model.Course{Title: "付费课", Price: 100, Published: true}
	if err := db.Create(free).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := db.Create(paid).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	purchase, err := svc.ClaimFree(7, free.ID)
	if err != nil {
		t.Fatalf("ClaimFree: %v", err)
	}
	if purchase.Source != model.PurchaseByFree {
		t.Errorf("source = %s, want free", purchase.Source)
	}

	if _, err := svc.ClaimFree(7, free.ID); err != util.ErrAlreadyPurchased {
		t.Errorf("repeat claim err = %v, want ErrAlreadyPurchased", err)
	}
	if _, err := svc.ClaimFree(7, paid.ID); err != util.ErrCourseNotFree {
		t.Errorf("paid claim err = %v, want ErrCourseNotFree", err)
	}
}

func TestHasAccess(t *testing.T) {
	svc, db := buildCourseService(t)

	free := &model.Course{Title: "免费课", Price: 0, Published: true}
	paid := &model.Course{Title: "付费课", Price: 4900, Published: true}
	if err := db.Create(free).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := db.Create(paid).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	if ok, _ := svc.HasAccess(7, free.ID); !ok {
		t.Error("free courses must always be accessible")
	}
	if ok, _ := svc.HasAccess(7, paid.ID); ok {
		t.Error("paid course must require a purchase")
	}

	if _, err := svc.ClaimFree(7, free.ID); err != nil {
		t.Fatalf("ClaimFree: %v", err)
	}
	if err := db.Create(&model.CoursePurchase{UserID: 7, CourseID: paid.ID, Source: model.PurchaseByPayment}).Error; err != nil {
		t.Fatalf("seed purchase: %v", err)
	}
	if ok, _ := svc.HasAccess(7, paid.ID); !ok {
		t.Error("purchased course must be accessible")
	}
}

func TestSetPublishedOwnership(t *testing.T) {
	svc, db := buildCourseService(t)

	course := &model.Course{Title: "草稿课", InstructorID: 5}
	if err := db.Create(course).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	// 非课程讲师不能发布
	if _, err := svc.SetPublished(6, model.Instructor, course.ID, true); err != util.ErrPermissionDenied {
		t.Errorf("foreign instructor err = %v, want ErrPermissionDenied", err)
	}

	updated, err := svc.SetPublished(5, model.Instructor, course.ID, true)
	if err != nil {
		t.Fatalf("SetPublished: %v", err)
	}
	if !updated.Published {
		t.Error("course must be published")
	}

	// 管理员可以下架任何课程
	updated, err = svc.SetPublished(99, model.Admin, course.ID, false)
	if err != nil {
		t.Fatalf("SetPublished as admin: %v", err)
	}
	if updated.Published {
		t.Error("course must be unpublished")
	}
}

func TestCreateRedeemCodeAndPreview(t *testing.T) {
	svc, db := buildCourseService(t)

	course := &model.Course{Title: "付费课", InstructorID: 5, Price: 4900, Published: true}
	if err := db.Create(course).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	rc, err := svc.CreateRedeemCode(5, model.Instructor, course.ID, "", 3)
	if err != nil {
		t.Fatalf("CreateRedeemCode: %v", err)
	}
	if rc.Code == "" || rc.MaxUses != 3 {
		t.Fatalf("code = %+v, want generated code with 3 uses", rc)
	}

	preview, previewCourse, err := svc.RedeemPreview(rc.Code)
	if err != nil {
		t.Fatalf("RedeemPreview: %v", err)
	}
	if previewCourse.ID != course.ID {
		t.Errorf("preview course = %d, want %d", previewCourse.ID, course.ID)
	}
	if preview.MaxUses-preview.UsedCount != 3 {
		t.Errorf("remaining = %d, want 3", preview.MaxUses-preview.UsedCount)
	}

	if _, _, err := svc.RedeemPreview("NOPE"); err != util.ErrRedeemCodeInvalid {
		t.Errorf("unknown code err = %v, want ErrRedeemCodeInvalid", err)
	}

	if _, err := svc.CreateRedeemCode(6, model.Instructor, course.ID, "X", 1); err != util.ErrPermissionDenied {
		t.Errorf("foreign instructor err = %v, want ErrPermissionDenied", err)
	}
}

func TestDetailHidesUnpublished(t *testing.T) {
	svc, db := buildCourseService(t)

	draft := &model.Course{Title: "草稿", InstructorID: 7, Published: false}
	if err := db.Create(draft).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := svc.Detail(draft.ID, nil); err != util.ErrCourseNotFound {
		t.Errorf("guest draft detail err = %v, want ErrCourseNotFound", err)
	}
	if _, err := svc.Detail(99999, nil); err != util.ErrCourseNotFound {
		t.Errorf("missing detail err = %v, want ErrCourseNotFound", err)
	}

	// 草稿对非作者学员同样不可见
	student := &util.Claims{UserID: 8, Role: model.Student}
	if _, err := svc.Detail(draft.ID, student); err != util.ErrCourseNotFound {
		t.Errorf("student draft detail err = %v, want ErrCourseNotFound", err)
	}

	// 作者与管理员可预览草稿
	owner := &util.Claims{UserID: 7, Role: model.Instructor}
	if c, err := svc.Detail(draft.ID, owner); err != nil || c.ID != draft.ID {
		t.Errorf("owner draft detail = (%v, %v), want draft", c, err)
	}
	admin := &util.Claims{UserID: 9, Role: model.Admin}
	if _, err := svc.Detail(draft.ID, admin); err != nil {
		t.Errorf("admin draft detail err = %v", err)
	}
}
