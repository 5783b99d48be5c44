package service

import (
	"encoding/json"
	"errors"
	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/gorm"
)

type paymentFixture struct {
	svc    *PaymentService
	db     *gorm.DB
	course *model.Course
	cfg    *config.Config
}

func buildPaymentService(t *testing.T, handler http.Handler) *paymentFixture {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	db := newTestDB(t)
	course, _ := seedCourse(t, db, 1, 4900)

	cfg := testConfig()
	cfg.Payment.BaseURL = server.URL

	affiliate := NewAffiliateService(
		repository.NewAffiliateRepository(db),
		repository.NewCourseRepository(db),
		nil,
		cfg,
	)

	svc := NewPaymentService(
		repository.NewTransactionRepository(db),
		repository.NewPurchaseRepository(db),
		repository.NewCourseRepository(db),
		repository.NewUserRepository(db),
		affiliate,
		NewNotificationService(cfg.Notification),
		NewGatewayClient(cfg.Payment),
		cfg,
	)
	t.Cleanup(svc.StopAll)

	return &paymentFixture{svc: svc, db: db, course: course, cfg: cfg}
}

func writeDepositJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// waitForStatus 轮询本地快照直到到达期望状态或超时
func waitForStatus(t *testing.T, db *gorm.DB, depositID string, want model.DepositStatus) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		var tx model.Transaction
		if err := db.Where("deposit_id = ?", depositID).First(&tx).Error; err == nil && tx.Status == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("deposit %s never reached status %s", depositID, want)
}

func TestInitiateRotatesDepositIDOnDuplicate(t *testing.T) {
	var createIDs []string
	mux := http.NewServeMux()
	mux.HandleFunc("/deposits", func(w http.ResponseWriter, r *http.Request) {
		var req DepositRequest
		json.NewDecoder(r.Body).Decode(&req)
		createIDs = append(createIDs, req.DepositID)

		status := GatewayAccepted
		if len(createIDs) == 1 {
			// 首个 id 已被网关记账
			status = GatewayDuplicateIgnored
		}
		writeDepositJSON(w, DepositResult{DepositID: req.DepositID, Status: status})
	})
	mux.HandleFunc("/deposits/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/deposits/")
		writeDepositJSON(w, []DepositResult{{DepositID: id, Status: GatewaySubmitted}})
	})

	f := buildPaymentService(t, mux)
	tx, err := f.svc.Initiate(7, f.course.ID, "MTN_MOMO_ZMB", "260763456789", "")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	if len(createIDs) != 2 {
		t.Fatalf("gateway create calls = %d, want 2", len(createIDs))
	}
	if createIDs[0] == createIDs[1] {
		t.Error("DUPLICATE_IGNORED must rotate to a fresh deposit id")
	}
	if tx.DepositID != createIDs[1] {
		t.Errorf("transaction deposit id = %s, want the rotated id %s", tx.DepositID, createIDs[1])
	}
	if tx.Status != model.DepositSubmitted {
		t.Errorf("status = %s, want submitted", tx.Status)
	}
}

func TestInitiateAbortsOnRejection(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/deposits", func(w http.ResponseWriter, r *http.Request) {
		result := DepositResult{Status: GatewayRejected}
		result.RejectionReason.RejectionCode = "PAYER_LIMIT_REACHED"
		result.RejectionReason.RejectionMessage = "payer monthly limit reached"
		writeDepositJSON(w, result)
	})

	f := buildPaymentService(t, mux)
	_, err := f.svc.Initiate(7, f.course.ID, "MTN_MOMO_ZMB", "260763456789", "")
	if !errors.Is(err, util.ErrDepositRejected) {
		t.Fatalf("err = %v, want ErrDepositRejected", err)
	}
	if !strings.Contains(err.Error(), "payer monthly limit reached") {
		t.Errorf("rejection reason must surface to the caller, got %q", err)
	}

	var count int64
	f.db.Model(&model.Transaction{}).Count(&count)
	if count != 0 {
		t.Error("rejected initiation must not create a local transaction")
	}
}

func TestInitiateGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/deposits", func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeDepositJSON(w, DepositResult{Status: GatewayDuplicateIgnored})
	})

	f := buildPaymentService(t, mux)
	if _, err := f.svc.Initiate(7, f.course.ID, "MTN_MOMO_ZMB", "260763456789", ""); err == nil {
		t.Fatal("exhausted attempts must fail")
	}
	if calls != f.cfg.Payment.MaxInitAttempts {
		t.Errorf("gateway calls = %d, want %d", calls, f.cfg.Payment.MaxInitAttempts)
	}
}

func TestInitiateGuards(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/deposits", func(w http.ResponseWriter, r *http.Request) {
		writeDepositJSON(w, DepositResult{Status: GatewayAccepted})
	})
	f := buildPaymentService(t, mux)

	if _, err := f.svc.Initiate(7, 99999, "MTN_MOMO_ZMB", "260763456789", ""); err != util.ErrCourseNotFound {
		t.Errorf("unknown course err = %v, want ErrCourseNotFound", err)
	}

	free := &model.Course{Title: "免费课", Price: 0, Published: true}
	if err := f.db.Create(free).Error; err != nil {
		t.Fatalf("seed free course: %v", err)
	}
	if _, err := f.svc.Initiate(7, free.ID, "MTN_MOMO_ZMB", "260763456789", ""); err != util.ErrCourseNotFree {
		t.Errorf("free course err = %v, want ErrCourseNotFree", err)
	}

	if err := f.db.Create(&model.CoursePurchase{UserID: 7, CourseID: f.course.ID, Source: model.PurchaseByPayment}).Error; err != nil {
		t.Fatalf("seed purchase: %v", err)
	}
	if _, err := f.svc.Initiate(7, f.course.ID, "MTN_MOMO_ZMB", "260763456789", ""); err != util.ErrAlreadyPurchased {
		t.Errorf("repurchase err = %v, want ErrAlreadyPurchased", err)
	}
}

func TestPollingReachesTerminalThenActivate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/deposits", func(w http.ResponseWriter, r *http.Request) {
		var req DepositRequest
		json.NewDecoder(r.Body).Decode(&req)
		writeDepositJSON(w, DepositResult{DepositID: req.DepositID, Status: GatewayAccepted})
	})
	mux.HandleFunc("/deposits/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/deposits/")
		writeDepositJSON(w, []DepositResult{{DepositID: id, Status: GatewayCompleted}})
	})

	f := buildPaymentService(t, mux)

	// 带推广码购买，开通时结算分成
	affLink, _, err := f.svc.Affiliate.GenerateCode(3, f.course.ID)
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}

	tx, err := f.svc.Initiate(7, f.course.ID, "MTN_MOMO_ZMB", "260763456789", affLink.Code)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	// 后台轮询把快照推到 completed
	waitForStatus(t, f.db, tx.DepositID, model.DepositCompleted)

	purchase, err := f.svc.Activate(7, tx.DepositID)
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if purchase.Source != model.PurchaseByPayment || purchase.CourseID != f.course.ID {
		t.Errorf("unexpected purchase %+v", purchase)
	}

	// 幂等：重复开通不叠加购买与分成
	if _, err := f.svc.Activate(7, tx.DepositID); err != nil {
		t.Fatalf("Activate repeat: %v", err)
	}
	var purchases int64
	f.db.Model(&model.CoursePurchase{}).Where("user_id = ?", 7).Count(&purchases)
	if purchases != 1 {
		t.Errorf("purchases = %d, want 1", purchases)
	}

	reloaded, err := f.svc.Affiliate.FindByCode(affLink.Code)
	if err != nil {
		t.Fatalf("FindByCode: %v", err)
	}
	if reloaded.Conversions != 1 {
		t.Errorf("conversions = %d, want 1", reloaded.Conversions)
	}
	// 4900 × 90% = 4410
	if reloaded.TotalEarnings != 4410 {
		t.Errorf("earnings = %v, want 4410", reloaded.TotalEarnings)
	}
}

func TestPollingStopsAfterTerminalStatus(t *testing.T) {
	var statusCalls int64
	mux := http.NewServeMux()
	mux.HandleFunc("/deposits", func(w http.ResponseWriter, r *http.Request) {
		var req DepositRequest
		json.NewDecoder(r.Body).Decode(&req)
		writeDepositJSON(w, DepositResult{DepositID: req.DepositID, Status: GatewayAccepted})
	})
	mux.HandleFunc("/deposits/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&statusCalls, 1)
		id := strings.TrimPrefix(r.URL.Path, "/deposits/")
		writeDepositJSON(w, []DepositResult{{DepositID: id, Status: GatewayCompleted}})
	})

	f := buildPaymentService(t, mux)
	tx, err := f.svc.Initiate(7, f.course.ID, "MTN_MOMO_ZMB", "260763456789", "")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	// 轮询循环在写入终态快照的同一轮退出，之后不应再有任何状态请求
	waitForStatus(t, f.db, tx.DepositID, model.DepositCompleted)
	seen := atomic.LoadInt64(&statusCalls)
	if seen < 1 {
		t.Fatalf("status calls = %d, want at least one poll", seen)
	}

	time.Sleep(40 * f.cfg.Payment.PollInterval)
	if after := atomic.LoadInt64(&statusCalls); after != seen {
		t.Errorf("status calls grew from %d to %d after terminal status", seen, after)
	}
}

func TestActivateRequiresCompletion(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/deposits", func(w http.ResponseWriter, r *http.Request) {
		var req DepositRequest
		json.NewDecoder(r.Body).Decode(&req)
		writeDepositJSON(w, DepositResult{DepositID: req.DepositID, Status: GatewayAccepted})
	})
	mux.HandleFunc("/deposits/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/deposits/")
		writeDepositJSON(w, []DepositResult{{DepositID: id, Status: GatewaySubmitted}})
	})

	f := buildPaymentService(t, mux)
	tx, err := f.svc.Initiate(7, f.course.ID, "MTN_MOMO_ZMB", "260763456789", "")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	if _, err := f.svc.Activate(7, tx.DepositID); err != util.ErrDepositNotComplete {
		t.Errorf("activate before completion err = %v, want ErrDepositNotComplete", err)
	}
	if _, err := f.svc.Activate(8, tx.DepositID); err != util.ErrPermissionDenied {
		t.Errorf("activate by other user err = %v, want ErrPermissionDenied", err)
	}
	if _, err := f.svc.Activate(7, "no-such-deposit"); err != util.ErrDepositNotFound {
		t.Errorf("activate unknown deposit err = %v, want ErrDepositNotFound", err)
	}
}

func TestTerminalStatusNeverRegresses(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewTransactionRepository(db)

	tx := &model.Transaction{DepositID: "dep-1", UserID: 7, CourseID: 1, Amount: 4900, Currency: "ZMW", Status: model.DepositPending}
	if err := repo.Create(tx); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.UpdateStatus("dep-1", model.DepositCompleted, ""); err != nil {
		t.Fatalf("update to completed: %v", err)
	}
	// 迟到的 pending 应答必须被忽略
	if err := repo.UpdateStatus("dep-1", model.DepositPending, ""); err != nil {
		t.Fatalf("late update: %v", err)
	}

	reloaded, err := repo.FindByDepositID("dep-1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != model.DepositCompleted {
		t.Errorf("status = %s, terminal states must never regress", reloaded.Status)
	}
}
