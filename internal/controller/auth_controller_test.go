package controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"lms_backend/internal/config"
	"lms_backend/internal/middleware"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/service"
	"lms_backend/internal/util"
	"lms_backend/pkg/database"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var ctrlTestDBSeq int64

func setupAuthRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:ctrl_test_%d?mode=memory&cache=shared", atomic.AddInt64(&ctrlTestDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := &config.Config{}
	cfg.JWT.Secret = "unit-test-secret-0123456789abcdef"
	cfg.JWT.ExpireTime = time.Hour

	authController := NewAuthController(service.NewAuthService(repository.NewUserRepository(db), cfg))

	router := gin.New()
	router.POST("/api/register", authController.Register)
	router.POST("/api/login", authController.Login)
	authed := router.Group("/api", middleware.AuthMiddleware(cfg))
	authed.GET("/profile", authController.GetProfile)

	return router, db
}

func doJSON(router *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRegisterLoginProfile(t *testing.T) {
	router, db := setupAuthRouter(t)

	register := map[string]string{"name": "学员甲", "email": "a@example.com", "password": "secret-pass-1"}
	if w := doJSON(router, http.MethodPost, "/api/register", "", register); w.Code != http.StatusCreated {
		t.Fatalf("register status = %d body = %s", w.Code, w.Body.String())
	}
	// 重复邮箱冲突
	if w := doJSON(router, http.MethodPost, "/api/register", "", register); w.Code != http.StatusConflict {
		t.Errorf("duplicate register status = %d, want 409", w.Code)
	}

	// 密码错误
	bad := map[string]string{"email": "a@example.com", "password": "wrong-password"}
	if w := doJSON(router, http.MethodPost, "/api/login", "", bad); w.Code != http.StatusUnauthorized {
		t.Errorf("bad login status = %d, want 401", w.Code)
	}

	w := doJSON(router, http.MethodPost, "/api/login", "", map[string]string{"email": "a@example.com", "password": "secret-pass-1"})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d body = %s", w.Code, w.Body.String())
	}
	var loginResp util.Response
	if err := json.Unmarshal(w.Body.Bytes(), &loginResp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	token := loginResp.Data.(map[string]interface{})["token"].(string)
	if token == "" {
		t.Fatal("login must return a token")
	}

	// 登录时间由登录路径写入，不依赖数据库默认值
	var logged model.User
	if err := db.Where("email = ?", "a@example.com").First(&logged).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	if logged.LastLogin.IsZero() {
		t.Error("last login must be stamped on successful login")
	}

	// 无 token 拒绝
	if w := doJSON(router, http.MethodGet, "/api/profile", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("profile without token status = %d, want 401", w.Code)
	}

	w = doJSON(router, http.MethodGet, "/api/profile", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("profile status = %d body = %s", w.Code, w.Body.String())
	}
	var profileResp util.Response
	json.Unmarshal(w.Body.Bytes(), &profileResp)
	user := profileResp.Data.(map[string]interface{})
	if user["email"] != "a@example.com" {
		t.Errorf("profile email = %v", user["email"])
	}
}

func TestDisabledUserCannotLogin(t *testing.T) {
	router, db := setupAuthRouter(t)

	register := map[string]string{"name": "学员乙", "email": "b@example.com", "password": "secret-pass-2"}
	if w := doJSON(router, http.MethodPost, "/api/register", "", register); w.Code != http.StatusCreated {
		t.Fatalf("register status = %d", w.Code)
	}
	if err := db.Model(&model.User{}).Where("email = ?", "b@example.com").Update("disabled", true).Error; err != nil {
		t.Fatalf("disable user: %v", err)
	}

	login := map[string]string{"email": "b@example.com", "password": "secret-pass-2"}
	if w := doJSON(router, http.MethodPost, "/api/login", "", login); w.Code != http.StatusUnauthorized {
		t.Errorf("disabled login status = %d, want 401", w.Code)
	}
}
