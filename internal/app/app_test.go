package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/router-for-me/IPGenerator/internal/config"
	"github.com/router-for-me/IPGenerator/internal/db"
	"github.com/router-for-me/IPGenerator/internal/models"
	"github.com/router-for-me/IPGenerator/internal/permissions"
	"github.com/router-for-me/IPGenerator/internal/session"
	"github.com/router-for-me/IPGenerator/internal/settings"
	"gorm.io/gorm"
)

type testServer struct {
	conn   *gorm.DB
	engine *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:app_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	if errRefresh := settings.RefreshDBConfigSnapshot(context.Background(), conn); errRefresh != nil {
		t.Fatalf("refresh settings: %v", errRefresh)
	}

	users := []models.User{
		{Username: "root", AccessKey: "admin-key", Role: models.RoleAdmin, DailyLimit: 1000, IsActive: true},
		{Username: "alice", AccessKey: "user-key", Role: models.RoleUser, DailyLimit: 10, IsActive: true},
	}
	if errCreate := conn.Create(&users).Error; errCreate != nil {
		t.Fatalf("create users: %v", errCreate)
	}
	for i := 1; i <= 20; i++ {
		if errCreate := conn.Create(&models.Proxy{ProxyString: fmt.Sprintf("10.0.0.%d:8080", i)}).Error; errCreate != nil {
			t.Fatalf("create proxy: %v", errCreate)
		}
	}

	cfg := config.Default()
	cfg.JWT.Secret = "test-secret-0123456789"
	cfg.Server.LoginRatePerMin = 0
	svc := BuildServices(conn, session.NewMemoryStore(), cfg)
	return &testServer{conn: conn, engine: NewEngine(svc)}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, errMarshal := json.Marshal(body)
		if errMarshal != nil {
			t.Fatalf("marshal body: %v", errMarshal)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(t *testing.T, accessKey string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/v0/front/login", "", map[string]string{"access_key": accessKey})
	if w.Code != http.StatusOK {
		t.Fatalf("expected login 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil || resp.Token == "" {
		t.Fatalf("expected token in login response, got %s", w.Body.String())
	}
	return resp.Token
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if errDecode := json.Unmarshal(w.Body.Bytes(), &out); errDecode != nil {
		t.Fatalf("decode body: %v (%s)", errDecode, w.Body.String())
	}
	return out
}

func TestEveryGuardedRouteHasDefinition(t *testing.T) {
	srv := newTestServer(t)
	defs := permissions.DefinitionMap()
	public := map[string]bool{
		"GET /healthz":         true,
		"GET /metrics":         true,
		"POST /v0/front/login": true,
	}
	for _, route := range srv.engine.Routes() {
		key := permissions.Key(route.Method, route.Path)
		if public[key] {
			continue
		}
		if _, ok := defs[key]; !ok {
			t.Fatalf("expected capability definition for %s", key)
		}
	}
}

func TestLoginRejectsUnknownKey(t *testing.T) {
	srv := newTestServer(t)
	w := srv.do(t, http.MethodPost, "/v0/front/login", "", map[string]string{"access_key": "nope"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	w = srv.do(t, http.MethodPost, "/v0/front/login", "", map[string]string{"access_key": "  "})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestSessionRestoreAndLogout(t *testing.T) {
	srv := newTestServer(t)
	token := srv.login(t, "user-key")

	w := srv.do(t, http.MethodGet, "/v0/front/session", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected session 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	user, _ := body["user"].(map[string]any)
	if user["username"] != "alice" {
		t.Fatalf("expected alice, got %v", user["username"])
	}

	if w = srv.do(t, http.MethodPost, "/v0/front/logout", token, nil); w.Code != http.StatusOK {
		t.Fatalf("expected logout 200, got %d", w.Code)
	}
	if w = srv.do(t, http.MethodGet, "/v0/front/session", token, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", w.Code)
	}
	if w = srv.do(t, http.MethodGet, "/v0/front/session", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
}

func TestDisabledUserIsRejected(t *testing.T) {
	srv := newTestServer(t)
	token := srv.login(t, "user-key")
	if errUpdate := srv.conn.Model(&models.User{}).Where("username = ?", "alice").Update("is_active", false).Error; errUpdate != nil {
		t.Fatalf("disable user: %v", errUpdate)
	}
	if w := srv.do(t, http.MethodGet, "/v0/front/batch", token, nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	w := srv.do(t, http.MethodPost, "/v0/front/login", "", map[string]string{"access_key": "user-key"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for disabled login, got %d", w.Code)
	}
}

func TestUserCannotReachAdminRoutes(t *testing.T) {
	srv := newTestServer(t)
	userToken := srv.login(t, "user-key")
	adminToken := srv.login(t, "admin-key")

	if w := srv.do(t, http.MethodGet, "/v0/admin/users", userToken, nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for user, got %d", w.Code)
	}
	if w := srv.do(t, http.MethodGet, "/v0/admin/users", adminToken, nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", w.Code)
	}
}

func TestAllocateAndClaimBatchAsCSV(t *testing.T) {
	srv := newTestServer(t)
	token := srv.login(t, "user-key")

	w := srv.do(t, http.MethodPost, "/v0/front/allocations", token, map[string]int{"amount": 3})
	if w.Code != http.StatusOK {
		t.Fatalf("expected allocate 200, got %d: %s", w.Code, w.Body.String())
	}
	batch, _ := decodeBody(t, w)["batch"].(map[string]any)
	if size, _ := batch["size"].(float64); size != 3 {
		t.Fatalf("expected batch size 3, got %v", batch["size"])
	}

	w = srv.do(t, http.MethodPost, "/v0/front/batch/claim?format=csv", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected claim 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("expected csv content type, got %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, ".csv") {
		t.Fatalf("expected csv attachment, got %q", cd)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 4 || lines[0] != "Proxy" {
		t.Fatalf("expected header plus 3 rows, got %q", w.Body.String())
	}

	w = srv.do(t, http.MethodGet, "/v0/front/usage/today", token, nil)
	if today, _ := decodeBody(t, w)["today"].(float64); today != 3 {
		t.Fatalf("expected today usage 3, got %s", w.Body.String())
	}
	var used int64
	srv.conn.Model(&models.Proxy{}).Count(&used)
	if used != 17 {
		t.Fatalf("expected 17 proxies left, got %d", used)
	}
}

func TestAllocateOverDailyLimit(t *testing.T) {
	srv := newTestServer(t)
	token := srv.login(t, "user-key")

	w := srv.do(t, http.MethodPost, "/v0/front/allocations", token, map[string]int{"amount": 11})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if remaining, _ := decodeBody(t, w)["remaining"].(float64); remaining != 10 {
		t.Fatalf("expected remaining 10, got %s", w.Body.String())
	}
	if w = srv.do(t, http.MethodPost, "/v0/front/allocations", token, map[string]int{"amount": 0}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero amount, got %d", w.Code)
	}
}

func TestClaimSingleThenBatch(t *testing.T) {
	srv := newTestServer(t)
	token := srv.login(t, "user-key")

	w := srv.do(t, http.MethodPost, "/v0/front/allocations", token, map[string]int{"amount": 2})
	batch, _ := decodeBody(t, w)["batch"].(map[string]any)
	items, _ := batch["proxies"].([]any)
	if len(items) != 2 {
		t.Fatalf("expected 2 outstanding, got %v", batch["proxies"])
	}
	first, _ := items[0].(map[string]any)
	id, _ := first["id"].(float64)

	w = srv.do(t, http.MethodPost, fmt.Sprintf("/v0/front/batch/claims/%d", int(id)), token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected claim 200, got %d: %s", w.Code, w.Body.String())
	}
	if proxy, _ := decodeBody(t, w)["proxy"].(string); proxy == "" {
		t.Fatalf("expected proxy string, got %s", w.Body.String())
	}
	if w = srv.do(t, http.MethodPost, fmt.Sprintf("/v0/front/batch/claims/%d", int(id)), token, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on repeated claim, got %d", w.Code)
	}

	w = srv.do(t, http.MethodPost, "/v0/front/batch/claim", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected batch claim 200, got %d: %s", w.Code, w.Body.String())
	}
	if proxies, _ := decodeBody(t, w)["proxies"].([]any); len(proxies) != 1 {
		t.Fatalf("expected 1 remaining proxy, got %s", w.Body.String())
	}

	var logs []models.UsageLog
	srv.conn.Find(&logs)
	if len(logs) != 1 || logs[0].Amount != 2 {
		t.Fatalf("expected one usage log of 2, got %+v", logs)
	}
	if w = srv.do(t, http.MethodGet, "/v0/front/batch", token, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected no batch after claim, got %d", w.Code)
	}
}

func TestAdminUploadCountAndWipe(t *testing.T) {
	srv := newTestServer(t)
	token := srv.login(t, "admin-key")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, errPart := mw.CreateFormFile("file", "batch.txt")
	if errPart != nil {
		t.Fatalf("create form file: %v", errPart)
	}
	_, _ = part.Write([]byte("a:1\r\n\r\nb:2\n  c:3  \n"))
	_ = mw.WriteField("position", "prepend")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v0/admin/proxies/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	srv.engine.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected upload 201, got %d: %s", w.Code, w.Body.String())
	}
	if total, _ := decodeBody(t, w)["total"].(float64); total != 23 {
		t.Fatalf("expected total 23, got %s", w.Body.String())
	}

	w = srv.do(t, http.MethodGet, "/v0/admin/upload-history", token, nil)
	uploads, _ := decodeBody(t, w)["uploads"].([]any)
	if len(uploads) != 1 {
		t.Fatalf("expected one upload record, got %s", w.Body.String())
	}
	record, _ := uploads[0].(map[string]any)
	if record["position"] != models.PositionAppend || record["uploader"] != "root" {
		t.Fatalf("unexpected upload record %v", record)
	}

	w = srv.do(t, http.MethodDelete, "/v0/admin/proxies", token, map[string]any{"confirm_count": 5, "confirm": "DELETE ALL PROXIES"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrong count, got %d", w.Code)
	}
	w = srv.do(t, http.MethodDelete, "/v0/admin/proxies", token, map[string]any{"confirm_count": 23, "confirm": "DELETE ALL PROXIES"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected wipe 200, got %d: %s", w.Code, w.Body.String())
	}
	w = srv.do(t, http.MethodGet, "/v0/admin/proxies/count", token, nil)
	if total, _ := decodeBody(t, w)["total"].(float64); total != 0 {
		t.Fatalf("expected empty pool, got %s", w.Body.String())
	}
}

func TestManagerCannotManageUsers(t *testing.T) {
	srv := newTestServer(t)
	if errCreate := srv.conn.Create(&models.User{Username: "mgr", AccessKey: "mgr-key", Role: models.RoleManager, DailyLimit: 50, IsActive: true}).Error; errCreate != nil {
		t.Fatalf("create manager: %v", errCreate)
	}
	token := srv.login(t, "mgr-key")
	if w := srv.do(t, http.MethodGet, "/v0/admin/status/users", token, nil); w.Code != http.StatusOK {
		t.Fatalf("expected reports 200, got %d", w.Code)
	}
	if w := srv.do(t, http.MethodPost, "/v0/admin/users", token, map[string]string{"username": "x"}); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestAdminUserLifecycle(t *testing.T) {
	srv := newTestServer(t)
	token := srv.login(t, "admin-key")

	w := srv.do(t, http.MethodPost, "/v0/admin/users", token, map[string]any{"username": "bob", "access_key": "bob-key"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected create 201, got %d: %s", w.Code, w.Body.String())
	}
	if users, _ := decodeBody(t, w)["users"].([]any); len(users) != 3 {
		t.Fatalf("expected 3 users, got %s", w.Body.String())
	}
	w = srv.do(t, http.MethodPost, "/v0/admin/users", token, map[string]any{"username": "bob", "access_key": "other"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate, got %d", w.Code)
	}

	var root models.User
	srv.conn.Where("username = ?", "root").First(&root)
	if w = srv.do(t, http.MethodDelete, fmt.Sprintf("/v0/admin/users/%d", root.ID), token, nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 deleting admin, got %d", w.Code)
	}

	var bob models.User
	srv.conn.Where("username = ?", "bob").First(&bob)
	w = srv.do(t, http.MethodPut, fmt.Sprintf("/v0/admin/users/%d/daily-limit", bob.ID), token, map[string]int{"daily_limit": 42})
	if w.Code != http.StatusOK {
		t.Fatalf("expected limit update 200, got %d", w.Code)
	}
	srv.conn.First(&bob, bob.ID)
	if bob.DailyLimit != 42 {
		t.Fatalf("expected limit 42, got %d", bob.DailyLimit)
	}
	if w = srv.do(t, http.MethodDelete, fmt.Sprintf("/v0/admin/users/%d", bob.ID), token, nil); w.Code != http.StatusOK {
		t.Fatalf("expected delete 200, got %d", w.Code)
	}
}

func TestSettingsUpdateCapsAllocation(t *testing.T) {
	srv := newTestServer(t)
	adminToken := srv.login(t, "admin-key")
	userToken := srv.login(t, "user-key")

	w := srv.do(t, http.MethodPut, "/v0/admin/settings/"+settings.MaxAllocationKey, adminToken, map[string]int{"value": 2})
	if w.Code != http.StatusOK {
		t.Fatalf("expected settings 200, got %d: %s", w.Code, w.Body.String())
	}
	if w = srv.do(t, http.MethodPut, "/v0/admin/settings/NOPE", adminToken, map[string]int{"value": 2}); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown key, got %d", w.Code)
	}
	if w = srv.do(t, http.MethodPost, "/v0/front/allocations", userToken, map[string]int{"amount": 3}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 above max allocation, got %d", w.Code)
	}
}

func TestOpenSessionStoreReturnsCloser(t *testing.T) {
	ctx := context.Background()
	store, closer, errOpen := openSessionStore(ctx, config.SessionConfig{Backend: "memory"})
	if errOpen != nil || store == nil || closer == nil {
		t.Fatalf("expected memory store, got %v", errOpen)
	}
	if errClose := closer.Close(); errClose != nil {
		t.Fatalf("expected nil close error, got %v", errClose)
	}
	if _, _, errOpen = openSessionStore(ctx, config.SessionConfig{Backend: "etcd"}); errOpen == nil {
		t.Fatalf("expected error for unknown backend")
	}

	addr := os.Getenv("IPGEN_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("IPGEN_TEST_REDIS_ADDR not set")
	}
	redisStore, redisCloser, errOpen := openSessionStore(ctx, config.SessionConfig{Backend: "redis", RedisAddr: addr})
	if errOpen != nil {
		t.Fatalf("open redis store: %v", errOpen)
	}
	if errClose := redisCloser.Close(); errClose != nil {
		t.Fatalf("close redis: %v", errClose)
	}
	if errSet := redisStore.Set(ctx, "closed", []byte("x"), time.Minute); errSet == nil {
		t.Fatalf("expected error after client close")
	}
}
