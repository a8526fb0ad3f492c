package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KeremAR/Microservice/internal/cache"
	"github.com/KeremAR/Microservice/internal/identity"
	"github.com/KeremAR/Microservice/internal/reconcile"
	"github.com/KeremAR/Microservice/internal/testutil"
	"github.com/KeremAR/Microservice/pkg/models"
	"github.com/KeremAR/Microservice/pkg/rabbitmq"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	idp    *testutil.IdP
	store  *testutil.Store
	pub    *testutil.Publisher
	redis  *miniredis.Miniredis
	router *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{idp: testutil.NewIdP(), store: testutil.NewStore(), pub: &testutil.Publisher{}}
	return env.build(t, env.pub)
}

func (env *testEnv) build(t *testing.T, pub reconcile.Publisher) *testEnv {
	t.Helper()
	env.redis = miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: env.redis.Addr()})
	t.Cleanup(func() { rdb.Close() })

	responses := cache.New(rdb, cache.Options{TTL: 300 * time.Second}, discardLogger())
	svc := reconcile.New(env.idp, env.store, pub, responses, discardLogger())
	router, err := NewRouter(NewUserHandler(svc, responses, discardLogger()), env.idp)
	if err != nil {
		t.Fatalf("failed to build router: %v", err)
	}
	env.router = router
	return env
}

func (env *testEnv) do(method, path, body, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	env.router.ServeHTTP(w, req)
	return w
}

const signupBody = `{"email":"a@b.org","password":"Password123","name":"Ada","surname":"Lovelace","role":"staff"}`

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to unmarshal response: %v: %s", err, w.Body.String())
	}
}

func TestSignup_Success(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/auth/signup", signupBody, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp SignupResponse
	decode(t, w, &resp)
	if resp.Status != "success" || resp.Code != 201 {
		t.Errorf("unexpected envelope: %+v", resp)
	}
	if !resp.ProfileSaved {
		t.Error("expected profile_saved=true")
	}
	if resp.UserID == "" || resp.ProfileID == "" {
		t.Error("expected user_id and profile_id to be set")
	}

	events := env.pub.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(events))
	}
	if events[0].RoutingKey != rabbitmq.UserRoutingKey {
		t.Errorf("expected routing key %q, got %q", rabbitmq.UserRoutingKey, events[0].RoutingKey)
	}
}

func TestSignup_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t)

	if w := env.do(http.MethodPost, "/auth/signup", signupBody, ""); w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", w.Code)
	}

	w := env.do(http.MethodPost, "/auth/signup", signupBody, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", w.Code, w.Body.String())
	}
	var body map[string]any
	decode(t, w, &body)
	if body["reason"] != "profile_email_exists" {
		t.Errorf("expected reason profile_email_exists, got %v", body["reason"])
	}
	if body["status"] != "error" {
		t.Errorf("expected status error, got %v", body["status"])
	}
}

func TestSignup_IdentityEmailExists(t *testing.T) {
	env := newTestEnv(t)
	env.idp.Add(identity.Principal{ID: "idp-x", Email: "a@b.org"}, "pw")

	w := env.do(http.MethodPost, "/auth/signup", signupBody, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
	var body map[string]any
	decode(t, w, &body)
	if body["reason"] != "identity_email_exists" {
		t.Errorf("expected reason identity_email_exists, got %v", body["reason"])
	}
}

func TestSignup_ValidationHappensBeforeExternalCalls(t *testing.T) {
	cases := map[string]string{
		"weak password":  `{"email":"a@b.org","password":"password","name":"A","surname":"B"}`,
		"example domain": `{"email":"a@example.com","password":"Password123","name":"A","surname":"B"}`,
		"bad phone":      `{"email":"a@b.org","password":"Password123","name":"A","surname":"B","phone_number":"12"}`,
		"bad role":       `{"email":"a@b.org","password":"Password123","name":"A","surname":"B","role":"root"}`,
		"missing name":   `{"email":"a@b.org","password":"Password123","surname":"B"}`,
		"invalid json":   `{"email":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t)
			w := env.do(http.MethodPost, "/auth/signup", body, "")
			if w.Code != http.StatusUnprocessableEntity {
				t.Fatalf("expected status 422, got %d: %s", w.Code, w.Body.String())
			}
			if find, insert := env.store.Calls(); find != 0 || insert != 0 {
				t.Errorf("expected no store calls, got find=%d insert=%d", find, insert)
			}
		})
	}
}

func TestSignup_ProfileStoreDown(t *testing.T) {
	env := newTestEnv(t)
	env.store.FindErr = errors.New("connection refused")
	env.store.InsertErr = errors.New("connection refused")

	w := env.do(http.MethodPost, "/auth/signup", signupBody, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp SignupResponse
	decode(t, w, &resp)
	if resp.ProfileSaved {
		t.Error("expected profile_saved=false")
	}
	if resp.Warning == nil {
		t.Error("expected a warning")
	}
}

func TestSignup_BrokerUnreachable(t *testing.T) {
	var dials atomic.Int32
	pub := rabbitmq.NewPublisher(nil, rabbitmq.PublisherConfig{
		URL:         "amqp://unreachable",
		MaxAttempts: 3,
		RetryDelay:  time.Millisecond,
		Timeout:     50 * time.Millisecond,
		Dial: func(context.Context, string) (rabbitmq.Conn, error) {
			dials.Add(1)
			return nil, errors.New("connection refused")
		},
	}, discardLogger())

	env := &testEnv{idp: testutil.NewIdP(), store: testutil.NewStore()}
	env.build(t, pub)

	w := env.do(http.MethodPost, "/auth/signup", signupBody, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	if got := dials.Load(); got != 3 {
		t.Errorf("expected 3 publish attempts, got %d", got)
	}
}

func TestLogin_ReturnsSameProfileAsSignup(t *testing.T) {
	env := newTestEnv(t)
	env.do(http.MethodPost, "/auth/signup", signupBody, "")

	w := env.do(http.MethodPost, "/auth/login", `{"email":"a@b.org","password":"Password123"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp LoginResponse
	decode(t, w, &resp)
	if resp.Token == "" {
		t.Fatal("expected a token")
	}
	if resp.User.Name != "Ada" || resp.User.Surname != "Lovelace" || resp.User.Role != models.RoleStaff {
		t.Errorf("unexpected profile: %+v", resp.User)
	}

	me := env.do(http.MethodGet, "/users/me", "", resp.Token)
	if me.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", me.Code, me.Body.String())
	}
	var profile ProfileResponse
	decode(t, me, &profile)
	if profile.User.Name != resp.User.Name || profile.User.Role != resp.User.Role {
		t.Errorf("login and profile fetch disagree: %+v vs %+v", resp.User, profile.User)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.do(http.MethodPost, "/auth/signup", signupBody, "")

	w := env.do(http.MethodPost, "/auth/login", `{"email":"a@b.org","password":"Wrong1234"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}
	var body map[string]any
	decode(t, w, &body)
	if body["message"] != "Invalid Credentials" {
		t.Errorf("unexpected message %v", body["message"])
	}
}

func TestGetMe_SecondFetchServedFromCache(t *testing.T) {
	env := newTestEnv(t)
	env.idp.Add(identity.Principal{ID: "idp-1", Email: "jane@b.org"}, "pw")
	env.store.Put(models.Profile{ID: "local-1", IdentityID: "idp-1", Email: "jane@b.org", Name: "Jane", Role: models.RoleUser, IsActive: true})

	first := env.do(http.MethodGet, "/users/me", "", "token-idp-1")
	if first.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", first.Code, first.Body.String())
	}
	findAfterFirst, _ := env.store.Calls()

	second := env.do(http.MethodGet, "/users/me", "", "token-idp-1")
	if second.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", second.Code)
	}
	findAfterSecond, _ := env.store.Calls()

	if findAfterSecond != findAfterFirst {
		t.Errorf("expected no store round trip on cache hit, got %d extra", findAfterSecond-findAfterFirst)
	}
	if !bytes.Equal(first.Body.Bytes(), second.Body.Bytes()) {
		t.Errorf("cached payload differs:\n%s\n%s", first.Body.String(), second.Body.String())
	}
	if !env.redis.Exists(cache.Key(opProfile, "idp-1")) {
		t.Error("expected the profile response to be cached")
	}
}

func TestGetMe_DegradedResponseNotCached(t *testing.T) {
	env := newTestEnv(t)
	env.idp.Add(identity.Principal{ID: "idp-1", Email: "jane@b.org"}, "pw")
	env.store.FindErr = errors.New("timeout")
	env.store.InsertErr = errors.New("timeout")

	w := env.do(http.MethodGet, "/users/me", "", "token-idp-1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp ProfileResponse
	decode(t, w, &resp)
	if resp.User.Authoritative || resp.User.Warning == nil {
		t.Errorf("expected a non-authoritative view with a warning, got %+v", resp.User)
	}
	if resp.User.Name != "jane" {
		t.Errorf("expected name from email local part, got %q", resp.User.Name)
	}
	if env.redis.Exists(cache.Key(opProfile, "idp-1")) {
		t.Error("degraded response must not be cached")
	}
}

func TestGetMe_EmptyRoleReportedAsUser(t *testing.T) {
	env := newTestEnv(t)
	env.idp.Add(identity.Principal{ID: "idp-1", Email: "jane@b.org"}, "pw")
	env.store.Put(models.Profile{ID: "local-1", IdentityID: "idp-1", Email: "jane@b.org", Role: ""})

	w := env.do(http.MethodGet, "/users/me", "", "token-idp-1")
	var body struct {
		User map[string]any `json:"user"`
	}
	decode(t, w, &body)
	if body.User["role"] != "user" {
		t.Errorf("expected role user, got %v", body.User["role"])
	}
}

func TestGetMe_UnknownPrincipalToken(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/users/me", "", "token-ghost")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}
}

func TestGetMe_RequiresToken(t *testing.T) {
	env := newTestEnv(t)
	if w := env.do(http.MethodGet, "/users/me", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}
}

func TestSync_InvalidatesCachedProfile(t *testing.T) {
	env := newTestEnv(t)
	env.idp.Add(identity.Principal{ID: "idp-1", Email: "jane@b.org"}, "pw")

	if w := env.do(http.MethodGet, "/users/me", "", "token-idp-1"); w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !env.redis.Exists(cache.Key(opProfile, "idp-1")) {
		t.Fatal("expected cached profile")
	}

	w := env.do(http.MethodPost, "/users/sync", "", "token-idp-1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if env.redis.Exists(cache.Key(opProfile, "idp-1")) {
		t.Error("expected sync to drop the cached profile")
	}
	if env.store.Len() != 1 {
		t.Errorf("expected exactly one profile row, got %d", env.store.Len())
	}
}
