package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"querydesk/internal/auth"
	"querydesk/internal/search"
	"querydesk/internal/session"
	"querydesk/internal/storage"
)

type fakeAuth struct {
	registered map[string]bool
}

func (f *fakeAuth) Register(_ context.Context, username, email, password string) (storage.User, error) {
	if username == "" || email == "" || password == "" {
		return storage.User{}, auth.ErrMissingFields
	}
	if f.registered[email] {
		return storage.User{}, auth.ErrEmailTaken
	}
	f.registered[email] = true
	return storage.User{ID: int64(len(f.registered)), Username: username, Email: email}, nil
}

func (f *fakeAuth) Login(_ context.Context, email, password string) (storage.User, error) {
	if email == "ada@example.com" && password == "pw" {
		return storage.User{ID: 7, Email: email}, nil
	}
	if email == "locked@example.com" {
		return storage.User{}, auth.ErrTooManyAttempts
	}
	return storage.User{}, auth.ErrInvalidCredentials
}

type fakeSessions struct{}

const testCookie = "test_uid"

func (fakeSessions) Issue(_ context.Context, w http.ResponseWriter, userID int64) (session.Session, error) {
	http.SetCookie(w, &http.Cookie{Name: testCookie, Value: strconv.FormatInt(userID, 10), Path: "/"})
	return session.Session{ID: "s", UserID: userID}, nil
}

func (fakeSessions) Current(_ context.Context, _ http.ResponseWriter, r *http.Request) (*session.Session, error) {
	c, err := r.Cookie(testCookie)
	if err != nil {
		return nil, nil
	}
	id, err := strconv.ParseInt(c.Value, 10, 64)
	if err != nil {
		return nil, nil
	}
	return &session.Session{ID: "s", UserID: id}, nil
}

func (fakeSessions) Destroy(_ context.Context, w http.ResponseWriter, _ *http.Request) error {
	http.SetCookie(w, &http.Cookie{Name: testCookie, Value: "", Path: "/", MaxAge: -1})
	return nil
}

type fakeUsers map[int64]bool

func (f fakeUsers) GetUserByID(_ context.Context, id int64) (storage.User, error) {
	if !f[id] {
		return storage.User{}, storage.ErrNotFound
	}
	return storage.User{ID: id}, nil
}

type call struct {
	userID int64
	query  string
}

type fakeSearch struct {
	calls []call
}

func (f *fakeSearch) Process(_ context.Context, userID int64, query string) search.Result {
	f.calls = append(f.calls, call{userID, query})
	return search.Result{
		PDFEmbedURL:     search.PDFURL(query + ".pdf"),
		EmbeddedWebsite: "https://example.com/" + query,
		AIResponse:      "answer to " + query,
	}
}

type fakeHistory struct {
	chats []storage.Chat
}

func (f *fakeHistory) ListChats(_ context.Context, userID int64, _ int) ([]storage.Chat, error) {
	var out []storage.Chat
	for _, c := range f.chats {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fixture struct {
	handler http.Handler
	search  *fakeSearch
	pdfDir  string
}

func newFixture(t *testing.T, pingErr error) fixture {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "lead acid battery.pdf"), []byte("%PDF-1.4 test"), 0o644); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	if err := os.WriteFile(filepath.Join(filepath.Dir(dir), "secret.pdf"), []byte("secret"), 0o644); err != nil {
		t.Fatalf("write outside pdf: %v", err)
	}
	pdfs, err := search.OpenPDFDir(dir)
	if err != nil {
		t.Fatalf("open pdf dir: %v", err)
	}
	t.Cleanup(func() { _ = pdfs.Close() })

	fs := &fakeSearch{}
	srv, err := NewServer(Config{
		Auth:     &fakeAuth{registered: map[string]bool{"taken@example.com": true}},
		Sessions: fakeSessions{},
		Users:    fakeUsers{7: true},
		Search:   fs,
		History: &fakeHistory{chats: []storage.Chat{
			{ID: 2, UserID: 7, Query: "iot", Response: "reply-two", Timestamp: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)},
			{ID: 1, UserID: 7, Query: "arduino", Response: "reply-one", Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
			{ID: 3, UserID: 8, Query: "someone else", Response: "not-yours"},
		}},
		PDFs:   pdfs,
		DB:     fakePinger{err: pingErr},
		Logger: zerolog.Nop(),
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "metrics")
		}),
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return fixture{handler: srv.Routes(), search: fs, pdfDir: dir}
}

func do(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func signedIn(req *http.Request, userID int64) *http.Request {
	req.AddCookie(&http.Cookie{Name: testCookie, Value: strconv.FormatInt(userID, 10)})
	return req
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestRootRedirectsToLogin(t *testing.T) {
	f := newFixture(t, nil)
	rec := do(f.handler, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/login" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	f := newFixture(t, nil)
	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/ghat", nil),
		httptest.NewRequest(http.MethodGet, "/chat", nil),
		postForm("/chat", url.Values{"query": {"iot"}}),
	} {
		rec := do(f.handler, req)
		if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/login" {
			t.Fatalf("%s %s: expected redirect to login, got %d", req.Method, req.URL.Path, rec.Code)
		}
	}
	if len(f.search.calls) != 0 {
		t.Fatalf("no query may run without a session")
	}
}

func TestPostChatEmptyQuery(t *testing.T) {
	f := newFixture(t, nil)
	rec := do(f.handler, signedIn(postForm("/chat", url.Values{"query": {"   "}}), 7))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "Query cannot be empty" {
		t.Fatalf("unexpected body %v", body)
	}
	if len(f.search.calls) != 0 {
		t.Fatalf("empty query must not reach the orchestrator")
	}
}

func TestPostChatReturnsResult(t *testing.T) {
	f := newFixture(t, nil)
	rec := do(f.handler, signedIn(postForm("/chat", url.Values{"query": {" iot "}}), 7))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var res search.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if res.AIResponse != "answer to iot" || res.EmbeddedWebsite != "https://example.com/iot" {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(f.search.calls) != 1 || f.search.calls[0] != (call{7, "iot"}) {
		t.Fatalf("unexpected orchestrator calls %+v", f.search.calls)
	}
}

func TestGetChatRendersHistoryAndQuery(t *testing.T) {
	f := newFixture(t, nil)
	rec := do(f.handler, signedIn(httptest.NewRequest(http.MethodGet, "/chat?query=robotics", nil), 7))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "answer to robotics") {
		t.Fatalf("current response missing from page")
	}
	newer, older := strings.Index(body, "reply-two"), strings.Index(body, "reply-one")
	if newer < 0 || older < 0 || newer > older {
		t.Fatalf("history must be listed newest first")
	}
	if strings.Contains(body, "not-yours") {
		t.Fatalf("another user's history leaked")
	}

	rec = do(f.handler, signedIn(httptest.NewRequest(http.MethodGet, "/chat", nil), 7))
	if rec.Code != http.StatusOK || len(f.search.calls) != 1 {
		t.Fatalf("plain history view must not run a query")
	}
}

func TestServePDF(t *testing.T) {
	f := newFixture(t, nil)

	rec := do(f.handler, httptest.NewRequest(http.MethodGet, search.PDFURL("lead acid battery.pdf"), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if rec.Body.String() != "%PDF-1.4 test" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}

	for _, path := range []string{"/pdfs/missing.pdf", "/pdfs/..%2Fsecret.pdf"} {
		rec := do(f.handler, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, rec.Code)
		}
		if strings.TrimSpace(rec.Body.String()) != "PDF not found." {
			t.Fatalf("%s: unexpected body %q", path, rec.Body.String())
		}
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	rec := do(f.handler, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "healthy" || body["database"] != "connected" || body["pdf_folder"] != f.pdfDir {
		t.Fatalf("unexpected health body %v", body)
	}

	down := newFixture(t, errors.New("connection refused"))
	rec = do(down.handler, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t, nil)

	rec := do(f.handler, postForm("/register", url.Values{
		"username": {"ada"}, "email": {"taken@example.com"}, "password": {"pw"},
	}))
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "Email already registered") {
		t.Fatalf("duplicate email: got %d", rec.Code)
	}

	rec = do(f.handler, postForm("/register", url.Values{
		"username": {"ada"}, "email": {"ada@example.com"}, "password": {"pw"},
	}))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Fatalf("register: got %d %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = do(f.handler, postForm("/login", url.Values{"email": {"ada@example.com"}, "password": {"nope"}}))
	if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), "Invalid credentials") {
		t.Fatalf("bad login: got %d", rec.Code)
	}

	rec = do(f.handler, postForm("/login", url.Values{"email": {"locked@example.com"}, "password": {"pw"}}))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("throttled login: got %d", rec.Code)
	}

	rec = do(f.handler, postForm("/login", url.Values{"email": {"ada@example.com"}, "password": {"pw"}}))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/ghat" {
		t.Fatalf("login: got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value != "7" {
		t.Fatalf("expected session cookie, got %#v", cookies)
	}
}

func TestLogoutClearsSession(t *testing.T) {
	f := newFixture(t, nil)
	rec := do(f.handler, signedIn(httptest.NewRequest(http.MethodGet, "/logout", nil), 7))
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/login" {
		t.Fatalf("unexpected logout response %d", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Fatalf("expected clearing cookie, got %#v", cookies)
	}
}

func TestStaticAndMetrics(t *testing.T) {
	f := newFixture(t, nil)
	rec := do(f.handler, httptest.NewRequest(http.MethodGet, "/static/js/chat.js", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "/chat") {
		t.Fatalf("static asset: got %d", rec.Code)
	}
	rec = do(f.handler, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "metrics" {
		t.Fatalf("metrics: got %d %q", rec.Code, rec.Body.String())
	}
}

func TestSessionForDeletedUserIsDropped(t *testing.T) {
	f := newFixture(t, nil)
	rec := do(f.handler, signedIn(postForm("/chat", url.Values{"query": {"iot"}}), 99))
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/login" {
		t.Fatalf("expected redirect to login, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Fatalf("expected clearing cookie, got %#v", cookies)
	}
	if len(f.search.calls) != 0 {
		t.Fatalf("no query may run for an unknown user")
	}
}
