package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/avdeck/cueroom/internal/adapters/ws"
	"github.com/avdeck/cueroom/internal/app"
	"github.com/avdeck/cueroom/internal/auth"
	"github.com/avdeck/cueroom/internal/config"
	"github.com/avdeck/cueroom/internal/domain"
	"github.com/avdeck/cueroom/internal/session"
	"github.com/avdeck/cueroom/internal/store"
)

type memSessions struct {
	mu      sync.Mutex
	records map[string]session.Record
}

func (s *memSessions) Create(_ context.Context, userID, displayName string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := uuid.NewString()
	s.records[token] = session.Record{UserID: userID, DisplayName: displayName}
	return token, nil
}

func (s *memSessions) Get(_ context.Context, token string) (session.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[token]
	if !ok {
		return session.Record{}, session.ErrNotFound
	}
	return rec, nil
}

func (s *memSessions) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, token)
	return nil
}

type testServer struct {
	srv *httptest.Server
	st  *store.Memory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st := store.NewMemory()
	handlers := NewHandlers(st, auth.NewService(st), &memSessions{records: map[string]session.Record{}}, nil)
	dispatcher := app.NewDispatcher(app.NewRegistry(), st, nil)
	wsCtl := ws.NewController(dispatcher, ws.Options{})

	// Plain-HTTP httptest server: a release-mode Secure cookie would
	// never make it back through the jar.
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{Mode: "test", StaticPath: t.TempDir(), Secret: "test-secret"}
	srv := httptest.NewServer(SetupRouter(context.Background(), cfg, handlers, wsCtl))
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, st: st}
}

// client returns an HTTP client with its own cookie jar, i.e. its own
// login session.
func (ts *testServer) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{Jar: jar}
}

func (ts *testServer) do(t *testing.T, c *http.Client, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out
}

func (ts *testServer) register(t *testing.T, c *http.Client, email, name string) string {
	t.Helper()
	status, body := ts.do(t, c, http.MethodPost, "/api/v1/auth/register", map[string]any{
		"email": email, "password": "secret1", "display_name": name,
	})
	if status != http.StatusCreated {
		t.Fatalf("register %s: status %d body %v", email, status, body)
	}
	return body["user"].(map[string]any)["id"].(string)
}

func TestAuthFlow(t *testing.T) {
	ts := newTestServer(t)
	c := ts.client(t)

	// Unauthenticated request is rejected.
	status, _ := ts.do(t, c, http.MethodGet, "/api/v1/auth/me", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("me without session: status %d", status)
	}

	ts.register(t, c, "olive@studio.test", "Olive")

	status, body := ts.do(t, c, http.MethodGet, "/api/v1/auth/me", nil)
	if status != http.StatusOK {
		t.Fatalf("me after register: status %d body %v", status, body)
	}
	user := body["user"].(map[string]any)
	if user["email"] != "olive@studio.test" || user["display_name"] != "Olive" {
		t.Fatalf("me = %v", user)
	}
	if _, exposed := user["password_hash"]; exposed {
		t.Fatal("password hash leaked over the wire")
	}

	status, _ = ts.do(t, c, http.MethodPost, "/api/v1/auth/logout", nil)
	if status != http.StatusOK {
		t.Fatalf("logout: status %d", status)
	}
	status, _ = ts.do(t, c, http.MethodGet, "/api/v1/auth/me", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("me after logout: status %d", status)
	}

	// Login restores the session.
	status, _ = ts.do(t, c, http.MethodPost, "/api/v1/auth/login", map[string]any{
		"email": "olive@studio.test", "password": "secret1",
	})
	if status != http.StatusOK {
		t.Fatalf("login: status %d", status)
	}
	status, _ = ts.do(t, c, http.MethodGet, "/api/v1/auth/me", nil)
	if status != http.StatusOK {
		t.Fatalf("me after login: status %d", status)
	}
}

func TestSessionCookieUsableOverPlainHTTP(t *testing.T) {
	ts := newTestServer(t)

	b, err := json.Marshal(map[string]any{
		"email": "cookie@studio.test", "password": "secret1", "display_name": "Coo",
	})
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(ts.srv.URL+"/api/v1/auth/register", "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "CueroomSession" {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatalf("no CueroomSession cookie in %v", resp.Header["Set-Cookie"])
	}
	if cookie.Secure {
		t.Fatal("session cookie marked Secure; it would never come back over plain HTTP")
	}
	if !cookie.HttpOnly {
		t.Fatal("session cookie not HttpOnly")
	}
	if cookie.Path != "/" {
		t.Fatalf("cookie path = %q, want /", cookie.Path)
	}
	if cookie.MaxAge <= 0 {
		t.Fatalf("cookie max-age = %d, want positive", cookie.MaxAge)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ts := newTestServer(t)
	c := ts.client(t)
	ts.register(t, c, "olive@studio.test", "Olive")

	status, _ := ts.do(t, c, http.MethodPost, "/api/v1/auth/login", map[string]any{
		"email": "olive@studio.test", "password": "wrong99",
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("bad password: status %d", status)
	}
}

func TestProjectLifecycle(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.client(t)
	ownerID := ts.register(t, owner, "owner@studio.test", "Olive")

	status, body := ts.do(t, owner, http.MethodPost, "/api/v1/projects", map[string]any{
		"name": "  Night Show  ", "description": "main stage",
	})
	if status != http.StatusCreated {
		t.Fatalf("create project: status %d body %v", status, body)
	}
	project := body["project"].(map[string]any)
	if project["name"] != "Night Show" {
		t.Errorf("name not trimmed: %q", project["name"])
	}
	if project["export_id"] != float64(101) {
		t.Errorf("export_id = %v, want default 101", project["export_id"])
	}
	if project["owner_id"] != ownerID {
		t.Errorf("owner_id = %v", project["owner_id"])
	}
	projectID := project["id"].(string)

	// The creator is a member with the owner role.
	status, body = ts.do(t, owner, http.MethodGet, "/api/v1/projects/"+projectID, nil)
	if status != http.StatusOK || body["role"] != "owner" {
		t.Fatalf("get project: status %d role %v", status, body["role"])
	}

	status, body = ts.do(t, owner, http.MethodGet, "/api/v1/projects", nil)
	if status != http.StatusOK || len(body["projects"].([]any)) != 1 {
		t.Fatalf("list projects: status %d body %v", status, body)
	}

	status, body = ts.do(t, owner, http.MethodPatch, "/api/v1/projects/"+projectID, map[string]any{
		"export_id": 204,
	})
	if status != http.StatusOK || body["project"].(map[string]any)["export_id"] != float64(204) {
		t.Fatalf("patch project: status %d body %v", status, body)
	}

	status, _ = ts.do(t, owner, http.MethodDelete, "/api/v1/projects/"+projectID, nil)
	if status != http.StatusOK {
		t.Fatalf("delete project: status %d", status)
	}
	status, _ = ts.do(t, owner, http.MethodGet, "/api/v1/projects/"+projectID, nil)
	if status != http.StatusNotFound {
		t.Fatalf("get deleted project: status %d", status)
	}
}

func TestProjectHiddenFromNonMembers(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.client(t)
	ts.register(t, owner, "owner@studio.test", "Olive")
	outsider := ts.client(t)
	ts.register(t, outsider, "out@studio.test", "Out")

	_, body := ts.do(t, owner, http.MethodPost, "/api/v1/projects", map[string]any{"name": "Secret"})
	projectID := body["project"].(map[string]any)["id"].(string)

	// Non-members see the same 404 as for a project that does not exist.
	status, hidden := ts.do(t, outsider, http.MethodGet, "/api/v1/projects/"+projectID, nil)
	if status != http.StatusNotFound {
		t.Fatalf("outsider get: status %d", status)
	}
	status2, missing := ts.do(t, outsider, http.MethodGet, "/api/v1/projects/"+uuid.NewString(), nil)
	if status2 != http.StatusNotFound || hidden["error"] != missing["error"] {
		t.Fatalf("responses differ: %v vs %v", hidden, missing)
	}
}

func TestMemberManagement(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.client(t)
	ts.register(t, owner, "owner@studio.test", "Olive")
	editor := ts.client(t)
	ts.register(t, editor, "editor@studio.test", "Ed")

	_, body := ts.do(t, owner, http.MethodPost, "/api/v1/projects", map[string]any{"name": "Night Show"})
	projectID := body["project"].(map[string]any)["id"].(string)
	base := "/api/v1/projects/" + projectID + "/members"

	status, body := ts.do(t, owner, http.MethodPost, base, map[string]any{
		"email": "editor@studio.test", "role": "editor",
	})
	if status != http.StatusCreated {
		t.Fatalf("add member: status %d body %v", status, body)
	}
	member := body["member"].(map[string]any)
	if member["role"] != "editor" || member["email"] != "editor@studio.test" {
		t.Fatalf("member = %v", member)
	}
	memberID := member["id"].(string)

	// Invite cannot grant ownership.
	status, _ = ts.do(t, owner, http.MethodPost, base, map[string]any{
		"email": "editor@studio.test", "role": "owner",
	})
	if status != http.StatusConflict {
		t.Fatalf("duplicate invite: status %d", status)
	}

	// Unknown emails are a 404; invitees need an account first.
	status, _ = ts.do(t, owner, http.MethodPost, base, map[string]any{"email": "ghost@studio.test"})
	if status != http.StatusNotFound {
		t.Fatalf("unknown email: status %d", status)
	}

	// Only the owner manages members.
	status, _ = ts.do(t, editor, http.MethodPatch, base+"/"+memberID, map[string]any{"role": "viewer"})
	if status != http.StatusForbidden {
		t.Fatalf("editor changing roles: status %d", status)
	}

	status, body = ts.do(t, owner, http.MethodPatch, base+"/"+memberID, map[string]any{"role": "viewer"})
	if status != http.StatusOK || body["member"].(map[string]any)["role"] != "viewer" {
		t.Fatalf("change role: status %d body %v", status, body)
	}

	// The owner row itself is untouchable.
	status, body = ts.do(t, owner, http.MethodGet, base, nil)
	if status != http.StatusOK {
		t.Fatalf("list members: status %d", status)
	}
	var ownerMemberID string
	for _, raw := range body["members"].([]any) {
		m := raw.(map[string]any)
		if m["role"] == "owner" {
			ownerMemberID = m["id"].(string)
		}
	}
	status, _ = ts.do(t, owner, http.MethodDelete, base+"/"+ownerMemberID, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("remove owner: status %d", status)
	}

	status, _ = ts.do(t, owner, http.MethodDelete, base+"/"+memberID, nil)
	if status != http.StatusOK {
		t.Fatalf("remove member: status %d", status)
	}
}

func TestExportEndpoints(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.client(t)
	ownerID := ts.register(t, owner, "owner@studio.test", "Olive")

	_, body := ts.do(t, owner, http.MethodPost, "/api/v1/projects", map[string]any{"name": "Night Show"})
	projectID := body["project"].(map[string]any)["id"].(string)

	ctx := context.Background()
	track, err := ts.st.InsertTrack(ctx, domainTrack(projectID, "Main"))
	if err != nil {
		t.Fatalf("insert track: %v", err)
	}
	if _, err := ts.st.InsertCue(ctx, domainCue(track.ID, "Opening", 12.5, ownerID)); err != nil {
		t.Fatalf("insert cue: %v", err)
	}

	get := func(format string) (*http.Response, string) {
		resp, err := owner.Get(ts.srv.URL + "/api/v1/projects/" + projectID + "/export/" + format)
		if err != nil {
			t.Fatalf("export %s: %v", format, err)
		}
		defer resp.Body.Close()
		raw, _ := io.ReadAll(resp.Body)
		return resp, string(raw)
	}

	resp, data := get("json")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("json export: status %d", resp.StatusCode)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "101_Night Show.json") {
		t.Errorf("content disposition = %q", cd)
	}
	if !strings.Contains(data, `"title": "Opening"`) {
		t.Errorf("json export missing cue:\n%s", data)
	}

	resp, data = get("csv")
	if resp.StatusCode != http.StatusOK || !strings.Contains(data, `"Main","Lighting"`) {
		t.Errorf("csv export: status %d data %q", resp.StatusCode, data)
	}

	resp, data = get("markdown")
	if resp.StatusCode != http.StatusOK || !strings.Contains(data, "## Main") {
		t.Errorf("markdown export: status %d", resp.StatusCode)
	}

	resp, _ = get("zip")
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "application/zip" {
		t.Errorf("zip export: status %d type %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	resp, _ = get("pdf")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown format: status %d", resp.StatusCode)
	}
}

func domainTrack(projectID, name string) domain.Track {
	return domain.Track{ProjectID: projectID, Name: name, MediaType: domain.MediaAudio}
}

func domainCue(trackID, name string, at float64, createdBy string) domain.Cue {
	return domain.Cue{TrackID: trackID, Name: name, Time: at, CreatedBy: createdBy}
}

func TestExportRequiresMembership(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.client(t)
	ts.register(t, owner, "owner@studio.test", "Olive")
	outsider := ts.client(t)
	ts.register(t, outsider, "out@studio.test", "Out")

	_, body := ts.do(t, owner, http.MethodPost, "/api/v1/projects", map[string]any{"name": "Secret"})
	projectID := body["project"].(map[string]any)["id"].(string)

	resp, err := outsider.Get(fmt.Sprintf("%s/api/v1/projects/%s/export/json", ts.srv.URL, projectID))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("outsider export: status %d", resp.StatusCode)
	}
}
