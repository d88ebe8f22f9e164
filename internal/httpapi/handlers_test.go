package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"skillreel.org/internal/auth"
	"skillreel.org/internal/blob"
	"skillreel.org/internal/points"
	"skillreel.org/internal/stream"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

func newTestAPI(t *testing.T, admins ...string) *apiClient {
	t.Helper()

	t.Setenv("SKILLREEL_AUTH_SECRET", "test-secret")
	auth.ResetSecretForTests()

	api := New(ReadyProbe{}, "test", points.NewInMemory(), auth.NewInMemoryRegistry(admins), stream.New(), nil)
	api.rateBurst = 1000
	api.ratePerSec = 1000

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
	}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) get(path string, headers map[string]string) *http.Response {
	return c.do(http.MethodGet, path, nil, headers)
}

func (c *apiClient) patch(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPatch, path, body, headers)
}

func (c *apiClient) bearer(identity string) map[string]string {
	c.t.Helper()
	resp := c.post("/v1/auth/token", map[string]any{"identity": identity}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("unexpected token status: %d", resp.StatusCode)
	}
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.t.Fatalf("decode token response: %v", err)
	}
	if payload.Token == "" {
		c.t.Fatalf("empty token issued")
	}
	return map[string]string{"Authorization": "Bearer " + payload.Token}
}

// createProfile registers identity and returns its auth header.
func (c *apiClient) createProfile(identity, name string) map[string]string {
	c.t.Helper()
	headers := c.bearer(identity)
	resp := c.post("/v1/profiles", map[string]any{"name": name}, headers)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("create profile %s: unexpected status %d", identity, resp.StatusCode)
	}
	return headers
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestAPIWatchFlow(t *testing.T) {
	api := newTestAPI(t)
	alice := api.createProfile("alice", "Alice")
	bob := api.createProfile("bob", "Bob")

	resp := api.post("/v1/videos", map[string]any{
		"id":          "vid-1",
		"title":       "Sourdough basics",
		"description": "Starter care and first loaf",
		"category":    "Cooking",
		"content_url": "https://blobs.example.com/vid-1",
	}, alice)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload: unexpected status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.post("/v1/videos/vid-1/watch", nil, bob)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("watch: unexpected status %d", resp.StatusCode)
	}
	watch := decode[map[string]any](t, resp)
	record := watch["watch"].(map[string]any)
	if record["viewer"] != "bob" || record["video_id"] != "vid-1" {
		t.Fatalf("unexpected watch record: %v", record)
	}

	resp = api.get("/v1/profiles/bob/balance", nil)
	bal := decode[map[string]any](t, resp)
	if bal["points"].(float64) != 90 {
		t.Fatalf("viewer balance: got %v, want 90", bal["points"])
	}

	resp = api.get("/v1/profiles/alice/balance", nil)
	bal = decode[map[string]any](t, resp)
	if bal["points"].(float64) != 110 {
		t.Fatalf("creator balance: got %v, want 110", bal["points"])
	}

	resp = api.get("/v1/profiles/bob/history", nil)
	history := decode[map[string]any](t, resp)
	if n := len(history["history"].([]any)); n != 1 {
		t.Fatalf("history length: got %d, want 1", n)
	}
}

func TestAPIWatchErrorStatuses(t *testing.T) {
	api := newTestAPI(t)
	alice := api.createProfile("alice", "Alice")
	bob := api.bearer("bob")

	resp := api.post("/v1/videos", map[string]any{
		"id":          "vid-1",
		"title":       "Scales",
		"description": "Daily warmups",
		"category":    "Music",
		"content_url": "https://blobs.example.com/vid-1",
	}, alice)
	resp.Body.Close()

	cases := []struct {
		name    string
		path    string
		headers map[string]string
		want    int
	}{
		{"missing video", "/v1/videos/no-such/watch", alice, http.StatusNotFound},
		{"self watch", "/v1/videos/vid-1/watch", alice, http.StatusForbidden},
		{"no profile", "/v1/videos/vid-1/watch", bob, http.StatusPreconditionFailed},
	}
	for _, tc := range cases {
		resp := api.post(tc.path, nil, tc.headers)
		resp.Body.Close()
		if resp.StatusCode != tc.want {
			t.Fatalf("%s: got status %d, want %d", tc.name, resp.StatusCode, tc.want)
		}
	}

	// Drain the viewer, then one more watch must conflict.
	carol := api.createProfile("carol", "Carol")
	for i := 0; i < 10; i++ {
		resp := api.post("/v1/videos/vid-1/watch", nil, carol)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("watch %d: unexpected status %d", i, resp.StatusCode)
		}
	}
	resp = api.post("/v1/videos/vid-1/watch", nil, carol)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("drained watch: got status %d, want 409", resp.StatusCode)
	}
}

func TestAPIProfileUpdateRejectsBalanceField(t *testing.T) {
	api := newTestAPI(t)
	alice := api.createProfile("alice", "Alice")

	resp := api.patch("/v1/profiles/me", map[string]any{
		"name":   "Alice Prime",
		"points": 1_000_000,
	}, alice)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", resp.StatusCode)
	}

	resp = api.patch("/v1/profiles/me", map[string]any{"name": "Alice Prime"}, alice)
	body := decode[map[string]any](t, resp)
	profile := body["profile"].(map[string]any)
	if profile["name"] != "Alice Prime" {
		t.Fatalf("rename not applied: %v", profile)
	}
	if profile["points"].(float64) != 100 {
		t.Fatalf("balance changed on rename: %v", profile["points"])
	}
}

func TestAPIAbsentProfileIsNull(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/v1/profiles/ghost", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want 200", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["profile"] != nil {
		t.Fatalf("expected null profile, got %v", body["profile"])
	}
}

func TestAPIDuplicateProfileConflicts(t *testing.T) {
	api := newTestAPI(t)
	alice := api.createProfile("alice", "Alice")

	resp := api.post("/v1/profiles", map[string]any{"name": "Again"}, alice)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("got status %d, want 409", resp.StatusCode)
	}
}

func TestAPIMultipartUpload(t *testing.T) {
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.Copy(io.Discard, r.Body); err != nil {
			t.Errorf("gateway read: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"url":"https://blobs.example.com/stored-1"}`))
	}))
	defer gateway.Close()

	t.Setenv("SKILLREEL_AUTH_SECRET", "test-secret")
	auth.ResetSecretForTests()

	api := New(ReadyProbe{}, "test", points.NewInMemory(), auth.NewInMemoryRegistry(nil), stream.New(), blob.NewClient(gateway.URL))
	srv := httptest.NewServer(api.Handler())
	defer srv.Close()

	client := &apiClient{baseURL: srv.URL, client: srv.Client(), t: t}
	alice := client.createProfile("alice", "Alice")

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	for field, value := range map[string]string{
		"id":          "vid-raw",
		"title":       "Deadlift form",
		"description": "Hip hinge fundamentals",
		"category":    "Fitness",
	} {
		if err := mw.WriteField(field, value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	part, err := mw.CreateFormFile("content", "clip.mp4")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write(bytes.Repeat([]byte("x"), 4096))
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/videos", &form)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", alice["Authorization"])
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("got status %d, want 201", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	video := body["video"].(map[string]any)
	content := video["content"].(map[string]any)
	if content["url"] != "https://blobs.example.com/stored-1" {
		t.Fatalf("content ref not taken from gateway: %v", content)
	}
}

func TestAPIRoleAssignment(t *testing.T) {
	api := newTestAPI(t, "root")
	root := api.bearer("root")
	alice := api.bearer("alice")

	resp := api.get("/v1/roles/me", alice)
	body := decode[map[string]any](t, resp)
	if body["role"] != "guest" {
		t.Fatalf("default role: got %v, want guest", body["role"])
	}

	resp = api.post("/v1/roles/assign", map[string]any{
		"identity": "alice",
		"role":     "user",
	}, alice)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-admin assign: got status %d, want 403", resp.StatusCode)
	}

	resp = api.post("/v1/roles/assign", map[string]any{
		"identity": "alice",
		"role":     "user",
	}, root)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin assign: got status %d, want 200", resp.StatusCode)
	}

	resp = api.get("/v1/roles/me", alice)
	body = decode[map[string]any](t, resp)
	if body["role"] != "user" {
		t.Fatalf("assigned role: got %v, want user", body["role"])
	}
	if body["admin"].(bool) {
		t.Fatalf("user role reported as admin")
	}

	resp = api.get("/v1/roles/me", root)
	body = decode[map[string]any](t, resp)
	if !body["admin"].(bool) {
		t.Fatalf("bootstrap admin not reported as admin")
	}
}
