package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"medivault.org/internal/audit"
	"medivault.org/internal/auth"
	"medivault.org/internal/blob"
	"medivault.org/internal/document"
	"medivault.org/internal/filecrypt"
)

type testEnv struct {
	handler  http.Handler
	profiles *auth.InMemoryProfiles
	docs     *document.InMemory
	blobs    *blob.InMemory
	trail    *audit.InMemory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("MEDIVAULT_AUTH_SECRET", "handlers-test-secret")
	auth.ResetSecretForTests()
	t.Cleanup(auth.ResetSecretForTests)

	profiles := auth.NewInMemoryProfiles()
	authSvc, err := auth.NewService(profiles)
	if err != nil {
		t.Fatalf("auth.NewService: %v", err)
	}

	trail := audit.NewInMemory()
	recorder, err := audit.NewRecorder(trail)
	if err != nil {
		t.Fatalf("audit.NewRecorder: %v", err)
	}

	key := make([]byte, filecrypt.KeySize)
	for i := range key {
		key[i] = byte(255 - i)
	}
	engine, err := filecrypt.New(key)
	if err != nil {
		t.Fatalf("filecrypt.New: %v", err)
	}

	docs := document.NewInMemory()
	docs.AddRecord("mr-1")
	blobs := blob.NewInMemory()
	docSvc, err := document.NewService(docs, blobs, engine, recorder)
	if err != nil {
		t.Fatalf("document.NewService: %v", err)
	}

	api := New(authSvc, docSvc, recorder, ReadyProbe{}, "test")
	return &testEnv{
		handler:  api.Handler(),
		profiles: profiles,
		docs:     docs,
		blobs:    blobs,
		trail:    trail,
	}
}

// tokenFor seeds an active profile and mints a valid bearer token for it.
func (e *testEnv) tokenFor(t *testing.T, id string, role auth.Role) string {
	t.Helper()
	e.profiles.Put(auth.User{
		ID:       id,
		Email:    id + "@clinic.test",
		FullName: "Test " + string(role),
		Role:     role,
		Status:   auth.UserStatusActive,
	})
	token, err := auth.GenerateToken(id, role, time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, req *http.Request, token string) *httptest.ResponseRecorder {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func multipartUpload(t *testing.T, recordID, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("medical_record_id", recordID); err != nil {
		t.Fatalf("WriteField: %v", err)
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("part.Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("multipart Close: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/files", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v (%s)", err, rr.Body.String())
	}
	return body
}

func countAudited(trail *audit.InMemory, action audit.Action) int {
	n := 0
	for _, e := range trail.Entries() {
		if e.Action == action {
			n++
		}
	}
	return n
}

func TestHealthzIsPublic(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["service"] != "medivault-api" {
		t.Fatalf("body = %v", body)
	}
}

func TestLoginFlow(t *testing.T) {
	env := newTestEnv(t)
	hash, err := auth.HashPassword("pass-123456")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	env.profiles.Put(auth.User{
		ID:           "u-doc",
		Email:        "doc@clinic.test",
		FullName:     "Doc Tor",
		Role:         auth.RoleDoctor,
		PasswordHash: hash,
		Status:       auth.UserStatusActive,
	})

	payload := []byte(`{"email":"doc@clinic.test","password":"pass-123456"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rr := env.do(t, req, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("login = %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatal("missing token in login response")
	}

	rr = env.do(t, httptest.NewRequest(http.MethodGet, "/v1/auth/profile", nil), token)
	if rr.Code != http.StatusOK {
		t.Fatalf("profile = %d", rr.Code)
	}

	if got := countAudited(env.trail, audit.ActionLogin); got != 1 {
		t.Fatalf("login audit entries = %d, want 1", got)
	}
}

func TestLoginFailureIsAuditedWithoutActor(t *testing.T) {
	env := newTestEnv(t)

	payload := []byte(`{"email":"nobody@clinic.test","password":"wrong"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rr := env.do(t, req, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("login = %d, want 401", rr.Code)
	}

	entries := env.trail.Entries()
	if len(entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(entries))
	}
	entry := entries[0]
	if entry.Action != audit.ActionLogin || entry.ActorID != "" {
		t.Fatalf("entry = %+v, want actorless login record", entry)
	}
	if entry.Details["success"] != false || entry.Details["email"] != "nobody@clinic.test" {
		t.Fatalf("details = %v", entry.Details)
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, httptest.NewRequest(http.MethodGet, "/v1/files/doc-1", nil), "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("no token = %d, want 401", rr.Code)
	}

	rr = env.do(t, httptest.NewRequest(http.MethodGet, "/v1/files/doc-1", nil), "not-a-token")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("bad token = %d, want 401", rr.Code)
	}
}

func TestDisabledAccountIsRejected(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, "u-gone", auth.RoleDoctor)
	env.profiles.Put(auth.User{
		ID:     "u-gone",
		Email:  "u-gone@clinic.test",
		Role:   auth.RoleDoctor,
		Status: auth.UserStatusDisabled,
	})

	rr := env.do(t, httptest.NewRequest(http.MethodGet, "/v1/files/doc-1", nil), token)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("disabled account = %d, want 403", rr.Code)
	}
}

func TestUploadDownloadLifecycle(t *testing.T) {
	env := newTestEnv(t)
	nurseToken := env.tokenFor(t, "u-nurse", auth.RoleNurse)
	plaintext := []byte("blood pressure readings")

	rr := env.do(t, multipartUpload(t, "mr-1", "bp.pdf", plaintext), nurseToken)
	if rr.Code != http.StatusCreated {
		t.Fatalf("upload = %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	file, _ := body["file"].(map[string]any)
	id, _ := file["id"].(string)
	if id == "" {
		t.Fatalf("missing file id: %v", body)
	}
	if file["size"] != float64(len(plaintext)) {
		t.Fatalf("size = %v", file["size"])
	}

	rr = env.do(t, httptest.NewRequest(http.MethodGet, "/v1/files/"+id, nil), nurseToken)
	if rr.Code != http.StatusOK {
		t.Fatalf("info = %d", rr.Code)
	}
	info := decodeBody(t, rr)
	meta, _ := info["file"].(map[string]any)
	if meta["filename"] != "bp.pdf" {
		t.Fatalf("info = %v", info)
	}
	// Crypto material must never appear in API responses.
	if _, ok := meta["iv"]; ok {
		t.Fatal("iv leaked into info response")
	}
	if _, ok := meta["storage_path"]; ok {
		t.Fatal("storage_path leaked into info response")
	}

	rr = env.do(t, httptest.NewRequest(http.MethodGet, "/v1/files/"+id+"/download", nil), nurseToken)
	if rr.Code != http.StatusOK {
		t.Fatalf("download = %d: %s", rr.Code, rr.Body.String())
	}
	if !bytes.Equal(rr.Body.Bytes(), plaintext) {
		t.Fatal("downloaded bytes differ from upload")
	}
	if got := rr.Header().Get("Content-Disposition"); got != `attachment; filename="bp.pdf"` {
		t.Fatalf("Content-Disposition = %q", got)
	}
}

func TestUploadRequiresKnownRecord(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, "u-doc", auth.RoleDoctor)

	rr := env.do(t, multipartUpload(t, "mr-404", "x.pdf", []byte("data")), token)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown record = %d, want 404", rr.Code)
	}
	if env.blobs.Len() != 0 {
		t.Fatal("rejected upload must not leave blobs")
	}
}

func TestPatientCannotUpload(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, "u-patient", auth.RolePatient)

	rr := env.do(t, multipartUpload(t, "mr-1", "x.pdf", []byte("data")), token)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("patient upload = %d, want 403", rr.Code)
	}
	if got := countAudited(env.trail, audit.ActionAccessDenied); got != 1 {
		t.Fatalf("access_denied entries = %d, want 1", got)
	}
}

func TestDoctorCannotDelete(t *testing.T) {
	env := newTestEnv(t)
	docToken := env.tokenFor(t, "u-doc", auth.RoleDoctor)

	rr := env.do(t, multipartUpload(t, "mr-1", "keep.pdf", []byte("sensitive")), docToken)
	if rr.Code != http.StatusCreated {
		t.Fatalf("upload = %d", rr.Code)
	}
	file, _ := decodeBody(t, rr)["file"].(map[string]any)
	id, _ := file["id"].(string)

	rr = env.do(t, httptest.NewRequest(http.MethodDelete, "/v1/files/"+id, nil), docToken)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("doctor delete = %d, want 403", rr.Code)
	}

	denied := 0
	for _, e := range env.trail.Entries() {
		if e.Action == audit.ActionAccessDenied {
			denied++
			if e.ActorID != "u-doc" || e.Details["operation"] != string(auth.OpFileDelete) {
				t.Fatalf("access_denied entry = %+v", e)
			}
		}
	}
	if denied != 1 {
		t.Fatalf("access_denied entries = %d, want exactly 1", denied)
	}

	// The document must be untouched by the denied request.
	rr = env.do(t, httptest.NewRequest(http.MethodGet, "/v1/files/"+id+"/download", nil), docToken)
	if rr.Code != http.StatusOK {
		t.Fatalf("download after denied delete = %d", rr.Code)
	}
}

func TestAdminDeletes(t *testing.T) {
	env := newTestEnv(t)
	nurseToken := env.tokenFor(t, "u-nurse", auth.RoleNurse)
	adminToken := env.tokenFor(t, "u-admin", auth.RoleAdmin)

	rr := env.do(t, multipartUpload(t, "mr-1", "old.pdf", []byte("stale")), nurseToken)
	if rr.Code != http.StatusCreated {
		t.Fatalf("upload = %d", rr.Code)
	}
	file, _ := decodeBody(t, rr)["file"].(map[string]any)
	id, _ := file["id"].(string)

	rr = env.do(t, httptest.NewRequest(http.MethodDelete, "/v1/files/"+id, nil), adminToken)
	if rr.Code != http.StatusOK {
		t.Fatalf("admin delete = %d: %s", rr.Code, rr.Body.String())
	}
	if env.blobs.Len() != 0 {
		t.Fatal("blob must be removed")
	}

	rr = env.do(t, httptest.NewRequest(http.MethodGet, "/v1/files/"+id, nil), nurseToken)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("info after delete = %d, want 404", rr.Code)
	}
	if got := countAudited(env.trail, audit.ActionDelete); got != 1 {
		t.Fatalf("delete audit entries = %d, want 1", got)
	}
}

func TestAuditEndpointIsRoleGated(t *testing.T) {
	env := newTestEnv(t)
	auditorToken := env.tokenFor(t, "u-auditor", auth.RoleAuditor)
	nurseToken := env.tokenFor(t, "u-nurse", auth.RoleNurse)

	rr := env.do(t, multipartUpload(t, "mr-1", "seed.pdf", []byte("x")), nurseToken)
	if rr.Code != http.StatusCreated {
		t.Fatalf("upload = %d", rr.Code)
	}

	rr = env.do(t, httptest.NewRequest(http.MethodGet, "/v1/audit?action=create", nil), auditorToken)
	if rr.Code != http.StatusOK {
		t.Fatalf("auditor list = %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["total"] != float64(1) {
		t.Fatalf("total = %v, want 1 create entry", body["total"])
	}

	rr = env.do(t, httptest.NewRequest(http.MethodGet, "/v1/audit", nil), nurseToken)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("nurse list = %d, want 403", rr.Code)
	}
}

func TestAuditEndpointValidatesParams(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, "u-admin", auth.RoleAdmin)

	cases := []string{
		"/v1/audit?action=truncate",
		"/v1/audit?start_date=yesterday",
		"/v1/audit?page=-1",
		"/v1/audit?limit=zero",
	}
	for _, path := range cases {
		rr := env.do(t, httptest.NewRequest(http.MethodGet, path, nil), token)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s = %d, want 400", path, rr.Code)
		}
	}
}

func TestUploadSucceedsWhenAuditStoreIsDown(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, "u-nurse", auth.RoleNurse)
	env.trail.FailAppend = fmt.Errorf("audit db down")

	rr := env.do(t, multipartUpload(t, "mr-1", "x.pdf", []byte("payload")), token)
	if rr.Code != http.StatusCreated {
		t.Fatalf("upload with failing audit store = %d, want 201", rr.Code)
	}
}

func TestLogoutIsAudited(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, "u-doc", auth.RoleDoctor)

	rr := env.do(t, httptest.NewRequest(http.MethodPost, "/v1/auth/logout", nil), token)
	if rr.Code != http.StatusOK {
		t.Fatalf("logout = %d", rr.Code)
	}
	if got := countAudited(env.trail, audit.ActionLogout); got != 1 {
		t.Fatalf("logout audit entries = %d, want 1", got)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, "u-admin", auth.RoleAdmin)

	rr := env.do(t, httptest.NewRequest(http.MethodPut, "/v1/files", nil), token)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("PUT /v1/files = %d, want 405", rr.Code)
	}
	if rr.Header().Get("Allow") == "" {
		t.Fatal("missing Allow header")
	}
}
