package api_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/micro-nova/apportal/internal/api"
	"github.com/micro-nova/apportal/internal/auth"
	"github.com/micro-nova/apportal/internal/config"
	"github.com/micro-nova/apportal/internal/controller"
	"github.com/micro-nova/apportal/internal/events"
	"github.com/micro-nova/apportal/internal/hardware"
	"github.com/micro-nova/apportal/internal/models"
	"github.com/micro-nova/apportal/internal/storage"
)

type testEnv struct {
	srv  *httptest.Server
	fs   *storage.MemFS
	mgr  *config.Manager
	hw   *hardware.Mock
	ctrl *controller.Controller
}

// newTestEnv spins up a full router over an in-memory storage root.
func newTestEnv(t *testing.T, authDir string) *testEnv {
	t.Helper()

	fs := storage.NewMemFS()
	fs.WriteFile("/index.html", []byte("<html><body>portal</body></html>"))
	fs.WriteFile("/css/site.css", []byte("body{}"))
	fs.WriteFile("/app.js.gz", []byte{0x1f, 0x8b, 0x08, 0x00})
	fs.WriteFile("/logo", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
	fs.WriteFile("/docs/index.html", []byte("<html>docs</html>"))

	mgr := config.NewManager(fs, config.DefaultFilename)
	mgr.LoadAtBoot()
	hw := hardware.NewMock()
	bus := events.NewBus()
	ctrl := controller.New(mgr, hw, nil, bus)
	ctrl.SetActionDelay(0)

	var authSvc *auth.Service
	if authDir != "" {
		var err error
		authSvc, err = auth.NewService(authDir)
		if err != nil {
			t.Fatalf("auth.NewService: %v", err)
		}
	}

	hidden := []string{mgr.Filename(), mgr.BackupFilename(), "/" + auth.FileName}
	srv := httptest.NewServer(api.NewRouter(ctrl, fs, hidden, authSvc, bus))
	srv.Client().CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	t.Cleanup(func() {
		srv.Close()
		ctrl.Wait()
		if authSvc != nil {
			authSvc.Close()
		}
	})
	return &testEnv{srv: srv, fs: fs, mgr: mgr, hw: hw, ctrl: ctrl}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := e.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("Do %s %s: %v", req.Method, req.URL.Path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, e.srv.URL+path, nil)
	if err != nil {
		t.Fatal(err)
	}
	return e.do(t, req)
}

func (e *testEnv) postForm(t *testing.T, path string, form url.Values) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, e.srv.URL+path, strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(t, req)
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(data)
}

// requireStatus fails the test if the response status doesn't match.
func requireStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("status = %d, want %d; body: %s", resp.StatusCode, expected, body(t, resp))
	}
}

func requireRedirectRoot(t *testing.T, resp *http.Response) {
	t.Helper()
	requireStatus(t, resp, http.StatusFound)
	if loc := resp.Header.Get("Location"); loc != "/" {
		t.Errorf("Location = %q, want /", loc)
	}
}

func validForm() url.Values {
	return url.Values{
		"ssid":       {"cafe"},
		"password":   {"secret123"},
		"ip_address": {"10.0.0.1"},
		"subnet":     {"255.255.255.0"},
		"gateway":    {"10.0.0.1"},
	}
}

// --- Static files ---

func TestStatic_Index(t *testing.T) {
	env := newTestEnv(t, "")
	resp := env.get(t, "/")
	requireStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if b := body(t, resp); !strings.Contains(b, "portal") {
		t.Errorf("body = %q", b)
	}
}

func TestStatic_ByExtension(t *testing.T) {
	env := newTestEnv(t, "")
	resp := env.get(t, "/css/site.css")
	requireStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/css") {
		t.Errorf("Content-Type = %q, want text/css", ct)
	}
}

func TestStatic_SniffedType(t *testing.T) {
	env := newTestEnv(t, "")
	resp := env.get(t, "/logo")
	requireStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
}

func TestStatic_DirectoryIndex(t *testing.T) {
	env := newTestEnv(t, "")
	for _, p := range []string{"/docs/", "/docs"} {
		resp := env.get(t, p)
		requireStatus(t, resp, http.StatusOK)
		if b := body(t, resp); !strings.Contains(b, "docs") {
			t.Errorf("%s: body = %q", p, b)
		}
	}
}

func TestStatic_Gzip(t *testing.T) {
	env := newTestEnv(t, "")
	req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/app.js", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	resp := env.do(t, req)
	requireStatus(t, resp, http.StatusOK)
	if enc := resp.Header.Get("Content-Encoding"); enc != "gzip" {
		t.Errorf("Content-Encoding = %q, want gzip", enc)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "javascript") {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestStatic_MissingRedirects(t *testing.T) {
	env := newTestEnv(t, "")
	requireRedirectRoot(t, env.get(t, "/generate_204"))
	requireRedirectRoot(t, env.get(t, "/hotspot-detect.html"))
}

func TestStatic_HiddenFiles(t *testing.T) {
	env := newTestEnv(t, "")
	env.postForm(t, "/settings/update", validForm())
	env.postForm(t, "/settings/update", validForm())
	if !env.fs.Exists("/settings.json.bak") {
		t.Fatal("expected a backup file to exist")
	}

	for _, p := range []string{"/settings.json", "/settings.json.bak", "/access.json", "/css/../settings.json"} {
		resp := env.get(t, p)
		if resp.StatusCode == http.StatusOK {
			t.Errorf("GET %s served a hidden file", p)
		}
	}
}

func TestStatic_MissingIndex(t *testing.T) {
	env := newTestEnv(t, "")
	if err := env.fs.Remove("/index.html"); err != nil {
		t.Fatal(err)
	}
	requireStatus(t, env.get(t, "/"), http.StatusNotFound)
}

func TestStatic_Head(t *testing.T) {
	env := newTestEnv(t, "")
	req, _ := http.NewRequest(http.MethodHead, env.srv.URL+"/css/site.css", nil)
	resp := env.do(t, req)
	requireStatus(t, resp, http.StatusOK)
}

// --- Unmatched routes ---

func TestWrongMethodRedirects(t *testing.T) {
	env := newTestEnv(t, "")
	requireRedirectRoot(t, env.get(t, "/esp8266/restart"))
	requireRedirectRoot(t, env.get(t, "/settings/update"))

	req, _ := http.NewRequest(http.MethodDelete, env.srv.URL+"/index.html", nil)
	requireRedirectRoot(t, env.do(t, req))
	if env.hw.Restarts() != 0 {
		t.Error("GET must not trigger a restart")
	}
}

// --- Device endpoints ---

func TestGetInfo(t *testing.T) {
	env := newTestEnv(t, "")
	resp := env.get(t, "/esp8266/information")
	requireStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var info map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"chip_id", "core_version", "sdk_version", "free_heap", "reset_reason", "sketch_md5"} {
		if _, ok := info[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}
}

func TestGetInfo_DriverFailure(t *testing.T) {
	env := newTestEnv(t, "")
	env.hw.SetFailInfo(true)
	resp := env.get(t, "/esp8266/information")
	requireStatus(t, resp, http.StatusInternalServerError)

	var appErr models.AppError
	if err := json.NewDecoder(resp.Body).Decode(&appErr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if appErr.Code != "INTERNAL" {
		t.Errorf("error code = %q", appErr.Code)
	}
}

func TestRestart(t *testing.T) {
	env := newTestEnv(t, "")
	requireStatus(t, env.postForm(t, "/esp8266/restart", nil), http.StatusAccepted)
	env.ctrl.Wait()
	if env.hw.Restarts() != 1 {
		t.Errorf("Restarts = %d, want 1", env.hw.Restarts())
	}
}

func TestReset(t *testing.T) {
	env := newTestEnv(t, "")
	requireStatus(t, env.postForm(t, "/esp8266/reset", nil), http.StatusAccepted)
	env.ctrl.Wait()
	if env.hw.Resets() != 1 {
		t.Errorf("Resets = %d, want 1", env.hw.Resets())
	}
}

// --- Settings ---

func TestUpdateSettings(t *testing.T) {
	env := newTestEnv(t, "")
	resp := env.postForm(t, "/settings/update", validForm())
	requireStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q", ct)
	}
	if b := body(t, resp); b != "Configuration updated" {
		t.Errorf("body = %q", b)
	}

	if env.mgr.Current().SSID != "cafe" {
		t.Error("configuration not committed")
	}
	data, err := storage.ReadFile(env.fs, "/settings.json")
	if err != nil {
		t.Fatalf("settings file: %v", err)
	}
	want := `{"ssid":"cafe","password":"secret123","ip_address":"10.0.0.1","subnet":"255.255.255.0","gateway":"10.0.0.1"}`
	if string(data) != want {
		t.Errorf("settings file = %s", data)
	}
}

func TestUpdateSettings_Multipart(t *testing.T) {
	env := newTestEnv(t, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, vs := range validForm() {
		mw.WriteField(k, vs[0])
	}
	mw.Close()

	req, _ := http.NewRequest(http.MethodPost, env.srv.URL+"/settings/update", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	requireStatus(t, env.do(t, req), http.StatusOK)
}

func TestUpdateSettings_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(url.Values)
		want   string
	}{
		{"missing ssid", func(v url.Values) { v.Del("ssid") }, "SSID parameter is required"},
		{"missing password", func(v url.Values) { v.Del("password") }, "Password parameter is required"},
		{"missing ip", func(v url.Values) { v.Del("ip_address") }, "IP Address parameter is required"},
		{"missing subnet", func(v url.Values) { v.Del("subnet") }, "Subnet parameter is required"},
		{"missing gateway", func(v url.Values) { v.Del("gateway") }, "Gateway parameter is required"},
		{"empty ssid", func(v url.Values) { v.Set("ssid", "") }, "SSID value is required"},
		{"bad ip", func(v url.Values) { v.Set("ip_address", "999.1.1.1") }, "IP Address is not valid"},
		{"bad subnet", func(v url.Values) { v.Set("subnet", "255.255.255") }, "Subnet is not valid"},
		{"bad gateway", func(v url.Values) { v.Set("gateway", "gw") }, "Gateway is not valid"},
		{"ssid not utf-8", func(v url.Values) { v.Set("ssid", "caf\xe9") }, "SSID is not valid"},
		{"presence before value", func(v url.Values) {
			v.Set("ssid", "")
			v.Del("gateway")
		}, "Gateway parameter is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "")
			form := validForm()
			tt.mutate(form)

			resp := env.postForm(t, "/settings/update", form)
			requireStatus(t, resp, http.StatusBadRequest)
			if b := body(t, resp); b != tt.want {
				t.Errorf("body = %q, want %q", b, tt.want)
			}
			if env.fs.Exists("/settings.json") {
				t.Error("settings file written on a rejected update")
			}
			if env.mgr.Current().SSID != models.DefaultSSID {
				t.Error("live configuration changed on a rejected update")
			}
		})
	}
}

func TestUpdateSettings_QueryIgnored(t *testing.T) {
	env := newTestEnv(t, "")
	q := validForm().Encode()
	req, _ := http.NewRequest(http.MethodPost, env.srv.URL+"/settings/update?"+q, nil)
	resp := env.do(t, req)
	requireStatus(t, resp, http.StatusBadRequest)
	if b := body(t, resp); b != "SSID parameter is required" {
		t.Errorf("body = %q", b)
	}
}

func TestGetSettings(t *testing.T) {
	env := newTestEnv(t, "")
	env.postForm(t, "/settings/update", validForm())

	resp := env.get(t, "/settings")
	requireStatus(t, resp, http.StatusOK)
	raw := body(t, resp)
	if strings.Contains(raw, "secret123") {
		t.Error("settings response leaks the password")
	}
	var s models.Settings
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.SSID != "cafe" || s.IPAddress != "10.0.0.1" || s.Open {
		t.Errorf("settings = %+v", s)
	}
}

func TestSettingsEvents(t *testing.T) {
	env := newTestEnv(t, "")

	resp := env.get(t, "/settings/events")
	requireStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	lines := make(chan string, 16)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if strings.HasPrefix(sc.Text(), "data: ") {
				lines <- strings.TrimPrefix(sc.Text(), "data: ")
			}
		}
		close(lines)
	}()

	next := func() models.Settings {
		t.Helper()
		select {
		case l := <-lines:
			var s models.Settings
			if err := json.Unmarshal([]byte(l), &s); err != nil {
				t.Fatalf("decode event: %v", err)
			}
			return s
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for event")
		}
		return models.Settings{}
	}

	if s := next(); s.SSID != models.DefaultSSID {
		t.Errorf("initial event SSID = %q", s.SSID)
	}
	env.postForm(t, "/settings/update", validForm())
	if s := next(); s.SSID != "cafe" {
		t.Errorf("change event SSID = %q", s.SSID)
	}
}

// --- Access keys ---

func TestAuth_ProtectsMutatingRoutes(t *testing.T) {
	dir := t.TempDir()
	data := `{"keys":[{"name":"installer","key":"let-me-in"}]}`
	if err := os.WriteFile(filepath.Join(dir, auth.FileName), []byte(data), 0600); err != nil {
		t.Fatal(err)
	}
	env := newTestEnv(t, dir)

	requireStatus(t, env.postForm(t, "/settings/update", validForm()), http.StatusUnauthorized)
	requireStatus(t, env.postForm(t, "/esp8266/restart", nil), http.StatusUnauthorized)

	requireStatus(t, env.postForm(t, "/settings/update?api-key=let-me-in", validForm()), http.StatusOK)

	req, _ := http.NewRequest(http.MethodPost, env.srv.URL+"/esp8266/reset", nil)
	req.Header.Set("X-Api-Key", "let-me-in")
	requireStatus(t, env.do(t, req), http.StatusAccepted)

	// Reads stay open.
	requireStatus(t, env.get(t, "/esp8266/information"), http.StatusOK)
	requireStatus(t, env.get(t, "/"), http.StatusOK)
}
