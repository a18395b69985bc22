package sourceserver

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/asaddevil123/Replete/internal/registry"
)

type fakeHost struct{ root string }

func (h fakeHost) ReadFile(locator string) (string, error) {
	path := strings.TrimPrefix(locator, "file://")
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (h fakeHost) IsJS(locator string) bool {
	return strings.HasSuffix(locator, ".js")
}

func (h fakeHost) Mime(locator string) (string, error) {
	if strings.HasSuffix(locator, ".js") {
		return "application/javascript", nil
	}
	if strings.HasSuffix(locator, ".png") {
		return "image/png", nil
	}
	return "", os.ErrNotExist
}

func TestServeHTTPRewritesImports(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.js")
	b := filepath.Join(dir, "b.js")
	if err := os.WriteFile(a, []byte(`import { x } from "./b.js"; x;`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte(`export const x = 1;`), 0o644); err != nil {
		t.Fatal(err)
	}

	host := fakeHost{root: dir}
	reg := registry.New(host)
	srv := &Server{Registry: reg, Host: host}

	req := httptest.NewRequest("GET", filepath.ToSlash(a), nil)
	req.Header.Set("Origin", "null")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "null" {
		t.Errorf("CORS origin = %q, want %q", got, "null")
	}
	body := rec.Body.String()
	if strings.Contains(body, `"./b.js"`) {
		t.Errorf("import specifier not rewritten: %s", body)
	}
	if !strings.Contains(body, "/v0/"+reg.Unguessable()+"/") {
		t.Errorf("rewritten specifier missing versioned prefix: %s", body)
	}
}

func TestServeHTTPUnknownMime404s(t *testing.T) {
	dir := t.TempDir()
	host := fakeHost{root: dir}
	reg := registry.New(host)
	srv := &Server{Registry: reg, Host: host}

	req := httptest.NewRequest("GET", "/missing.xyz", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != 404 {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestServeHTTPRejectsForeignToken(t *testing.T) {
	dir := t.TempDir()
	host := fakeHost{root: dir}
	reg := registry.New(host)
	srv := &Server{Registry: reg, Host: host}

	req := httptest.NewRequest("GET", "/v3/not-the-real-token/a.js", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != 404 {
		t.Errorf("status = %d, want 404 for foreign token", rec.Code)
	}
}
