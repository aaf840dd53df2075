package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newTestRouter(t *testing.T) (*gin.Engine, *API) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	a := New(Config{
		WorkspaceRoot: t.TempDir(),
		CacheBackend:  "local",
		BuildWorkers:  1,
		DevCache:      true,
	})
	t.Cleanup(a.Shutdown)
	router := gin.New()
	a.RegisterRoutes(router)
	return router, a
}

func TestHealthAndVersion(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("healthz: got %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/version", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("version: got %d", w.Code)
	}
}

func TestCreateAndFetchPanel(t *testing.T) {
	router, _ := newTestRouter(t)

	body, _ := json.Marshal(map[string]interface{}{
		"title":    "Editor",
		"snapshot": map[string]string{"source": "panels/editor", "type": "editor"},
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/workspaces/ws1/panels", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: got %d body %s", w.Code, w.Body.String())
	}

	var created map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	id, _ := created["ID"].(string)
	if id == "" {
		t.Fatalf("expected an ID field in response, got %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/workspaces/ws1/panels/"+id, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("get: got %d body %s", w.Code, w.Body.String())
	}
}

func TestTreeRouteReturnsNestedForest(t *testing.T) {
	router, _ := newTestRouter(t)

	body, _ := json.Marshal(map[string]interface{}{
		"title":    "Editor",
		"snapshot": map[string]string{"source": "panels/editor", "type": "editor"},
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/workspaces/ws1/panels", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: got %d body %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/workspaces/ws1/panels/tree", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("tree: got %d body %s", w.Code, w.Body.String())
	}

	var forest []map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &forest); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(forest) != 1 {
		t.Fatalf("expected one root in the forest, got %d", len(forest))
	}
}

func TestAuthRequiredRejectsMissingToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a := New(Config{WorkspaceRoot: t.TempDir(), AuthToken: "secret", DevCache: true})
	defer a.Shutdown()
	router := gin.New()
	a.RegisterRoutes(router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/workspaces/ws1/panels", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/workspaces/ws1/panels", nil)
	req.Header.Set("Authorization", "Bearer secret")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d", w.Code)
	}
}

func TestNSParseAndBuildRoundTrip(t *testing.T) {
	router, _ := newTestRouter(t)

	body, _ := json.Marshal(map[string]string{"url": "ns:///panels/editor"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/ns/parse", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("parse: got %d body %s", w.Code, w.Body.String())
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &parsed); err != nil {
		t.Fatalf("unmarshal parse: %v", err)
	}
	body, _ = json.Marshal(parsed)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/ns/build", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("build: got %d body %s", w.Code, w.Body.String())
	}
	var built map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &built); err != nil {
		t.Fatalf("unmarshal build: %v", err)
	}
	if built["url"] != "ns:///panels/editor" {
		t.Errorf("url = %q, want %q", built["url"], "ns:///panels/editor")
	}
}
