//go:build integration
// +build integration

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/refacto-hq/refacto/internal/db"
	"github.com/refacto-hq/refacto/internal/report"
	"github.com/refacto-hq/refacto/internal/testutil"
)

// newIntegrationServer builds a server against the test database. The
// schema is created by RequireDB; the store connects through the public
// constructor like production code does.
func newIntegrationServer(t *testing.T) *Server {
	t.Helper()

	testutil.RequireDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	database, err := db.New(ctx, testutil.GetTestDBURL())
	if err != nil {
		t.Skipf("skipping test: could not connect to database: %v", err)
	}
	t.Cleanup(database.Close)

	server := &Server{
		store:   db.NewStore(database),
		reports: report.NewRegistry(),
	}
	server.router = setupTestRouter(server)
	return server
}

func createTestProject(t *testing.T, server *Server, url string) *ProjectResponse {
	t.Helper()

	body := bytes.NewBufferString(`{"url": "` + url + `"}`)
	req := httptest.NewRequest("POST", "/api/v1/projects/", body)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("createProject returned status %d: %s", rr.Code, rr.Body.String())
	}

	var resp ProjectResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return &resp
}

func TestIntegration_CreateProject(t *testing.T) {
	server := newIntegrationServer(t)

	resp := createTestProject(t, server, "https://github.com/acme/widgets")

	if resp.Project == nil {
		t.Fatal("expected project in response")
	}
	if resp.Project.ID == uuid.Nil {
		t.Error("expected project ID to be set")
	}
	if resp.Project.Name != "widgets" {
		t.Errorf("Name = %q, want widgets (derived from URL)", resp.Project.Name)
	}
	if resp.Project.Status != "pending" {
		t.Errorf("Status = %q, want pending", resp.Project.Status)
	}
}

func TestIntegration_CreateProject_Duplicate(t *testing.T) {
	server := newIntegrationServer(t)

	createTestProject(t, server, "https://github.com/acme/gadgets")

	body := bytes.NewBufferString(`{"url": "https://github.com/acme/gadgets"}`)
	req := httptest.NewRequest("POST", "/api/v1/projects/", body)
	rr := httptest.NewRecorder()

	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("duplicate create returned status %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestIntegration_CreateProject_InvalidURL(t *testing.T) {
	server := newIntegrationServer(t)

	body := bytes.NewBufferString(`{"url": "not a repository"}`)
	req := httptest.NewRequest("POST", "/api/v1/projects/", body)
	rr := httptest.NewRecorder()

	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("invalid URL returned status %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestIntegration_GetProject(t *testing.T) {
	server := newIntegrationServer(t)

	created := createTestProject(t, server, "https://github.com/acme/sprockets")

	req := httptest.NewRequest("GET", "/api/v1/projects/"+created.Project.ID.String(), nil)
	rr := httptest.NewRecorder()

	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("getProject returned status %d", rr.Code)
	}

	var fetched db.Project
	if err := json.Unmarshal(rr.Body.Bytes(), &fetched); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if fetched.ID != created.Project.ID {
		t.Error("project ID mismatch")
	}
	if fetched.URL != "https://github.com/acme/sprockets" {
		t.Errorf("URL = %q", fetched.URL)
	}
}

func TestIntegration_GetProject_NotFound(t *testing.T) {
	server := newIntegrationServer(t)

	req := httptest.NewRequest("GET", "/api/v1/projects/"+uuid.New().String(), nil)
	rr := httptest.NewRecorder()

	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestIntegration_ListProjects(t *testing.T) {
	server := newIntegrationServer(t)

	createTestProject(t, server, "https://github.com/acme/one")
	createTestProject(t, server, "https://github.com/acme/two")

	req := httptest.NewRequest("GET", "/api/v1/projects/", nil)
	rr := httptest.NewRecorder()

	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("listProjects returned status %d", rr.Code)
	}

	var projects []*db.Project
	if err := json.Unmarshal(rr.Body.Bytes(), &projects); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if len(projects) != 2 {
		t.Errorf("expected 2 projects, got %d", len(projects))
	}
}

func TestIntegration_DeleteProject(t *testing.T) {
	server := newIntegrationServer(t)

	created := createTestProject(t, server, "https://github.com/acme/ephemeral")

	req := httptest.NewRequest("DELETE", "/api/v1/projects/"+created.Project.ID.String(), nil)
	rr := httptest.NewRecorder()

	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("deleteProject returned status %d, want %d", rr.Code, http.StatusNoContent)
	}

	req = httptest.NewRequest("GET", "/api/v1/projects/"+created.Project.ID.String(), nil)
	rr = httptest.NewRecorder()

	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("deleted project still found, status = %d", rr.Code)
	}
}

func TestIntegration_ListProjectIssues_Empty(t *testing.T) {
	server := newIntegrationServer(t)

	created := createTestProject(t, server, "https://github.com/acme/clean")

	req := httptest.NewRequest("GET", "/api/v1/projects/"+created.Project.ID.String()+"/issues", nil)
	rr := httptest.NewRecorder()

	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("listProjectIssues returned status %d", rr.Code)
	}
}

func TestIntegration_GetIssue_NotFound(t *testing.T) {
	server := newIntegrationServer(t)

	req := httptest.NewRequest("GET", "/api/v1/issues/"+uuid.New().String(), nil)
	rr := httptest.NewRecorder()

	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestIntegration_GetSuggestion_NotFound(t *testing.T) {
	server := newIntegrationServer(t)

	req := httptest.NewRequest("GET", "/api/v1/suggestions/"+uuid.New().String(), nil)
	rr := httptest.NewRecorder()

	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestIntegration_ProjectReport_JSON(t *testing.T) {
	server := newIntegrationServer(t)

	created := createTestProject(t, server, "https://github.com/acme/reported")

	req := httptest.NewRequest("GET", "/api/v1/projects/"+created.Project.ID.String()+"/report", nil)
	rr := httptest.NewRecorder()

	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("projectReport returned status %d: %s", rr.Code, rr.Body.String())
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &doc); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
}

func TestIntegration_ProjectReport_SARIF(t *testing.T) {
	server := newIntegrationServer(t)

	created := createTestProject(t, server, "https://github.com/acme/sarif-out")

	req := httptest.NewRequest("GET", "/api/v1/projects/"+created.Project.ID.String()+"/report?format=sarif", nil)
	rr := httptest.NewRecorder()

	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("projectReport returned status %d: %s", rr.Code, rr.Body.String())
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &doc); err != nil {
		t.Fatalf("SARIF report is not valid JSON: %v", err)
	}
	if doc["version"] != "2.1.0" {
		t.Errorf("SARIF version = %v, want 2.1.0", doc["version"])
	}
}

func TestIntegration_ProjectReport_UnknownFormat(t *testing.T) {
	server := newIntegrationServer(t)

	created := createTestProject(t, server, "https://github.com/acme/misformat")

	req := httptest.NewRequest("GET", "/api/v1/projects/"+created.Project.ID.String()+"/report?format=xml", nil)
	rr := httptest.NewRecorder()

	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}
