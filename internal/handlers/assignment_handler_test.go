package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gorilla/mux"

	"github.com/asagiri/genbamon/internal/entities"
	"github.com/asagiri/genbamon/internal/repositories/memory"
	"github.com/asagiri/genbamon/internal/services"
)

type assignmentFixture struct {
	store  *memory.Store
	router *mux.Router

	companyTemplateID string
	projectTemplateID string
}

func newAssignmentFixture(t *testing.T) *assignmentFixture {
	t.Helper()
	store := memory.NewStore()

	router := mux.NewRouter()
	NewAssignmentHandler(services.NewAssignmentService(store, store)).RegisterRoutes(router)

	templateSvc := services.NewTemplateService(store, testCatalog())
	company, err := templateSvc.CreateTemplate(t.Context(), &services.CreateTemplateInput{
		Name:  "Office Staff",
		Scope: entities.ScopeCompany,
	})
	if err != nil {
		t.Fatalf("failed to seed company template: %v", err)
	}
	project, err := templateSvc.CreateTemplate(t.Context(), &services.CreateTemplateInput{
		Name:  "Foreman",
		Scope: entities.ScopeProject,
	})
	if err != nil {
		t.Fatalf("failed to seed project template: %v", err)
	}

	return &assignmentFixture{
		store:             store,
		router:            router,
		companyTemplateID: company.ID,
		projectTemplateID: project.ID,
	}
}

func TestAssignmentHandler_CompanyTemplate(t *testing.T) {
	f := newAssignmentFixture(t)

	rr := doJSON(t, f.router, http.MethodGet, "/users/user-1/company-template", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before assignment, got %d", rr.Code)
	}

	rr = doJSON(t, f.router, http.MethodPut, "/users/user-1/company-template", map[string]interface{}{
		"templateId": f.companyTemplateID,
	})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, f.router, http.MethodGet, "/users/user-1/company-template", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp companyAssignmentResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.CompanyTemplateID != f.companyTemplateID {
		t.Errorf("unexpected template id: %s", resp.CompanyTemplateID)
	}
}

func TestAssignmentHandler_CompanyTemplateScopeMismatch(t *testing.T) {
	f := newAssignmentFixture(t)

	rr := doJSON(t, f.router, http.MethodPut, "/users/user-1/company-template", map[string]interface{}{
		"templateId": f.projectTemplateID,
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for scope mismatch, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestAssignmentHandler_MemberLifecycle(t *testing.T) {
	f := newAssignmentFixture(t)

	rr := doJSON(t, f.router, http.MethodPost, "/projects/proj-1/members", map[string]interface{}{
		"userId":       "user-1",
		"roleOverride": "Foreman",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var member projectAssignmentResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &member); err != nil {
		t.Fatalf("failed to decode member: %v", err)
	}
	if member.ID == "" || member.ProjectID != "proj-1" || member.RoleOverride != "Foreman" {
		t.Errorf("unexpected member: %+v", member)
	}
	if member.ProjectTemplateID != "" {
		t.Errorf("new member should have no template, got %s", member.ProjectTemplateID)
	}

	// Duplicate membership is a conflict.
	rr = doJSON(t, f.router, http.MethodPost, "/projects/proj-1/members", map[string]interface{}{
		"userId": "user-1",
	})
	if rr.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate membership, got %d", rr.Code)
	}

	// Attach a template, then clear it. Membership survives clearing.
	rr = doJSON(t, f.router, http.MethodPut, "/projects/proj-1/members/user-1/template", map[string]interface{}{
		"templateId": f.projectTemplateID,
	})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("assign template failed: %d: %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, f.router, http.MethodDelete, "/assignments/"+member.ID+"/template", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("clear template failed: %d", rr.Code)
	}

	rr = doJSON(t, f.router, http.MethodGet, "/projects/proj-1/members", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list members failed: %d", rr.Code)
	}
	var listResp struct {
		Assignments []projectAssignmentResponse `json:"assignments"`
		Count       int                         `json:"count"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if listResp.Count != 1 {
		t.Fatalf("expected membership to survive template clear, got %d members", listResp.Count)
	}
	if listResp.Assignments[0].ProjectTemplateID != "" {
		t.Errorf("template reference should be cleared, got %s", listResp.Assignments[0].ProjectTemplateID)
	}

	rr = doJSON(t, f.router, http.MethodDelete, "/projects/proj-1/members/user-1", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("remove member failed: %d", rr.Code)
	}

	rr = doJSON(t, f.router, http.MethodGet, "/users/user-1/assignments", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list assignments failed: %d", rr.Code)
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if listResp.Count != 0 {
		t.Errorf("expected no assignments after removal, got %d", listResp.Count)
	}
}

func TestAssignmentHandler_AssignTemplateRequiresMembership(t *testing.T) {
	f := newAssignmentFixture(t)

	rr := doJSON(t, f.router, http.MethodPut, "/projects/proj-9/members/user-9/template", map[string]interface{}{
		"templateId": f.projectTemplateID,
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-member, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestAssignmentHandler_MissingTemplateID(t *testing.T) {
	f := newAssignmentFixture(t)

	rr := doJSON(t, f.router, http.MethodPut, "/users/user-1/company-template", map[string]interface{}{})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing templateId, got %d", rr.Code)
	}
}

func TestAssignmentHandler_UnknownTemplateNotFound(t *testing.T) {
	f := newAssignmentFixture(t)

	rr := doJSON(t, f.router, http.MethodPut, "/users/user-1/company-template", map[string]interface{}{
		"templateId": "no-such-template",
	})
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown template, got %d", rr.Code)
	}
}
