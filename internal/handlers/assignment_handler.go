package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/asagiri/genbamon/internal/entities"
	"github.com/asagiri/genbamon/internal/services"
)

// AssignmentHandler provides HTTP handlers for company and project
// assignments.
type AssignmentHandler struct {
	assignments services.AssignmentServiceInterface
}

// NewAssignmentHandler creates a new AssignmentHandler.
func NewAssignmentHandler(assignments services.AssignmentServiceInterface) *AssignmentHandler {
	return &AssignmentHandler{assignments: assignments}
}

// RegisterRoutes registers assignment routes.
func (h *AssignmentHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users/{userID}/company-template", h.setCompanyTemplate).Methods(http.MethodPut)
	router.HandleFunc("/users/{userID}/company-template", h.getCompanyTemplate).Methods(http.MethodGet)
	router.HandleFunc("/users/{userID}/assignments", h.listUserAssignments).Methods(http.MethodGet)

	router.HandleFunc("/projects/{projectID}/members", h.addMember).Methods(http.MethodPost)
	router.HandleFunc("/projects/{projectID}/members", h.listMembers).Methods(http.MethodGet)
	router.HandleFunc("/projects/{projectID}/members/{userID}", h.removeMember).Methods(http.MethodDelete)
	router.HandleFunc("/projects/{projectID}/members/{userID}/template", h.assignTemplate).Methods(http.MethodPut)

	router.HandleFunc("/assignments/{assignmentID}/template", h.clearTemplate).Methods(http.MethodDelete)
}

type setTemplateRequest struct {
	TemplateID string `json:"templateId"`
}

type addMemberRequest struct {
	UserID       string `json:"userId"`
	RoleOverride string `json:"roleOverride"`
}

type companyAssignmentResponse struct {
	UserID            string    `json:"userId"`
	CompanyTemplateID string    `json:"companyTemplateId"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

type projectAssignmentResponse struct {
	ID                string    `json:"id"`
	UserID            string    `json:"userId"`
	ProjectID         string    `json:"projectId"`
	ProjectTemplateID string    `json:"projectTemplateId,omitempty"`
	RoleOverride      string    `json:"roleOverride,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func toProjectAssignmentResponse(a *entities.ProjectAssignment) *projectAssignmentResponse {
	return &projectAssignmentResponse{
		ID:                a.ID,
		UserID:            a.UserID,
		ProjectID:         a.ProjectID,
		ProjectTemplateID: a.ProjectTemplateID,
		RoleOverride:      a.RoleOverride,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

// setCompanyTemplate handles PUT /users/{userID}/company-template.
func (h *AssignmentHandler) setCompanyTemplate(w http.ResponseWriter, r *http.Request) {
	var req setTemplateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBadRequest(w, "%v", err)
		return
	}
	if req.TemplateID == "" {
		respondBadRequest(w, "templateId is required")
		return
	}

	if err := h.assignments.SetCompanyTemplate(r.Context(), mux.Vars(r)["userID"], req.TemplateID); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// getCompanyTemplate handles GET /users/{userID}/company-template. A user
// without a company template is a defined state, not an error; it returns
// 404 here only because there is no row to render.
func (h *AssignmentHandler) getCompanyTemplate(w http.ResponseWriter, r *http.Request) {
	assignment, err := h.assignments.GetCompanyAssignment(r.Context(), mux.Vars(r)["userID"])
	if err != nil {
		respondError(w, err)
		return
	}
	if assignment == nil {
		respondJSON(w, http.StatusNotFound, errorBody{Error: "no company template assigned"})
		return
	}
	respondJSON(w, http.StatusOK, &companyAssignmentResponse{
		UserID:            assignment.UserID,
		CompanyTemplateID: assignment.CompanyTemplateID,
		CreatedAt:         assignment.CreatedAt,
		UpdatedAt:         assignment.UpdatedAt,
	})
}

// listUserAssignments handles GET /users/{userID}/assignments.
func (h *AssignmentHandler) listUserAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := h.assignments.ListProjectAssignments(r.Context(), mux.Vars(r)["userID"])
	if err != nil {
		respondError(w, err)
		return
	}
	h.respondAssignmentList(w, assignments)
}

// addMember handles POST /projects/{projectID}/members.
func (h *AssignmentHandler) addMember(w http.ResponseWriter, r *http.Request) {
	var req addMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBadRequest(w, "%v", err)
		return
	}
	if req.UserID == "" {
		respondBadRequest(w, "userId is required")
		return
	}

	assignment, err := h.assignments.AddProjectMember(r.Context(), req.UserID, mux.Vars(r)["projectID"], req.RoleOverride)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toProjectAssignmentResponse(assignment))
}

// listMembers handles GET /projects/{projectID}/members.
func (h *AssignmentHandler) listMembers(w http.ResponseWriter, r *http.Request) {
	assignments, err := h.assignments.ListProjectMembers(r.Context(), mux.Vars(r)["projectID"])
	if err != nil {
		respondError(w, err)
		return
	}
	h.respondAssignmentList(w, assignments)
}

// removeMember handles DELETE /projects/{projectID}/members/{userID}.
func (h *AssignmentHandler) removeMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.assignments.RemoveProjectMember(r.Context(), vars["userID"], vars["projectID"]); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// assignTemplate handles PUT /projects/{projectID}/members/{userID}/template.
func (h *AssignmentHandler) assignTemplate(w http.ResponseWriter, r *http.Request) {
	var req setTemplateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBadRequest(w, "%v", err)
		return
	}
	if req.TemplateID == "" {
		respondBadRequest(w, "templateId is required")
		return
	}

	vars := mux.Vars(r)
	if err := h.assignments.AssignProjectTemplate(r.Context(), vars["userID"], vars["projectID"], req.TemplateID); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// clearTemplate handles DELETE /assignments/{assignmentID}/template. The
// membership row survives; only the template reference is released.
func (h *AssignmentHandler) clearTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.assignments.ClearProjectTemplate(r.Context(), mux.Vars(r)["assignmentID"]); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AssignmentHandler) respondAssignmentList(w http.ResponseWriter, assignments []*entities.ProjectAssignment) {
	responses := make([]*projectAssignmentResponse, 0, len(assignments))
	for _, a := range assignments {
		responses = append(responses, toProjectAssignmentResponse(a))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"assignments": responses,
		"count":       len(responses),
	})
}
