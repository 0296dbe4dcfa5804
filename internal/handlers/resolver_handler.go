package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/asagiri/genbamon/internal/entities"
	"github.com/asagiri/genbamon/internal/services/resolver"
)

// ResolverHandler exposes permission resolution over HTTP.
type ResolverHandler struct {
	resolver resolver.ResolverInterface
}

// NewResolverHandler creates a new ResolverHandler.
func NewResolverHandler(r resolver.ResolverInterface) *ResolverHandler {
	return &ResolverHandler{resolver: r}
}

// RegisterRoutes registers resolution routes.
func (h *ResolverHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users/{userID}/effective-permissions", h.getEffectivePermissions).Methods(http.MethodGet)
}

type toolGrantsResponse struct {
	Tools    map[string]string   `json:"tools"`
	Granular map[string][]string `json:"granular"`
}

type projectGrantsResponse struct {
	ProjectID    string `json:"projectId"`
	AssignmentID string `json:"assignmentId"`
	TemplateID   string `json:"templateId,omitempty"`
	RoleOverride string `json:"roleOverride,omitempty"`
	toolGrantsResponse
}

type effectivePermissionsResponse struct {
	UserID       string                  `json:"userId"`
	IsOwnerAdmin bool                    `json:"isOwnerAdmin"`
	Company      toolGrantsResponse      `json:"company"`
	Projects     []projectGrantsResponse `json:"projects"`
}

func toToolGrantsResponse(g entities.ToolGrants) toolGrantsResponse {
	tools := make(map[string]string, len(g.Tools))
	for tool, level := range g.Tools {
		tools[tool] = string(level)
	}
	granular := g.Granular
	if granular == nil {
		granular = map[string][]string{}
	}
	return toolGrantsResponse{Tools: tools, Granular: granular}
}

// getEffectivePermissions handles GET /users/{userID}/effective-permissions.
// The caller-verified global role arrives in the role query parameter; the
// engine never authenticates, it only resolves.
func (h *ResolverHandler) getEffectivePermissions(w http.ResponseWriter, r *http.Request) {
	role := entities.GlobalRole(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("role"))))
	if role == "" {
		respondBadRequest(w, "role query parameter is required")
		return
	}

	view, err := h.resolver.ComputeEffectivePermissions(r.Context(), mux.Vars(r)["userID"], role)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := &effectivePermissionsResponse{
		UserID:       view.UserID,
		IsOwnerAdmin: view.IsOwnerAdmin,
		Company:      toToolGrantsResponse(view.Company),
		Projects:     make([]projectGrantsResponse, 0, len(view.Projects)),
	}
	for _, project := range view.Projects {
		resp.Projects = append(resp.Projects, projectGrantsResponse{
			ProjectID:          project.ProjectID,
			AssignmentID:       project.AssignmentID,
			TemplateID:         project.TemplateID,
			RoleOverride:       project.RoleOverride,
			toolGrantsResponse: toToolGrantsResponse(project.ToolGrants),
		})
	}
	respondJSON(w, http.StatusOK, resp)
}
