package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/asagiri/genbamon/internal/entities"
	"github.com/asagiri/genbamon/internal/services"
)

// TemplateHandler provides HTTP handlers for the template catalog.
type TemplateHandler struct {
	templates services.TemplateServiceInterface
}

// NewTemplateHandler creates a new TemplateHandler.
func NewTemplateHandler(templates services.TemplateServiceInterface) *TemplateHandler {
	return &TemplateHandler{templates: templates}
}

// RegisterRoutes registers template catalog routes.
func (h *TemplateHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/templates", h.createTemplate).Methods(http.MethodPost)
	router.HandleFunc("/templates", h.listTemplates).Methods(http.MethodGet)
	router.HandleFunc("/templates/{id}", h.getTemplate).Methods(http.MethodGet)
	router.HandleFunc("/templates/{id}", h.updateTemplate).Methods(http.MethodPatch)
	router.HandleFunc("/templates/{id}", h.deleteTemplate).Methods(http.MethodDelete)
}

type templateRequest struct {
	Name                string              `json:"name"`
	Description         string              `json:"description"`
	Scope               string              `json:"scope"`
	ToolPermissions     map[string]string   `json:"toolPermissions"`
	GranularPermissions map[string][]string `json:"granularPermissions"`
	SortOrder           *int                `json:"sortOrder"`
}

type templateUpdateRequest struct {
	Name                *string             `json:"name"`
	Description         *string             `json:"description"`
	ToolPermissions     map[string]string   `json:"toolPermissions"`
	GranularPermissions map[string][]string `json:"granularPermissions"`
	SortOrder           *int                `json:"sortOrder"`
}

type templateResponse struct {
	ID                  string              `json:"id"`
	Name                string              `json:"name"`
	Description         string              `json:"description"`
	Scope               string              `json:"scope"`
	ToolPermissions     map[string]string   `json:"toolPermissions"`
	GranularPermissions map[string][]string `json:"granularPermissions"`
	IsSystemDefault     bool                `json:"isSystemDefault"`
	IsProtected         bool                `json:"isProtected"`
	SortOrder           int                 `json:"sortOrder"`
	CreatedAt           time.Time           `json:"createdAt"`
	UpdatedAt           time.Time           `json:"updatedAt"`
}

func toTemplateResponse(t *entities.PermissionTemplate) *templateResponse {
	tools := make(map[string]string, len(t.ToolPermissions))
	for tool, level := range t.ToolPermissions {
		tools[tool] = string(level)
	}
	granular := t.GranularPermissions
	if granular == nil {
		granular = map[string][]string{}
	}
	return &templateResponse{
		ID:                  t.ID,
		Name:                t.Name,
		Description:         t.Description,
		Scope:               string(t.Scope),
		ToolPermissions:     tools,
		GranularPermissions: granular,
		IsSystemDefault:     t.IsSystemDefault,
		IsProtected:         t.IsProtected,
		SortOrder:           t.SortOrder,
		CreatedAt:           t.CreatedAt,
		UpdatedAt:           t.UpdatedAt,
	}
}

// createTemplate handles POST /templates.
func (h *TemplateHandler) createTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBadRequest(w, "%v", err)
		return
	}

	scope, err := entities.ParseTemplateScope(req.Scope)
	if err != nil {
		respondBadRequest(w, "%v", err)
		return
	}
	tools, err := normalizeToolPermissions(req.ToolPermissions)
	if err != nil {
		respondBadRequest(w, "%v", err)
		return
	}

	template, err := h.templates.CreateTemplate(r.Context(), &services.CreateTemplateInput{
		Name:                req.Name,
		Description:         req.Description,
		Scope:               scope,
		ToolPermissions:     tools,
		GranularPermissions: req.GranularPermissions,
		SortOrder:           req.SortOrder,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toTemplateResponse(template))
}

// listTemplates handles GET /templates. An optional scope query parameter
// filters to one scope; an optional name parameter looks up a single
// template by exact trimmed name.
func (h *TemplateHandler) listTemplates(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if name := query.Get("name"); name != "" {
		template, err := h.templates.GetTemplateByName(r.Context(), name)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, toTemplateResponse(template))
		return
	}

	var scope *entities.TemplateScope
	if scopeStr := query.Get("scope"); scopeStr != "" {
		parsed, err := entities.ParseTemplateScope(scopeStr)
		if err != nil {
			respondBadRequest(w, "%v", err)
			return
		}
		scope = &parsed
	}

	templates, err := h.templates.ListTemplates(r.Context(), scope)
	if err != nil {
		respondError(w, err)
		return
	}

	responses := make([]*templateResponse, 0, len(templates))
	for _, t := range templates {
		responses = append(responses, toTemplateResponse(t))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"templates": responses,
		"count":     len(responses),
	})
}

// getTemplate handles GET /templates/{id}.
func (h *TemplateHandler) getTemplate(w http.ResponseWriter, r *http.Request) {
	template, err := h.templates.GetTemplate(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toTemplateResponse(template))
}

// updateTemplate handles PATCH /templates/{id}. Absent fields keep their
// stored values.
func (h *TemplateHandler) updateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBadRequest(w, "%v", err)
		return
	}

	tools, err := normalizeToolPermissions(req.ToolPermissions)
	if err != nil {
		respondBadRequest(w, "%v", err)
		return
	}

	template, err := h.templates.UpdateTemplate(r.Context(), mux.Vars(r)["id"], &services.UpdateTemplateInput{
		Name:                req.Name,
		Description:         req.Description,
		ToolPermissions:     tools,
		GranularPermissions: req.GranularPermissions,
		SortOrder:           req.SortOrder,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toTemplateResponse(template))
}

// deleteTemplate handles DELETE /templates/{id}.
func (h *TemplateHandler) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.templates.DeleteTemplate(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
