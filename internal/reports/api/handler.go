package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kodiidok/qrc/internal/logger"
	"github.com/kodiidok/qrc/internal/reports"
)

type Handler struct {
	service *reports.Service
	logger  *logger.Logger
}

func NewHandler(service *reports.Service, log *logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

// RegisterRoutes mounts the reporting endpoints on an admin router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/admin/dashboard", h.GetDashboard)
	r.Get("/admin/stats", h.GetStats)
	r.Get("/admin/qr-codes", h.ListCodes)
}

// GetDashboard handles GET /admin/dashboard.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.service.GetDashboard(r.Context())
	if err != nil {
		h.logger.Error("REPORTS", "dashboard query failed: "+err.Error())
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

// GetStats handles GET /admin/stats.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.service.GetTableCounts(r.Context())
	if err != nil {
		h.logger.Error("REPORTS", "stats query failed: "+err.Error())
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// ListCodes handles GET /admin/qr-codes?page=&per_page=.
func (h *Handler) ListCodes(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	listing, err := h.service.ListCodes(r.Context(), page, perPage)
	if err != nil {
		h.logger.Error("REPORTS", "code listing failed: "+err.Error())
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
