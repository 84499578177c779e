package team_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/kodiidok/qrc/internal/teams"
	"github.com/kodiidok/qrc/internal/utils"
)

type Handler struct {
	TeamService *teams.Service
}

// ImportTeams handles POST /admin/teams/import with a CSV request body.
func (h *Handler) ImportTeams(w http.ResponseWriter, r *http.Request) {
	result, err := h.TeamService.ImportCSV(r.Context(), r.Body)
	if err != nil {
		if errors.Is(err, teams.ErrMissingTeamName) {
			writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Import failed", err.Error()))
			return
		}
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Import failed", err.Error()))
		return
	}
	message := fmt.Sprintf("Imported %d teams, updated %d", result.Imported, result.Updated)
	writeJSON(w, http.StatusOK, utils.SuccessResponse(message, result))
}

// ListTeams handles GET /admin/teams.
func (h *Handler) ListTeams(w http.ResponseWriter, r *http.Request) {
	all, err := h.TeamService.List(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Listing failed", err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse(fmt.Sprintf("%d teams", len(all)), map[string]interface{}{"teams": all}))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
