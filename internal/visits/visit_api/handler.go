package visit_api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	visits "github.com/kodiidok/qrc/internal/visits/service"
)

// CodeChecker answers whether a code exists in the active pool.
type CodeChecker interface {
	CodeExists(ctx context.Context, code string) (bool, error)
}

type Handler struct {
	VisitService *visits.VisitService
	Codes        CodeChecker
}

type scanRequest struct {
	VisitorQR string `json:"visitorQR"`
}

// TeamScan handles POST /team/{teamRef}/scan.
func (h *Handler) TeamScan(w http.ResponseWriter, r *http.Request) {
	teamRef := chi.URLParam(r, "teamRef")

	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.VisitorQR = strings.TrimSpace(req.VisitorQR)

	result, err := h.VisitService.RecordVisit(r.Context(), req.VisitorQR, teamRef)
	if err != nil {
		switch {
		case errors.Is(err, visits.ErrEmptyVisitorCode):
			writeError(w, http.StatusBadRequest, "visitorQR is required")
		case errors.Is(err, visits.ErrTeamNotFound):
			writeError(w, http.StatusBadRequest, "invalid team")
		case errors.Is(err, visits.ErrUnknownVisitor):
			writeError(w, http.StatusNotFound, "visitor QR code is not registered")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// VisitorStatus handles GET /visitor/status/{visitorQR}.
func (h *Handler) VisitorStatus(w http.ResponseWriter, r *http.Request) {
	visitorQR := chi.URLParam(r, "visitorQR")

	status, err := h.VisitService.VisitorStatus(r.Context(), visitorQR)
	if err != nil {
		if errors.Is(err, visits.ErrVisitorNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]interface{}{
				"visitor_qr": visitorQR,
				"found":      false,
				"message":    "Visitor not found",
			})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, status)
}

type checkQRRequest struct {
	QRCode string `json:"qr_code"`
	TeamID string `json:"team_id"`
}

// CheckQR handles POST /api/check-qr: verifies a code is in the active pool
// and, when a team is supplied, records the visit in the same call.
func (h *Handler) CheckQR(w http.ResponseWriter, r *http.Request) {
	var req checkQRRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.QRCode = strings.TrimSpace(req.QRCode)
	req.TeamID = strings.TrimSpace(req.TeamID)

	if req.QRCode == "" {
		writeError(w, http.StatusBadRequest, "No QR code provided")
		return
	}

	exists, err := h.Codes.CodeExists(r.Context(), req.QRCode)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := map[string]interface{}{
		"exists":  exists,
		"qr_code": req.QRCode,
	}

	if exists && req.TeamID != "" {
		result, err := h.VisitService.RecordVisit(r.Context(), req.QRCode, req.TeamID)
		if err != nil {
			if errors.Is(err, visits.ErrTeamNotFound) {
				writeError(w, http.StatusBadRequest, "invalid team")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["visit"] = result
	}

	writeJSON(w, http.StatusOK, resp)
}

type checkVisitorRequest struct {
	QRCode string `json:"qr_code"`
}

// CheckVisitor handles POST /api/check-visitor: progress plus visit log.
func (h *Handler) CheckVisitor(w http.ResponseWriter, r *http.Request) {
	var req checkVisitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.QRCode = strings.TrimSpace(req.QRCode)

	if req.QRCode == "" {
		writeError(w, http.StatusBadRequest, "No QR code provided")
		return
	}

	status, err := h.VisitService.VisitorStatus(r.Context(), req.QRCode)
	if err != nil {
		if errors.Is(err, visits.ErrVisitorNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]interface{}{
				"exists":  false,
				"message": "Visitor not found",
			})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"exists":        true,
		"enough_visits": status.EligibleForSticker,
		"total_visits":  status.TotalVisits,
		"visits":        status.Visits,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
