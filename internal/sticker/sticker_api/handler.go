package sticker_api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	sticker "github.com/kodiidok/qrc/internal/sticker/service"
)

type Handler struct {
	StickerService *sticker.StickerService
}

type checkRequest struct {
	VisitorQR string `json:"visitorQR"`
}

// StickerCheck handles POST /admin/sticker-check.
func (h *Handler) StickerCheck(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.VisitorQR = strings.TrimSpace(req.VisitorQR)

	status, err := h.StickerService.CheckEligibility(r.Context(), req.VisitorQR)
	if err != nil {
		switch {
		case errors.Is(err, sticker.ErrEmptyVisitorCode):
			writeError(w, http.StatusBadRequest, "visitorQR is required")
		case errors.Is(err, sticker.ErrVisitorNotFound):
			writeJSON(w, http.StatusNotFound, map[string]interface{}{
				"visitor_qr":   req.VisitorQR,
				"eligible":     false,
				"total_visits": 0,
				"message":      "Visitor not found in database",
			})
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, status)
}

type dispenseRequest struct {
	VisitorQR    string `json:"visitorQR"`
	AdminConfirm bool   `json:"adminConfirm"`
}

// DispenseSticker handles POST /admin/dispense-sticker.
func (h *Handler) DispenseSticker(w http.ResponseWriter, r *http.Request) {
	var req dispenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.VisitorQR = strings.TrimSpace(req.VisitorQR)

	result, err := h.StickerService.Dispense(r.Context(), req.VisitorQR, req.AdminConfirm)
	if err != nil {
		switch {
		case errors.Is(err, sticker.ErrEmptyVisitorCode):
			writeError(w, http.StatusBadRequest, "visitorQR is required")
		case errors.Is(err, sticker.ErrConfirmationRequired):
			writeError(w, http.StatusBadRequest, "Admin confirmation required")
		case errors.Is(err, sticker.ErrVisitorNotFound):
			writeError(w, http.StatusNotFound, "Visitor not found")
		case errors.Is(err, sticker.ErrAlreadyDispensed):
			writeJSON(w, http.StatusConflict, map[string]interface{}{
				"error":             "Sticker already dispensed to this visitor",
				"already_dispensed": true,
			})
		case errors.Is(err, sticker.ErrNotEligible):
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error":    err.Error(),
				"eligible": false,
			})
		case errors.Is(err, sticker.ErrDispenseInProgress):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
