package qr_api

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	qrcodes "github.com/kodiidok/qrc/internal/qrcodes/service"
)

type Handler struct {
	QRService *qrcodes.QRService
}

type generateRequest struct {
	Count int `json:"count"`
}

// GenerateCodes handles POST /admin/generate-qr-codes.
func (h *Handler) GenerateCodes(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if r.Body != nil {
		// Missing or empty body means "use the default count".
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	result, err := h.QRService.GenerateBatch(r.Context(), req.Count)
	if err != nil {
		switch {
		case errors.Is(err, qrcodes.ErrBatchTooLarge),
			errors.Is(err, qrcodes.ErrInsufficientUniqueCodes):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":         fmt.Sprintf("Successfully generated %d QR codes", result.GeneratedCount),
		"generated_count": result.GeneratedCount,
		"codes":           result.Sample,
	})
}

// ResetCodes handles POST /admin/qr-codes/reset: soft-delete then reseed.
func (h *Handler) ResetCodes(w http.ResponseWriter, r *http.Request) {
	result, err := h.QRService.Reset(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":       "QR code pool reset",
		"retired_count": result.RetiredCount,
		"seeded_count":  result.SeededCount,
	})
}

// ExportCodes handles GET /admin/qr-codes/export: CSV of all active codes.
func (h *Handler) ExportCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := h.QRService.ExportActive(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="qr_codes.csv"`)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"qr_code", "qr_image_base64", "generated_time", "is_printed", "is_distributed", "notes"})
	for _, code := range codes {
		_ = cw.Write([]string{
			code.QRCode,
			code.QRImageBase64,
			code.GeneratedTime.Format("2006-01-02 15:04:05"),
			strconv.FormatBool(code.IsPrinted),
			strconv.FormatBool(code.IsDistributed),
			code.Notes,
		})
	}
	cw.Flush()
}

// GetCodeImage handles GET /admin/qr-codes/{code}/image.
func (h *Handler) GetCodeImage(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	image, err := h.QRService.Image(r.Context(), code)
	if err != nil {
		if errors.Is(err, qrcodes.ErrCodeNotFound) {
			writeError(w, http.StatusNotFound, "QR code not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"qr_code":      code,
		"image_base64": image,
	})
}

type batchFlagRequest struct {
	QRCodes []string `json:"qr_codes"`
}

// MarkPrinted handles POST /admin/qr-codes/print-batch.
func (h *Handler) MarkPrinted(w http.ResponseWriter, r *http.Request) {
	h.markBatch(w, r, "printed", h.QRService.MarkPrinted)
}

// MarkDistributed handles POST /admin/qr-codes/distribute-batch.
func (h *Handler) MarkDistributed(w http.ResponseWriter, r *http.Request) {
	h.markBatch(w, r, "distributed", h.QRService.MarkDistributed)
}

func (h *Handler) markBatch(w http.ResponseWriter, r *http.Request, verb string,
	mark func(ctx context.Context, codes []string) (int64, error)) {

	var req batchFlagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := mark(r.Context(), req.QRCodes)
	if err != nil {
		if errors.Is(err, qrcodes.ErrNoCodesProvided) {
			writeError(w, http.StatusBadRequest, "No QR codes provided")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":       fmt.Sprintf("Marked %d QR codes as %s", updated, verb),
		"updated_count": updated,
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
