package qrcodes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kodiidok/qrc/internal/config"
	"github.com/kodiidok/qrc/internal/logger"
	"github.com/kodiidok/qrc/internal/models"
	"github.com/kodiidok/qrc/internal/utils"
)

var (
	ErrBatchTooLarge           = errors.New("requested batch exceeds the configured maximum")
	ErrInsufficientUniqueCodes = errors.New("unique code generation exhausted its attempt budget")
	ErrCodeNotFound            = errors.New("QR code not found")
	ErrNoCodesProvided         = errors.New("no QR codes provided")
)

type QRDBLayer interface {
	ActiveCodes(ctx context.Context) ([]string, error)
	InsertBatch(ctx context.Context, codes []models.QRCode, visitors []models.Visitor) error
	SoftDeleteActive(ctx context.Context, now time.Time) (int64, error)
	ExportActive(ctx context.Context) ([]models.QRCode, error)
	GetByCode(ctx context.Context, code string) (*models.QRCode, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	MarkPrinted(ctx context.Context, codes []string) (int64, error)
	MarkDistributed(ctx context.Context, codes []string) (int64, error)
}

type ImageEncoder interface {
	EncodeBase64(code string) (string, error)
}

type QRService struct {
	DB      QRDBLayer
	Encoder ImageEncoder
	Cfg     config.ExhibitionConfig
	Logger  *logger.Logger
}

func NewQRService(db QRDBLayer, encoder ImageEncoder, cfg config.ExhibitionConfig, log *logger.Logger) *QRService {
	return &QRService{DB: db, Encoder: encoder, Cfg: cfg, Logger: log}
}

// BatchResult summarizes a completed generation run.
type BatchResult struct {
	GeneratedCount int      `json:"generated_count"`
	Sample         []string `json:"codes"`
}

// GenerateBatch creates count random codes guaranteed not to collide with any
// active code, renders each to an image, and persists every QRCode together
// with its zero-visit Visitor row in a single transaction. On any failure
// nothing is persisted.
func (s *QRService) GenerateBatch(ctx context.Context, count int) (*BatchResult, error) {
	if count <= 0 {
		count = s.Cfg.DefaultQRCodeCount
	}
	if count > s.Cfg.MaxQRCodesPerBatch {
		return nil, fmt.Errorf("%w: requested %d, maximum %d", ErrBatchTooLarge, count, s.Cfg.MaxQRCodesPerBatch)
	}

	existing, err := s.DB.ActiveCodes(ctx)
	if err != nil {
		return nil, err
	}
	taken := make(map[string]bool, len(existing)+count)
	for _, c := range existing {
		taken[c] = true
	}

	generated := make([]string, 0, count)
	maxAttempts := count * 3
	for attempts := 0; len(generated) < count && attempts < maxAttempts; attempts++ {
		code := utils.GenerateVisitorCode()
		if taken[code] {
			continue
		}
		taken[code] = true
		generated = append(generated, code)
	}
	if len(generated) < count {
		return nil, fmt.Errorf("%w: produced %d of %d", ErrInsufficientUniqueCodes, len(generated), count)
	}

	if err := s.persistCodes(ctx, generated); err != nil {
		return nil, err
	}

	if s.Logger != nil {
		s.Logger.Info("QR", fmt.Sprintf("generated %d codes", len(generated)))
	}

	sample := generated
	if len(sample) > 10 {
		sample = sample[:10]
	}
	return &BatchResult{GeneratedCount: len(generated), Sample: sample}, nil
}

// Seed populates the pool with sequentially-labeled codes (QR_0001...).
func (s *QRService) Seed(ctx context.Context, count int) (int, error) {
	if count <= 0 {
		count = s.Cfg.DefaultQRCodeCount
	}
	if count > s.Cfg.MaxQRCodesPerBatch {
		return 0, fmt.Errorf("%w: requested %d, maximum %d", ErrBatchTooLarge, count, s.Cfg.MaxQRCodesPerBatch)
	}

	codes := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		codes = append(codes, utils.SeedLabel(i))
	}
	if err := s.persistCodes(ctx, codes); err != nil {
		return 0, err
	}
	if s.Logger != nil {
		s.Logger.Info("QR", fmt.Sprintf("seeded %d codes", count))
	}
	return count, nil
}

func (s *QRService) persistCodes(ctx context.Context, codes []string) error {
	now := time.Now().UTC()
	codeRows := make([]models.QRCode, 0, len(codes))
	visitorRows := make([]models.Visitor, 0, len(codes))
	for _, code := range codes {
		image, err := s.Encoder.EncodeBase64(code)
		if err != nil {
			return fmt.Errorf("failed to render QR image for %s: %w", code, err)
		}
		codeRows = append(codeRows, models.QRCode{
			QRCode:        code,
			QRImageBase64: image,
			GeneratedTime: now,
		})
		visitorRows = append(visitorRows, models.Visitor{
			VisitorQR:     code,
			QRCodeImage:   image,
			GeneratedTime: now,
			IsActive:      true,
		})
	}
	return s.DB.InsertBatch(ctx, codeRows, visitorRows)
}

// ResetResult reports both phases of a reset.
type ResetResult struct {
	RetiredCount int64 `json:"retired_count"`
	SeededCount  int   `json:"seeded_count"`
}

// Reset retires the whole active pool and reseeds it. Phase 1 (soft delete)
// commits before phase 2 starts; the reseed relies on the code and visitor
// namespaces both being clear of plain names.
func (s *QRService) Reset(ctx context.Context) (*ResetResult, error) {
	retired, err := s.DB.SoftDeleteActive(ctx, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("QR", fmt.Sprintf("retired %d active codes", retired))
	}

	seeded, err := s.Seed(ctx, s.Cfg.DefaultQRCodeCount)
	if err != nil {
		return nil, err
	}
	return &ResetResult{RetiredCount: retired, SeededCount: seeded}, nil
}

// ExportActive returns all active codes in insertion order.
func (s *QRService) ExportActive(ctx context.Context) ([]models.QRCode, error) {
	return s.DB.ExportActive(ctx)
}

// Image fetches the stored base64 PNG for one code.
func (s *QRService) Image(ctx context.Context, code string) (string, error) {
	qr, err := s.DB.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: %s", ErrCodeNotFound, code)
		}
		return "", err
	}
	return qr.QRImageBase64, nil
}

// CodeExists reports whether a code is in the active pool.
func (s *QRService) CodeExists(ctx context.Context, code string) (bool, error) {
	return s.DB.CodeExists(ctx, code)
}

// MarkPrinted flags codes as printed; unknown codes are not an error.
func (s *QRService) MarkPrinted(ctx context.Context, codes []string) (int64, error) {
	if len(codes) == 0 {
		return 0, ErrNoCodesProvided
	}
	return s.DB.MarkPrinted(ctx, codes)
}

// MarkDistributed flags codes as handed out; unknown codes are not an error.
func (s *QRService) MarkDistributed(ctx context.Context, codes []string) (int64, error) {
	if len(codes) == 0 {
		return 0, ErrNoCodesProvided
	}
	return s.DB.MarkDistributed(ctx, codes)
}
