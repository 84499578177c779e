package sticker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kodiidok/qrc/internal/config"
	"github.com/kodiidok/qrc/internal/logger"
	"github.com/kodiidok/qrc/internal/models"
)

var (
	ErrEmptyVisitorCode     = errors.New("visitorQR is required")
	ErrVisitorNotFound      = errors.New("visitor not found")
	ErrConfirmationRequired = errors.New("admin confirmation required")
	ErrAlreadyDispensed     = errors.New("sticker already dispensed to this visitor")
	ErrNotEligible          = errors.New("visitor not eligible for sticker")
	ErrDispenseInProgress   = errors.New("another dispense for this visitor is in progress")
)

type StickerDBLayer interface {
	GetVisitor(ctx context.Context, visitorQR string) (*models.Visitor, error)
	GetVisitsByVisitor(ctx context.Context, visitorQR string) ([]models.Visit, error)
	DispenseSticker(ctx context.Context, visitorQR string, minVisits int, now time.Time) (int64, error)
}

type DispenseLock interface {
	LockDispense(ctx context.Context, visitorQR, owner string) (bool, error)
	UnlockDispense(ctx context.Context, visitorQR, owner string) error
}

type EventPublisher interface {
	PublishStickerDispensed(visitorQR string, totalVisits int, dispensedAt time.Time) error
}

type StickerService struct {
	DB     StickerDBLayer
	Lock   DispenseLock
	Events EventPublisher
	Cfg    config.ExhibitionConfig
	Logger *logger.Logger
}

func NewStickerService(db StickerDBLayer, lock DispenseLock, events EventPublisher, cfg config.ExhibitionConfig, log *logger.Logger) *StickerService {
	return &StickerService{DB: db, Lock: lock, Events: events, Cfg: cfg, Logger: log}
}

// EligibilityStatus is the admin's sticker-check view.
type EligibilityStatus struct {
	VisitorQR            string              `json:"visitor_qr"`
	Eligible             bool                `json:"eligible"`
	TotalVisits          int                 `json:"total_visits"`
	RequiredVisits       int                 `json:"required_visits"`
	VisitsRemaining      int                 `json:"visits_remaining"`
	AlreadyDispensed     bool                `json:"already_dispensed"`
	StickerDispensedTime string              `json:"sticker_dispensed_time,omitempty"`
	Visits               []VisitHistoryEntry `json:"visits"`
	Message              string              `json:"message"`
}

type VisitHistoryEntry struct {
	Team string `json:"team"`
	Time string `json:"time"`
}

// CheckEligibility reads the aggregate and renders the fixed decision table:
// dispensed beats eligible beats needs-more-visits.
func (s *StickerService) CheckEligibility(ctx context.Context, visitorQR string) (*EligibilityStatus, error) {
	if visitorQR == "" {
		return nil, ErrEmptyVisitorCode
	}

	visitor, err := s.DB.GetVisitor(ctx, visitorQR)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrVisitorNotFound, visitorQR)
		}
		return nil, err
	}

	visits, err := s.DB.GetVisitsByVisitor(ctx, visitorQR)
	if err != nil {
		return nil, err
	}
	history := make([]VisitHistoryEntry, 0, len(visits))
	for _, v := range visits {
		history = append(history, VisitHistoryEntry{
			Team: v.TeamName,
			Time: v.VisitTime.Format("2006-01-02 15:04:05"),
		})
	}

	eligible := visitor.TotalVisits >= s.Cfg.MinVisitsForSticker
	status := &EligibilityStatus{
		VisitorQR:        visitorQR,
		Eligible:         eligible && !visitor.StickerDispensed,
		TotalVisits:      visitor.TotalVisits,
		RequiredVisits:   s.Cfg.MinVisitsForSticker,
		VisitsRemaining:  remaining(s.Cfg.MinVisitsForSticker, visitor.TotalVisits),
		AlreadyDispensed: visitor.StickerDispensed,
		Visits:           history,
		Message:          s.statusMessage(eligible, visitor.StickerDispensed, visitor.TotalVisits),
	}
	if !visitor.StickerDispensedTime.IsZero() {
		status.StickerDispensedTime = visitor.StickerDispensedTime.Format(time.RFC3339)
	}
	return status, nil
}

func (s *StickerService) statusMessage(eligible, alreadyDispensed bool, totalVisits int) string {
	switch {
	case alreadyDispensed:
		return "Sticker already dispensed to this visitor"
	case eligible:
		return "Visitor is eligible for sticker! Ready to dispense."
	default:
		return fmt.Sprintf("Visitor needs %d more visits to be eligible for sticker",
			s.Cfg.MinVisitsForSticker-totalVisits)
	}
}

// DispenseResult is returned on a successful dispense.
type DispenseResult struct {
	Message       string `json:"message"`
	VisitorQR     string `json:"visitor_qr"`
	TotalVisits   int    `json:"total_visits"`
	DispensedTime string `json:"dispensed_time"`
}

// Dispense marks the sticker as handed out, exactly once per visitor. The
// conditional update re-validates the dispensed flag and threshold in the
// store, so a concurrent second call sees AlreadyDispensed rather than a
// double dispense.
func (s *StickerService) Dispense(ctx context.Context, visitorQR string, adminConfirmed bool) (*DispenseResult, error) {
	if visitorQR == "" {
		return nil, ErrEmptyVisitorCode
	}
	if !adminConfirmed {
		return nil, ErrConfirmationRequired
	}

	if s.Lock != nil {
		owner := fmt.Sprintf("dispense-%d", time.Now().UnixNano())
		ok, err := s.Lock.LockDispense(ctx, visitorQR, owner)
		if err != nil {
			return nil, fmt.Errorf("dispense lock error: %w", err)
		}
		if !ok {
			return nil, ErrDispenseInProgress
		}
		defer func() {
			_ = s.Lock.UnlockDispense(ctx, visitorQR, owner)
		}()
	}

	visitor, err := s.DB.GetVisitor(ctx, visitorQR)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrVisitorNotFound, visitorQR)
		}
		return nil, err
	}
	if visitor.StickerDispensed {
		return nil, ErrAlreadyDispensed
	}
	if visitor.TotalVisits < s.Cfg.MinVisitsForSticker {
		return nil, fmt.Errorf("%w: only %d of %d visits completed",
			ErrNotEligible, visitor.TotalVisits, s.Cfg.MinVisitsForSticker)
	}

	now := time.Now().UTC()
	rows, err := s.DB.DispenseSticker(ctx, visitorQR, s.Cfg.MinVisitsForSticker, now)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		// Lost the race between the read above and the update.
		return nil, ErrAlreadyDispensed
	}

	if s.Logger != nil {
		s.Logger.LogDispense(visitorQR, fmt.Sprintf("sticker dispensed after %d visits", visitor.TotalVisits))
	}
	if s.Events != nil {
		if err := s.Events.PublishStickerDispensed(visitorQR, visitor.TotalVisits, now); err != nil && s.Logger != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("sticker event publish failed: %v", err))
		}
	}

	return &DispenseResult{
		Message:       "Sticker dispensed successfully!",
		VisitorQR:     visitorQR,
		TotalVisits:   visitor.TotalVisits,
		DispensedTime: now.Format(time.RFC3339),
	}, nil
}

func remaining(required, total int) int {
	if total >= required {
		return 0
	}
	return required - total
}
