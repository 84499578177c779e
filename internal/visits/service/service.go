package visits

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kodiidok/qrc/internal/config"
	"github.com/kodiidok/qrc/internal/logger"
	"github.com/kodiidok/qrc/internal/models"
	"github.com/kodiidok/qrc/internal/visits/db"
)

var (
	ErrEmptyVisitorCode = errors.New("visitorQR is required")
	ErrTeamNotFound     = db.ErrTeamNotFound
	ErrUnknownVisitor   = db.ErrUnknownVisitor
	ErrVisitorNotFound  = errors.New("visitor not found")
)

type VisitDBLayer interface {
	RecordVisit(ctx context.Context, visitorQR, teamRef string, allowCreate bool) (*db.VisitOutcome, error)
	GetVisitor(ctx context.Context, visitorQR string) (*models.Visitor, error)
	GetVisitsByVisitor(ctx context.Context, visitorQR string) ([]models.Visit, error)
	ListTeamNames(ctx context.Context) ([]string, error)
}

type EventPublisher interface {
	PublishVisitRecorded(visitorQR, teamName string, totalVisits int) error
}

type VisitService struct {
	DB     VisitDBLayer
	Events EventPublisher
	Cfg    config.ExhibitionConfig
	Logger *logger.Logger
}

func NewVisitService(dbLayer VisitDBLayer, events EventPublisher, cfg config.ExhibitionConfig, log *logger.Logger) *VisitService {
	return &VisitService{DB: dbLayer, Events: events, Cfg: cfg, Logger: log}
}

// Result is the outcome of a scan, duplicate or not.
type Result struct {
	Message            string `json:"message"`
	Duplicate          bool   `json:"duplicate"`
	Recorded           bool   `json:"recorded"`
	VisitorCreated     bool   `json:"visitor_created"`
	VisitID            int64  `json:"visit_id,omitempty"`
	TeamName           string `json:"team_name"`
	TotalVisits        int    `json:"total_visits"`
	VisitsRemaining    int    `json:"visits_remaining"`
	EligibleForSticker bool   `json:"eligible_for_sticker"`
}

// RecordVisit registers a (visitor, team) scan. A repeat scan of the same team
// is a defined outcome, not an error: Duplicate is set and nothing is written.
func (s *VisitService) RecordVisit(ctx context.Context, visitorQR, teamRef string) (*Result, error) {
	if visitorQR == "" {
		return nil, ErrEmptyVisitorCode
	}
	if teamRef == "" {
		return nil, ErrTeamNotFound
	}

	outcome, err := s.DB.RecordVisit(ctx, visitorQR, teamRef, s.Cfg.AllowImplicitVisitorCreation)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Duplicate:      outcome.Duplicate,
		Recorded:       outcome.Recorded,
		VisitorCreated: outcome.VisitorCreated,
		VisitID:        outcome.VisitID,
		TeamName:       outcome.TeamName,
		TotalVisits:    outcome.TotalVisits,
	}
	result.VisitsRemaining = remaining(s.Cfg.MinVisitsForSticker, outcome.TotalVisits)
	result.EligibleForSticker = outcome.TotalVisits >= s.Cfg.MinVisitsForSticker

	if outcome.Duplicate {
		result.Message = fmt.Sprintf("Visitor has already visited %s", outcome.TeamName)
		if s.Logger != nil {
			s.Logger.LogVisit(visitorQR, outcome.TeamName, "duplicate scan ignored")
		}
		return result, nil
	}

	result.Message = fmt.Sprintf("Visit to %s recorded successfully", outcome.TeamName)
	if s.Logger != nil {
		s.Logger.LogVisit(visitorQR, outcome.TeamName, fmt.Sprintf("recorded, total now %d", outcome.TotalVisits))
	}

	if s.Events != nil {
		if err := s.Events.PublishVisitRecorded(visitorQR, outcome.TeamName, outcome.TotalVisits); err != nil && s.Logger != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("visit event publish failed: %v", err))
		}
	}
	return result, nil
}

// Status is the full progress view for one visitor.
type Status struct {
	VisitorQR          string         `json:"visitor_qr"`
	Found              bool           `json:"found"`
	TotalVisits        int            `json:"total_visits"`
	RequiredVisits     int            `json:"required_visits"`
	VisitsRemaining    int            `json:"visits_remaining"`
	EligibleForSticker bool           `json:"eligible_for_sticker"`
	StickerDispensed   bool           `json:"sticker_dispensed"`
	VisitedTeams       []string       `json:"visited_teams"`
	NotVisitedTeams    []string       `json:"not_visited_teams"`
	ProgressPercentage float64        `json:"progress_percentage"`
	Visits             []VisitEntry   `json:"visits"`
}

type VisitEntry struct {
	Team string `json:"team"`
	Time string `json:"time"`
}

// VisitorStatus reports a visitor's progress, including which teams remain.
func (s *VisitService) VisitorStatus(ctx context.Context, visitorQR string) (*Status, error) {
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
	allTeams, err := s.DB.ListTeamNames(ctx)
	if err != nil {
		return nil, err
	}

	visited := make([]string, 0, len(visits))
	visitedSet := make(map[string]bool, len(visits))
	entries := make([]VisitEntry, 0, len(visits))
	for _, v := range visits {
		visited = append(visited, v.TeamName)
		visitedSet[v.TeamName] = true
		entries = append(entries, VisitEntry{Team: v.TeamName, Time: v.VisitTime.Format("2006-01-02 15:04:05")})
	}
	notVisited := make([]string, 0, len(allTeams))
	for _, t := range allTeams {
		if !visitedSet[t] {
			notVisited = append(notVisited, t)
		}
	}

	return &Status{
		VisitorQR:          visitorQR,
		Found:              true,
		TotalVisits:        visitor.TotalVisits,
		RequiredVisits:     s.Cfg.MinVisitsForSticker,
		VisitsRemaining:    remaining(s.Cfg.MinVisitsForSticker, visitor.TotalVisits),
		EligibleForSticker: visitor.TotalVisits >= s.Cfg.MinVisitsForSticker,
		StickerDispensed:   visitor.StickerDispensed,
		VisitedTeams:       visited,
		NotVisitedTeams:    notVisited,
		ProgressPercentage: float64(visitor.TotalVisits) / float64(s.Cfg.MinVisitsForSticker) * 100,
		Visits:             entries,
	}, nil
}

func remaining(required, total int) int {
	if total >= required {
		return 0
	}
	return required - total
}
