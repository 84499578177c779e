package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/kodiidok/qrc/internal/config"
	"github.com/kodiidok/qrc/internal/models"
)

// Service handles read-only aggregation over the shared store.
type Service struct {
	db  *bun.DB
	cfg config.ExhibitionConfig
}

func NewService(db *bun.DB, cfg config.ExhibitionConfig) *Service {
	return &Service{db: db, cfg: cfg}
}

// DashboardSummary is the headline block of the admin dashboard.
type DashboardSummary struct {
	TotalQRCodes      int    `json:"total_qr_codes"`
	TotalVisitors     int    `json:"total_visitors"`
	ActiveVisitors    int    `json:"active_visitors"`
	EligibleVisitors  int    `json:"eligible_visitors"`
	StickersDispensed int    `json:"stickers_dispensed"`
	TotalVisits       int    `json:"total_visits"`
	CompletionRate    string `json:"completion_rate"`
}

type TeamStat struct {
	Team   string `json:"team"`
	Visits int    `json:"visits"`
}

type CompletionStat struct {
	Visits   int `json:"visits"`
	Visitors int `json:"visitors"`
}

type Dashboard struct {
	Summary         DashboardSummary `json:"summary"`
	TeamStats       []TeamStat       `json:"team_stats"`
	CompletionStats []CompletionStat `json:"completion_stats"`
}

// GetDashboard aggregates the counts the admin dashboard shows.
func (s *Service) GetDashboard(ctx context.Context) (*Dashboard, error) {
	totalCodes, err := s.db.NewSelect().Model((*models.QRCode)(nil)).Count(ctx)
	if err != nil {
		return nil, err
	}
	totalVisitors, err := s.db.NewSelect().Model((*models.Visitor)(nil)).Count(ctx)
	if err != nil {
		return nil, err
	}
	activeVisitors, err := s.db.NewSelect().
		Model((*models.Visitor)(nil)).
		Where("total_visits > 0").
		Count(ctx)
	if err != nil {
		return nil, err
	}
	eligibleVisitors, err := s.db.NewSelect().
		Model((*models.Visitor)(nil)).
		Where("total_visits >= ?", s.cfg.MinVisitsForSticker).
		Where("sticker_dispensed = FALSE").
		Count(ctx)
	if err != nil {
		return nil, err
	}
	dispensed, err := s.db.NewSelect().
		Model((*models.Visitor)(nil)).
		Where("sticker_dispensed = TRUE").
		Count(ctx)
	if err != nil {
		return nil, err
	}
	totalVisits, err := s.db.NewSelect().Model((*models.Visit)(nil)).Count(ctx)
	if err != nil {
		return nil, err
	}

	completionRate := "0%"
	if totalVisitors > 0 {
		completed := eligibleVisitors + dispensed
		completionRate = fmt.Sprintf("%.1f%%", float64(completed)/float64(totalVisitors)*100)
	}

	teamStats, err := s.teamStats(ctx)
	if err != nil {
		return nil, err
	}
	completionStats, err := s.completionStats(ctx)
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		Summary: DashboardSummary{
			TotalQRCodes:      totalCodes,
			TotalVisitors:     totalVisitors,
			ActiveVisitors:    activeVisitors,
			EligibleVisitors:  eligibleVisitors,
			StickersDispensed: dispensed,
			TotalVisits:       totalVisits,
			CompletionRate:    completionRate,
		},
		TeamStats:       teamStats,
		CompletionStats: completionStats,
	}, nil
}

func (s *Service) teamStats(ctx context.Context) ([]TeamStat, error) {
	type row struct {
		TeamName   string `bun:"team_name"`
		VisitCount int    `bun:"visit_count"`
	}
	var rows []row
	err := s.db.NewRaw(`
		SELECT team_name, COUNT(*) AS visit_count
		FROM visitor_visits
		GROUP BY team_name
		ORDER BY visit_count DESC
	`).Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	stats := make([]TeamStat, 0, len(rows))
	for _, r := range rows {
		stats = append(stats, TeamStat{Team: r.TeamName, Visits: r.VisitCount})
	}
	return stats, nil
}

func (s *Service) completionStats(ctx context.Context) ([]CompletionStat, error) {
	type row struct {
		TotalVisits  int `bun:"total_visits"`
		VisitorCount int `bun:"visitor_count"`
	}
	var rows []row
	err := s.db.NewRaw(`
		SELECT total_visits, COUNT(*) AS visitor_count
		FROM visitors
		WHERE total_visits > 0
		GROUP BY total_visits
		ORDER BY total_visits DESC
	`).Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	stats := make([]CompletionStat, 0, len(rows))
	for _, r := range rows {
		stats = append(stats, CompletionStat{Visits: r.TotalVisits, Visitors: r.VisitorCount})
	}
	return stats, nil
}

// CodeListEntry is one row of the paginated code listing, joined with the
// code's visitor aggregate. A code with no aggregate reports zero visits.
type CodeListEntry struct {
	ID               int64  `json:"id"`
	QRCode           string `json:"qr_code"`
	GeneratedTime    string `json:"generated_time"`
	IsPrinted        bool   `json:"is_printed"`
	IsDistributed    bool   `json:"is_distributed"`
	TotalVisits      int    `json:"total_visits"`
	StickerDispensed bool   `json:"sticker_dispensed"`
	Status           string `json:"status"`
}

type CodeListing struct {
	TotalCodes int             `json:"total_codes"`
	Page       int             `json:"page"`
	PerPage    int             `json:"per_page"`
	TotalPages int             `json:"total_pages"`
	Codes      []CodeListEntry `json:"codes"`
}

// ListCodes returns one page of codes. Page is clamped to >= 1, perPage to
// [1, MaxPageSize]; zero perPage falls back to the default.
func (s *Service) ListCodes(ctx context.Context, page, perPage int) (*CodeListing, error) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = s.cfg.DefaultPageSize
	}
	if perPage > s.cfg.MaxPageSize {
		perPage = s.cfg.MaxPageSize
	}

	total, err := s.db.NewSelect().Model((*models.QRCode)(nil)).Count(ctx)
	if err != nil {
		return nil, err
	}

	type joinedRow struct {
		ID               int64     `bun:"id"`
		QRCode           string    `bun:"qr_code"`
		GeneratedTime    time.Time `bun:"generated_time"`
		IsPrinted        bool      `bun:"is_printed"`
		IsDistributed    bool      `bun:"is_distributed"`
		TotalVisits      int       `bun:"total_visits"`
		StickerDispensed bool      `bun:"sticker_dispensed"`
	}
	var rows []joinedRow
	err = s.db.NewRaw(`
		SELECT qc.id, qc.qr_code, qc.generated_time, qc.is_printed, qc.is_distributed,
		       COALESCE(v.total_visits, 0) AS total_visits,
		       COALESCE(v.sticker_dispensed, FALSE) AS sticker_dispensed
		FROM qr_codes qc
		LEFT JOIN visitors v ON qc.qr_code = v.visitor_qr
		ORDER BY qc.generated_time DESC, qc.id DESC
		LIMIT ? OFFSET ?
	`, perPage, (page-1)*perPage).Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}

	entries := make([]CodeListEntry, 0, len(rows))
	for _, r := range rows {
		status := "unused"
		if r.TotalVisits > 0 {
			status = "used"
		}
		entries = append(entries, CodeListEntry{
			ID:               r.ID,
			QRCode:           r.QRCode,
			GeneratedTime:    r.GeneratedTime.Format("2006-01-02 15:04:05"),
			IsPrinted:        r.IsPrinted,
			IsDistributed:    r.IsDistributed,
			TotalVisits:      r.TotalVisits,
			StickerDispensed: r.StickerDispensed,
			Status:           status,
		})
	}

	return &CodeListing{
		TotalCodes: total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: (total + perPage - 1) / perPage,
		Codes:      entries,
	}, nil
}

// TableCounts is the /admin/stats view: raw row counts per table.
type TableCounts struct {
	Teams         int `json:"teams"`
	VisitorVisits int `json:"visitor_visits"`
	Visitors      int `json:"visitors"`
	QRCodes       int `json:"qr_codes"`
}

func (s *Service) GetTableCounts(ctx context.Context) (*TableCounts, error) {
	teams, err := s.db.NewSelect().Model((*models.Team)(nil)).Count(ctx)
	if err != nil {
		return nil, err
	}
	visits, err := s.db.NewSelect().Model((*models.Visit)(nil)).Count(ctx)
	if err != nil {
		return nil, err
	}
	visitors, err := s.db.NewSelect().Model((*models.Visitor)(nil)).Count(ctx)
	if err != nil {
		return nil, err
	}
	codes, err := s.db.NewSelect().Model((*models.QRCode)(nil)).Count(ctx)
	if err != nil {
		return nil, err
	}
	return &TableCounts{Teams: teams, VisitorVisits: visits, Visitors: visitors, QRCodes: codes}, nil
}
