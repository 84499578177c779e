package teams

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/kodiidok/qrc/internal/models"
)

var ErrMissingTeamName = errors.New("team_name column is required")

// Service owns the team table: resolution for scans and idempotent CSV import.
type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// Resolve finds a team by id or by display name.
func (s *Service) Resolve(ctx context.Context, ref string) (*models.Team, error) {
	var team models.Team
	err := s.db.NewSelect().
		Model(&team).
		Where("id = ?", ref).
		WhereOr("team_name = ?", ref).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &team, nil
}

// List returns all teams in creation order.
func (s *Service) List(ctx context.Context) ([]models.Team, error) {
	var teams []models.Team
	err := s.db.NewSelect().
		Model(&teams).
		Order("created_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return teams, nil
}

// ImportResult summarizes one CSV import run.
type ImportResult struct {
	Imported int `json:"imported"`
	Updated  int `json:"updated"`
}

// ImportCSV upserts teams by name from a CSV stream. Expected header:
// team_name,project_title,description,members,supervisor (team_name required,
// the rest optional). Re-importing the same file is a no-op apart from
// refreshed metadata.
func (s *Service) ImportCSV(ctx context.Context, r io.Reader) (*ImportResult, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	col := map[string]int{}
	for i, name := range header {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}
	nameIdx, ok := col["team_name"]
	if !ok {
		return nil, ErrMissingTeamName
	}

	field := func(record []string, name string) string {
		if idx, ok := col[name]; ok && idx < len(record) {
			return strings.TrimSpace(record[idx])
		}
		return ""
	}

	result := &ImportResult{}
	err = s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		for {
			record, err := reader.Read()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to read CSV record: %w", err)
			}
			name := strings.TrimSpace(record[nameIdx])
			if name == "" {
				continue
			}

			var existing models.Team
			err = tx.NewSelect().
				Model(&existing).
				Where("team_name = ?", name).
				Limit(1).
				Scan(ctx)
			switch {
			case err == nil:
				existing.ProjectTitle = field(record, "project_title")
				existing.Description = field(record, "description")
				existing.Members = field(record, "members")
				existing.Supervisor = field(record, "supervisor")
				if _, err := tx.NewUpdate().
					Model(&existing).
					Column("project_title", "description", "members", "supervisor").
					Where("id = ?", existing.ID).
					Exec(ctx); err != nil {
					return err
				}
				result.Updated++
			case errors.Is(err, sql.ErrNoRows):
				team := models.Team{
					ID:           uuid.New().String(),
					TeamName:     name,
					ProjectTitle: field(record, "project_title"),
					Description:  field(record, "description"),
					Members:      field(record, "members"),
					Supervisor:   field(record, "supervisor"),
					CreatedTime:  time.Now().UTC(),
				}
				if _, err := tx.NewInsert().Model(&team).Exec(ctx); err != nil {
					return err
				}
				result.Imported++
			default:
				return err
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
