package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"github.com/kodiidok/qrc/internal/models"
)

var (
	ErrTeamNotFound   = errors.New("team not found")
	ErrUnknownVisitor = errors.New("visitor not found and implicit creation is disabled")
)

type DB struct {
	Bun *bun.DB
}

// VisitOutcome is the result of one RecordVisit transaction.
type VisitOutcome struct {
	Recorded       bool
	Duplicate      bool
	VisitorCreated bool
	VisitID        int64
	TeamName       string
	TotalVisits    int
}

// RecordVisit runs the whole visit state machine in a single transaction:
// resolve the team, insert the visit row (the unique index on
// (visitor_qr, team_name) is the duplicate gate), then bump the visitor
// aggregate with an atomic increment. Any failure rolls the visit row back.
func (d *DB) RecordVisit(ctx context.Context, visitorQR, teamRef string, allowCreate bool) (*VisitOutcome, error) {
	now := time.Now().UTC()
	outcome := &VisitOutcome{}

	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var team models.Team
		err := tx.NewSelect().
			Model(&team).
			Where("id = ?", teamRef).
			WhereOr("team_name = ?", teamRef).
			Limit(1).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrTeamNotFound
			}
			return err
		}
		outcome.TeamName = team.TeamName

		visit := &models.Visit{
			VisitorQR: visitorQR,
			TeamName:  team.TeamName,
			VisitTime: now,
		}
		res, err := tx.NewInsert().
			Model(visit).
			On("CONFLICT (visitor_qr, team_name) DO NOTHING").
			Exec(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
				return d.fillDuplicate(ctx, tx, outcome, visitorQR, team.TeamName)
			}
			return err
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			return d.fillDuplicate(ctx, tx, outcome, visitorQR, team.TeamName)
		}
		outcome.Recorded = true
		outcome.VisitID = visit.ID

		// Atomic increment so two teams scanning the same visitor at once
		// cannot lose an update.
		var total int
		updRes, err := tx.NewUpdate().
			Model((*models.Visitor)(nil)).
			Set("total_visits = total_visits + 1").
			Set("last_visit = ?", now).
			Set("first_visit = COALESCE(first_visit, ?)", now).
			Where("visitor_qr = ?", visitorQR).
			Returning("total_visits").
			Exec(ctx, &total)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		updated := int64(0)
		if updRes != nil {
			updated, _ = updRes.RowsAffected()
		}
		if errors.Is(err, sql.ErrNoRows) || updated == 0 {
			if !allowCreate {
				return ErrUnknownVisitor
			}
			visitor := &models.Visitor{
				VisitorQR:   visitorQR,
				TotalVisits: 1,
				FirstVisit:  now,
				LastVisit:   now,
				IsActive:    true,
			}
			if _, err := tx.NewInsert().Model(visitor).Exec(ctx); err != nil {
				return err
			}
			outcome.VisitorCreated = true
			total = 1
		}
		outcome.TotalVisits = total
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// fillDuplicate reports the already-visited path. Not an error: no writes,
// the existing visit id and current total are returned as-is.
func (d *DB) fillDuplicate(ctx context.Context, tx bun.Tx, outcome *VisitOutcome, visitorQR, teamName string) error {
	outcome.Duplicate = true

	var existing models.Visit
	err := tx.NewSelect().
		Model(&existing).
		Where("visitor_qr = ?", visitorQR).
		Where("team_name = ?", teamName).
		Limit(1).
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	outcome.VisitID = existing.ID

	var visitor models.Visitor
	err = tx.NewSelect().
		Model(&visitor).
		Where("visitor_qr = ?", visitorQR).
		Limit(1).
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	outcome.TotalVisits = visitor.TotalVisits
	return nil
}

// GetVisitor fetches the aggregate row for a visitor code.
func (d *DB) GetVisitor(ctx context.Context, visitorQR string) (*models.Visitor, error) {
	var visitor models.Visitor
	err := d.Bun.NewSelect().
		Model(&visitor).
		Where("visitor_qr = ?", visitorQR).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &visitor, nil
}

// GetVisitsByVisitor returns a visitor's visit history in visit order.
func (d *DB) GetVisitsByVisitor(ctx context.Context, visitorQR string) ([]models.Visit, error) {
	var visits []models.Visit
	err := d.Bun.NewSelect().
		Model(&visits).
		Where("visitor_qr = ?", visitorQR).
		Order("visit_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return visits, nil
}

// ListTeamNames returns all team names in creation order.
func (d *DB) ListTeamNames(ctx context.Context) ([]string, error) {
	var names []string
	err := d.Bun.NewSelect().
		Model((*models.Team)(nil)).
		Column("team_name").
		Order("created_time ASC").
		Scan(ctx, &names)
	if err != nil {
		return nil, err
	}
	return names, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint failed")
}
