package db

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/kodiidok/qrc/internal/models"
)

type DB struct {
	Bun *bun.DB
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

// GetVisitsByVisitor returns the visit history in visit order.
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

// DispenseSticker flips the dispensed flag with a conditional update. The
// WHERE clauses re-validate eligibility inside the statement, so a concurrent
// second dispense affects zero rows no matter what the caller read beforehand.
func (d *DB) DispenseSticker(ctx context.Context, visitorQR string, minVisits int, now time.Time) (int64, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Visitor)(nil)).
		Set("sticker_dispensed = TRUE").
		Set("sticker_dispensed_time = ?", now).
		Where("visitor_qr = ?", visitorQR).
		Where("sticker_dispensed = FALSE").
		Where("total_visits >= ?", minVisits).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
