package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"

	"github.com/kodiidok/qrc/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// ActiveCodes returns the code strings with no deletion timestamp.
func (d *DB) ActiveCodes(ctx context.Context) ([]string, error) {
	var codes []string
	err := d.Bun.NewSelect().
		Model((*models.QRCode)(nil)).
		Column("qr_code").
		Where("deleted_time IS NULL").
		Scan(ctx, &codes)
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// InsertBatch persists a generated batch in one transaction: every QRCode row
// is coupled with its fresh zero-visit Visitor row, all-or-nothing.
func (d *DB) InsertBatch(ctx context.Context, codes []models.QRCode, visitors []models.Visitor) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if len(codes) > 0 {
			if _, err := tx.NewInsert().Model(&codes).Exec(ctx); err != nil {
				return err
			}
		}
		if len(visitors) > 0 {
			if _, err := tx.NewInsert().Model(&visitors).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

// SoftDeleteActive retires every active code in one transaction: the coupled
// visitor rows are renamed with the reserved prefix and deactivated first,
// then the codes themselves get the prefix and a deletion timestamp. Both
// unique namespaces end up clear of plain names, so a reseed can reuse them.
// Returns the number of codes retired.
func (d *DB) SoftDeleteActive(ctx context.Context, now time.Time) (int64, error) {
	var retired int64
	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		// Visitors first, while qr_codes still holds the plain names.
		activeCodes := tx.NewSelect().
			Model((*models.QRCode)(nil)).
			Column("qr_code").
			Where("deleted_time IS NULL")
		if _, err := tx.NewUpdate().
			Model((*models.Visitor)(nil)).
			Set("visitor_qr = ? || visitor_qr", models.DeletedCodePrefix).
			Set("is_active = FALSE").
			Where("visitor_qr IN (?)", activeCodes).
			Exec(ctx); err != nil {
			return err
		}

		res, err := tx.NewUpdate().
			Model((*models.QRCode)(nil)).
			Set("qr_code = ? || qr_code", models.DeletedCodePrefix).
			Set("deleted_time = ?", now).
			Where("deleted_time IS NULL").
			Exec(ctx)
		if err != nil {
			return err
		}
		retired, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return retired, nil
}

// ExportActive returns all active codes in insertion order.
func (d *DB) ExportActive(ctx context.Context) ([]models.QRCode, error) {
	var codes []models.QRCode
	err := d.Bun.NewSelect().
		Model(&codes).
		Where("deleted_time IS NULL").
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// GetByCode fetches one code row by its code string.
func (d *DB) GetByCode(ctx context.Context, code string) (*models.QRCode, error) {
	var qr models.QRCode
	err := d.Bun.NewSelect().
		Model(&qr).
		Where("qr_code = ?", code).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &qr, nil
}

// CodeExists reports whether an active (non-deleted) code exists.
func (d *DB) CodeExists(ctx context.Context, code string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.QRCode)(nil)).
		Where("qr_code = ?", code).
		Where("deleted_time IS NULL").
		Exists(ctx)
}

// MarkPrinted flags the given codes as printed. Unknown codes are silently
// skipped; the returned count is the number of rows actually updated.
func (d *DB) MarkPrinted(ctx context.Context, codes []string) (int64, error) {
	return d.markFlag(ctx, codes, "is_printed")
}

// MarkDistributed flags the given codes as handed to visitors.
func (d *DB) MarkDistributed(ctx context.Context, codes []string) (int64, error) {
	return d.markFlag(ctx, codes, "is_distributed")
}

func (d *DB) markFlag(ctx context.Context, codes []string, column string) (int64, error) {
	if len(codes) == 0 {
		return 0, nil
	}
	res, err := d.Bun.NewUpdate().
		Model((*models.QRCode)(nil)).
		Set(column+" = TRUE").
		Where("qr_code IN (?)", bun.In(codes)).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
