package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Visitor is the per-visitor aggregate keyed by the QR code string.
// TotalVisits is incremented by exactly one per new distinct team visit and
// must always equal the number of Visit rows for this code.
type Visitor struct {
	bun.BaseModel `bun:"table:visitors"`

	VisitorQR            string    `bun:"visitor_qr,pk" json:"visitor_qr"`
	QRCodeImage          string    `bun:"qr_code_image" json:"qr_code_image,omitempty"`
	GeneratedTime        time.Time `bun:"generated_time,nullzero" json:"generated_time,omitempty"`
	FirstVisit           time.Time `bun:"first_visit,nullzero" json:"first_visit,omitempty"`
	LastVisit            time.Time `bun:"last_visit,nullzero" json:"last_visit,omitempty"`
	TotalVisits          int       `bun:"total_visits,notnull,default:0" json:"total_visits"`
	StickerDispensed     bool      `bun:"sticker_dispensed,notnull,default:false" json:"sticker_dispensed"`
	StickerDispensedTime time.Time `bun:"sticker_dispensed_time,nullzero" json:"sticker_dispensed_time,omitempty"`
	IsActive             bool      `bun:"is_active,notnull,default:true" json:"is_active"`
}
