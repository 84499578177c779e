package models

import (
	"time"

	"github.com/uptrace/bun"
)

// DeletedCodePrefix marks soft-deleted codes. Retired codes are renamed with
// this prefix instead of being removed so the unique constraint never collides
// with freshly generated codes and old visits stay traceable.
const DeletedCodePrefix = "DEL_"

type QRCode struct {
	bun.BaseModel `bun:"table:qr_codes"`

	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	QRCode        string    `bun:"qr_code,unique,notnull" json:"qr_code"`
	QRImageBase64 string    `bun:"qr_image_base64" json:"qr_image_base64,omitempty"`
	GeneratedTime time.Time `bun:"generated_time,notnull" json:"generated_time"`
	IsPrinted     bool      `bun:"is_printed,notnull,default:false" json:"is_printed"`
	IsDistributed bool      `bun:"is_distributed,notnull,default:false" json:"is_distributed"`
	DeletedTime   time.Time `bun:"deleted_time,nullzero" json:"deleted_time,omitempty"`
	Notes         string    `bun:"notes" json:"notes,omitempty"`
}
