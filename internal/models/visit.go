package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Visit is one scan of a visitor by a team. The (visitor_qr, team_name) pair
// is unique at the store level; the index is what makes duplicate detection
// safe under concurrent scans.
type Visit struct {
	bun.BaseModel `bun:"table:visitor_visits"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	VisitorQR string    `bun:"visitor_qr,notnull" json:"visitor_qr"`
	TeamName  string    `bun:"team_name,notnull" json:"team_name"`
	VisitTime time.Time `bun:"visit_time,notnull" json:"visit_time"`
}
