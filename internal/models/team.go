package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Team is an exhibit booth. Rows are created via admin import and are
// immutable afterwards except through a re-import (upsert by team_name).
type Team struct {
	bun.BaseModel `bun:"table:teams"`

	ID           string    `bun:"id,pk" json:"id"`
	TeamName     string    `bun:"team_name,unique,notnull" json:"team_name"`
	ProjectTitle string    `bun:"project_title" json:"project_title"`
	Description  string    `bun:"description" json:"description"`
	Members      string    `bun:"members" json:"members"`
	Supervisor   string    `bun:"supervisor" json:"supervisor"`
	CreatedTime  time.Time `bun:"created_time,notnull" json:"created_time"`
}
