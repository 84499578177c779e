package db_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/kodiidok/qrc/internal/models"
	"github.com/kodiidok/qrc/internal/visits/db"
)

func setupTestDB(t *testing.T) *db.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { sqldb.Close() })

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	for _, model := range []interface{}{(*models.Team)(nil), (*models.Visitor)(nil), (*models.Visit)(nil)} {
		if err := bunDB.ResetModel(ctx, model); err != nil {
			t.Fatalf("Failed to create table for %T: %v", model, err)
		}
	}
	// The duplicate gate in RecordVisit relies on this index.
	_, err = bunDB.ExecContext(ctx,
		"CREATE UNIQUE INDEX uq_visitor_team ON visitor_visits (visitor_qr, team_name)")
	if err != nil {
		t.Fatalf("Failed to create unique index: %v", err)
	}

	return &db.DB{Bun: bunDB}
}

func createTeam(t *testing.T, d *db.DB, id, name string) {
	t.Helper()
	team := models.Team{
		ID:          id,
		TeamName:    name,
		CreatedTime: time.Now().UTC(),
	}
	if _, err := d.Bun.NewInsert().Model(&team).Exec(context.Background()); err != nil {
		t.Fatalf("Failed to insert team %s: %v", name, err)
	}
}

func TestRecordVisitNewVisitor(t *testing.T) {
	d := setupTestDB(t)
	createTeam(t, d, "team001", "Robotics")
	ctx := context.Background()

	outcome, err := d.RecordVisit(ctx, "VISITOR_1_AAAAAAAA", "Robotics", true)
	if err != nil {
		t.Fatalf("RecordVisit failed: %v", err)
	}

	if !outcome.Recorded {
		t.Error("Expected visit to be recorded")
	}
	if outcome.Duplicate {
		t.Error("Expected no duplicate on first scan")
	}
	if !outcome.VisitorCreated {
		t.Error("Expected visitor row to be created on first scan")
	}
	if outcome.TotalVisits != 1 {
		t.Errorf("Expected total visits 1, got %d", outcome.TotalVisits)
	}
	if outcome.TeamName != "Robotics" {
		t.Errorf("Expected team name Robotics, got %s", outcome.TeamName)
	}

	visitor, err := d.GetVisitor(ctx, "VISITOR_1_AAAAAAAA")
	if err != nil {
		t.Fatalf("GetVisitor failed: %v", err)
	}
	if visitor.TotalVisits != 1 {
		t.Errorf("Expected aggregate total 1, got %d", visitor.TotalVisits)
	}
	if visitor.FirstVisit.IsZero() || visitor.LastVisit.IsZero() {
		t.Error("Expected first and last visit timestamps to be set")
	}
}

func TestRecordVisitResolvesTeamByID(t *testing.T) {
	d := setupTestDB(t)
	createTeam(t, d, "team001", "Robotics")

	outcome, err := d.RecordVisit(context.Background(), "VISITOR_1_AAAAAAAA", "team001", true)
	if err != nil {
		t.Fatalf("RecordVisit failed: %v", err)
	}
	if outcome.TeamName != "Robotics" {
		t.Errorf("Expected team resolved to Robotics, got %s", outcome.TeamName)
	}
}

func TestRecordVisitDuplicateScan(t *testing.T) {
	d := setupTestDB(t)
	createTeam(t, d, "team001", "Robotics")
	ctx := context.Background()

	first, err := d.RecordVisit(ctx, "VISITOR_1_AAAAAAAA", "Robotics", true)
	if err != nil {
		t.Fatalf("First RecordVisit failed: %v", err)
	}

	second, err := d.RecordVisit(ctx, "VISITOR_1_AAAAAAAA", "Robotics", true)
	if err != nil {
		t.Fatalf("Second RecordVisit failed: %v", err)
	}

	if !second.Duplicate {
		t.Error("Expected duplicate outcome on repeat scan")
	}
	if second.Recorded {
		t.Error("Expected repeat scan not to be recorded")
	}
	if second.TotalVisits != 1 {
		t.Errorf("Expected total to stay at 1, got %d", second.TotalVisits)
	}
	if second.VisitID != first.VisitID {
		t.Errorf("Expected duplicate to report the original visit id %d, got %d", first.VisitID, second.VisitID)
	}

	visits, err := d.GetVisitsByVisitor(ctx, "VISITOR_1_AAAAAAAA")
	if err != nil {
		t.Fatalf("GetVisitsByVisitor failed: %v", err)
	}
	if len(visits) != 1 {
		t.Errorf("Expected exactly 1 visit row, got %d", len(visits))
	}
}

func TestRecordVisitAcrossTeams(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		createTeam(t, d, fmt.Sprintf("team%03d", i), fmt.Sprintf("Team %d", i))
	}

	for i := 1; i <= 3; i++ {
		outcome, err := d.RecordVisit(ctx, "VISITOR_1_AAAAAAAA", fmt.Sprintf("Team %d", i), true)
		if err != nil {
			t.Fatalf("RecordVisit for team %d failed: %v", i, err)
		}
		if outcome.TotalVisits != i {
			t.Errorf("Expected total %d after team %d, got %d", i, i, outcome.TotalVisits)
		}
	}

	visits, err := d.GetVisitsByVisitor(ctx, "VISITOR_1_AAAAAAAA")
	if err != nil {
		t.Fatalf("GetVisitsByVisitor failed: %v", err)
	}
	visitor, err := d.GetVisitor(ctx, "VISITOR_1_AAAAAAAA")
	if err != nil {
		t.Fatalf("GetVisitor failed: %v", err)
	}
	if visitor.TotalVisits != len(visits) {
		t.Errorf("Aggregate total %d does not match %d visit rows", visitor.TotalVisits, len(visits))
	}
}

func TestRecordVisitUnknownTeam(t *testing.T) {
	d := setupTestDB(t)

	_, err := d.RecordVisit(context.Background(), "VISITOR_1_AAAAAAAA", "Nonexistent", true)
	if !errors.Is(err, db.ErrTeamNotFound) {
		t.Errorf("Expected ErrTeamNotFound, got %v", err)
	}
}

func TestRecordVisitUnknownVisitorWithoutImplicitCreation(t *testing.T) {
	d := setupTestDB(t)
	createTeam(t, d, "team001", "Robotics")
	ctx := context.Background()

	_, err := d.RecordVisit(ctx, "VISITOR_1_AAAAAAAA", "Robotics", false)
	if !errors.Is(err, db.ErrUnknownVisitor) {
		t.Fatalf("Expected ErrUnknownVisitor, got %v", err)
	}

	// The rejected scan must roll back the visit row too.
	visits, err := d.GetVisitsByVisitor(ctx, "VISITOR_1_AAAAAAAA")
	if err != nil {
		t.Fatalf("GetVisitsByVisitor failed: %v", err)
	}
	if len(visits) != 0 {
		t.Errorf("Expected no visit rows after rollback, got %d", len(visits))
	}
}

func TestRecordVisitExistingVisitorRow(t *testing.T) {
	d := setupTestDB(t)
	createTeam(t, d, "team001", "Robotics")
	ctx := context.Background()

	visitor := models.Visitor{
		VisitorQR:     "VISITOR_1_AAAAAAAA",
		GeneratedTime: time.Now().UTC(),
		IsActive:      true,
	}
	if _, err := d.Bun.NewInsert().Model(&visitor).Exec(ctx); err != nil {
		t.Fatalf("Failed to pre-insert visitor: %v", err)
	}

	outcome, err := d.RecordVisit(ctx, "VISITOR_1_AAAAAAAA", "Robotics", false)
	if err != nil {
		t.Fatalf("RecordVisit failed: %v", err)
	}
	if outcome.VisitorCreated {
		t.Error("Expected no visitor creation for a pre-provisioned code")
	}
	if outcome.TotalVisits != 1 {
		t.Errorf("Expected total 1, got %d", outcome.TotalVisits)
	}
}

func TestListTeamNames(t *testing.T) {
	d := setupTestDB(t)
	createTeam(t, d, "team001", "Robotics")
	createTeam(t, d, "team002", "Aerospace")

	names, err := d.ListTeamNames(context.Background())
	if err != nil {
		t.Fatalf("ListTeamNames failed: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("Expected 2 team names, got %d", len(names))
	}
}
