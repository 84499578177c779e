package visits_test

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kodiidok/qrc/internal/config"
	"github.com/kodiidok/qrc/internal/models"
	"github.com/kodiidok/qrc/internal/visits/db"
	visits "github.com/kodiidok/qrc/internal/visits/service"
)

// Mock implementations for testing

type MockVisitDB struct {
	outcome      *db.VisitOutcome
	visitor      *models.Visitor
	visits       []models.Visit
	teamNames    []string
	shouldFailOn string
	errorMsg     string

	lastAllowCreate bool
}

func (m *MockVisitDB) RecordVisit(ctx context.Context, visitorQR, teamRef string, allowCreate bool) (*db.VisitOutcome, error) {
	m.lastAllowCreate = allowCreate
	if m.shouldFailOn == "RecordVisit" {
		return nil, errors.New(m.errorMsg)
	}
	return m.outcome, nil
}

func (m *MockVisitDB) GetVisitor(ctx context.Context, visitorQR string) (*models.Visitor, error) {
	if m.shouldFailOn == "GetVisitor" {
		return nil, errors.New(m.errorMsg)
	}
	if m.visitor == nil {
		return nil, sql.ErrNoRows
	}
	return m.visitor, nil
}

func (m *MockVisitDB) GetVisitsByVisitor(ctx context.Context, visitorQR string) ([]models.Visit, error) {
	if m.shouldFailOn == "GetVisitsByVisitor" {
		return nil, errors.New(m.errorMsg)
	}
	return m.visits, nil
}

func (m *MockVisitDB) ListTeamNames(ctx context.Context) ([]string, error) {
	if m.shouldFailOn == "ListTeamNames" {
		return nil, errors.New(m.errorMsg)
	}
	return m.teamNames, nil
}

type MockPublisher struct {
	published []string
}

func (m *MockPublisher) PublishVisitRecorded(visitorQR, teamName string, totalVisits int) error {
	m.published = append(m.published, teamName)
	return nil
}

func testConfig() config.ExhibitionConfig {
	return config.ExhibitionConfig{
		MinVisitsForSticker:          11,
		MaxQRCodesPerBatch:           1000,
		DefaultQRCodeCount:           500,
		DefaultPageSize:              50,
		MaxPageSize:                  100,
		AllowImplicitVisitorCreation: true,
	}
}

func TestRecordVisitEmptyCode(t *testing.T) {
	service := visits.NewVisitService(&MockVisitDB{}, nil, testConfig(), nil)

	_, err := service.RecordVisit(context.Background(), "", "Robotics")
	if !errors.Is(err, visits.ErrEmptyVisitorCode) {
		t.Errorf("Expected ErrEmptyVisitorCode, got %v", err)
	}
}

func TestRecordVisitPublishesEvent(t *testing.T) {
	mockDB := &MockVisitDB{
		outcome: &db.VisitOutcome{Recorded: true, TeamName: "Robotics", TotalVisits: 1, VisitID: 7},
	}
	publisher := &MockPublisher{}
	service := visits.NewVisitService(mockDB, publisher, testConfig(), nil)

	result, err := service.RecordVisit(context.Background(), "VISITOR_1_AAAAAAAA", "Robotics")
	if err != nil {
		t.Fatalf("RecordVisit failed: %v", err)
	}

	if !result.Recorded {
		t.Error("Expected recorded result")
	}
	if result.VisitsRemaining != 10 {
		t.Errorf("Expected 10 visits remaining, got %d", result.VisitsRemaining)
	}
	if result.EligibleForSticker {
		t.Error("Expected not yet eligible after 1 visit")
	}
	if len(publisher.published) != 1 {
		t.Errorf("Expected 1 published event, got %d", len(publisher.published))
	}
	if !mockDB.lastAllowCreate {
		t.Error("Expected implicit creation flag to be passed through")
	}
}

func TestRecordVisitDuplicateDoesNotPublish(t *testing.T) {
	mockDB := &MockVisitDB{
		outcome: &db.VisitOutcome{Duplicate: true, TeamName: "Robotics", TotalVisits: 4},
	}
	publisher := &MockPublisher{}
	service := visits.NewVisitService(mockDB, publisher, testConfig(), nil)

	result, err := service.RecordVisit(context.Background(), "VISITOR_1_AAAAAAAA", "Robotics")
	if err != nil {
		t.Fatalf("RecordVisit failed: %v", err)
	}

	if !result.Duplicate {
		t.Error("Expected duplicate result")
	}
	if result.Message != "Visitor has already visited Robotics" {
		t.Errorf("Unexpected duplicate message: %s", result.Message)
	}
	if len(publisher.published) != 0 {
		t.Errorf("Expected no published events for duplicate, got %d", len(publisher.published))
	}
}

func TestRecordVisitEligibleAtThreshold(t *testing.T) {
	mockDB := &MockVisitDB{
		outcome: &db.VisitOutcome{Recorded: true, TeamName: "Team 11", TotalVisits: 11},
	}
	service := visits.NewVisitService(mockDB, nil, testConfig(), nil)

	result, err := service.RecordVisit(context.Background(), "VISITOR_1_AAAAAAAA", "Team 11")
	if err != nil {
		t.Fatalf("RecordVisit failed: %v", err)
	}
	if !result.EligibleForSticker {
		t.Error("Expected eligibility at the threshold")
	}
	if result.VisitsRemaining != 0 {
		t.Errorf("Expected 0 visits remaining, got %d", result.VisitsRemaining)
	}
}

func TestVisitorStatus(t *testing.T) {
	now := time.Now().UTC()
	mockDB := &MockVisitDB{
		visitor: &models.Visitor{VisitorQR: "VISITOR_1_AAAAAAAA", TotalVisits: 2},
		visits: []models.Visit{
			{TeamName: "Robotics", VisitTime: now},
			{TeamName: "Aerospace", VisitTime: now},
		},
		teamNames: []string{"Robotics", "Aerospace", "Marine"},
	}
	service := visits.NewVisitService(mockDB, nil, testConfig(), nil)

	status, err := service.VisitorStatus(context.Background(), "VISITOR_1_AAAAAAAA")
	if err != nil {
		t.Fatalf("VisitorStatus failed: %v", err)
	}

	if status.TotalVisits != 2 {
		t.Errorf("Expected 2 total visits, got %d", status.TotalVisits)
	}
	if status.VisitsRemaining != 9 {
		t.Errorf("Expected 9 visits remaining, got %d", status.VisitsRemaining)
	}
	if len(status.VisitedTeams) != 2 {
		t.Errorf("Expected 2 visited teams, got %d", len(status.VisitedTeams))
	}
	if len(status.NotVisitedTeams) != 1 || status.NotVisitedTeams[0] != "Marine" {
		t.Errorf("Expected Marine to be the only unvisited team, got %v", status.NotVisitedTeams)
	}
	if len(status.Visits) != 2 {
		t.Errorf("Expected 2 history entries, got %d", len(status.Visits))
	}
}

func TestVisitorStatusUnknownVisitor(t *testing.T) {
	service := visits.NewVisitService(&MockVisitDB{}, nil, testConfig(), nil)

	_, err := service.VisitorStatus(context.Background(), "VISITOR_1_UNKNOWN0")
	if !errors.Is(err, visits.ErrVisitorNotFound) {
		t.Errorf("Expected ErrVisitorNotFound, got %v", err)
	}
}

func TestVisitorStatusStoreFailureIsNotNotFound(t *testing.T) {
	mockDB := &MockVisitDB{shouldFailOn: "GetVisitor", errorMsg: "connection refused"}
	service := visits.NewVisitService(mockDB, nil, testConfig(), nil)

	_, err := service.VisitorStatus(context.Background(), "VISITOR_1_AAAAAAAA")
	if err == nil {
		t.Fatal("Expected VisitorStatus to surface the store error")
	}
	// A store outage must not be reported as a missing visitor.
	if errors.Is(err, visits.ErrVisitorNotFound) {
		t.Errorf("Expected infrastructure error, got ErrVisitorNotFound: %v", err)
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("Expected original error to pass through, got %v", err)
	}
}
