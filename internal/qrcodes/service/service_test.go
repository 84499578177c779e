package qrcodes_test

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kodiidok/qrc/internal/config"
	"github.com/kodiidok/qrc/internal/models"
	qrcodes "github.com/kodiidok/qrc/internal/qrcodes/service"
)

// Mock implementations for testing

type MockQRDB struct {
	codes        map[string]*models.QRCode
	visitors     map[string]*models.Visitor
	insertCalls  int
	shouldFailOn string
	errorMsg     string
}

func NewMockQRDB() *MockQRDB {
	return &MockQRDB{
		codes:    make(map[string]*models.QRCode),
		visitors: make(map[string]*models.Visitor),
	}
}

func (m *MockQRDB) ActiveCodes(ctx context.Context) ([]string, error) {
	if m.shouldFailOn == "ActiveCodes" {
		return nil, errors.New(m.errorMsg)
	}
	var active []string
	for code, row := range m.codes {
		if row.DeletedTime.IsZero() {
			active = append(active, code)
		}
	}
	return active, nil
}

func (m *MockQRDB) InsertBatch(ctx context.Context, codes []models.QRCode, visitors []models.Visitor) error {
	m.insertCalls++
	if m.shouldFailOn == "InsertBatch" {
		return errors.New(m.errorMsg)
	}
	// Mirror the store's unique constraints so collisions surface here too.
	for i := range codes {
		if _, exists := m.codes[codes[i].QRCode]; exists {
			return errors.New("UNIQUE constraint failed: qr_codes.qr_code")
		}
	}
	for i := range visitors {
		if _, exists := m.visitors[visitors[i].VisitorQR]; exists {
			return errors.New("UNIQUE constraint failed: visitors.visitor_qr")
		}
	}
	for i := range codes {
		row := codes[i]
		m.codes[row.QRCode] = &row
	}
	for i := range visitors {
		row := visitors[i]
		m.visitors[row.VisitorQR] = &row
	}
	return nil
}

func (m *MockQRDB) SoftDeleteActive(ctx context.Context, now time.Time) (int64, error) {
	if m.shouldFailOn == "SoftDeleteActive" {
		return 0, errors.New(m.errorMsg)
	}
	var retired int64
	for code, row := range m.codes {
		if !row.DeletedTime.IsZero() {
			continue
		}
		if visitor, exists := m.visitors[code]; exists {
			visitor.IsActive = false
			visitor.VisitorQR = models.DeletedCodePrefix + code
			delete(m.visitors, code)
			m.visitors[visitor.VisitorQR] = visitor
		}
		row.DeletedTime = now
		row.QRCode = models.DeletedCodePrefix + code
		delete(m.codes, code)
		m.codes[row.QRCode] = row
		retired++
	}
	return retired, nil
}

func (m *MockQRDB) ExportActive(ctx context.Context) ([]models.QRCode, error) {
	var out []models.QRCode
	for _, row := range m.codes {
		if row.DeletedTime.IsZero() {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (m *MockQRDB) GetByCode(ctx context.Context, code string) (*models.QRCode, error) {
	row, exists := m.codes[code]
	if !exists {
		return nil, sql.ErrNoRows
	}
	return row, nil
}

func (m *MockQRDB) CodeExists(ctx context.Context, code string) (bool, error) {
	row, exists := m.codes[code]
	return exists && row.DeletedTime.IsZero(), nil
}

func (m *MockQRDB) MarkPrinted(ctx context.Context, codes []string) (int64, error) {
	return m.mark(codes, func(row *models.QRCode) { row.IsPrinted = true })
}

func (m *MockQRDB) MarkDistributed(ctx context.Context, codes []string) (int64, error) {
	return m.mark(codes, func(row *models.QRCode) { row.IsDistributed = true })
}

func (m *MockQRDB) mark(codes []string, apply func(*models.QRCode)) (int64, error) {
	var updated int64
	for _, code := range codes {
		if row, exists := m.codes[code]; exists {
			apply(row)
			updated++
		}
	}
	return updated, nil
}

type MockEncoder struct {
	failOn string
}

func (m *MockEncoder) EncodeBase64(code string) (string, error) {
	if m.failOn != "" && m.failOn == code {
		return "", errors.New("encode failed")
	}
	return "img-" + code, nil
}

func testConfig() config.ExhibitionConfig {
	return config.ExhibitionConfig{
		MinVisitsForSticker: 11,
		MaxQRCodesPerBatch:  10,
		DefaultQRCodeCount:  5,
		DefaultPageSize:     50,
		MaxPageSize:         100,
	}
}

func TestGenerateBatchDefaultCount(t *testing.T) {
	mockDB := NewMockQRDB()
	service := qrcodes.NewQRService(mockDB, &MockEncoder{}, testConfig(), nil)

	result, err := service.GenerateBatch(context.Background(), 0)
	if err != nil {
		t.Fatalf("GenerateBatch failed: %v", err)
	}
	if result.GeneratedCount != 5 {
		t.Errorf("Expected default count 5, got %d", result.GeneratedCount)
	}
	if len(mockDB.codes) != 5 {
		t.Errorf("Expected 5 persisted codes, got %d", len(mockDB.codes))
	}
	if len(mockDB.visitors) != 5 {
		t.Errorf("Expected 5 provisioned visitor rows, got %d", len(mockDB.visitors))
	}
	for code := range mockDB.codes {
		if !strings.HasPrefix(code, "VISITOR_") {
			t.Errorf("Unexpected code format: %s", code)
		}
		if _, exists := mockDB.visitors[code]; !exists {
			t.Errorf("Code %s has no visitor row", code)
		}
	}
}

func TestGenerateBatchTooLarge(t *testing.T) {
	mockDB := NewMockQRDB()
	service := qrcodes.NewQRService(mockDB, &MockEncoder{}, testConfig(), nil)

	_, err := service.GenerateBatch(context.Background(), 11)
	if !errors.Is(err, qrcodes.ErrBatchTooLarge) {
		t.Errorf("Expected ErrBatchTooLarge, got %v", err)
	}
	if mockDB.insertCalls != 0 {
		t.Errorf("Expected no insert attempts for oversized batch, got %d", mockDB.insertCalls)
	}
}

func TestGenerateBatchNothingPersistedOnEncodeFailure(t *testing.T) {
	mockDB := NewMockQRDB()
	mockDB.shouldFailOn = "InsertBatch"
	mockDB.errorMsg = "disk full"
	service := qrcodes.NewQRService(mockDB, &MockEncoder{}, testConfig(), nil)

	_, err := service.GenerateBatch(context.Background(), 3)
	if err == nil {
		t.Fatal("Expected GenerateBatch to surface the store error")
	}
	if len(mockDB.codes) != 0 {
		t.Errorf("Expected no codes persisted on failure, got %d", len(mockDB.codes))
	}
}

func TestSeedUsesSequentialLabels(t *testing.T) {
	mockDB := NewMockQRDB()
	service := qrcodes.NewQRService(mockDB, &MockEncoder{}, testConfig(), nil)

	seeded, err := service.Seed(context.Background(), 3)
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if seeded != 3 {
		t.Errorf("Expected 3 seeded codes, got %d", seeded)
	}
	for _, label := range []string{"QR_0001", "QR_0002", "QR_0003"} {
		if _, exists := mockDB.codes[label]; !exists {
			t.Errorf("Expected seeded label %s", label)
		}
		if _, exists := mockDB.visitors[label]; !exists {
			t.Errorf("Expected visitor row for seeded label %s", label)
		}
	}
}

func TestResetRetiresThenReseeds(t *testing.T) {
	mockDB := NewMockQRDB()
	service := qrcodes.NewQRService(mockDB, &MockEncoder{}, testConfig(), nil)
	ctx := context.Background()

	if _, err := service.Seed(ctx, 4); err != nil {
		t.Fatalf("Initial seed failed: %v", err)
	}

	result, err := service.Reset(ctx)
	if err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if result.RetiredCount != 4 {
		t.Errorf("Expected 4 retired codes, got %d", result.RetiredCount)
	}
	if result.SeededCount != 5 {
		t.Errorf("Expected default reseed of 5, got %d", result.SeededCount)
	}

	active, err := mockDB.ActiveCodes(ctx)
	if err != nil {
		t.Fatalf("ActiveCodes failed: %v", err)
	}
	if len(active) != 5 {
		t.Errorf("Expected 5 active codes after reset, got %d", len(active))
	}
	for _, code := range active {
		if strings.HasPrefix(code, models.DeletedCodePrefix) {
			t.Errorf("Active pool contains retired code %s", code)
		}
	}
}

func TestImageUnknownCode(t *testing.T) {
	service := qrcodes.NewQRService(NewMockQRDB(), &MockEncoder{}, testConfig(), nil)

	_, err := service.Image(context.Background(), "QR_9999")
	if !errors.Is(err, qrcodes.ErrCodeNotFound) {
		t.Errorf("Expected ErrCodeNotFound, got %v", err)
	}
}

func TestMarkPrintedRequiresCodes(t *testing.T) {
	service := qrcodes.NewQRService(NewMockQRDB(), &MockEncoder{}, testConfig(), nil)

	_, err := service.MarkPrinted(context.Background(), nil)
	if !errors.Is(err, qrcodes.ErrNoCodesProvided) {
		t.Errorf("Expected ErrNoCodesProvided, got %v", err)
	}
	_, err = service.MarkDistributed(context.Background(), []string{})
	if !errors.Is(err, qrcodes.ErrNoCodesProvided) {
		t.Errorf("Expected ErrNoCodesProvided, got %v", err)
	}
}
