package services_test

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"qrgen/internal/models"
	"qrgen/internal/qr"
	"qrgen/internal/repositories"
	"qrgen/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockQRCodeRepository is a mock implementation of repositories.QRCodeRepository
type MockQRCodeRepository struct {
	mock.Mock
}

func (m *MockQRCodeRepository) Create(qrCode *models.QRCode) error {
	args := m.Called(qrCode)
	return args.Error(0)
}

func (m *MockQRCodeRepository) ListByUser(userID string) ([]models.QRCode, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.QRCode), args.Error(1)
}

func (m *MockQRCodeRepository) GetOwned(userID string, id uint) (*models.QRCode, error) {
	args := m.Called(userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QRCode), args.Error(1)
}

func (m *MockQRCodeRepository) UpdateOwned(userID string, qrCode *models.QRCode) error {
	args := m.Called(userID, qrCode)
	return args.Error(0)
}

func (m *MockQRCodeRepository) DeleteOwned(userID string, id uint) error {
	args := m.Called(userID, id)
	return args.Error(0)
}

func (m *MockQRCodeRepository) FindByShortCode(shortCode string) (*models.QRCode, error) {
	args := m.Called(shortCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QRCode), args.Error(1)
}

func (m *MockQRCodeRepository) IncrementScanCount(id uint) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockQRCodeRepository) ShortCodeExists(shortCode string) (bool, error) {
	args := m.Called(shortCode)
	return args.Bool(0), args.Error(1)
}

// MockEventPublisher is a mock implementation of services.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(exchange, routingKey string, body []byte) error {
	args := m.Called(exchange, routingKey, body)
	return args.Error(0)
}

// zeroSourceGenerator returns a generator whose randomness source is all
// zeros, so every draw yields "00000000".
func zeroSourceGenerator() *qr.ShortCodeGenerator {
	return qr.NewShortCodeGeneratorWithSource(bytes.NewReader(make([]byte, 4096)))
}

func TestQRCodeService_CreateStatic(t *testing.T) {
	mockRepo := new(MockQRCodeRepository)
	service := services.NewQRCodeService(mockRepo, qr.NewShortCodeGenerator(), nil)

	mockRepo.On("Create", mock.AnythingOfType("*models.QRCode")).Return(nil).Once()

	qrCode, err := service.CreateStatic("user-1", services.CreateStaticInput{
		Content: "example.com",
		Type:    models.TypeURL,
		Title:   "My site",
	})
	assert.NoError(t, err)
	assert.Equal(t, "user-1", qrCode.UserID)
	assert.Equal(t, "https://example.com", qrCode.Data)
	assert.Equal(t, models.TypeURL, qrCode.Type)
	assert.False(t, qrCode.IsDynamic)
	assert.Nil(t, qrCode.ShortCode)
	assert.Nil(t, qrCode.TargetURL)
	assert.Equal(t, 0, qrCode.ScanCount)
	assert.Equal(t, "#000000", qrCode.ForegroundColor)
	assert.Equal(t, "#FFFFFF", qrCode.BackgroundColor)
	mockRepo.AssertExpectations(t)
}

func TestQRCodeService_CreateStatic_FormatFailureWritesNothing(t *testing.T) {
	mockRepo := new(MockQRCodeRepository)
	service := services.NewQRCodeService(mockRepo, qr.NewShortCodeGenerator(), nil)

	_, err := service.CreateStatic("user-1", services.CreateStaticInput{
		Content: "MyNet,WPA",
		Type:    models.TypeWifi,
	})
	assert.Error(t, err)

	var formatErr *qr.FormatError
	assert.ErrorAs(t, err, &formatErr)
	assert.Equal(t, qr.ErrInvalidWifiFormat, formatErr.Code)
	mockRepo.AssertNotCalled(t, "Create", mock.Anything)
}

func TestQRCodeService_CreateStatic_Unauthenticated(t *testing.T) {
	mockRepo := new(MockQRCodeRepository)
	service := services.NewQRCodeService(mockRepo, qr.NewShortCodeGenerator(), nil)

	_, err := service.CreateStatic("", services.CreateStaticInput{
		Content: "hello",
		Type:    models.TypeText,
	})
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
	mockRepo.AssertNotCalled(t, "Create", mock.Anything)
}

func TestQRCodeService_CreateDynamic(t *testing.T) {
	mockRepo := new(MockQRCodeRepository)
	mockEvents := new(MockEventPublisher)
	service := services.NewQRCodeService(mockRepo, zeroSourceGenerator(), mockEvents)

	mockRepo.On("ShortCodeExists", "00000000").Return(false, nil).Once()
	mockRepo.On("Create", mock.AnythingOfType("*models.QRCode")).Return(nil).Once()
	mockEvents.On("Publish", "", "qr_events", mock.Anything).Return(nil).Once()

	qrCode, err := service.CreateDynamic("user-1", services.CreateDynamicInput{
		TargetURL: "example.com/landing",
	})
	assert.NoError(t, err)
	assert.True(t, qrCode.IsDynamic)
	assert.Equal(t, models.TypeURL, qrCode.Type)
	assert.NotNil(t, qrCode.ShortCode)
	assert.Len(t, *qrCode.ShortCode, qr.ShortCodeLength)
	assert.Equal(t, *qrCode.ShortCode, qrCode.Data)
	assert.NotNil(t, qrCode.TargetURL)
	assert.Equal(t, "https://example.com/landing", *qrCode.TargetURL)
	assert.Equal(t, 0, qrCode.ScanCount)
	mockRepo.AssertExpectations(t)
	mockEvents.AssertExpectations(t)
}

func TestQRCodeService_CreateDynamic_RetriesOnCollision(t *testing.T) {
	mockRepo := new(MockQRCodeRepository)
	service := services.NewQRCodeService(mockRepo, zeroSourceGenerator(), nil)

	// First draw collides, second succeeds
	mockRepo.On("ShortCodeExists", "00000000").Return(true, nil).Once()
	mockRepo.On("ShortCodeExists", "00000000").Return(false, nil).Once()
	mockRepo.On("Create", mock.AnythingOfType("*models.QRCode")).Return(nil).Once()

	_, err := service.CreateDynamic("user-1", services.CreateDynamicInput{
		TargetURL: "https://example.com",
	})
	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

func TestQRCodeService_CreateDynamic_RetriesOnUniqueIndexBackstop(t *testing.T) {
	mockRepo := new(MockQRCodeRepository)
	service := services.NewQRCodeService(mockRepo, zeroSourceGenerator(), nil)

	// The existence check misses a concurrent insert; the unique index
	// rejects the row and the service redraws.
	mockRepo.On("ShortCodeExists", "00000000").Return(false, nil).Twice()
	mockRepo.On("Create", mock.AnythingOfType("*models.QRCode")).Return(models.ErrShortCodeTaken).Once()
	mockRepo.On("Create", mock.AnythingOfType("*models.QRCode")).Return(nil).Once()

	_, err := service.CreateDynamic("user-1", services.CreateDynamicInput{
		TargetURL: "https://example.com",
	})
	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

func TestQRCodeService_CreateDynamic_GivesUpAfterBoundedRetries(t *testing.T) {
	mockRepo := new(MockQRCodeRepository)
	service := services.NewQRCodeService(mockRepo, zeroSourceGenerator(), nil)

	mockRepo.On("ShortCodeExists", "00000000").Return(true, nil).Times(5)

	_, err := service.CreateDynamic("user-1", services.CreateDynamicInput{
		TargetURL: "https://example.com",
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unique short code")
	mockRepo.AssertNotCalled(t, "Create", mock.Anything)
	mockRepo.AssertExpectations(t)
}

func TestQRCodeService_CreateDynamic_EmptyTargetURL(t *testing.T) {
	mockRepo := new(MockQRCodeRepository)
	service := services.NewQRCodeService(mockRepo, zeroSourceGenerator(), nil)

	_, err := service.CreateDynamic("user-1", services.CreateDynamicInput{})
	assert.Error(t, err)

	var formatErr *qr.FormatError
	assert.ErrorAs(t, err, &formatErr)
	assert.Equal(t, qr.ErrEmptyContent, formatErr.Code)
	mockRepo.AssertNotCalled(t, "Create", mock.Anything)
}

func TestQRCodeService_ListForOwner_UnauthenticatedGetsEmptyList(t *testing.T) {
	mockRepo := new(MockQRCodeRepository)
	service := services.NewQRCodeService(mockRepo, qr.NewShortCodeGenerator(), nil)

	qrCodes, err := service.ListForOwner("")
	assert.NoError(t, err)
	assert.Empty(t, qrCodes)
	mockRepo.AssertNotCalled(t, "ListByUser", mock.Anything)
}

func TestQRCodeService_Update_ForeignRow(t *testing.T) {
	mockRepo := new(MockQRCodeRepository)
	service := services.NewQRCodeService(mockRepo, qr.NewShortCodeGenerator(), nil)

	// Foreign and absent rows look identical
	mockRepo.On("GetOwned", "intruder", uint(7)).Return(nil, models.ErrNotFound).Once()

	_, err := service.Update("intruder", services.UpdateInput{ID: 7, Content: "new", Title: "t"})
	assert.ErrorIs(t, err, models.ErrNotFound)
	mockRepo.AssertNotCalled(t, "UpdateOwned", mock.Anything, mock.Anything)
	mockRepo.AssertExpectations(t)
}

func TestQRCodeService_Update_StaticReformatsPayload(t *testing.T) {
	mockRepo := new(MockQRCodeRepository)
	service := services.NewQRCodeService(mockRepo, qr.NewShortCodeGenerator(), nil)

	existing := &models.QRCode{ID: 3, UserID: "user-1", Type: models.TypeURL, Data: "https://old.example.com"}
	mockRepo.On("GetOwned", "user-1", uint(3)).Return(existing, nil).Once()
	mockRepo.On("UpdateOwned", "user-1", mock.AnythingOfType("*models.QRCode")).Return(nil).Once()

	updated, err := service.Update("user-1", services.UpdateInput{
		ID:      3,
		Title:   "renamed",
		Content: "new.example.com",
	})
	assert.NoError(t, err)
	assert.Equal(t, "https://new.example.com", updated.Data)
	assert.Equal(t, "renamed", updated.Title)
	mockRepo.AssertExpectations(t)
}

func TestQRCodeService_Update_DynamicRetargets(t *testing.T) {
	mockRepo := new(MockQRCodeRepository)
	service := services.NewQRCodeService(mockRepo, qr.NewShortCodeGenerator(), nil)

	shortCode := "Abc123Xy"
	oldTarget := "https://old.example.com"
	existing := &models.QRCode{
		ID: 4, UserID: "user-1", Type: models.TypeURL, Data: shortCode,
		IsDynamic: true, ShortCode: &shortCode, TargetURL: &oldTarget,
	}
	mockRepo.On("GetOwned", "user-1", uint(4)).Return(existing, nil).Once()
	mockRepo.On("UpdateOwned", "user-1", mock.AnythingOfType("*models.QRCode")).Return(nil).Once()

	updated, err := service.Update("user-1", services.UpdateInput{
		ID:        4,
		TargetURL: "new.example.com",
	})
	assert.NoError(t, err)
	assert.Equal(t, "https://new.example.com", *updated.TargetURL)
	// The short code pairing never changes on update
	assert.Equal(t, shortCode, *updated.ShortCode)
	assert.Equal(t, shortCode, updated.Data)
	mockRepo.AssertExpectations(t)
}

func TestQRCodeService_Delete(t *testing.T) {
	mockRepo := new(MockQRCodeRepository)
	service := services.NewQRCodeService(mockRepo, qr.NewShortCodeGenerator(), nil)

	mockRepo.On("DeleteOwned", "user-1", uint(1)).Return(nil).Once()
	assert.NoError(t, service.Delete("user-1", 1))

	mockRepo.On("DeleteOwned", "intruder", uint(1)).Return(models.ErrNotFound).Once()
	assert.ErrorIs(t, service.Delete("intruder", 1), models.ErrNotFound)

	assert.ErrorIs(t, service.Delete("", 1), models.ErrUnauthenticated)
	mockRepo.AssertExpectations(t)
}

func TestQRCodeService_Resolve(t *testing.T) {
	mockRepo := new(MockQRCodeRepository)
	service := services.NewQRCodeService(mockRepo, qr.NewShortCodeGenerator(), nil)

	shortCode := "Abc123Xy"
	target := "https://example.com/landing"
	row := &models.QRCode{ID: 9, IsDynamic: true, ShortCode: &shortCode, TargetURL: &target}

	mockRepo.On("FindByShortCode", shortCode).Return(row, nil).Once()
	mockRepo.On("IncrementScanCount", uint(9)).Return(nil).Once()

	resolved, err := service.Resolve(shortCode)
	assert.NoError(t, err)
	assert.Equal(t, target, resolved)
	mockRepo.AssertExpectations(t)
}

func TestQRCodeService_Resolve_UnknownShortCode(t *testing.T) {
	mockRepo := new(MockQRCodeRepository)
	service := services.NewQRCodeService(mockRepo, qr.NewShortCodeGenerator(), nil)

	mockRepo.On("FindByShortCode", "missing1").Return(nil, models.ErrNotFound).Once()

	_, err := service.Resolve("missing1")
	assert.ErrorIs(t, err, models.ErrNotFound)
	mockRepo.AssertNotCalled(t, "IncrementScanCount", mock.Anything)
	mockRepo.AssertExpectations(t)
}

func TestQRCodeService_Resolve_NonDynamicRow(t *testing.T) {
	mockRepo := new(MockQRCodeRepository)
	service := services.NewQRCodeService(mockRepo, qr.NewShortCodeGenerator(), nil)

	// Should not exist per the data invariants, but resolve defensively
	shortCode := "Abc123Xy"
	row := &models.QRCode{ID: 9, IsDynamic: false, ShortCode: &shortCode, Data: "hello"}
	mockRepo.On("FindByShortCode", shortCode).Return(row, nil).Once()

	_, err := service.Resolve(shortCode)
	assert.ErrorIs(t, err, models.ErrNotFound)
	mockRepo.AssertNotCalled(t, "IncrementScanCount", mock.Anything)
	mockRepo.AssertExpectations(t)
}

func TestQRCodeService_Resolve_ConcurrentScansLoseNoIncrements(t *testing.T) {
	repo := repositories.NewMockQRCodeRepository()
	service := services.NewQRCodeService(repo, qr.NewShortCodeGenerator(), nil)

	qrCode, err := service.CreateDynamic("user-1", services.CreateDynamicInput{
		TargetURL: "https://example.com",
	})
	assert.NoError(t, err)

	const scans = 50
	var wg sync.WaitGroup
	wg.Add(scans)
	for i := 0; i < scans; i++ {
		go func() {
			defer wg.Done()
			target, resolveErr := service.Resolve(*qrCode.ShortCode)
			assert.NoError(t, resolveErr)
			assert.Equal(t, "https://example.com", target)
		}()
	}
	wg.Wait()

	stored, err := repo.FindByShortCode(*qrCode.ShortCode)
	assert.NoError(t, err)
	assert.Equal(t, scans, stored.ScanCount)
}

func TestQRCodeService_StaticRoundTrip(t *testing.T) {
	repo := repositories.NewMockQRCodeRepository()
	service := services.NewQRCodeService(repo, qr.NewShortCodeGenerator(), nil)

	inputs := []struct {
		content string
		qrType  string
	}{
		{"hello", models.TypeText},
		{"example.com", models.TypeURL},
		{"a@b.com?subject=Hi", models.TypeEmail},
		{"(555) 123-4567", models.TypePhone},
	}
	for _, in := range inputs {
		_, err := service.CreateStatic("user-1", services.CreateStaticInput{
			Content: in.content,
			Type:    in.qrType,
		})
		assert.NoError(t, err)
	}

	listed, err := service.ListForOwner("user-1")
	assert.NoError(t, err)
	assert.Len(t, listed, len(inputs))

	for _, row := range listed {
		var match bool
		for _, in := range inputs {
			expected, formatErr := qr.Format(in.content, in.qrType)
			assert.NoError(t, formatErr)
			if row.Type == in.qrType && row.Data == expected {
				match = true
				break
			}
		}
		assert.True(t, match, fmt.Sprintf("row %d data %q does not match any formatted input", row.ID, row.Data))
	}
}

func TestQRCodeService_DynamicCreationsStayUnique(t *testing.T) {
	repo := repositories.NewMockQRCodeRepository()
	service := services.NewQRCodeService(repo, qr.NewShortCodeGenerator(), nil)

	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		qrCode, err := service.CreateDynamic("user-1", services.CreateDynamicInput{
			TargetURL: "https://example.com",
		})
		assert.NoError(t, err)
		_, dup := seen[*qrCode.ShortCode]
		assert.False(t, dup, "duplicate short code %s on creation %d", *qrCode.ShortCode, i)
		seen[*qrCode.ShortCode] = struct{}{}
	}
}
