package repositories

import (
	"sort"
	"sync"

	"qrgen/internal/models"
)

// MockQRCodeRepository is an in-memory implementation of QRCodeRepository.
// It mirrors the ownership and uniqueness semantics of the GORM
// implementation and is safe for concurrent use.
type MockQRCodeRepository struct {
	qrCodes map[uint]models.QRCode
	nextID  uint
	mu      sync.RWMutex
}

// NewMockQRCodeRepository creates a new instance of MockQRCodeRepository.
func NewMockQRCodeRepository() *MockQRCodeRepository {
	return &MockQRCodeRepository{
		qrCodes: make(map[uint]models.QRCode),
		nextID:  1,
	}
}

// Create adds a new QR code, assigning the next free ID.
func (r *MockQRCodeRepository) Create(qrCode *models.QRCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if qrCode.ShortCode != nil {
		for _, existing := range r.qrCodes {
			if existing.ShortCode != nil && *existing.ShortCode == *qrCode.ShortCode {
				return models.ErrShortCodeTaken
			}
		}
	}

	qrCode.ID = r.nextID
	r.nextID++
	r.qrCodes[qrCode.ID] = *qrCode
	return nil
}

// ListByUser returns the user's QR codes, newest first.
func (r *MockQRCodeRepository) ListByUser(userID string) ([]models.QRCode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	qrCodeList := make([]models.QRCode, 0)
	for _, q := range r.qrCodes {
		if q.UserID == userID {
			qrCodeList = append(qrCodeList, q)
		}
	}
	sort.Slice(qrCodeList, func(i, j int) bool {
		if qrCodeList[i].CreatedAt.Equal(qrCodeList[j].CreatedAt) {
			return qrCodeList[i].ID > qrCodeList[j].ID
		}
		return qrCodeList[i].CreatedAt.After(qrCodeList[j].CreatedAt)
	})
	return qrCodeList, nil
}

// GetOwned returns a QR code only if the given user owns it.
func (r *MockQRCodeRepository) GetOwned(userID string, id uint) (*models.QRCode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	qrCode, ok := r.qrCodes[id]
	if !ok || qrCode.UserID != userID {
		return nil, models.ErrNotFound
	}
	return &qrCode, nil
}

// UpdateOwned overwrites the mutable fields of an owned row.
func (r *MockQRCodeRepository) UpdateOwned(userID string, qrCode *models.QRCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.qrCodes[qrCode.ID]
	if !ok || existing.UserID != userID {
		return models.ErrNotFound
	}

	existing.Title = qrCode.Title
	existing.ForegroundColor = qrCode.ForegroundColor
	existing.BackgroundColor = qrCode.BackgroundColor
	if existing.IsDynamic {
		existing.TargetURL = qrCode.TargetURL
	} else {
		existing.Data = qrCode.Data
	}
	r.qrCodes[existing.ID] = existing
	return nil
}

// DeleteOwned removes a row only if the given user owns it.
func (r *MockQRCodeRepository) DeleteOwned(userID string, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	qrCode, ok := r.qrCodes[id]
	if !ok || qrCode.UserID != userID {
		return models.ErrNotFound
	}
	delete(r.qrCodes, id)
	return nil
}

// FindByShortCode returns the row holding the given code, if any.
func (r *MockQRCodeRepository) FindByShortCode(shortCode string) (*models.QRCode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, q := range r.qrCodes {
		if q.ShortCode != nil && *q.ShortCode == shortCode {
			qrCode := q
			return &qrCode, nil
		}
	}
	return nil, models.ErrNotFound
}

// IncrementScanCount bumps the scan counter by one under the write lock.
func (r *MockQRCodeRepository) IncrementScanCount(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	qrCode, ok := r.qrCodes[id]
	if !ok {
		return models.ErrNotFound
	}
	qrCode.ScanCount++
	r.qrCodes[id] = qrCode
	return nil
}

// ShortCodeExists reports whether any row already holds the given code.
func (r *MockQRCodeRepository) ShortCodeExists(shortCode string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, q := range r.qrCodes {
		if q.ShortCode != nil && *q.ShortCode == shortCode {
			return true, nil
		}
	}
	return false, nil
}
