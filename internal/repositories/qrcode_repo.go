package repositories

import (
	"qrgen/internal/models"
)

// QRCodeRepository defines the interface for QR code data access.
//
// Every owner-scoped method filters by user ID at the storage layer so a
// caller can never touch another user's rows.
type QRCodeRepository interface {
	Create(qrCode *models.QRCode) error
	ListByUser(userID string) ([]models.QRCode, error)
	GetOwned(userID string, id uint) (*models.QRCode, error)
	UpdateOwned(userID string, qrCode *models.QRCode) error
	DeleteOwned(userID string, id uint) error
	FindByShortCode(shortCode string) (*models.QRCode, error)
	IncrementScanCount(id uint) error
	ShortCodeExists(shortCode string) (bool, error)
}
