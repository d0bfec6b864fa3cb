package repositories

import (
	"errors"
	"fmt"

	"qrgen/internal/models"

	"gorm.io/gorm"
)

// GORMQRCodeRepository is a GORM implementation of QRCodeRepository.
type GORMQRCodeRepository struct {
	db *gorm.DB
}

// NewGORMQRCodeRepository creates a new instance of GORMQRCodeRepository.
func NewGORMQRCodeRepository(db *gorm.DB) *GORMQRCodeRepository {
	return &GORMQRCodeRepository{
		db: db,
	}
}

// Create inserts a new QR code row. A unique index on short_code is the
// hard uniqueness guarantee; a violation surfaces as ErrShortCodeTaken so
// the service can redraw.
func (r *GORMQRCodeRepository) Create(qrCode *models.QRCode) error {
	if err := r.db.Create(qrCode).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.ErrShortCodeTaken
		}
		return fmt.Errorf("failed to create qr code: %w", err)
	}
	return nil
}

// ListByUser retrieves all QR codes owned by the given user, newest first.
func (r *GORMQRCodeRepository) ListByUser(userID string) ([]models.QRCode, error) {
	var qrCodes []models.QRCode
	if err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&qrCodes).Error; err != nil {
		return nil, fmt.Errorf("failed to list qr codes for user %s: %w", userID, err)
	}
	return qrCodes, nil
}

// GetOwned retrieves a single QR code only if it belongs to the given
// user. A foreign or missing row is reported identically as ErrNotFound.
func (r *GORMQRCodeRepository) GetOwned(userID string, id uint) (*models.QRCode, error) {
	var qrCode models.QRCode
	if err := r.db.First(&qrCode, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get qr code %d: %w", id, err)
	}
	return &qrCode, nil
}

// UpdateOwned overwrites the mutable fields of an owned row: title,
// colors, and the payload (data for static rows, target_url for dynamic
// ones). CreatedAt, is_dynamic, short_code and scan_count are never
// touched here.
func (r *GORMQRCodeRepository) UpdateOwned(userID string, qrCode *models.QRCode) error {
	columns := map[string]interface{}{
		"title":            qrCode.Title,
		"foreground_color": qrCode.ForegroundColor,
		"background_color": qrCode.BackgroundColor,
	}
	if qrCode.IsDynamic {
		columns["target_url"] = qrCode.TargetURL
	} else {
		columns["data"] = qrCode.Data
	}

	res := r.db.Model(&models.QRCode{}).
		Where("id = ? AND user_id = ?", qrCode.ID, userID).
		Updates(columns)
	if res.Error != nil {
		return fmt.Errorf("failed to update qr code %d: %w", qrCode.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteOwned deletes a row only if it belongs to the given user.
func (r *GORMQRCodeRepository) DeleteOwned(userID string, id uint) error {
	res := r.db.Delete(&models.QRCode{}, "id = ? AND user_id = ?", id, userID)
	if res.Error != nil {
		return fmt.Errorf("failed to delete qr code %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// FindByShortCode retrieves a row by its short code, case-sensitively.
func (r *GORMQRCodeRepository) FindByShortCode(shortCode string) (*models.QRCode, error) {
	var qrCode models.QRCode
	if err := r.db.First(&qrCode, "short_code = ?", shortCode).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find qr code by short code: %w", err)
	}
	return &qrCode, nil
}

// IncrementScanCount bumps the scan counter by one. The increment is
// evaluated at the storage layer so concurrent scans never lose updates.
func (r *GORMQRCodeRepository) IncrementScanCount(id uint) error {
	res := r.db.Model(&models.QRCode{}).
		Where("id = ?", id).
		UpdateColumn("scan_count", gorm.Expr("scan_count + ?", 1))
	if res.Error != nil {
		return fmt.Errorf("failed to increment scan count for qr code %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ShortCodeExists reports whether any row already holds the given code.
func (r *GORMQRCodeRepository) ShortCodeExists(shortCode string) (bool, error) {
	var count int64
	if err := r.db.Model(&models.QRCode{}).Where("short_code = ?", shortCode).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check short code existence: %w", err)
	}
	return count > 0, nil
}
