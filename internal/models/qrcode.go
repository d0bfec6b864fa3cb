package models

import "time"

// QR code payload types. Dynamic codes are always effectively TypeURL.
const (
	TypeText  = "text"
	TypeURL   = "url"
	TypeEmail = "email"
	TypePhone = "phone"
	TypeSMS   = "sms"
	TypeWifi  = "wifi"
)

// QRCode represents a saved QR code, static or dynamic.
//
// For a static code, Data holds the fully formatted payload that gets
// encoded in the image. For a dynamic code, ShortCode is the authoritative
// redirect key; Data carries a copy of it for compatibility with older
// rows, and TargetURL is the mutable redirect destination.
type QRCode struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	UserID          string    `json:"user_id" gorm:"index;type:varchar(36);not null"`
	Title           string    `json:"title" gorm:"type:varchar(255)"`
	Type            string    `json:"type" gorm:"type:varchar(16);not null;default:text"`
	Data            string    `json:"data" gorm:"type:text;not null"`
	IsDynamic       bool      `json:"is_dynamic" gorm:"not null;default:false"`
	ShortCode       *string   `json:"short_code" gorm:"uniqueIndex;type:varchar(16)"`
	TargetURL       *string   `json:"target_url" gorm:"type:text"`
	ScanCount       int       `json:"scan_count" gorm:"not null;default:0"`
	ForegroundColor string    `json:"foreground_color" gorm:"type:varchar(7);default:#000000"`
	BackgroundColor string    `json:"background_color" gorm:"type:varchar(7);default:#FFFFFF"`
	CreatedAt       time.Time `json:"created_at"`
}
