package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"qrgen/internal/models"
	"qrgen/internal/qr"
	"qrgen/internal/repositories"
	"qrgen/pkg/rabbitmq"
)

// maxShortCodeAttempts bounds the redraw loop when a freshly generated
// short code collides with an existing row.
const maxShortCodeAttempts = 5

const (
	defaultForegroundColor = "#000000"
	defaultBackgroundColor = "#FFFFFF"
)

// EventPublisher publishes QR lifecycle events to a message broker.
// Publishing is always best-effort: a failure is logged, never surfaced.
type EventPublisher interface {
	Publish(exchange, routingKey string, body []byte) error
}

// QRCodeService owns the storage lifecycle of QR code rows: creation of
// static and dynamic codes, per-owner listing and mutation, and the
// short-code redirect resolution with scan counting.
type QRCodeService struct {
	repo      repositories.QRCodeRepository
	generator *qr.ShortCodeGenerator
	events    EventPublisher
}

// NewQRCodeService creates a new QRCodeService. The events publisher may
// be nil when no broker is configured.
func NewQRCodeService(repo repositories.QRCodeRepository, generator *qr.ShortCodeGenerator, events EventPublisher) *QRCodeService {
	return &QRCodeService{
		repo:      repo,
		generator: generator,
		events:    events,
	}
}

// CreateStaticInput carries the caller-supplied fields for a static code.
type CreateStaticInput struct {
	Content         string
	Type            string
	Title           string
	ForegroundColor string
	BackgroundColor string
}

// CreateDynamicInput carries the caller-supplied fields for a dynamic code.
type CreateDynamicInput struct {
	TargetURL       string
	Title           string
	ForegroundColor string
	BackgroundColor string
}

// UpdateInput carries the mutable fields for an existing row. Content is
// the new payload for static rows, TargetURL the new destination for
// dynamic ones; the irrelevant field is ignored.
type UpdateInput struct {
	ID              uint
	Title           string
	Content         string
	TargetURL       string
	ForegroundColor string
	BackgroundColor string
}

// CreateStatic formats the content for the given type and persists a new
// static QR code owned by ownerID. On a formatting failure nothing is
// written.
func (s *QRCodeService) CreateStatic(ownerID string, input CreateStaticInput) (*models.QRCode, error) {
	if ownerID == "" {
		return nil, models.ErrUnauthenticated
	}

	formatted, err := qr.Format(input.Content, input.Type)
	if err != nil {
		return nil, err
	}

	qrCode := &models.QRCode{
		UserID:          ownerID,
		Title:           input.Title,
		Type:            input.Type,
		Data:            formatted,
		IsDynamic:       false,
		ScanCount:       0,
		ForegroundColor: colorOrDefault(input.ForegroundColor, defaultForegroundColor),
		BackgroundColor: colorOrDefault(input.BackgroundColor, defaultBackgroundColor),
		CreatedAt:       time.Now(),
	}

	if err := s.repo.Create(qrCode); err != nil {
		return nil, fmt.Errorf("failed to save static qr code: %w", err)
	}

	s.publishEvent("qr.created", qrCode)
	return qrCode, nil
}

// CreateDynamic allocates a unique short code and persists a new dynamic
// QR code redirecting to targetURL. Collisions are resolved internally
// with fresh draws; the unique index on short_code backstops the check.
func (s *QRCodeService) CreateDynamic(ownerID string, input CreateDynamicInput) (*models.QRCode, error) {
	if ownerID == "" {
		return nil, models.ErrUnauthenticated
	}

	targetURL, err := normalizeTargetURL(input.TargetURL)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxShortCodeAttempts; attempt++ {
		shortCode, err := s.generator.Generate()
		if err != nil {
			return nil, fmt.Errorf("failed to generate short code: %w", err)
		}

		taken, err := s.repo.ShortCodeExists(shortCode)
		if err != nil {
			return nil, fmt.Errorf("failed to check short code uniqueness: %w", err)
		}
		if taken {
			continue
		}

		qrCode := &models.QRCode{
			UserID:          ownerID,
			Title:           input.Title,
			Type:            models.TypeURL,
			Data:            shortCode, // kept in sync with ShortCode for older readers
			IsDynamic:       true,
			ShortCode:       &shortCode,
			TargetURL:       &targetURL,
			ScanCount:       0,
			ForegroundColor: colorOrDefault(input.ForegroundColor, defaultForegroundColor),
			BackgroundColor: colorOrDefault(input.BackgroundColor, defaultBackgroundColor),
			CreatedAt:       time.Now(),
		}

		err = s.repo.Create(qrCode)
		if errors.Is(err, models.ErrShortCodeTaken) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to save dynamic qr code: %w", err)
		}

		s.publishEvent("qr.created", qrCode)
		return qrCode, nil
	}

	return nil, fmt.Errorf("failed to allocate a unique short code after %d attempts", maxShortCodeAttempts)
}

// ListForOwner returns all QR codes owned by ownerID, newest first. An
// unauthenticated caller gets an empty list, never an error.
func (s *QRCodeService) ListForOwner(ownerID string) ([]models.QRCode, error) {
	if ownerID == "" {
		return []models.QRCode{}, nil
	}
	return s.repo.ListByUser(ownerID)
}

// GetForOwner returns a single QR code only if ownerID owns it.
func (s *QRCodeService) GetForOwner(ownerID string, id uint) (*models.QRCode, error) {
	if ownerID == "" {
		return nil, models.ErrUnauthenticated
	}
	return s.repo.GetOwned(ownerID, id)
}

// Update overwrites title, colors, and the payload (content for static
// rows, target URL for dynamic ones) of an owned row. CreatedAt and the
// dynamic/short-code pairing are never altered.
func (s *QRCodeService) Update(ownerID string, input UpdateInput) (*models.QRCode, error) {
	if ownerID == "" {
		return nil, models.ErrUnauthenticated
	}

	existing, err := s.repo.GetOwned(ownerID, input.ID)
	if err != nil {
		return nil, err
	}

	existing.Title = input.Title
	existing.ForegroundColor = colorOrDefault(input.ForegroundColor, existing.ForegroundColor)
	existing.BackgroundColor = colorOrDefault(input.BackgroundColor, existing.BackgroundColor)

	if existing.IsDynamic {
		targetURL, err := normalizeTargetURL(input.TargetURL)
		if err != nil {
			return nil, err
		}
		existing.TargetURL = &targetURL
	} else {
		formatted, err := qr.Format(input.Content, existing.Type)
		if err != nil {
			return nil, err
		}
		existing.Data = formatted
	}

	if err := s.repo.UpdateOwned(ownerID, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// Delete removes an owned row.
func (s *QRCodeService) Delete(ownerID string, id uint) error {
	if ownerID == "" {
		return models.ErrUnauthenticated
	}
	return s.repo.DeleteOwned(ownerID, id)
}

// Resolve looks up a dynamic QR code by short code, counts the scan, and
// returns the redirect target. Unknown codes, static rows, and rows with
// no target all collapse to ErrNotFound so nothing about foreign rows is
// leaked to anonymous scanners.
func (s *QRCodeService) Resolve(shortCode string) (string, error) {
	qrCode, err := s.repo.FindByShortCode(shortCode)
	if err != nil {
		return "", err
	}

	if !qrCode.IsDynamic || qrCode.TargetURL == nil || *qrCode.TargetURL == "" {
		return "", models.ErrNotFound
	}

	if err := s.repo.IncrementScanCount(qrCode.ID); err != nil {
		return "", fmt.Errorf("failed to count scan for qr code %d: %w", qrCode.ID, err)
	}

	s.publishEvent("qr.scanned", qrCode)
	return *qrCode.TargetURL, nil
}

// publishEvent emits a lifecycle event when a broker is configured.
// Events go through the default exchange straight to the QR events queue.
// Failures are logged and swallowed; the request outcome never depends
// on the broker.
func (s *QRCodeService) publishEvent(eventType string, qrCode *models.QRCode) {
	if s.events == nil {
		return
	}

	event := map[string]interface{}{
		"event":     eventType,
		"qrCodeID":  qrCode.ID,
		"userID":    qrCode.UserID,
		"isDynamic": qrCode.IsDynamic,
		"type":      qrCode.Type,
	}
	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to marshal %s event for qr code %d: %v", eventType, qrCode.ID, err)
		return
	}
	if err := s.events.Publish("", rabbitmq.QueueName, body); err != nil {
		log.Printf("Warning: failed to publish %s event for qr code %d: %v", eventType, qrCode.ID, err)
	}
}

// normalizeTargetURL prepends https:// when no scheme is present, the
// same treatment static URL payloads get from the formatter.
func normalizeTargetURL(targetURL string) (string, error) {
	if targetURL == "" {
		return "", &qr.FormatError{
			Code:    qr.ErrEmptyContent,
			Message: "Target URL cannot be empty for dynamic QR codes.",
		}
	}
	lower := strings.ToLower(targetURL)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return "https://" + targetURL, nil
	}
	return targetURL, nil
}

func colorOrDefault(color, fallback string) string {
	if color == "" {
		return fallback
	}
	return color
}
