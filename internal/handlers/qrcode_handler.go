package handlers

import (
	"errors"
	"fmt"
	"log"

	"qrgen/internal/middleware"
	"qrgen/internal/models"
	"qrgen/internal/qr"
	"qrgen/internal/services"
	"qrgen/pkg/qrimage"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// QRCodeHandler handles HTTP requests for QR code management.
type QRCodeHandler struct {
	service  *services.QRCodeService
	validate *validator.Validate
	baseURL  string
}

// NewQRCodeHandler creates a new QRCodeHandler. baseURL is the public
// origin embedded into dynamic QR images (e.g. "https://qr.example.com").
func NewQRCodeHandler(service *services.QRCodeService, baseURL string) *QRCodeHandler {
	return &QRCodeHandler{
		service:  service,
		validate: validator.New(),
		baseURL:  baseURL,
	}
}

// RegisterRoutes registers the QR code routes with the Fiber app. All of
// them require an authenticated owner.
func (h *QRCodeHandler) RegisterRoutes(router fiber.Router) {
	qrRoutes := router.Group("/qrcodes")
	qrRoutes.Get("/", h.HandleList)
	qrRoutes.Post("/", h.HandleCreateStatic)
	qrRoutes.Post("/dynamic", h.HandleCreateDynamic)
	qrRoutes.Put("/:id", h.HandleUpdate)
	qrRoutes.Delete("/:id", h.HandleDelete)
	qrRoutes.Get("/:id/image", h.HandleImage)
}

// CreateStaticRequest represents the request body for a static QR code.
// Content is left to the payload formatter so its validation messages
// reach the caller verbatim.
type CreateStaticRequest struct {
	Title           string `json:"title" validate:"omitempty,max=255"`
	Content         string `json:"content"`
	Type            string `json:"type" validate:"required,oneof=text url email phone sms wifi"`
	ForegroundColor string `json:"foreground_color" validate:"omitempty,hexcolor"`
	BackgroundColor string `json:"background_color" validate:"omitempty,hexcolor"`
}

// CreateDynamicRequest represents the request body for a dynamic QR code.
type CreateDynamicRequest struct {
	Title           string `json:"title" validate:"omitempty,max=255"`
	TargetURL       string `json:"target_url"`
	ForegroundColor string `json:"foreground_color" validate:"omitempty,hexcolor"`
	BackgroundColor string `json:"background_color" validate:"omitempty,hexcolor"`
}

// UpdateRequest represents the request body for editing a QR code.
// Content applies to static rows, TargetURL to dynamic ones.
type UpdateRequest struct {
	Title           string `json:"title" validate:"omitempty,max=255"`
	Content         string `json:"content"`
	TargetURL       string `json:"target_url"`
	ForegroundColor string `json:"foreground_color" validate:"omitempty,hexcolor"`
	BackgroundColor string `json:"background_color" validate:"omitempty,hexcolor"`
}

// HandleCreateStatic formats and saves a new static QR code.
func (h *QRCodeHandler) HandleCreateStatic(c *fiber.Ctx) error {
	var req CreateStaticRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing create request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	if msgs := h.validationErrors(req); msgs != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  msgs,
		})
	}

	qrCode, err := h.service.CreateStatic(middleware.UserID(c), services.CreateStaticInput{
		Content:         req.Content,
		Type:            req.Type,
		Title:           req.Title,
		ForegroundColor: req.ForegroundColor,
		BackgroundColor: req.BackgroundColor,
	})
	if err != nil {
		return h.errorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(qrCode)
}

// HandleCreateDynamic mints a short code and saves a new dynamic QR code.
func (h *QRCodeHandler) HandleCreateDynamic(c *fiber.Ctx) error {
	var req CreateDynamicRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing create dynamic request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	if msgs := h.validationErrors(req); msgs != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  msgs,
		})
	}

	qrCode, err := h.service.CreateDynamic(middleware.UserID(c), services.CreateDynamicInput{
		TargetURL:       req.TargetURL,
		Title:           req.Title,
		ForegroundColor: req.ForegroundColor,
		BackgroundColor: req.BackgroundColor,
	})
	if err != nil {
		return h.errorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"qr_code":      qrCode,
		"redirect_url": h.redirectURL(qrCode),
	})
}

// HandleList returns the caller's QR codes, newest first.
func (h *QRCodeHandler) HandleList(c *fiber.Ctx) error {
	qrCodes, err := h.service.ListForOwner(middleware.UserID(c))
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(qrCodes)
}

// HandleUpdate edits the title, payload, and colors of an owned QR code.
func (h *QRCodeHandler) HandleUpdate(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid QR code id",
		})
	}

	var req UpdateRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing update request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	if msgs := h.validationErrors(req); msgs != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  msgs,
		})
	}

	qrCode, err := h.service.Update(middleware.UserID(c), services.UpdateInput{
		ID:              uint(id),
		Title:           req.Title,
		Content:         req.Content,
		TargetURL:       req.TargetURL,
		ForegroundColor: req.ForegroundColor,
		BackgroundColor: req.BackgroundColor,
	})
	if err != nil {
		return h.errorResponse(c, err)
	}

	return c.JSON(qrCode)
}

// HandleDelete removes an owned QR code.
func (h *QRCodeHandler) HandleDelete(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid QR code id",
		})
	}

	if err := h.service.Delete(middleware.UserID(c), uint(id)); err != nil {
		return h.errorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "QR code deleted.",
	})
}

// HandleImage renders an owned QR code as a PNG. Dynamic codes encode
// their public redirect URL, static codes their stored payload.
func (h *QRCodeHandler) HandleImage(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid QR code id",
		})
	}

	qrCode, err := h.service.GetForOwner(middleware.UserID(c), uint(id))
	if err != nil {
		return h.errorResponse(c, err)
	}

	payload := qrCode.Data
	if qrCode.IsDynamic {
		payload = h.redirectURL(qrCode)
	}

	size := c.QueryInt("size", qrimage.DefaultSize)
	png, err := qrimage.Render(payload, size, qrCode.ForegroundColor, qrCode.BackgroundColor)
	if err != nil {
		log.Printf("Error rendering qr code %d: %v", qrCode.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not render QR code image",
		})
	}

	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(png)
}

func (h *QRCodeHandler) redirectURL(qrCode *models.QRCode) string {
	if qrCode.ShortCode == nil {
		return ""
	}
	return fmt.Sprintf("%s/qr/%s", h.baseURL, *qrCode.ShortCode)
}

// validationErrors runs the validator over a request DTO and returns a
// field-to-message map, or nil when the request is valid.
func (h *QRCodeHandler) validationErrors(req interface{}) map[string]string {
	err := h.validate.Struct(req)
	if err == nil {
		return nil
	}
	validationErrors := err.(validator.ValidationErrors)
	errorMessages := make(map[string]string)
	for _, e := range validationErrors {
		errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return errorMessages
}

// errorResponse maps service errors to HTTP statuses. Storage detail is
// logged server-side only.
func (h *QRCodeHandler) errorResponse(c *fiber.Ctx, err error) error {
	var formatErr *qr.FormatError
	switch {
	case errors.As(err, &formatErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": formatErr.Message,
		})
	case errors.Is(err, models.ErrUnauthenticated):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Please sign in.",
		})
	case errors.Is(err, models.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "QR code not found or no permission.",
		})
	default:
		log.Printf("QR code request failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Something went wrong. Please try again.",
		})
	}
}
