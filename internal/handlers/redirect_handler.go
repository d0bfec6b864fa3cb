package handlers

import (
	"errors"
	"log"

	"qrgen/internal/models"
	"qrgen/internal/services"

	"github.com/gofiber/fiber/v2"
)

// RedirectHandler serves the public scan endpoint. Scanning is anonymous;
// no authentication is applied here.
type RedirectHandler struct {
	service *services.QRCodeService
}

// NewRedirectHandler creates a new RedirectHandler.
func NewRedirectHandler(service *services.QRCodeService) *RedirectHandler {
	return &RedirectHandler{
		service: service,
	}
}

// RegisterRoutes registers the redirect route at the app root.
func (h *RedirectHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/qr/:shortCode", h.HandleRedirect)
}

// HandleRedirect resolves a short code, counts the scan, and redirects
// the scanner to the target URL.
func (h *RedirectHandler) HandleRedirect(c *fiber.Ctx) error {
	shortCode := c.Params("shortCode")
	if shortCode == "" {
		return c.Status(fiber.StatusBadRequest).SendString("Short code is missing.")
	}

	targetURL, err := h.service.Resolve(shortCode)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).SendString("QR code not found or is not dynamic.")
		}
		log.Printf("Error resolving short code %s: %v", shortCode, err)
		return c.Status(fiber.StatusInternalServerError).SendString("Internal Server Error.")
	}

	return c.Redirect(targetURL, fiber.StatusFound)
}
