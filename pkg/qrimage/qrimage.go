package qrimage

import (
	"fmt"
	"image/color"
	"strconv"

	qrcode "github.com/skip2/go-qrcode"
)

// DefaultSize is the PNG edge length used when the caller does not ask
// for a specific size.
const DefaultSize = 256

// Render encodes an already-formatted payload string into a PNG image of
// the given pixel size, using the row's foreground and background colors.
func Render(payload string, size int, foregroundHex, backgroundHex string) ([]byte, error) {
	if payload == "" {
		return nil, fmt.Errorf("cannot render an empty payload")
	}
	if size <= 0 {
		size = DefaultSize
	}

	code, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to build qr code: %w", err)
	}

	code.ForegroundColor = parseHexColor(foregroundHex, color.Black)
	code.BackgroundColor = parseHexColor(backgroundHex, color.White)

	png, err := code.PNG(size)
	if err != nil {
		return nil, fmt.Errorf("failed to render qr code png: %w", err)
	}
	return png, nil
}

// parseHexColor reads a "#RRGGBB" string, with or without the leading
// '#'. Anything that is not six hex digits falls back to the default.
func parseHexColor(hex string, fallback color.Color) color.Color {
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	if len(hex) != 6 {
		return fallback
	}
	value, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return fallback
	}
	return color.RGBA{
		R: uint8(value >> 16),
		G: uint8(value >> 8),
		B: uint8(value),
		A: 0xFF,
	}
}
