// Package canvas is the signature drawing surface. Strokes are kept as
// vectors and rasterized to PNG on demand.
package canvas

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strconv"
	"strings"
	"sync"

	"github.com/shehryarbajwa/docdesk/pkg/models"
)

const (
	DefaultWidth    = 400
	DefaultHeight   = 150
	DefaultPenColor = "black"

	// MaxWidth and MaxHeight bound the raster allocated by Render
	MaxWidth  = 2048
	MaxHeight = 2048

	dataURLPrefix = "data:image/png;base64,"
	penRadius     = 1
)

// ErrInvalidStroke is returned for empty strokes and points off the canvas
var ErrInvalidStroke = errors.New("invalid stroke")

// Stroke is one continuous pen movement
type Stroke struct {
	Color  string
	Points []models.Point
}

// Canvas records signature strokes
type Canvas struct {
	mu       sync.Mutex
	width    int
	height   int
	penColor string
	strokes  []Stroke
}

// New creates a canvas. Non-positive dimensions fall back to the defaults
// and oversized ones are clamped to MaxWidth and MaxHeight.
func New(width, height int) *Canvas {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	width = min(width, MaxWidth)
	height = min(height, MaxHeight)
	return &Canvas{
		width:    width,
		height:   height,
		penColor: DefaultPenColor,
	}
}

// Size returns the canvas dimensions
func (c *Canvas) Size() (int, int) {
	return c.width, c.height
}

// SetPenColor changes the color used for subsequent strokes
func (c *Canvas) SetPenColor(color string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.penColor = color
}

// PenColor returns the current pen color as given
func (c *Canvas) PenColor() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.penColor
}

// ValidSize reports whether width x height fits within the raster bounds
func ValidSize(width, height int) bool {
	return width > 0 && height > 0 && width <= MaxWidth && height <= MaxHeight
}

// AddStroke records a stroke in the current pen color.
// Every point must lie on the canvas.
func (c *Canvas) AddStroke(points []models.Point) error {
	if len(points) == 0 {
		return fmt.Errorf("%w: stroke has no points", ErrInvalidStroke)
	}
	for _, p := range points {
		if p.X < 0 || p.Y < 0 || p.X >= c.width || p.Y >= c.height {
			return fmt.Errorf("%w: point (%d,%d) is outside the %dx%d canvas", ErrInvalidStroke, p.X, p.Y, c.width, c.height)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	pts := make([]models.Point, len(points))
	copy(pts, points)
	c.strokes = append(c.strokes, Stroke{Color: c.penColor, Points: pts})
	return nil
}

// Clear erases all strokes
func (c *Canvas) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.strokes = nil
}

// IsEmpty reports whether nothing has been drawn
func (c *Canvas) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.strokes) == 0
}

// Render rasterizes the strokes onto a transparent image
func (c *Canvas) Render() image.Image {
	c.mu.Lock()
	defer c.mu.Unlock()

	img := image.NewNRGBA(image.Rect(0, 0, c.width, c.height))
	for _, s := range c.strokes {
		col := ParseColor(s.Color)
		if len(s.Points) == 1 {
			dot(img, s.Points[0].X, s.Points[0].Y, col)
			continue
		}
		for i := 1; i < len(s.Points); i++ {
			line(img, s.Points[i-1], s.Points[i], col)
		}
	}
	return img
}

// DataURL encodes the rendered canvas as a base64 PNG data URL
func (c *Canvas) DataURL() (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, c.Render()); err != nil {
		return "", fmt.Errorf("failed to encode signature: %w", err)
	}
	return dataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// line draws with Bresenham's algorithm
func line(img *image.NRGBA, a, b models.Point, col color.NRGBA) {
	x0, y0, x1, y1 := a.X, a.Y, b.X, b.Y
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	for {
		dot(img, x0, y0, col)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func dot(img *image.NRGBA, x, y int, col color.NRGBA) {
	bounds := img.Bounds()
	for py := y - penRadius; py <= y+penRadius; py++ {
		for px := x - penRadius; px <= x+penRadius; px++ {
			if image.Pt(px, py).In(bounds) {
				img.SetNRGBA(px, py, col)
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

var namedColors = map[string]color.NRGBA{
	"black": {0, 0, 0, 255},
	"white": {255, 255, 255, 255},
	"red":   {255, 0, 0, 255},
	"green": {0, 128, 0, 255},
	"blue":  {0, 0, 255, 255},
	"navy":  {0, 0, 128, 255},
	"gray":  {128, 128, 128, 255},
	"grey":  {128, 128, 128, 255},
}

// ParseColor understands #rgb, #rrggbb and a handful of CSS names.
// Anything else is rendered black.
func ParseColor(s string) color.NRGBA {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := namedColors[s]; ok {
		return c
	}

	black := namedColors["black"]
	if !strings.HasPrefix(s, "#") {
		return black
	}

	hex := s[1:]
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return black
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return black
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}
}
