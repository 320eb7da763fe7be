package handlers

import (
	"github.com/labstack/echo/v4"
)

// StaticHandler serves the landing page
type StaticHandler struct {
	indexPath string
}

// NewStaticHandler creates a static handler serving the given index file
func NewStaticHandler(indexPath string) *StaticHandler {
	return &StaticHandler{indexPath: indexPath}
}

// Register registers the root route
func (h *StaticHandler) Register(e *echo.Echo) {
	e.GET("/", h.Index)
}

// Index serves the landing page
func (h *StaticHandler) Index(c echo.Context) error {
	return c.File(h.indexPath)
}
