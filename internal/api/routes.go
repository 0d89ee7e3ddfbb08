package api

import (
	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(app *fiber.App, h *Handler) {
	app.Get("/health", h.Health)
	app.Post("/documents", h.UploadDocuments)
	app.Get("/documents", h.ListDocuments)
	app.Delete("/documents", h.ClearDocuments)
	app.Post("/ask", h.Ask)
	app.Get("/sessions/:id/history", h.SessionHistory)
	app.Delete("/sessions/:id", h.DeleteSession)
}
