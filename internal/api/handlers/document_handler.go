package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/infra-assist/backend/internal/ingestion"
	"github.com/infra-assist/backend/pkg/logger"
)

type DocumentHandler struct {
	processor *ingestion.Processor
	ingestDir string
}

func NewDocumentHandler(processor *ingestion.Processor, ingestDir string) *DocumentHandler {
	return &DocumentHandler{
		processor: processor,
		ingestDir: ingestDir,
	}
}

// IngestDirectory triggers a scan of the configured document directory. Files
// already processed are skipped.
func (h *DocumentHandler) IngestDirectory(c *fiber.Ctx) error {
	processed, err := h.processor.IngestDirectory(c.Context(), h.ingestDir)
	if err != nil {
		logger.Error("Directory ingestion failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to ingest documents",
		})
	}

	return c.JSON(fiber.Map{
		"processed": processed,
	})
}

// IngestText ingests a raw text document, such as an exported wiki page.
func (h *DocumentHandler) IngestText(c *fiber.Ctx) error {
	var req struct {
		Source string `json:"source"`
		Title  string `json:"title"`
		Text   string `json:"text"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Source == "" || req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "source and text are required",
		})
	}
	if req.Title == "" {
		req.Title = req.Source
	}

	if err := h.processor.IngestText(c.Context(), req.Source, req.Title, req.Text); err != nil {
		logger.Error("Text ingestion failed", zap.String("source", req.Source), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to ingest document",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"source": req.Source,
		"status": "ingested",
	})
}
