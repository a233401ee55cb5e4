package handler

import (
	"time"

	"go-pos-backend/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ReportHandler struct {
	service service.ReportService
}

func NewReportHandler(s service.ReportService) *ReportHandler {
	return &ReportHandler{service: s}
}

func (h *ReportHandler) GetDashboard(c *fiber.Ctx) error {
	stats, err := h.service.GetDashboardStats()
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Internal Server Error"})
	}
	return c.JSON(stats)
}

func (h *ReportHandler) GetSalesReport(c *fiber.Ctx) error {
	groupBy := c.Query("groupBy", "day")

	start, end := parseDateRange(c)
	if start == nil || end == nil {
		// Default to the last 30 days
		now := time.Now()
		from := now.AddDate(0, 0, -30)
		start, end = &from, &now
	}

	report, err := h.service.GetSalesReport(*start, *end, groupBy)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Internal Server Error"})
	}
	return c.JSON(report)
}

func (h *ReportHandler) GetStockMovement(c *fiber.Ctx) error {
	start, end := parseDateRange(c)
	if start == nil || end == nil {
		now := time.Now()
		from := now.AddDate(0, 0, -7)
		start, end = &from, &now
	}

	data, err := h.service.GetStockMovement(*start, *end)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Internal Server Error"})
	}
	return c.JSON(data)
}
