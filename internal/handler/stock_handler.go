package handler

import (
	"go-pos-backend/internal/model"
	"go-pos-backend/internal/repository"
	"go-pos-backend/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type StockHandler struct {
	service service.CheckoutService
}

func NewStockHandler(s service.CheckoutService) *StockHandler {
	return &StockHandler{service: s}
}

// AdjustStock handles manual IN/OUT/ADJUSTMENT movements.
func (h *StockHandler) AdjustStock(c *fiber.Ctx) error {
	var req service.AdjustStockRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	actorID, err := getUserID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": "Invalid user context"})
	}

	entry, err := h.service.AdjustStock(&req, actorID)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(201).JSON(entry)
}

// GetStockHistory lists ledger entries, filterable by movement type, product
// and date range, paginated.
func (h *StockHandler) GetStockHistory(c *fiber.Ctx) error {
	filter := repository.LedgerFilter{
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("pageSize", 50),
	}
	filter.StartDate, filter.EndDate = parseDateRange(c)

	if raw := c.Query("type"); raw != "" {
		movement := model.MovementType(raw)
		if service.ValidMovementType(movement) {
			filter.Type = &movement
		}
	}
	if raw := c.Query("productId"); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			filter.ProductID = &id
		}
	}

	page, err := h.service.GetStockHistory(filter)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Internal Server Error"})
	}
	return c.JSON(page)
}
