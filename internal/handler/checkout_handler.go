package handler

import (
	"errors"
	"time"

	"go-pos-backend/internal/model"
	"go-pos-backend/internal/repository"
	"go-pos-backend/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type CheckoutHandler struct {
	service service.CheckoutService
}

func NewCheckoutHandler(s service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{service: s}
}

// Helper untuk ambil User Info dari JWT Context (set by auth middleware)
func getUserID(c *fiber.Ctx) (uuid.UUID, error) {
	raw, ok := c.Locals("user_id").(string)
	if !ok {
		return uuid.Nil, errors.New("no user in context")
	}
	return uuid.Parse(raw)
}

func getUserRole(c *fiber.Ctx) string {
	role, _ := c.Locals("user_role").(string)
	return role
}

// parseDateRange reads optional startDate/endDate query params (YYYY-MM-DD),
// widening endDate to the end of its day.
func parseDateRange(c *fiber.Ctx) (*time.Time, *time.Time) {
	startRaw := c.Query("startDate")
	endRaw := c.Query("endDate")
	if startRaw == "" || endRaw == "" {
		return nil, nil
	}

	start, err := time.Parse("2006-01-02", startRaw)
	if err != nil {
		return nil, nil
	}
	end, err := time.Parse("2006-01-02", endRaw)
	if err != nil {
		return nil, nil
	}
	end = end.Add(24*time.Hour - time.Nanosecond)
	return &start, &end
}

// statusFor maps core errors to HTTP statuses: validation rejects are the
// client's fault, commit failures are ours.
func statusFor(err error) int {
	var notFound *service.ProductNotFoundError
	if errors.As(err, &notFound) {
		return fiber.StatusNotFound
	}
	if service.IsValidationError(err) {
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

func (h *CheckoutHandler) Checkout(c *fiber.Ctx) error {
	var req service.CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	cashierID, err := getUserID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": "Invalid user context"})
	}

	transaction, err := h.service.Checkout(&req, cashierID)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(201).JSON(transaction)
}

func (h *CheckoutHandler) GetTransactions(c *fiber.Ctx) error {
	filter := repository.TransactionFilter{}
	filter.StartDate, filter.EndDate = parseDateRange(c)

	// Kasir can only see their own transactions
	if getUserRole(c) == string(model.RoleKasir) {
		kasirID, err := getUserID(c)
		if err != nil {
			return c.Status(401).JSON(fiber.Map{"error": "Invalid user context"})
		}
		filter.KasirID = &kasirID
	} else if raw := c.Query("userId"); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			filter.KasirID = &id
		}
	}

	transactions, err := h.service.GetTransactions(filter)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Internal Server Error"})
	}
	return c.JSON(transactions)
}

func (h *CheckoutHandler) GetTransaction(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid transaction ID"})
	}

	transaction, err := h.service.GetTransactionByID(id)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "Transaction not found"})
	}

	// Kasir can only open their own receipts
	if getUserRole(c) == string(model.RoleKasir) {
		kasirID, _ := getUserID(c)
		if transaction.UserID != kasirID {
			return c.Status(403).JSON(fiber.Map{"error": "Forbidden"})
		}
	}

	return c.JSON(transaction)
}

// GetNota serves the receipt data for one invoice number, used by the
// printable nota page.
func (h *CheckoutHandler) GetNota(c *fiber.Ctx) error {
	invoiceNumber := c.Params("invoiceNumber")
	if invoiceNumber == "" {
		return c.Status(400).JSON(fiber.Map{"error": "Missing invoice number"})
	}

	transaction, err := h.service.GetTransactionByInvoice(invoiceNumber)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "Transaction not found"})
	}
	return c.JSON(transaction)
}
