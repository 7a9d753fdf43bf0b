package settlement

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/carboncred/carboncred/internal/registry"
)

// Handler exposes the audit settlement endpoint. Both the direct caller and
// the OCR-derived caller post here; the consumption figure is already
// extracted upstream.
type Handler struct {
	service *Service
}

// NewHandler constructs a settlement handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type settleRequest struct {
	AuditedConsumption int64 `json:"audited_consumption"`
}

// Settle runs a settlement for the named company.
func (h *Handler) Settle(c *fiber.Ctx) error {
	name := c.Params("name")
	var req settleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	outcome, err := h.service.Settle(c.UserContext(), name, req.AuditedConsumption)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrUnknownCompany):
			return fiber.NewError(http.StatusNotFound, err.Error())
		case errors.Is(err, ErrNotActive):
			return fiber.NewError(http.StatusConflict, err.Error())
		default:
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"status":         string(outcome.Status),
		"required_burn":  outcome.RequiredBurn,
		"burned":         outcome.Burned,
		"net_surplus":    outcome.NetSurplus,
		"shortfall":      outcome.Shortfall,
		"transaction_id": outcome.TransactionID,
	})
}
