package registry

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/carboncred/carboncred/internal/ledger"
)

// Handler exposes company registry HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a registry HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerRequest struct {
	Name   string `json:"name"`
	Wallet string `json:"wallet"`
}

type allowanceRequest struct {
	Tons int64 `json:"tons"`
}

type companyResponse struct {
	ID                      string  `json:"id"`
	Name                    string  `json:"name"`
	Wallet                  string  `json:"wallet"`
	InitialAllowance        int64   `json:"initial_allowance"`
	LastVerifiedConsumption int64   `json:"last_verified_consumption"`
	Status                  string  `json:"status"`
	SettlementTx            string  `json:"settlement_tx,omitempty"`
	Grade                   string  `json:"grade"`
	Utilization             float64 `json:"utilization"`
	NetSurplus              int64   `json:"net_surplus"`
}

// Register creates a company record.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	company, err := h.service.Register(c.UserContext(), RegisterInput{Name: req.Name, Wallet: req.Wallet})
	if err != nil {
		if errors.Is(err, ErrDuplicateCompany) {
			return fiber.NewError(http.StatusConflict, err.Error())
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(toResponse(company))
}

// RecordAllowance runs the one-shot phase-1 allowance mint.
func (h *Handler) RecordAllowance(c *fiber.Ctx) error {
	name := c.Params("name")
	var req allowanceRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	outcome, err := h.service.RecordInitialAllowance(c.UserContext(), name, req.Tons)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownCompany):
			return fiber.NewError(http.StatusNotFound, err.Error())
		case errors.Is(err, ErrAlreadyMinted):
			return fiber.NewError(http.StatusConflict, err.Error())
		case errors.Is(err, ledger.ErrInvalidAmount):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		default:
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"company":        toResponse(outcome.Company),
		"transaction_id": outcome.TransactionID,
	})
}

// Get returns a company record with its derived grade and live wallet balance.
func (h *Handler) Get(c *fiber.Ctx) error {
	name := c.Params("name")
	company, err := h.service.Lookup(c.UserContext(), name)
	if err != nil {
		return fiber.NewError(http.StatusNotFound, err.Error())
	}
	balance, err := h.service.Balance(c.UserContext(), name)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	resp := toResponse(company)
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"company": resp,
		"balance": balance,
	})
}

// List returns all companies in registration order.
func (h *Handler) List(c *fiber.Ctx) error {
	companies, err := h.service.List(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	out := make([]companyResponse, 0, len(companies))
	for _, company := range companies {
		out = append(out, toResponse(company))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"companies": out})
}

func toResponse(company Company) companyResponse {
	return companyResponse{
		ID:                      company.ID,
		Name:                    company.Name,
		Wallet:                  company.Wallet,
		InitialAllowance:        company.InitialAllowance,
		LastVerifiedConsumption: company.LastVerifiedConsumption,
		Status:                  string(company.Status),
		SettlementTx:            company.SettlementTx,
		Grade:                   string(GradeFor(company)),
		Utilization:             Utilization(company),
		NetSurplus:              NetSurplus(company),
	}
}
