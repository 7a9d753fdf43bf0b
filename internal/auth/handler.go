package auth

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/carboncred/carboncred/internal/operator"
)

// Handler exposes operator registration and authentication endpoints.
type Handler struct {
	operators *operator.Service
	auth      *Service
}

// NewHandler builds the auth handler.
func NewHandler(operators *operator.Service, auth *Service) *Handler {
	return &Handler{operators: operators, auth: auth}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Company  string `json:"company"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Register creates an operator bound to a company.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	op, err := h.operators.Register(c.UserContext(), operator.Credentials{
		Email:    req.Email,
		Password: req.Password,
		Company:  req.Company,
	})
	if err != nil {
		if errors.Is(err, operator.ErrDuplicateOperator) {
			return fiber.NewError(http.StatusConflict, err.Error())
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"operator_id": op.ID,
		"email":       op.Email,
		"company":     op.Company,
	})
}

// Login authenticates an operator and issues tokens.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	op, err := h.operators.Authenticate(c.UserContext(), operator.Credentials{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, "invalid credentials")
	}

	pair, err := h.auth.Login(op)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(pair)
}

// Refresh exchanges a refresh token for a new access token.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	access, expiresIn, err := h.auth.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"access_token": access, "expires_in": expiresIn})
}

// Logout invalidates all outstanding tokens of the calling operator.
func (h *Handler) Logout(c *fiber.Ctx) error {
	operatorID, _ := c.Locals("operator_id").(string)
	if operatorID == "" {
		return fiber.NewError(http.StatusUnauthorized, "not authenticated")
	}
	if err := h.auth.Logout(c.UserContext(), operatorID); err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(http.StatusNoContent)
}
