package marketplace

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/carboncred/carboncred/internal/ledger"
	"github.com/carboncred/carboncred/internal/registry"
)

// Handler exposes marketplace HTTP endpoints. The acting wallet is resolved
// from the authenticated operator's company.
type Handler struct {
	service   *Service
	companies *registry.Service
}

// NewHandler builds a marketplace HTTP handler.
func NewHandler(service *Service, companies *registry.Service) *Handler {
	return &Handler{service: service, companies: companies}
}

type createListingRequest struct {
	Amount           int64  `json:"amount"`
	PricePerToken    int64  `json:"price_per_token"`
	PaymentReference string `json:"payment_reference"`
}

type releaseRequest struct {
	BuyerWallet string `json:"buyer_wallet"`
}

type listingResponse struct {
	ID               int64  `json:"id"`
	Seller           string `json:"seller"`
	Amount           int64  `json:"amount"`
	PricePerToken    int64  `json:"price_per_token"`
	PaymentReference string `json:"payment_reference"`
	IsPaid           bool   `json:"is_paid"`
	Active           bool   `json:"active"`
}

// Create opens a listing, locking the seller's tokens in escrow.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createListingRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	wallet, err := h.callerWallet(c)
	if err != nil {
		return err
	}

	listing, err := h.service.CreateListing(c.UserContext(), CreateInput{
		Seller:           wallet,
		Amount:           req.Amount,
		PricePerToken:    req.PricePerToken,
		PaymentReference: req.PaymentReference,
	})
	if err != nil {
		if errors.Is(err, ledger.ErrUnknownAccount) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	return c.Status(http.StatusCreated).JSON(toListingResponse(listing))
}

// List returns the open listings.
func (h *Handler) List(c *fiber.Ctx) error {
	listings, err := h.service.Listings(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	out := make([]listingResponse, 0, len(listings))
	for _, listing := range listings {
		out = append(out, toListingResponse(listing))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"listings": out})
}

// MarkPaid records the buyer's payment acknowledgement.
func (h *Handler) MarkPaid(c *fiber.Ctx) error {
	id, err := listingID(c)
	if err != nil {
		return err
	}
	wallet, err := h.callerWallet(c)
	if err != nil {
		return err
	}

	if err := h.service.MarkPaid(c.UserContext(), id, wallet); err != nil {
		return mapEscrowError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"listing_id": id, "is_paid": true})
}

// Release transfers escrowed tokens to the named buyer wallet.
func (h *Handler) Release(c *fiber.Ctx) error {
	id, err := listingID(c)
	if err != nil {
		return err
	}
	var req releaseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.BuyerWallet == "" {
		return fiber.NewError(http.StatusBadRequest, "buyer_wallet is required")
	}
	wallet, err := h.callerWallet(c)
	if err != nil {
		return err
	}

	res, err := h.service.Release(c.UserContext(), id, wallet, req.BuyerWallet)
	if err != nil {
		return mapEscrowError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"listing":        toListingResponse(res.Listing),
		"transaction_id": res.TransactionID,
	})
}

// Cancel withdraws an unpaid listing and refunds the seller.
func (h *Handler) Cancel(c *fiber.Ctx) error {
	id, err := listingID(c)
	if err != nil {
		return err
	}
	wallet, err := h.callerWallet(c)
	if err != nil {
		return err
	}

	if err := h.service.Cancel(c.UserContext(), id, wallet); err != nil {
		return mapEscrowError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"listing_id": id, "active": false})
}

func (h *Handler) callerWallet(c *fiber.Ctx) (string, error) {
	companyName, _ := c.Locals("company").(string)
	if companyName == "" {
		return "", fiber.NewError(http.StatusUnauthorized, "no company bound to operator")
	}
	company, err := h.companies.Lookup(c.UserContext(), companyName)
	if err != nil {
		return "", fiber.NewError(http.StatusUnauthorized, "operator company not registered")
	}
	return company.Wallet, nil
}

func listingID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, fiber.NewError(http.StatusBadRequest, "invalid listing id")
	}
	return id, nil
}

func mapEscrowError(err error) error {
	switch {
	case errors.Is(err, ErrUnknownListing):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrSelfTrade):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrPaymentNotConfirmed), errors.Is(err, ErrAlreadyPaid):
		return fiber.NewError(http.StatusConflict, err.Error())
	default:
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
}

func toListingResponse(listing Listing) listingResponse {
	return listingResponse{
		ID:               listing.ID,
		Seller:           listing.Seller,
		Amount:           listing.Amount,
		PricePerToken:    listing.PricePerToken,
		PaymentReference: listing.PaymentReference,
		IsPaid:           listing.IsPaid,
		Active:           listing.Active,
	}
}
