package routes

import (
	"net/http"
	"sort"

	"github.com/gofiber/fiber/v2"

	"github.com/carboncred/carboncred/internal/registry"
)

type leaderboardEntry struct {
	Rank        int            `json:"rank"`
	Company     string         `json:"company"`
	Allowance   int64          `json:"allowance"`
	Consumption int64          `json:"consumption"`
	NetSurplus  int64          `json:"net_surplus"`
	Utilization float64        `json:"utilization"`
	Grade       registry.Grade `json:"grade"`
	Status      string         `json:"status"`
}

// RegisterLeaderboardRoute exposes a public ranking of companies by how far
// under their allowance they landed. Ties keep registration order, which the
// registry listing already guarantees.
func RegisterLeaderboardRoute(r fiber.Router, svc *registry.Service) {
	r.Get("/leaderboard", func(c *fiber.Ctx) error {
		companies, err := svc.List(c.UserContext())
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, "list companies")
		}

		entries := make([]leaderboardEntry, 0, len(companies))
		for _, company := range companies {
			entries = append(entries, leaderboardEntry{
				Company:     company.Name,
				Allowance:   company.InitialAllowance,
				Consumption: company.LastVerifiedConsumption,
				NetSurplus:  registry.NetSurplus(company),
				Utilization: registry.Utilization(company),
				Grade:       registry.GradeFor(company),
				Status:      string(company.Status),
			})
		}
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].NetSurplus > entries[j].NetSurplus
		})
		for i := range entries {
			entries[i].Rank = i + 1
		}

		return c.Status(http.StatusOK).JSON(fiber.Map{"leaderboard": entries})
	})
}
