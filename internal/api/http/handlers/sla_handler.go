package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/service"
)

// SLAHandler exposes the breach check and the dashboard stats.
type SLAHandler struct {
	sweeper *service.BreachSweeper
	stats   *service.StatsService
	now     func() time.Time
}

// NewSLAHandler constructs handler.
func NewSLAHandler(sweeper *service.BreachSweeper, stats *service.StatsService) *SLAHandler {
	return &SLAHandler{sweeper: sweeper, stats: stats, now: time.Now}
}

// CheckBreaches POST /api/sla/check-breaches.
func (h *SLAHandler) CheckBreaches(c *fiber.Ctx) error {
	result, err := h.sweeper.Sweep(c.UserContext(), h.now())
	if err != nil {
		return err
	}
	updates := make([]dto.BreachUpdateResponse, 0, len(result.Updates))
	for _, u := range result.Updates {
		updates = append(updates, dto.BreachUpdateResponse{
			ID:            u.TicketID,
			WasBreached:   u.WasBreached,
			IsNowBreached: u.IsNowBreached,
		})
	}
	return c.JSON(dto.SweepResponse{
		Checked: result.Checked,
		Updated: len(updates),
		Updates: updates,
	})
}

// Stats GET /api/sla/stats.
func (h *SLAHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.stats.Stats(c.UserContext(), h.now())
	if err != nil {
		return err
	}
	return c.JSON(dto.StatsResponse{
		Total:      stats.Total,
		Breached:   stats.Breached,
		AtRisk:     stats.AtRisk,
		ByStatus:   stats.ByStatus,
		ByPriority: stats.ByPriority,
	})
}
