package handlers

import (
	"chamahub/internal/config"
	"chamahub/internal/core/services"
	"chamahub/internal/pkg/pagination"
	"chamahub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// RoscaHandler handles cycle, payout and swap endpoints
type RoscaHandler struct {
	roscaService *services.RoscaService
	cfg          *config.Config
}

// NewRoscaHandler creates a new ROSCA handler
func NewRoscaHandler(roscaService *services.RoscaService, cfg *config.Config) *RoscaHandler {
	return &RoscaHandler{
		roscaService: roscaService,
		cfg:          cfg,
	}
}

// ============================================================
// Cycles
// ============================================================

// CreateCycle creates a cycle and its roster
// @Summary Create cycle
// @Description Officials only; builds the roster over the chama's active members
// @Tags ROSCA
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.CreateCycleInput true "Cycle data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /rosca/cycles [post]
func (h *RoscaHandler) CreateCycle(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return fail(c, h.cfg, err)
	}

	var req services.CreateCycleInput
	if err := parseBody(c, &req); err != nil {
		return fail(c, h.cfg, err)
	}

	result, err := h.roscaService.CreateCycle(c.UserContext(), userID, &req)
	if err != nil {
		return fail(c, h.cfg, err)
	}

	return response.Created(c, "Cycle created successfully", result)
}

// ListCycles lists a chama's cycles with paid and pending counts
// @Summary List cycles
// @Tags ROSCA
// @Produce json
// @Security BearerAuth
// @Param chamaId path int true "Chama ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /rosca/chama/{chamaId}/cycles [get]
func (h *RoscaHandler) ListCycles(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return fail(c, h.cfg, err)
	}
	chamaID, err := paramID(c, "chamaId")
	if err != nil {
		return fail(c, h.cfg, err)
	}

	cycles, err := h.roscaService.ListCycles(c.UserContext(), userID, chamaID)
	if err != nil {
		return fail(c, h.cfg, err)
	}

	return response.Success(c, "Cycles retrieved successfully", cycles)
}

// GetCycle returns one cycle with counts
// @Summary Get cycle
// @Tags ROSCA
// @Produce json
// @Security BearerAuth
// @Param cycleId path int true "Cycle ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /rosca/cycles/{cycleId} [get]
func (h *RoscaHandler) GetCycle(c *fiber.Ctx) error {
	userID, cycleID, err := h.cycleParams(c)
	if err != nil {
		return fail(c, h.cfg, err)
	}

	cycle, err := h.roscaService.GetCycle(c.UserContext(), userID, cycleID)
	if err != nil {
		return fail(c, h.cfg, err)
	}

	return response.Success(c, "Cycle retrieved successfully", cycle)
}

// GetRoster returns the payout order of a cycle
// @Summary Get roster
// @Tags ROSCA
// @Produce json
// @Security BearerAuth
// @Param cycleId path int true "Cycle ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /rosca/cycles/{cycleId}/roster [get]
func (h *RoscaHandler) GetRoster(c *fiber.Ctx) error {
	userID, cycleID, err := h.cycleParams(c)
	if err != nil {
		return fail(c, h.cfg, err)
	}

	roster, err := h.roscaService.GetRoster(c.UserContext(), userID, cycleID)
	if err != nil {
		return fail(c, h.cfg, err)
	}

	return response.Success(c, "Roster retrieved successfully", roster)
}

// ActivateCycle moves a PENDING cycle to ACTIVE
// @Summary Activate cycle
// @Tags ROSCA
// @Produce json
// @Security BearerAuth
// @Param cycleId path int true "Cycle ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /rosca/cycles/{cycleId}/activate [post]
func (h *RoscaHandler) ActivateCycle(c *fiber.Ctx) error {
	userID, cycleID, err := h.cycleParams(c)
	if err != nil {
		return fail(c, h.cfg, err)
	}

	if err := h.roscaService.ActivateCycle(c.UserContext(), userID, cycleID); err != nil {
		return fail(c, h.cfg, err)
	}

	return response.Success(c, "Cycle activated successfully", nil)
}

// CancelCycle cancels a cycle without contributions or payouts
// @Summary Cancel cycle
// @Tags ROSCA
// @Produce json
// @Security BearerAuth
// @Param cycleId path int true "Cycle ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /rosca/cycles/{cycleId} [delete]
func (h *RoscaHandler) CancelCycle(c *fiber.Ctx) error {
	userID, cycleID, err := h.cycleParams(c)
	if err != nil {
		return fail(c, h.cfg, err)
	}

	if err := h.roscaService.CancelCycle(c.UserContext(), userID, cycleID); err != nil {
		return fail(c, h.cfg, err)
	}

	return response.Success(c, "Cycle cancelled successfully", nil)
}

// ============================================================
// Money
// ============================================================

// RecordContribution records a contribution to a cycle
// @Summary Record contribution
// @Description Members record their own; officials may record for another member
// @Tags ROSCA
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param cycleId path int true "Cycle ID"
// @Param body body services.ContributionInput true "Contribution"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /rosca/cycles/{cycleId}/contributions [post]
func (h *RoscaHandler) RecordContribution(c *fiber.Ctx) error {
	userID, cycleID, err := h.cycleParams(c)
	if err != nil {
		return fail(c, h.cfg, err)
	}

	var req services.ContributionInput
	if err := parseBody(c, &req); err != nil {
		return fail(c, h.cfg, err)
	}

	contribution, err := h.roscaService.RecordContribution(c.UserContext(), userID, cycleID, &req)
	if err != nil {
		return fail(c, h.cfg, err)
	}

	return response.Created(c, "Contribution recorded successfully", contribution)
}

// ProcessPayout pays out a roster position
// @Summary Process payout
// @Description Treasurer only; every other roster member must have contributed
// @Tags ROSCA
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param cycleId path int true "Cycle ID"
// @Param body body services.PayoutInput true "Position"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /rosca/cycles/{cycleId}/payout [post]
func (h *RoscaHandler) ProcessPayout(c *fiber.Ctx) error {
	userID, cycleID, err := h.cycleParams(c)
	if err != nil {
		return fail(c, h.cfg, err)
	}

	var req services.PayoutInput
	if err := parseBody(c, &req); err != nil {
		return fail(c, h.cfg, err)
	}

	result, err := h.roscaService.ProcessPayout(c.UserContext(), userID, cycleID, &req)
	if err != nil {
		return fail(c, h.cfg, err)
	}

	return response.Success(c, "Payout processed successfully", result)
}

// ============================================================
// Swaps
// ============================================================

// RequestSwap asks the occupant of another position to swap
// @Summary Request swap
// @Tags ROSCA
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param cycleId path int true "Cycle ID"
// @Param body body services.SwapRequestInput true "Target position"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /rosca/cycles/{cycleId}/swap-request [post]
func (h *RoscaHandler) RequestSwap(c *fiber.Ctx) error {
	userID, cycleID, err := h.cycleParams(c)
	if err != nil {
		return fail(c, h.cfg, err)
	}

	var req services.SwapRequestInput
	if err := parseBody(c, &req); err != nil {
		return fail(c, h.cfg, err)
	}

	swap, err := h.roscaService.RequestSwap(c.UserContext(), userID, cycleID, &req)
	if err != nil {
		return fail(c, h.cfg, err)
	}

	return response.Created(c, "Swap request sent", swap)
}

// ListSwapRequests lists a cycle's swap requests
// @Summary List swap requests
// @Tags ROSCA
// @Produce json
// @Security BearerAuth
// @Param cycleId path int true "Cycle ID"
// @Param page query int false "Page number"
// @Param limit query int false "Items per page"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /rosca/cycles/{cycleId}/swap-requests [get]
func (h *RoscaHandler) ListSwapRequests(c *fiber.Ctx) error {
	userID, cycleID, err := h.cycleParams(c)
	if err != nil {
		return fail(c, h.cfg, err)
	}

	reqs, err := h.roscaService.ListSwapRequests(c.UserContext(), userID, cycleID)
	if err != nil {
		return fail(c, h.cfg, err)
	}

	params := pagination.GetParams(c)
	page := pagination.NewResponse(pagination.Window(reqs, params), params, int64(len(reqs)))
	return response.Success(c, "Swap requests retrieved successfully", page)
}

// RespondToSwap approves or rejects a swap request
// @Summary Respond to swap
// @Description Only the current occupant of the target position may respond
// @Tags ROSCA
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Swap request ID"
// @Param body body services.SwapResponseInput true "APPROVED or REJECTED"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /rosca/swap-requests/{id}/respond [put]
func (h *RoscaHandler) RespondToSwap(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return fail(c, h.cfg, err)
	}
	requestID, err := paramID(c, "id")
	if err != nil {
		return fail(c, h.cfg, err)
	}

	var req services.SwapResponseInput
	if err := parseBody(c, &req); err != nil {
		return fail(c, h.cfg, err)
	}

	swap, err := h.roscaService.RespondToSwap(c.UserContext(), userID, requestID, &req)
	if err != nil {
		return fail(c, h.cfg, err)
	}

	return response.Success(c, "Swap request "+swap.Status, swap)
}

// cycleParams reads the caller and the :cycleId parameter
func (h *RoscaHandler) cycleParams(c *fiber.Ctx) (uint, uint, error) {
	userID, err := currentUser(c)
	if err != nil {
		return 0, 0, err
	}
	cycleID, err := paramID(c, "cycleId")
	if err != nil {
		return 0, 0, err
	}
	return userID, cycleID, nil
}
