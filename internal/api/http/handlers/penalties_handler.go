package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/bookwell/penalty-service/internal/api/dto"
	"github.com/bookwell/penalty-service/internal/domain"
	"github.com/bookwell/penalty-service/internal/service"
	apperrors "github.com/bookwell/penalty-service/pkg/util/errorutil"
)

// PenaltiesHandler serves the account holder's own penalty data.
type PenaltiesHandler struct {
	penalty *service.PenaltyService
	appeals *service.AppealService
	catalog *service.CatalogService
	access  *service.AccessService
}

// NewPenaltiesHandler constructs handler.
func NewPenaltiesHandler(penalty *service.PenaltyService, appeals *service.AppealService, catalog *service.CatalogService, access *service.AccessService) *PenaltiesHandler {
	return &PenaltiesHandler{penalty: penalty, appeals: appeals, catalog: catalog, access: access}
}

// GetMyPenaltyInfo GET /penalties/me.
func (h *PenaltiesHandler) GetMyPenaltyInfo(c *fiber.Ctx) error {
	ref, err := callerAccount(c)
	if err != nil {
		return err
	}
	stats, err := h.penalty.GetPenaltyStats(c.UserContext(), ref)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}

// GetMyViolations GET /penalties/me/violations.
func (h *PenaltiesHandler) GetMyViolations(c *fiber.Ctx) error {
	ref, err := callerAccount(c)
	if err != nil {
		return err
	}
	page := parsePagination(c)
	filter := parseViolationFilter(c, page)
	filter.Account = &ref
	items, total, err := h.penalty.ListViolations(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.NewViolationResponses(items),
		"meta": dto.PageMeta{Page: page.Page, PageSize: page.PageSize, Total: total},
	})
}

// AppealViolation POST /penalties/me/violations/:id/appeal.
func (h *PenaltiesHandler) AppealViolation(c *fiber.Ctx) error {
	ref, err := callerAccount(c)
	if err != nil {
		return err
	}
	var req dto.AppealRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	violation, err := h.appeals.Appeal(c.UserContext(), param(c, "id"), req.Reason, ref)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewViolationResponse(violation)})
}

// GetViolationTypes GET /penalties/violation-types.
func (h *PenaltiesHandler) GetViolationTypes(c *fiber.Ctx) error {
	var category *domain.ViolationCategory
	if raw := query(c, "category"); raw != "" {
		cat := domain.ViolationCategory(raw)
		category = &cat
	}
	items, err := h.catalog.List(c.UserContext(), category, true)
	if err != nil {
		return err
	}
	resp := make([]dto.ViolationTypeResponse, 0, len(items))
	for i := range items {
		resp = append(resp, dto.NewViolationTypeResponse(&items[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// GetMyRewardStats GET /penalties/me/rewards.
func (h *PenaltiesHandler) GetMyRewardStats(c *fiber.Ctx) error {
	ref, err := callerAccount(c)
	if err != nil {
		return err
	}
	stats, err := h.penalty.GetRewardStats(c.UserContext(), ref)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}

// GetMyAdjustments GET /penalties/me/adjustments.
func (h *PenaltiesHandler) GetMyAdjustments(c *fiber.Ctx) error {
	ref, err := callerAccount(c)
	if err != nil {
		return err
	}
	page := parsePagination(c)
	filter := parseAdjustmentFilter(c, page)
	filter.Account = &ref
	items, err := h.penalty.ListAdjustments(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.NewAdjustmentResponses(items),
		"meta": fiber.Map{"page": page.Page, "page_size": page.PageSize},
	})
}

// GetMyEligibility GET /penalties/me/eligibility?date=YYYY-MM-DD.
func (h *PenaltiesHandler) GetMyEligibility(c *fiber.Ctx) error {
	ref, err := callerAccount(c)
	if err != nil {
		return err
	}
	day := time.Now().UTC()
	if raw := query(c, "date"); raw != "" {
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return apperrors.NewValidationError("date must be formatted as YYYY-MM-DD", nil)
		}
		day = parsed
	}
	decision, err := h.access.CheckBookingEligibility(c.UserContext(), ref, day)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": decision})
}
