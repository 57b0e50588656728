package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/bookwell/penalty-service/internal/api/dto"
	"github.com/bookwell/penalty-service/internal/domain"
	"github.com/bookwell/penalty-service/internal/service"
	apperrors "github.com/bookwell/penalty-service/pkg/util/errorutil"
)

// AdminPenaltiesHandler serves the administrative penalty surface.
type AdminPenaltiesHandler struct {
	penalty *service.PenaltyService
	appeals *service.AppealService
	catalog *service.CatalogService
	resets  *service.ResetService
}

// NewAdminPenaltiesHandler constructs handler.
func NewAdminPenaltiesHandler(penalty *service.PenaltyService, appeals *service.AppealService, catalog *service.CatalogService, resets *service.ResetService) *AdminPenaltiesHandler {
	return &AdminPenaltiesHandler{penalty: penalty, appeals: appeals, catalog: catalog, resets: resets}
}

// RecordViolation POST /admin/penalties/violations.
func (h *AdminPenaltiesHandler) RecordViolation(c *fiber.Ctx) error {
	adminID, err := callerID(c)
	if err != nil {
		return err
	}
	var req dto.RecordViolationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	violation, err := h.penalty.RecordViolation(c.UserContext(), service.RecordViolationInput{
		Account:           domain.AccountRef{Kind: req.AccountKind, ID: strings.TrimSpace(req.AccountID)},
		Code:              req.ViolationCode,
		Details:           req.Details,
		EvidenceURLs:      req.EvidenceURLs,
		DetectedBy:        domain.DetectedByAdmin,
		DetectedByAdminID: &adminID,
		AppointmentID:     req.AppointmentID,
		ReportID:          req.ReportID,
		RatingID:          req.RatingID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewViolationResponse(violation)})
}

// ListAppeals GET /admin/penalties/appeals.
func (h *AdminPenaltiesHandler) ListAppeals(c *fiber.Ctx) error {
	page := parsePagination(c)
	items, total, err := h.appeals.ListPendingAppeals(c.UserContext(), page.Limit(), page.Offset())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.NewViolationResponses(items),
		"meta": dto.PageMeta{Page: page.Page, PageSize: page.PageSize, Total: total},
	})
}

// ApproveAppeal POST /admin/penalties/appeals/:id/approve.
func (h *AdminPenaltiesHandler) ApproveAppeal(c *fiber.Ctx) error {
	return h.review(c, true)
}

// RejectAppeal POST /admin/penalties/appeals/:id/reject.
func (h *AdminPenaltiesHandler) RejectAppeal(c *fiber.Ctx) error {
	return h.review(c, false)
}

func (h *AdminPenaltiesHandler) review(c *fiber.Ctx, approved bool) error {
	adminID, err := callerID(c)
	if err != nil {
		return err
	}
	var req dto.ReviewAppealRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	violation, err := h.appeals.ReviewAppeal(c.UserContext(), param(c, "id"), approved, adminID, req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewViolationResponse(violation)})
}

// ReverseViolation POST /admin/penalties/violations/:id/reverse.
func (h *AdminPenaltiesHandler) ReverseViolation(c *fiber.Ctx) error {
	adminID, err := callerID(c)
	if err != nil {
		return err
	}
	var req dto.ReasonRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	violation, err := h.appeals.AdminReverseViolation(c.UserContext(), param(c, "id"), adminID, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewViolationResponse(violation)})
}

// AdjustPoints POST /admin/penalties/accounts/:kind/:id/adjust.
func (h *AdminPenaltiesHandler) AdjustPoints(c *fiber.Ctx) error {
	adminID, err := callerID(c)
	if err != nil {
		return err
	}
	ref, err := pathAccount(c)
	if err != nil {
		return err
	}
	var req dto.AdjustPointsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.penalty.AdjustPoints(c.UserContext(), ref, req.Points, req.Reason, adminID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}

// Suspend POST /admin/penalties/accounts/:kind/:id/suspend.
func (h *AdminPenaltiesHandler) Suspend(c *fiber.Ctx) error {
	adminID, err := callerID(c)
	if err != nil {
		return err
	}
	ref, err := pathAccount(c)
	if err != nil {
		return err
	}
	var req dto.SuspendRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	account, err := h.penalty.Suspend(c.UserContext(), ref, adminID, req.Reason, req.SuspendedUntil)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAccountResponse(account)})
}

// LiftSuspension POST /admin/penalties/accounts/:kind/:id/lift-suspension.
func (h *AdminPenaltiesHandler) LiftSuspension(c *fiber.Ctx) error {
	adminID, err := callerID(c)
	if err != nil {
		return err
	}
	ref, err := pathAccount(c)
	if err != nil {
		return err
	}
	var req dto.ReasonRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	account, err := h.penalty.LiftSuspension(c.UserContext(), ref, adminID, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAccountResponse(account)})
}

// ResetPoints POST /admin/penalties/reset. Per-account failures are reported
// alongside the counts rather than failing the request.
func (h *AdminPenaltiesHandler) ResetPoints(c *fiber.Ctx) error {
	report, err := h.resets.ResetAll(c.UserContext())
	if err != nil && report.Failed == 0 {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

// ListAdjustments GET /admin/penalties/adjustments.
func (h *AdminPenaltiesHandler) ListAdjustments(c *fiber.Ctx) error {
	ref, err := queryAccount(c)
	if err != nil {
		return err
	}
	page := parsePagination(c)
	filter := parseAdjustmentFilter(c, page)
	filter.Account = ref
	items, err := h.penalty.ListAdjustments(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.NewAdjustmentResponses(items),
		"meta": fiber.Map{"page": page.Page, "page_size": page.PageSize},
	})
}

// Dashboard GET /admin/penalties/dashboard.
func (h *AdminPenaltiesHandler) Dashboard(c *fiber.Ctx) error {
	dashboard, err := h.penalty.Dashboard(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dashboard})
}

// UpsertViolationType PUT /admin/penalties/violation-types/:code.
func (h *AdminPenaltiesHandler) UpsertViolationType(c *fiber.Ctx) error {
	var req dto.UpsertViolationTypeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	vt, err := h.catalog.Upsert(c.UserContext(), service.UpsertViolationTypeInput{
		Code:             param(c, "code"),
		Category:         req.Category,
		PointCost:        req.PointCost,
		Description:      req.Description,
		RequiresEvidence: req.RequiresEvidence,
		AutoDetect:       req.AutoDetect,
		IsActive:         active,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewViolationTypeResponse(vt)})
}
