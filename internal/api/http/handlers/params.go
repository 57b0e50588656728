package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/bookwell/penalty-service/internal/auth"
	"github.com/bookwell/penalty-service/internal/domain"
	"github.com/bookwell/penalty-service/internal/repository"
	apperrors "github.com/bookwell/penalty-service/pkg/util/errorutil"
)

func callerAccount(c *fiber.Ctx) (domain.AccountRef, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return domain.AccountRef{}, apperrors.NewUnauthorized("authentication required")
	}
	ref, ok := principal.AccountRef()
	if !ok {
		return domain.AccountRef{}, apperrors.NewForbidden("customer or provider required")
	}
	return ref, nil
}

func callerID(c *fiber.Ctx) (string, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return "", apperrors.NewUnauthorized("authentication required")
	}
	return principal.ID, nil
}

// The helpers below copy out of fiber's request buffer; the values end
// up in stored rows and idempotency claims.
func param(c *fiber.Ctx, key string) string  { return utils.CopyString(c.Params(key)) }
func query(c *fiber.Ctx, key string) string  { return utils.CopyString(c.Query(key)) }
func header(c *fiber.Ctx, key string) string { return utils.CopyString(c.Get(key)) }

// pathAccount reads /accounts/:kind/:id.
func pathAccount(c *fiber.Ctx) (domain.AccountRef, error) {
	ref := domain.AccountRef{Kind: domain.AccountKind(strings.ToLower(param(c, "kind"))), ID: param(c, "id")}
	if !ref.Valid() {
		return domain.AccountRef{}, apperrors.NewValidationError("account kind must be customer or provider", map[string]any{"kind": param(c, "kind")})
	}
	return ref, nil
}

// queryAccount reads the optional account_kind / account_id filter pair.
func queryAccount(c *fiber.Ctx) (*domain.AccountRef, error) {
	kind, id := query(c, "account_kind"), query(c, "account_id")
	if kind == "" && id == "" {
		return nil, nil
	}
	ref := domain.AccountRef{Kind: domain.AccountKind(strings.ToLower(kind)), ID: id}
	if !ref.Valid() {
		return nil, apperrors.NewValidationError("account_kind and account_id must be provided together", nil)
	}
	return &ref, nil
}

type pagination struct {
	Page     int
	PageSize int
}

func (p pagination) Limit() int  { return p.PageSize }
func (p pagination) Offset() int { return (p.Page - 1) * p.PageSize }

func parsePagination(c *fiber.Ctx) pagination {
	pageSize := parseInt(c.Query("page_size"), 20)
	if pageSize > 200 {
		pageSize = 200
	}
	return pagination{Page: parseInt(c.Query("page"), 1), PageSize: pageSize}
}

func parseViolationFilter(c *fiber.Ctx, page pagination) repository.ViolationFilter {
	filter := repository.ViolationFilter{Limit: page.Limit(), Offset: page.Offset()}
	if statusStr := query(c, "status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.ViolationStatus(strings.TrimSpace(part)))
		}
	}
	if code := strings.TrimSpace(query(c, "code")); code != "" {
		filter.Code = &code
	}
	filter.CreatedFrom = parseTime(c.Query("created_from"))
	filter.CreatedTo = parseTime(c.Query("created_to"))
	return filter
}

func parseAdjustmentFilter(c *fiber.Ctx, page pagination) repository.AdjustmentFilter {
	filter := repository.AdjustmentFilter{Limit: page.Limit(), Offset: page.Offset()}
	if typeStr := query(c, "type"); typeStr != "" {
		for _, part := range strings.Split(typeStr, ",") {
			filter.Types = append(filter.Types, domain.AdjustmentType(strings.TrimSpace(part)))
		}
	}
	if violationID := query(c, "violation_id"); violationID != "" {
		filter.ViolationID = &violationID
	}
	filter.CreatedFrom = parseTime(c.Query("created_from"))
	filter.CreatedTo = parseTime(c.Query("created_to"))
	return filter
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
