package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-core/internal/core/domain"
	"github.com/99minutos/identity-core/internal/core/events"
	"github.com/99minutos/identity-core/internal/core/ports"
)

const defaultAuditLimit = 50

// UserHandler serves the administrative user routes.
type UserHandler struct {
	access ports.AccessService
	audit  ports.EventStore
}

func NewUserHandler(access ports.AccessService, audit ports.EventStore) *UserHandler {
	return &UserHandler{access: access, audit: audit}
}

type changeRolesRequest struct {
	RoleIDs []int64 `json:"role_ids"`
	Version int64   `json:"version" validate:"gt=0"`
}

type updateProfileRequest struct {
	Email     *string `json:"email" validate:"omitempty,email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Version   int64   `json:"version" validate:"gt=0"`
}

type deactivateRequest struct {
	Reason  string `json:"reason"`
	Version int64  `json:"version" validate:"gt=0"`
}

type userPageResponse struct {
	Items   []*domain.User `json:"items"`
	Total   int64          `json:"total"`
	Offset  int            `json:"offset"`
	Limit   int            `json:"limit"`
	HasMore bool           `json:"has_more"`
}

type auditResponse struct {
	Items []events.Envelope `json:"items"`
}

// List pages through users with ?offset= and ?limit=.
func (h *UserHandler) List(c echo.Context) error {
	var req domain.PageRequest
	if err := echo.QueryParamsBinder(c).Int("offset", &req.Offset).Int("limit", &req.Limit).BindError(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid paging parameters")
	}
	page, err := h.access.ListUsers(c.Request().Context(), req)
	if err != nil {
		return err
	}
	items := page.Items
	if items == nil {
		items = []*domain.User{}
	}
	return c.JSON(http.StatusOK, userPageResponse{
		Items:   items,
		Total:   page.Total,
		Offset:  page.Offset,
		Limit:   page.Limit,
		HasMore: page.HasMore(),
	})
}

func (h *UserHandler) Get(c echo.Context) error {
	id, err := pathUserID(c)
	if err != nil {
		return err
	}
	user, err := h.access.GetUser(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

func (h *UserHandler) ChangeRoles(c echo.Context) error {
	id, err := pathUserID(c)
	if err != nil {
		return err
	}
	var req changeRolesRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	roleIDs := make([]domain.RoleID, 0, len(req.RoleIDs))
	for _, rid := range req.RoleIDs {
		roleIDs = append(roleIDs, domain.RoleID(rid))
	}
	user, err := h.access.ChangeRoles(c.Request().Context(), id, roleIDs, req.Version, ctxActor(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

func (h *UserHandler) UpdateProfile(c echo.Context) error {
	id, err := pathUserID(c)
	if err != nil {
		return err
	}
	var req updateProfileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.access.UpdateProfile(c.Request().Context(), id, ports.ProfileInput{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}, req.Version, ctxActor(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

func (h *UserHandler) Deactivate(c echo.Context) error {
	id, err := pathUserID(c)
	if err != nil {
		return err
	}
	var req deactivateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.access.Deactivate(c.Request().Context(), id, req.Reason, req.Version, ctxActor(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// Events lists the audit trail of one user, oldest first.
func (h *UserHandler) Events(c echo.Context) error {
	id, err := pathUserID(c)
	if err != nil {
		return err
	}
	limit := int64(defaultAuditLimit)
	if raw := c.QueryParam("limit"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = v
	}

	items, err := h.audit.FindByAggregate(c.Request().Context(), events.AggregateUser, strconv.FormatInt(int64(id), 10), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, auditResponse{Items: items})
}

func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
