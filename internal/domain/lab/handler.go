package lab

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/pkg/pagination"
)

// ReadRoles may read lab assignments, over HTTP and on the live event feed.
var ReadRoles = []string{auth.RoleLabTechnician, auth.RoleDoctor}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("/lab", auth.RequireRole(ReadRoles...))
	read.GET("/tests", h.ListCatalog)
	read.GET("/assignments", h.ListAssignments)
	read.GET("/assignments/:id", h.GetAssignment)

	assign := api.Group("/lab", auth.RequireRole(auth.RoleDoctor, auth.RoleLabTechnician))
	assign.POST("/assignments", h.AssignTests)

	tech := api.Group("/lab", auth.RequireRole(auth.RoleLabTechnician))
	tech.PATCH("/assignments/:id/status", h.UpdateStatus)
	tech.POST("/assignments/:id/results", h.RecordResults)
	tech.DELETE("/assignments/:id", h.DeleteAssignment)
}

func (h *Handler) ListCatalog(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.ListCatalog())
}

func (h *Handler) AssignTests(c echo.Context) error {
	var req AssignRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.AssignTests(c.Request().Context(), req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAssignment(c echo.Context) error {
	a, err := h.svc.GetAssignment(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAssignments(c echo.Context) error {
	pg := pagination.FromContext(c)
	list, err := h.svc.ListAssignments(c.Request().Context(), Filter{
		PatientID: c.QueryParam("patientId"),
		Status:    c.QueryParam("status"),
	})
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.Respond(list, pg))
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.UpdateStatus(c.Request().Context(), c.Param("id"), body.Status)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) RecordResults(c echo.Context) error {
	var body struct {
		Results []Result `json:"results"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.RecordResults(c.Request().Context(), c.Param("id"), body.Results)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) DeleteAssignment(c echo.Context) error {
	if err := h.svc.DeleteAssignment(c.Request().Context(), c.Param("id")); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}
