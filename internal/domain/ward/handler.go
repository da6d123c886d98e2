package ward

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/pkg/pagination"
)

// ReadRoles may read rooms and admissions, over HTTP and on the live event feed.
var ReadRoles = []string{auth.RoleDoctor, auth.RoleNurse, auth.RoleReceptionist}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(ReadRoles...))
	read.GET("/rooms", h.ListRooms)
	read.GET("/rooms/types", h.ListRoomTypes)
	read.GET("/rooms/summary", h.Summary)
	read.GET("/rooms/:id", h.GetRoom)
	read.GET("/admissions", h.ListAdmissions)
	read.GET("/admissions/:id", h.GetAdmission)

	write := api.Group("", auth.RequireRole(auth.RoleNurse, auth.RoleReceptionist))
	write.POST("/admissions", h.Admit)
	write.POST("/admissions/:id/discharge", h.Discharge)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/rooms", h.CreateRoom)
	admin.DELETE("/rooms/:id", h.DeleteRoom)
}

func (h *Handler) CreateRoom(c echo.Context) error {
	var r Room
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	created, err := h.svc.CreateRoom(c.Request().Context(), &r)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetRoom(c echo.Context) error {
	r, err := h.svc.GetRoom(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) ListRooms(c echo.Context) error {
	pg := pagination.FromContext(c)
	rooms, err := h.svc.ListRooms(c.Request().Context(), RoomFilter{
		Type:   c.QueryParam("type"),
		Status: c.QueryParam("status"),
	})
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.Respond(rooms, pg))
}

func (h *Handler) ListRoomTypes(c echo.Context) error {
	return c.JSON(http.StatusOK, RoomTypes())
}

func (h *Handler) DeleteRoom(c echo.Context) error {
	if err := h.svc.DeleteRoom(c.Request().Context(), c.Param("id")); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Summary(c echo.Context) error {
	sum, err := h.svc.OccupancySummary(c.Request().Context())
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, sum)
}

func (h *Handler) Admit(c echo.Context) error {
	var req AdmitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	adm, err := h.svc.AdmitPatient(c.Request().Context(), req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, adm)
}

func (h *Handler) Discharge(c echo.Context) error {
	adm, err := h.svc.DischargePatient(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, adm)
}

func (h *Handler) GetAdmission(c echo.Context) error {
	adm, err := h.svc.GetAdmission(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, adm)
}

func (h *Handler) ListAdmissions(c echo.Context) error {
	pg := pagination.FromContext(c)
	list, err := h.svc.ListAdmissions(c.Request().Context(), AdmissionFilter{
		Status:    c.QueryParam("status"),
		PatientID: c.QueryParam("patientId"),
		RoomID:    c.QueryParam("roomId"),
	})
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.Respond(list, pg))
}
