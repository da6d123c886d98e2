package billing

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/pkg/pagination"
)

// ReadRoles may read bills, over HTTP and on the live event feed.
var ReadRoles = []string{auth.RoleAccountant, auth.RoleReceptionist}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(ReadRoles...))
	read.GET("/bills", h.ListBills)
	read.GET("/bills/:id", h.GetBill)
	read.GET("/bills/:id/invoice", h.GetInvoice)

	write := api.Group("", auth.RequireRole(auth.RoleAccountant))
	write.POST("/bills", h.CreateBill)
	write.DELETE("/bills/:id", h.DeleteBill)
	write.POST("/bills/:id/payments", h.RecordPayment)
	write.POST("/bills/:id/mark-paid", h.MarkPaid)
}

func (h *Handler) CreateBill(c echo.Context) error {
	var b Bill
	if err := c.Bind(&b); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	created, err := h.svc.GenerateBill(c.Request().Context(), &b)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetBill(c echo.Context) error {
	b, err := h.svc.GetBill(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) ListBills(c echo.Context) error {
	pg := pagination.FromContext(c)
	bills, err := h.svc.ListBills(c.Request().Context(), Filter{
		PatientID: c.QueryParam("patientId"),
		Status:    c.QueryParam("status"),
		Source:    c.QueryParam("source"),
		BillType:  c.QueryParam("billType"),
	})
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.Respond(bills, pg))
}

func (h *Handler) DeleteBill(c echo.Context) error {
	if err := h.svc.DeleteBill(c.Request().Context(), c.Param("id")); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) RecordPayment(c echo.Context) error {
	var in PaymentInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	b, err := h.svc.RecordPayment(c.Request().Context(), c.Param("id"), in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) MarkPaid(c echo.Context) error {
	var body struct {
		Method string `json:"method"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	b, err := h.svc.MarkPaid(c.Request().Context(), c.Param("id"), body.Method)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) GetInvoice(c echo.Context) error {
	out, contentType, err := h.svc.Invoice(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.Blob(http.StatusOK, contentType, out)
}
