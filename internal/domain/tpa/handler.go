package tpa

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/blobstore"
	"github.com/hms/hms/pkg/pagination"
)

// ReadRoles may read TPA records, over HTTP and on the live event feed.
var ReadRoles = []string{auth.RoleAccountant}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/tpa", auth.RequireRole(ReadRoles...))

	g.GET("/providers", h.ListTPAs)
	g.POST("/providers", h.CreateTPA)
	g.GET("/providers/:id", h.GetTPA)
	g.PUT("/providers/:id", h.UpdateTPA)
	g.DELETE("/providers/:id", h.DeleteTPA)
	g.GET("/providers/:id/dashboard", h.Dashboard)

	g.GET("/policies", h.ListPolicies)
	g.POST("/policies", h.AddPolicy)
	g.GET("/policies/:id", h.GetPolicy)
	g.PATCH("/policies/:id/status", h.UpdatePolicyStatus)
	g.DELETE("/policies/:id", h.DeletePolicy)

	g.GET("/claims", h.ListClaims)
	g.POST("/claims", h.AddClaim)
	g.GET("/claims/:id", h.GetClaim)
	g.DELETE("/claims/:id", h.DeleteClaim)
	g.POST("/claims/:id/approve", h.ApproveClaim)
	g.POST("/claims/:id/reject", h.RejectClaim)
	g.POST("/claims/:id/disburse", h.DisburseClaim)
	g.GET("/claims/:id/suggested-deduction", h.SuggestDeduction)
	g.POST("/claims/:id/documents", h.UploadDocument)
	g.GET("/claims/:id/documents/:docId", h.DownloadDocument)

	g.GET("/bills", h.ListBills)
	g.POST("/bills", h.GenerateBill)
	g.GET("/bills/:id", h.GetBill)
	g.PUT("/bills/:id/payment", h.UpdateBillPayment)
}

// -- TPAs --

func (h *Handler) CreateTPA(c echo.Context) error {
	var t TPA
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	created, err := h.svc.CreateTPA(c.Request().Context(), &t)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetTPA(c echo.Context) error {
	t, err := h.svc.GetTPA(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) ListTPAs(c echo.Context) error {
	pg := pagination.FromContext(c)
	tpas, err := h.svc.ListTPAs(c.Request().Context())
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.Respond(tpas, pg))
}

func (h *Handler) UpdateTPA(c echo.Context) error {
	var t TPA
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	updated, err := h.svc.UpdateTPA(c.Request().Context(), c.Param("id"), &t)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteTPA(c echo.Context) error {
	if err := h.svc.DeleteTPA(c.Request().Context(), c.Param("id")); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Dashboard(c echo.Context) error {
	d, err := h.svc.Dashboard(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

// -- Policies --

func (h *Handler) AddPolicy(c echo.Context) error {
	var p Policy
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	created, err := h.svc.AddPolicy(c.Request().Context(), &p)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetPolicy(c echo.Context) error {
	p, err := h.svc.GetPolicy(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPolicies(c echo.Context) error {
	pg := pagination.FromContext(c)
	policies, err := h.svc.ListPolicies(c.Request().Context(), PolicyFilter{
		TPAID:     c.QueryParam("tpaId"),
		PatientID: c.QueryParam("patientId"),
		Status:    c.QueryParam("status"),
	})
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.Respond(policies, pg))
}

func (h *Handler) UpdatePolicyStatus(c echo.Context) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.UpdatePolicyStatus(c.Request().Context(), c.Param("id"), body.Status)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePolicy(c echo.Context) error {
	if err := h.svc.DeletePolicy(c.Request().Context(), c.Param("id")); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Claims --

func (h *Handler) AddClaim(c echo.Context) error {
	var cl Claim
	if err := c.Bind(&cl); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	created, err := h.svc.AddClaim(c.Request().Context(), &cl)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetClaim(c echo.Context) error {
	cl, err := h.svc.GetClaim(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) ListClaims(c echo.Context) error {
	pg := pagination.FromContext(c)
	claims, err := h.svc.ListClaims(c.Request().Context(), ClaimFilter{
		TPAID:     c.QueryParam("tpaId"),
		PolicyID:  c.QueryParam("policyId"),
		PatientID: c.QueryParam("patientId"),
		Status:    c.QueryParam("status"),
	})
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.Respond(claims, pg))
}

func (h *Handler) DeleteClaim(c echo.Context) error {
	if err := h.svc.DeleteClaim(c.Request().Context(), c.Param("id")); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ApproveClaim(c echo.Context) error {
	var in ApproveInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cl, err := h.svc.ApproveClaim(c.Request().Context(), c.Param("id"), in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) RejectClaim(c echo.Context) error {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cl, err := h.svc.RejectClaim(c.Request().Context(), c.Param("id"), body.Reason)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) DisburseClaim(c echo.Context) error {
	cl, err := h.svc.DisburseClaim(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) SuggestDeduction(c echo.Context) error {
	d, err := h.svc.SuggestDeduction(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]decimal.Decimal{"deductionAmount": d})
}

// UploadDocument accepts a multipart "file" field and an optional "name".
func (h *Handler) UploadDocument(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	if fh.Size > blobstore.MaxSize {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, blobstore.ErrTooLarge.Error())
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, blobstore.MaxSize+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	name := c.FormValue("name")
	if name == "" {
		name = fh.Filename
	}
	contentType := fh.Header.Get(echo.HeaderContentType)
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	doc, err := h.svc.AddClaimDocument(c.Request().Context(), c.Param("id"), name, contentType, data)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, doc)
}

func (h *Handler) DownloadDocument(c echo.Context) error {
	doc, data, err := h.svc.GetClaimDocument(c.Request().Context(), c.Param("id"), c.Param("docId"))
	if err != nil {
		return apperr.HTTP(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+doc.Name+`"`)
	return c.Blob(http.StatusOK, doc.ContentType, data)
}

// -- TPA bills --

func (h *Handler) GenerateBill(c echo.Context) error {
	var in GenerateBillInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	b, err := h.svc.GenerateTPABill(c.Request().Context(), in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) GetBill(c echo.Context) error {
	b, err := h.svc.GetTPABill(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) ListBills(c echo.Context) error {
	pg := pagination.FromContext(c)
	bills, err := h.svc.ListTPABills(c.Request().Context(), c.QueryParam("tpaId"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.Respond(bills, pg))
}

func (h *Handler) UpdateBillPayment(c echo.Context) error {
	var body struct {
		PaidAmount decimal.Decimal `json:"paidAmount"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	b, err := h.svc.UpdateTPABillPayment(c.Request().Context(), c.Param("id"), body.PaidAmount)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, b)
}
