package report

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/reports", auth.RequireRole(auth.RoleAccountant))
	g.GET("/dashboard", h.Dashboard)
	g.GET("/revenue/monthly", h.MonthlyRevenue)
	g.GET("/revenue/yearly", h.YearlyRevenue)
	g.GET("/revenue/daily", h.DailyRevenue)
	g.GET("/revenue/by-source", h.RevenueBySource)
	g.GET("/revenue/by-method", h.RevenueByPaymentMethod)
	g.GET("/measures", h.ListMeasures)
	g.GET("/measures/:id/evaluate", h.EvaluateMeasure)
}

func (h *Handler) Dashboard(c echo.Context) error {
	d, err := h.svc.Dashboard(c.Request().Context())
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) MonthlyRevenue(c echo.Context) error {
	year, ok := parseYear(c.QueryParam("year"), h.svc.now().Year())
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "year must be a four digit year")
	}
	points, err := h.svc.MonthlyRevenue(c.Request().Context(), year)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"year": year, "months": points})
}

func (h *Handler) YearlyRevenue(c echo.Context) error {
	points, err := h.svc.YearlyRevenue(c.Request().Context())
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"years": points})
}

func (h *Handler) DailyRevenue(c echo.Context) error {
	days := 30
	if v := c.QueryParam("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "days must be a number")
		}
		days = n
	}
	points, err := h.svc.DailyRevenue(c.Request().Context(), days)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"days": points})
}

func (h *Handler) RevenueBySource(c echo.Context) error {
	out, err := h.svc.RevenueBySource(c.Request().Context())
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"sources": out})
}

func (h *Handler) RevenueByPaymentMethod(c echo.Context) error {
	out, err := h.svc.RevenueByPaymentMethod(c.Request().Context())
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"methods": out})
}

func (h *Handler) ListMeasures(c echo.Context) error {
	return c.JSON(http.StatusOK, PredefinedMeasures)
}

func (h *Handler) EvaluateMeasure(c echo.Context) error {
	params := map[string]string{}
	for k, v := range c.QueryParams() {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	r, err := h.svc.Evaluate(c.Request().Context(), c.Param("id"), params)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, r)
}
