package auth

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
)

// The seven staff roles.
const (
	RoleAdmin         = "ADMIN"
	RoleDoctor        = "DOCTOR"
	RoleNurse         = "NURSE"
	RoleReceptionist  = "RECEPTIONIST"
	RoleAccountant    = "ACCOUNTANT"
	RolePharmacist    = "PHARMACIST"
	RoleLabTechnician = "LAB_TECHNICIAN"
)

// Permission strings granted per role.
const (
	PermViewPatients       = "view_patients"
	PermManagePatients     = "manage_patients"
	PermViewAppointments   = "view_appointments"
	PermManageAppointments = "manage_appointments"
	PermViewBilling        = "view_billing"
	PermManageBilling      = "manage_billing"
	PermViewWards          = "view_wards"
	PermManageWards        = "manage_wards"
	PermViewTests          = "view_tests"
	PermManageTests        = "manage_tests"
	PermViewPrescriptions  = "view_prescriptions"
	PermManagePharmacy     = "manage_pharmacy"
	PermViewReports        = "view_reports"
	PermManageStaff        = "manage_staff"
	PermManageUsers        = "manage_users"
	PermManageClaims       = "manage_claims"
)

var rolePermissions = map[string][]string{
	RoleAdmin: {
		PermViewPatients, PermManagePatients, PermViewAppointments, PermManageAppointments,
		PermViewBilling, PermManageBilling, PermViewWards, PermManageWards,
		PermViewTests, PermManageTests, PermViewReports, PermManageStaff,
		PermManageUsers, PermManageClaims,
	},
	RoleDoctor: {
		PermViewPatients, PermManagePatients, PermViewAppointments, PermManageAppointments,
		PermViewTests, PermViewPrescriptions, PermViewWards,
	},
	RoleNurse:         {PermViewPatients, PermViewWards, PermManageWards},
	RoleReceptionist:  {PermViewPatients, PermManagePatients, PermViewAppointments, PermManageAppointments, PermViewBilling},
	RoleAccountant:    {PermViewBilling, PermManageBilling, PermViewReports, PermManageClaims},
	RolePharmacist:    {PermViewPrescriptions, PermManagePharmacy},
	RoleLabTechnician: {PermViewTests, PermManageTests},
}

// AllRoles returns the role names in a stable order.
func AllRoles() []string {
	roles := make([]string, 0, len(rolePermissions))
	for r := range rolePermissions {
		roles = append(roles, r)
	}
	sort.Strings(roles)
	return roles
}

func ValidRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}

// Permissions returns the union of permissions held by roles.
func Permissions(roles ...string) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range roles {
		for _, p := range rolePermissions[r] {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	sort.Strings(out)
	return out
}

// RequireRole returns middleware that checks if the user has at least one
// of the specified roles. ADMIN passes every check.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if HasRole(RolesFromContext(c.Request().Context()), roles...) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// HasRole reports whether userRoles holds ADMIN or one of roles.
func HasRole(userRoles []string, roles ...string) bool {
	for _, has := range userRoles {
		if has == RoleAdmin {
			return true
		}
		for _, required := range roles {
			if has == required {
				return true
			}
		}
	}
	return false
}
