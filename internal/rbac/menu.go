package rbac

import (
	"strings"

	"loanforge.org/internal/auth"
	"loanforge.org/internal/loan"
)

// Role names known to the catalog.
const (
	RoleMarketing     = "MARKETING"
	RoleBranchManager = "BRANCH_MANAGER"
	RoleBackOffice    = "BACK_OFFICE"
	RoleAdmin         = "ADMIN"
)

// Menu categories. Unknown menu codes always classify as CategoryOther;
// codes arrive from clients, so classification must never fail.
const (
	CategoryLoan   = "Loan"
	CategoryUser   = "User"
	CategoryReport = "Report"
	CategoryOther  = "Other"
)

// Menu codes outside the loan workflow.
const (
	MenuUserManage = "USER_MANAGE"
	MenuReportView = "REPORT_VIEW"
)

// MenuPermission ties a protected action to its category and role set.
type MenuPermission struct {
	Code     string
	Category string
	Roles    []string
}

// Decision is the result of an authorization check. Reason is for logs only
// and never reaches a response body.
type Decision struct {
	Allowed bool
	Reason  string
}

// Catalog is the static menu-permission set of the back office.
var Catalog = []MenuPermission{
	{Code: loan.MenuLoanCreate, Category: CategoryLoan, Roles: []string{RoleMarketing, RoleAdmin}},
	{Code: loan.MenuLoanReview, Category: CategoryLoan, Roles: []string{RoleMarketing, RoleAdmin}},
	{Code: loan.MenuLoanApprove, Category: CategoryLoan, Roles: []string{RoleBranchManager, RoleAdmin}},
	{Code: loan.MenuLoanReject, Category: CategoryLoan, Roles: []string{RoleMarketing, RoleBranchManager, RoleAdmin}},
	{Code: loan.MenuLoanDisburse, Category: CategoryLoan, Roles: []string{RoleBackOffice, RoleAdmin}},
	{Code: loan.MenuLoanView, Category: CategoryLoan, Roles: []string{RoleMarketing, RoleBranchManager, RoleBackOffice, RoleAdmin}},
	{Code: MenuUserManage, Category: CategoryUser, Roles: []string{RoleAdmin}},
	{Code: MenuReportView, Category: CategoryReport, Roles: []string{RoleBranchManager, RoleAdmin}},
}

// Engine answers permit/deny questions against the catalog.
type Engine struct {
	byCode map[string]MenuPermission
}

// NewEngine indexes the static catalog.
func NewEngine() *Engine {
	e := &Engine{byCode: make(map[string]MenuPermission, len(Catalog))}
	for _, perm := range Catalog {
		e.byCode[perm.Code] = perm
	}
	return e
}

// Authorize decides whether the principal may execute the action behind
// menuCode. Denies on inactive principals, unknown codes and empty role
// intersection.
func (e *Engine) Authorize(principal auth.Principal, menuCode string) Decision {
	if principal.ID == "" {
		return Decision{Reason: "no principal"}
	}
	if !principal.Active {
		return Decision{Reason: "principal inactive"}
	}
	perm, ok := e.byCode[normalizeCode(menuCode)]
	if !ok {
		return Decision{Reason: "unknown menu code"}
	}
	for _, role := range perm.Roles {
		if principal.HasRole(role) {
			return Decision{Allowed: true}
		}
	}
	return Decision{Reason: "no role grants " + perm.Code}
}

// Allowed implements loan.Authorizer.
func (e *Engine) Allowed(principal auth.Principal, menuCode string) bool {
	return e.Authorize(principal, menuCode).Allowed
}

// CategoryOf is a pure lookup returning CategoryOther for unknown codes.
func (e *Engine) CategoryOf(menuCode string) string {
	perm, ok := e.byCode[normalizeCode(menuCode)]
	if !ok {
		return CategoryOther
	}
	return perm.Category
}

func normalizeCode(code string) string {
	return strings.TrimSpace(strings.ToUpper(code))
}
