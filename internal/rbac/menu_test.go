package rbac

import (
	"testing"

	"loanforge.org/internal/auth"
	"loanforge.org/internal/loan"
)

func TestAuthorizeRoleIntersection(t *testing.T) {
	e := NewEngine()

	marketing := auth.NewPrincipal("u1", []string{RoleMarketing}, true)
	if d := e.Authorize(marketing, loan.MenuLoanReview); !d.Allowed {
		t.Fatalf("marketing should review: %+v", d)
	}
	if d := e.Authorize(marketing, loan.MenuLoanApprove); d.Allowed {
		t.Fatal("marketing must not approve")
	}
	if d := e.Authorize(marketing, loan.MenuLoanDisburse); d.Allowed {
		t.Fatal("marketing must not disburse")
	}

	bm := auth.NewPrincipal("u2", []string{RoleBranchManager}, true)
	if d := e.Authorize(bm, loan.MenuLoanApprove); !d.Allowed {
		t.Fatalf("branch manager should approve: %+v", d)
	}

	backOffice := auth.NewPrincipal("u3", []string{RoleBackOffice}, true)
	if d := e.Authorize(backOffice, loan.MenuLoanDisburse); !d.Allowed {
		t.Fatalf("back office should disburse: %+v", d)
	}

	admin := auth.NewPrincipal("u4", []string{RoleAdmin}, true)
	for _, perm := range Catalog {
		if d := e.Authorize(admin, perm.Code); !d.Allowed {
			t.Fatalf("admin denied %s: %+v", perm.Code, d)
		}
	}
}

func TestAuthorizeDenies(t *testing.T) {
	e := NewEngine()

	if d := e.Authorize(auth.Principal{}, loan.MenuLoanReview); d.Allowed {
		t.Fatal("empty principal permitted")
	}
	inactive := auth.NewPrincipal("u1", []string{RoleAdmin}, false)
	if d := e.Authorize(inactive, loan.MenuLoanReview); d.Allowed {
		t.Fatal("inactive principal permitted")
	}
	// Unknown codes deny for any role, they never error.
	active := auth.NewPrincipal("u2", []string{RoleAdmin, RoleMarketing, RoleBranchManager, RoleBackOffice}, true)
	if d := e.Authorize(active, "FOO_BAR"); d.Allowed {
		t.Fatal("unknown menu code permitted")
	}
}

func TestCategoryOf(t *testing.T) {
	e := NewEngine()
	cases := map[string]string{
		loan.MenuLoanReview: CategoryLoan,
		MenuUserManage:      CategoryUser,
		MenuReportView:      CategoryReport,
		"FOO_BAR":           CategoryOther,
		"":                  CategoryOther,
		"  loan_review  ":   CategoryLoan,
	}
	for code, want := range cases {
		if got := e.CategoryOf(code); got != want {
			t.Fatalf("CategoryOf(%q)=%q, want %q", code, got, want)
		}
	}
}

func TestQueuePredicatesPartitionNonTerminalStates(t *testing.T) {
	for _, s := range loan.AllStatuses {
		marketing := IsMarketingQueue(s)
		bm := IsBranchManagerQueue(s)
		backOffice := IsBackOfficeQueue(s)

		count := 0
		for _, hit := range []bool{marketing, bm, backOffice} {
			if hit {
				count++
			}
		}
		if s.Terminal() {
			if count != 0 {
				t.Fatalf("terminal status %s routed to a queue", s)
			}
			continue
		}
		if count != 1 {
			t.Fatalf("status %s routed to %d queues", s, count)
		}
	}
}

func TestQueueStatuses(t *testing.T) {
	if got := QueueStatuses(RoleBranchManager); len(got) != 1 || got[0] != loan.StatusWaitingApproval {
		t.Fatalf("unexpected branch manager queue: %v", got)
	}
	if got := QueueStatuses("AUDITOR"); got != nil {
		t.Fatalf("unknown role should map to no queue, got %v", got)
	}
}
