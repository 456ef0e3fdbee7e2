package rbac

import "loanforge.org/internal/loan"

// Work queues are derived from status alone; no persisted queue field
// exists. Each predicate is a set-membership check over the status
// enumeration, so terminal applications route to no queue.

// IsMarketingQueue reports whether marketing acts on applications in s.
func IsMarketingQueue(s loan.Status) bool {
	return s == loan.StatusSubmitted || s == loan.StatusInReview
}

// IsBranchManagerQueue reports whether branch managers act on applications in s.
func IsBranchManagerQueue(s loan.Status) bool {
	return s == loan.StatusWaitingApproval
}

// IsBackOfficeQueue reports whether back office acts on applications in s.
func IsBackOfficeQueue(s loan.Status) bool {
	return s == loan.StatusApprovedWaitingDisbursement
}

// QueueStatuses returns the statuses routed to the named role's queue.
func QueueStatuses(role string) []loan.Status {
	switch role {
	case RoleMarketing:
		return []loan.Status{loan.StatusSubmitted, loan.StatusInReview}
	case RoleBranchManager:
		return []loan.Status{loan.StatusWaitingApproval}
	case RoleBackOffice:
		return []loan.Status{loan.StatusApprovedWaitingDisbursement}
	default:
		return nil
	}
}
