package enums

import "fmt"

// IssueStatus is the resolution workflow state of an issue report.
type IssueStatus string

const (
	IssueStatusPending       IssueStatus = "Pending"
	IssueStatusInvestigating IssueStatus = "Investigating"
	IssueStatusResolved      IssueStatus = "Resolved"
	IssueStatusRejected      IssueStatus = "Rejected"
)

var validIssueStatuses = []IssueStatus{
	IssueStatusPending,
	IssueStatusInvestigating,
	IssueStatusResolved,
	IssueStatusRejected,
}

// String implements fmt.Stringer.
func (i IssueStatus) String() string {
	return string(i)
}

// IsValid reports whether the value is a known IssueStatus.
func (i IssueStatus) IsValid() bool {
	for _, candidate := range validIssueStatuses {
		if candidate == i {
			return true
		}
	}
	return false
}

// ParseIssueStatus converts raw input into an IssueStatus.
func ParseIssueStatus(value string) (IssueStatus, error) {
	for _, candidate := range validIssueStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid issue status %q", value)
}
