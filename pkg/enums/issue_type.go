package enums

import "fmt"

// IssueType classifies a post-delivery issue report.
type IssueType string

const (
	IssueTypeMissingItem  IssueType = "Missing Item"
	IssueTypeDamagedItem  IssueType = "Damaged Item"
	IssueTypeWrongItem    IssueType = "Wrong Item"
	IssueTypeLateDelivery IssueType = "Late Delivery"
	IssueTypeOther        IssueType = "Other"
)

var validIssueTypes = []IssueType{
	IssueTypeMissingItem,
	IssueTypeDamagedItem,
	IssueTypeWrongItem,
	IssueTypeLateDelivery,
	IssueTypeOther,
}

// String implements fmt.Stringer.
func (i IssueType) String() string {
	return string(i)
}

// IsValid reports whether the value is a known IssueType.
func (i IssueType) IsValid() bool {
	for _, candidate := range validIssueTypes {
		if candidate == i {
			return true
		}
	}
	return false
}

// ParseIssueType converts raw input into an IssueType.
func ParseIssueType(value string) (IssueType, error) {
	for _, candidate := range validIssueTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid issue type %q", value)
}
