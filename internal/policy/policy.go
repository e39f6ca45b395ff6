// Package policy evaluates platform-wide authorization capabilities.
//
// The platform-admin override applies to every permission check in the
// service; keeping the predicate here means handlers and services consult one
// component instead of comparing emails ad hoc.
package policy

import "strings"

// Checker answers capability questions about principals.
type Checker struct {
	adminEmails map[string]struct{}
}

// NewChecker builds a Checker from a comma-separated list of platform admin
// emails (whitespace tolerated, case-insensitive).
func NewChecker(adminEmails string) *Checker {
	set := make(map[string]struct{})
	for _, email := range strings.Split(adminEmails, ",") {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			set[email] = struct{}{}
		}
	}
	return &Checker{adminEmails: set}
}

// IsPlatformAdmin reports whether the email belongs to a platform admin.
// Platform admins resolve to the owner role in every room and may ban
// accounts globally.
func (c *Checker) IsPlatformAdmin(email string) bool {
	if email == "" {
		return false
	}
	_, ok := c.adminEmails[strings.ToLower(strings.TrimSpace(email))]
	return ok
}
