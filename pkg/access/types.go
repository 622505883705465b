package access

import "github.com/opencatalog/restrictedd/pkg/catalog"

// Decision is the outcome of an access check. Reason is set when access is
// denied; callers must not conflate a denial with an error return, which
// signals an infrastructure failure instead.
type Decision struct {
	Granted bool   `json:"success"`
	Reason  string `json:"msg,omitempty"`
}

// OrganizationSource supplies a user's organization memberships.
type OrganizationSource interface {
	OrganizationListForUser(username string, permission string) ([]catalog.Organization, error)
}

// Denial messages, worded for end users.
const (
	reasonRegisteredOnly   = "Resource access restricted to registered users"
	reasonAllowedUsersOnly = "Resource access restricted to allowed users only"
	reasonOrganizationOnly = "Resource access restricted to members of an organization"
)

func grant() Decision {
	return Decision{Granted: true}
}

func deny(reason string) Decision {
	return Decision{Granted: false, Reason: reason}
}
