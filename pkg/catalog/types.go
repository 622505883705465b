package catalog

// Record is a raw catalog record (resource, package or user) as returned by
// the upstream action API: a flat mapping of field name to value. Redaction
// operates on records generically, so fields stay untyped.
type Record map[string]interface{}

// Copy returns a shallow copy of the record. Redaction must never mutate a
// record handed out by a Source.
func (r Record) Copy() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// String returns the value of a field as a string, or "" when the field is
// absent or not a string.
func (r Record) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// Organization is one entry from an organization membership listing.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Source is the upstream catalog collaborator. All calls are synchronous and
// blocking; implementations decide transport.
type Source interface {
	// ResourceShow returns a resource record by id. Returns
	// ErrResourceNotFound if the resource does not exist.
	ResourceShow(id string) (Record, error)

	// PackageShow returns a package record by id, including its "resources"
	// list. Returns ErrPackageNotFound if the package does not exist.
	PackageShow(id string) (Record, error)

	// ResourceSearch runs an upstream resource search. The returned record
	// holds the matching resources under "results" alongside count/facet
	// keys, which pass through untouched.
	ResourceSearch(query map[string]string) (Record, error)

	// PackageSearch runs an upstream package search, same result shape as
	// ResourceSearch but with package records under "results".
	PackageSearch(query map[string]string) (Record, error)

	// ResourceViewList returns the configured views for a resource.
	ResourceViewList(id string) ([]Record, error)

	// OrganizationListForUser returns the organizations the user belongs to
	// with at least the given permission.
	OrganizationListForUser(username string, permission string) ([]Organization, error)

	// UserShow returns a user record by id or account name. This is an
	// elevated fetch that bypasses the catalog's visibility rules; it is
	// only used for notification delivery. Returns ErrUserNotFound if the
	// user does not exist.
	UserShow(id string) (Record, error)

	// IsAuthorized reports whether the named user may perform an action
	// (e.g. "package_update") on the target described by data.
	IsAuthorized(username string, action string, data Record) (bool, error)
}
