package catalog

import (
	"sort"
	"sync"
)

// MemorySource implements Source using in-memory maps. It is used as a test
// fixture and as a standalone backend for local development.
type MemorySource struct {
	mu        sync.RWMutex
	resources map[string]Record
	packages  map[string]Record
	views     map[string][]Record
	users     map[string]Record
	orgs      map[string][]Organization
	editors   map[string]map[string]bool
	calls     map[string]int
}

// NewMemorySource creates an empty MemorySource
func NewMemorySource() *MemorySource {
	return &MemorySource{
		resources: make(map[string]Record),
		packages:  make(map[string]Record),
		views:     make(map[string][]Record),
		users:     make(map[string]Record),
		orgs:      make(map[string][]Organization),
		editors:   make(map[string]map[string]bool),
		calls:     make(map[string]int),
	}
}

// AddResource stores a resource record, indexed by its "id" field.
func (s *MemorySource) AddResource(resource Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources[resource.String("id")] = resource
}

// AddPackage stores a package record, indexed by its "id" field.
func (s *MemorySource) AddPackage(pkg Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packages[pkg.String("id")] = pkg
}

// AddViews stores the view list for a resource id.
func (s *MemorySource) AddViews(resourceID string, views []Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views[resourceID] = views
}

// AddUser stores a user record, indexed by its "id" and "name" fields.
func (s *MemorySource) AddUser(user Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id := user.String("id"); id != "" {
		s.users[id] = user
	}
	if name := user.String("name"); name != "" {
		s.users[name] = user
	}
}

// SetOrganizations sets the organization memberships for a user.
func (s *MemorySource) SetOrganizations(username string, orgs []Organization) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orgs[username] = orgs
}

// AllowPackageUpdate grants a user editor rights on a package.
func (s *MemorySource) AllowPackageUpdate(username, packageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editors[username] == nil {
		s.editors[username] = make(map[string]bool)
	}
	s.editors[username][packageID] = true
}

// Calls returns how many times the named operation was invoked.
func (s *MemorySource) Calls(operation string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[operation]
}

func (s *MemorySource) record(operation string) {
	s.calls[operation]++
}

// ResourceShow implements Source
func (s *MemorySource) ResourceShow(id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("resource_show")

	resource, ok := s.resources[id]
	if !ok {
		return nil, ErrResourceNotFound
	}
	return resource, nil
}

// PackageShow implements Source
func (s *MemorySource) PackageShow(id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("package_show")

	pkg, ok := s.packages[id]
	if !ok {
		return nil, ErrPackageNotFound
	}
	return pkg, nil
}

// ResourceSearch implements Source. The query is ignored; every stored
// resource matches, in id order.
func (s *MemorySource) ResourceSearch(query map[string]string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("resource_search")

	results := sortedRecords(s.resources)
	return Record{"count": len(results), "results": results}, nil
}

// PackageSearch implements Source. The query is ignored; every stored
// package matches, in id order.
func (s *MemorySource) PackageSearch(query map[string]string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("package_search")

	results := sortedRecords(s.packages)
	return Record{"count": len(results), "results": results}, nil
}

// ResourceViewList implements Source
func (s *MemorySource) ResourceViewList(id string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("resource_view_list")
	return s.views[id], nil
}

// OrganizationListForUser implements Source
func (s *MemorySource) OrganizationListForUser(username string, permission string) ([]Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("organization_list_for_user")
	return s.orgs[username], nil
}

// UserShow implements Source
func (s *MemorySource) UserShow(id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("user_show")

	user, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// IsAuthorized implements Source. Only "package_update" grants are modeled;
// every other action is denied.
func (s *MemorySource) IsAuthorized(username string, action string, data Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("is_authorized")

	if action != "package_update" {
		return false, nil
	}
	return s.editors[username][data.String("id")], nil
}

func sortedRecords(byID map[string]Record) []Record {
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	records := make([]Record, 0, len(ids))
	for _, id := range ids {
		records = append(records, byID[id])
	}
	return records
}
