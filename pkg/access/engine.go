package access

import (
	"fmt"

	"github.com/opencatalog/restrictedd/pkg/catalog"
	"github.com/opencatalog/restrictedd/pkg/restriction"
)

// Engine decides whether a user may access a restricted resource. Decisions
// are computed fresh on every call; organization memberships are fetched at
// most once per decision and never cached across decisions.
type Engine struct {
	orgs OrganizationSource
}

// NewEngine creates an Engine backed by the given membership source.
func NewEngine(orgs OrganizationSource) *Engine {
	return &Engine{orgs: orgs}
}

// evaluation carries the per-decision state threaded through the rule chain.
type evaluation struct {
	engine   *Engine
	username string
	desc     restriction.Descriptor
	ownerOrg string

	memberships       map[string]string
	membershipsLoaded bool
}

// organizations returns the user's organization id->name map, fetching it on
// first use and reusing it for the rest of this decision. Entries missing an
// id or a name do not count as memberships.
func (e *evaluation) organizations() (map[string]string, error) {
	if e.membershipsLoaded {
		return e.memberships, nil
	}

	orgs, err := e.engine.orgs.OrganizationListForUser(e.username, "read")
	if err != nil {
		return nil, fmt.Errorf("listing organizations for %q: %w", e.username, err)
	}

	e.memberships = make(map[string]string)
	for _, org := range orgs {
		if org.ID != "" && org.Name != "" {
			e.memberships[org.ID] = org.Name
		}
	}
	e.membershipsLoaded = true
	return e.memberships, nil
}

// A rule inspects the evaluation and either settles the decision (matched
// true) or defers to the next rule. The chain order is load-bearing: the
// allow-list overrides level restrictions, and anonymous users are denied
// before any non-public level is considered.
type rule func(*evaluation) (decision Decision, matched bool, err error)

var ruleChain = []rule{
	publicResource,
	anonymousUser,
	registeredLevel,
	allowListedUser,
	allowedUsersOnlyLevel,
	organizationMembers,
}

// CheckResourceAccess runs the rule chain for one user/resource/package
// combination. The package record supplies the owning organization. An error
// return means the membership lookup failed, not that access was denied.
func (e *Engine) CheckResourceAccess(username string, resource, pkg catalog.Record) (Decision, error) {
	eval := &evaluation{
		engine:   e,
		username: username,
		desc:     restriction.Parse(resource),
		ownerOrg: pkg.String("owner_org"),
	}

	for _, r := range ruleChain {
		decision, matched, err := r(eval)
		if err != nil {
			return Decision{}, err
		}
		if matched {
			return decision, nil
		}
	}

	// The last rule always matches.
	return deny(sameOrganizationReason(eval.ownerOrg)), nil
}

// publicResource grants everyone access to public resources.
func publicResource(e *evaluation) (Decision, bool, error) {
	if e.desc.Level == "" || e.desc.Level == restriction.LevelPublic {
		return grant(), true, nil
	}
	return Decision{}, false, nil
}

// anonymousUser denies anonymous requesters for every non-public level.
func anonymousUser(e *evaluation) (Decision, bool, error) {
	if e.username == "" {
		return deny(reasonRegisteredOnly), true, nil
	}
	return Decision{}, false, nil
}

// registeredLevel grants any known user; anonymity was settled above.
func registeredLevel(e *evaluation) (Decision, bool, error) {
	if e.desc.Level == restriction.LevelRegistered {
		return grant(), true, nil
	}
	return Decision{}, false, nil
}

// allowListedUser grants users named on the allow-list regardless of level.
func allowListedUser(e *evaluation) (Decision, bool, error) {
	if e.desc.Contains(e.username) {
		return grant(), true, nil
	}
	return Decision{}, false, nil
}

// allowedUsersOnlyLevel denies everyone not already granted by the list.
func allowedUsersOnlyLevel(e *evaluation) (Decision, bool, error) {
	if e.desc.Level == restriction.LevelOnlyAllowedUsers {
		return deny(reasonAllowedUsersOnly), true, nil
	}
	return Decision{}, false, nil
}

// organizationMembers settles the remaining levels, all of which require at
// least one organization membership. Unrecognized levels fall through to the
// same-organization denial, the safe default.
func organizationMembers(e *evaluation) (Decision, bool, error) {
	memberships, err := e.organizations()
	if err != nil {
		return Decision{}, false, err
	}

	if len(memberships) == 0 {
		return deny(reasonOrganizationOnly), true, nil
	}

	if e.desc.Level == restriction.LevelAnyOrganization {
		return grant(), true, nil
	}

	if e.desc.Level == restriction.LevelSameOrganization {
		if _, ok := memberships[e.ownerOrg]; ok {
			return grant(), true, nil
		}
	}

	return deny(sameOrganizationReason(e.ownerOrg)), true, nil
}

func sameOrganizationReason(ownerOrg string) string {
	return fmt.Sprintf("Resource access restricted to same organization (%s) members", ownerOrg)
}
