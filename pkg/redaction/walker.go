package redaction

import (
	"fmt"

	"github.com/opencatalog/restrictedd/pkg/access"
	"github.com/opencatalog/restrictedd/pkg/catalog"
)

// Walker applies per-resource redaction across whole result sets: single
// resource views, a package's resource list, and search pages. It never
// mutates records returned by the catalog.
type Walker struct {
	source catalog.Source
	engine *access.Engine
}

// NewWalker creates a Walker over the given catalog and decision engine.
func NewWalker(source catalog.Source, engine *access.Engine) *Walker {
	return &Walker{source: source, engine: engine}
}

// ResourceViewList returns the views of a resource, or an empty list when
// the user may not access it. The sentinel id short-circuits without any
// upstream fetch.
func (w *Walker) ResourceViewList(username, id string) ([]catalog.Record, error) {
	if id == SentinelID {
		return []catalog.Record{}, nil
	}

	resource, err := w.source.ResourceShow(id)
	if err != nil {
		return nil, err
	}

	decision, err := w.checkResource(username, resource)
	if err != nil {
		return nil, err
	}
	if !decision.Granted {
		return []catalog.Record{}, nil
	}

	views, err := w.source.ResourceViewList(id)
	if err != nil {
		return nil, err
	}
	if views == nil {
		// A granted user with no views gets the same empty-list shape as a
		// denied one, not JSON null.
		views = []catalog.Record{}
	}
	return views, nil
}

// PackageShow returns a package with its resource list redacted for the
// user. Users who may edit the package see it unmodified.
func (w *Walker) PackageShow(username, id string) (catalog.Record, error) {
	pkg, err := w.source.PackageShow(id)
	if err != nil {
		return nil, err
	}

	canEdit, err := w.canEditPackage(username, pkg.String("id"))
	if err != nil {
		return nil, err
	}
	if canEdit {
		return pkg, nil
	}

	redacted := pkg.Copy()
	resources, err := w.redactList(username, recordList(pkg["resources"]), pkg)
	if err != nil {
		return nil, err
	}
	redacted["resources"] = resources

	return redacted, nil
}

// ResourceSearch passes an upstream resource search through with every hit
// redacted. Counts, facets and any other keys are returned verbatim.
func (w *Walker) ResourceSearch(username string, query map[string]string) (catalog.Record, error) {
	result, err := w.source.ResourceSearch(query)
	if err != nil {
		return nil, err
	}

	redacted := make(catalog.Record, len(result))
	for key, value := range result {
		if key != "results" {
			redacted[key] = value
			continue
		}
		hits, err := w.redactList(username, recordList(value), nil)
		if err != nil {
			return nil, err
		}
		redacted[key] = hits
	}

	return redacted, nil
}

// PackageSearch passes an upstream package search through, replacing every
// hit with the result of the PackageShow redaction path for that package.
// The extra fetch per hit keeps search results and direct shows identical.
func (w *Walker) PackageSearch(username string, query map[string]string) (catalog.Record, error) {
	result, err := w.source.PackageSearch(query)
	if err != nil {
		return nil, err
	}

	redacted := make(catalog.Record, len(result))
	for key, value := range result {
		if key != "results" {
			redacted[key] = value
			continue
		}

		hits := recordList(value)
		shown := make([]catalog.Record, 0, len(hits))
		for _, hit := range hits {
			pkg, err := w.PackageShow(username, hit.String("id"))
			if err != nil {
				return nil, err
			}
			shown = append(shown, pkg)
		}
		redacted[key] = shown
	}

	return redacted, nil
}

// CheckAccess resolves a package/resource pair and runs the access decision
// for the user. Both ids are required.
func (w *Walker) CheckAccess(username, packageID, resourceID string) (access.Decision, error) {
	if packageID == "" {
		return access.Decision{}, &ValidationError{Field: "package_id"}
	}
	if resourceID == "" {
		return access.Decision{}, &ValidationError{Field: "resource_id"}
	}

	pkg, err := w.source.PackageShow(packageID)
	if err != nil {
		return access.Decision{}, err
	}
	resource, err := w.source.ResourceShow(resourceID)
	if err != nil {
		return access.Decision{}, err
	}

	return w.engine.CheckResourceAccess(username, resource, pkg)
}

// redactList redacts every resource in the list independently. When pkg is
// nil (search hits from different packages) the owning package is resolved
// per resource through its package_id.
func (w *Walker) redactList(username string, resources []catalog.Record, pkg catalog.Record) ([]catalog.Record, error) {
	redacted := make([]catalog.Record, 0, len(resources))
	for _, resource := range resources {
		owner := pkg
		if owner == nil {
			var err error
			owner, err = w.ownerPackage(resource)
			if err != nil {
				return nil, err
			}
		}

		canEdit, err := w.canEditPackage(username, owner.String("id"))
		if err != nil {
			return nil, err
		}

		authorized := true
		if !canEdit {
			decision, err := w.engine.CheckResourceAccess(username, resource, owner)
			if err != nil {
				return nil, err
			}
			authorized = decision.Granted
		}

		redacted = append(redacted, RedactResource(resource, username, canEdit, authorized))
	}
	return redacted, nil
}

// checkResource resolves the owning package and runs the decision engine.
func (w *Walker) checkResource(username string, resource catalog.Record) (access.Decision, error) {
	pkg, err := w.ownerPackage(resource)
	if err != nil {
		return access.Decision{}, err
	}
	return w.engine.CheckResourceAccess(username, resource, pkg)
}

// ownerPackage fetches the package owning a resource. Resources without a
// package_id are evaluated against an empty package record.
func (w *Walker) ownerPackage(resource catalog.Record) (catalog.Record, error) {
	packageID := resource.String("package_id")
	if packageID == "" {
		return catalog.Record{}, nil
	}

	pkg, err := w.source.PackageShow(packageID)
	if err != nil {
		return nil, fmt.Errorf("resolving package %q: %w", packageID, err)
	}
	return pkg, nil
}

func (w *Walker) canEditPackage(username, packageID string) (bool, error) {
	if username == "" {
		return false, nil
	}
	return w.source.IsAuthorized(username, "package_update", catalog.Record{"id": packageID})
}

// recordList coerces a decoded JSON list into records. Unknown shapes yield
// an empty list.
func recordList(v interface{}) []catalog.Record {
	switch list := v.(type) {
	case []catalog.Record:
		return list
	case []map[string]interface{}:
		records := make([]catalog.Record, 0, len(list))
		for _, entry := range list {
			records = append(records, catalog.Record(entry))
		}
		return records
	case []interface{}:
		records := make([]catalog.Record, 0, len(list))
		for _, entry := range list {
			if m, ok := entry.(map[string]interface{}); ok {
				records = append(records, catalog.Record(m))
			}
		}
		return records
	default:
		return nil
	}
}
