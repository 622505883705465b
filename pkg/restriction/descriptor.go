package restriction

import (
	"fmt"
	"strings"

	"github.com/opencatalog/restrictedd/pkg/catalog"
)

// Level identifies the audience tier of a resource.
type Level string

const (
	LevelPublic           Level = "public"
	LevelRegistered       Level = "registered"
	LevelOnlyAllowedUsers Level = "only_allowed_users"
	LevelAnyOrganization  Level = "any_organization"
	LevelSameOrganization Level = "same_organization"
)

// Field names of the two restriction fields carried on resource records.
const (
	FieldLevel        = "restricted_level"
	FieldAllowedUsers = "restricted_allowed_users"
)

// Descriptor is the restriction view of a single resource record. It is
// recomputed from the record on every use and never stored.
type Descriptor struct {
	Level        Level
	AllowedUsers []string
}

// Parse extracts the restriction descriptor from a resource record. It never
// fails: a missing or empty level means public, a missing allow-list is
// empty, and a comma-separated allow-list string is split without trimming.
// Entries are trimmed (and empties dropped) at consumption, not here.
func Parse(resource catalog.Record) Descriptor {
	d := Descriptor{Level: LevelPublic}

	if level := resource.String(FieldLevel); level != "" {
		d.Level = Level(level)
	}

	switch v := resource[FieldAllowedUsers].(type) {
	case nil:
	case string:
		if v != "" {
			d.AllowedUsers = strings.Split(v, ",")
		}
	case []string:
		d.AllowedUsers = v
	case []interface{}:
		for _, entry := range v {
			d.AllowedUsers = append(d.AllowedUsers, fmt.Sprintf("%v", entry))
		}
	default:
		// Neither string nor list: treat as an empty allow-list. The write
		// path warns about this in NormalizeFields.
	}

	return d
}

// Contains reports whether the user name appears literally in the
// allow-list. No trimming: a padded entry does not match.
func (d Descriptor) Contains(username string) bool {
	if username == "" {
		return false
	}
	for _, entry := range d.AllowedUsers {
		if entry == username {
			return true
		}
	}
	return false
}
