package restriction

import (
	"fmt"
	"strings"

	"github.com/opencatalog/restrictedd/pkg/catalog"
	"github.com/opencatalog/restrictedd/pkg/logging"
)

// NormalizeFields coerces the two restriction fields on a resource record
// into their canonical forms and returns a normalized copy. Both fields are
// optional and missing fields stay missing. Unknown level values are kept
// as-is: the decision engine denies them safely at read time. The allow-list
// accepts a string or a list; lists are canonicalized to the comma-joined
// string form, anything else becomes an empty string with a logged warning.
func NormalizeFields(resource catalog.Record) catalog.Record {
	out := resource.Copy()

	if v, ok := out[FieldLevel]; ok {
		if _, isString := v.(string); !isString {
			logging.App.Warn("Dropping non-string restriction level", "resource", out.String("id"), "value", v)
			delete(out, FieldLevel)
		}
	}

	if v, ok := out[FieldAllowedUsers]; ok {
		switch list := v.(type) {
		case string:
		case []string:
			out[FieldAllowedUsers] = strings.Join(list, ",")
		case []interface{}:
			entries := make([]string, 0, len(list))
			for _, entry := range list {
				entries = append(entries, fmt.Sprintf("%v", entry))
			}
			out[FieldAllowedUsers] = strings.Join(entries, ",")
		default:
			logging.App.Warn("Normalizing malformed allow-list to empty", "resource", out.String("id"), "value", v)
			out[FieldAllowedUsers] = ""
		}
	}

	return out
}
