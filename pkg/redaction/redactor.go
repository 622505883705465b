package redaction

import (
	"strings"

	"github.com/opencatalog/restrictedd/pkg/catalog"
	"github.com/opencatalog/restrictedd/pkg/restriction"
)

// SentinelID replaces a resource's real id once its metadata is hidden.
// Lookups by this id deterministically miss, so a hidden resource cannot be
// re-fetched through the normal show path.
const SentinelID = ".idnotauthorized"

// Fields that survive full metadata hiding.
var visibleFields = map[string]bool{
	"format": true,
	"name":   true,
}

// MaskName partially hides an allow-list entry: the first three and last two
// characters stay visible. Short names keep lenient slice bounds rather than
// a minimum-length guard, so very short entries repeat characters.
func MaskName(name string) string {
	head := name
	if len(head) > 3 {
		head = head[:3]
	}
	tail := name
	if len(tail) > 2 {
		tail = tail[len(tail)-2:]
	}
	return head + "*****" + tail
}

// RedactResource produces the copy of a resource record that the requesting
// user is allowed to see. canEdit reports whether the user may update the
// parent package; authorized is the outcome of the access check for this
// resource. The input record is never mutated.
//
// Editors see the record unmodified. Everyone else gets a masked allow-list,
// and unauthorized users additionally lose every field except format and
// name, with the real id preserved under "restricted_id" and the visible id
// set to SentinelID.
func RedactResource(resource catalog.Record, username string, canEdit, authorized bool) catalog.Record {
	redacted := resource.Copy()
	desc := restriction.Parse(resource)

	if canEdit {
		return redacted
	}

	// Partially hide the other allowed user names, keeping the requester's
	// own entry readable.
	masked := make([]string, 0, len(desc.AllowedUsers))
	for _, entry := range desc.AllowedUsers {
		if strings.TrimSpace(entry) == "" {
			continue
		}
		if entry == username {
			masked = append(masked, entry)
		} else {
			masked = append(masked, MaskName(entry))
		}
	}

	// Only replace the field when the stored value is a plain string; a
	// structured value means the record was already processed upstream.
	if _, isString := resource[restriction.FieldAllowedUsers].(string); isString {
		redacted[restriction.FieldAllowedUsers] = masked
	}

	if !authorized {
		// Preserve the real id under restricted_id, drop everything except
		// the visible fields, then plant the sentinel id.
		originalID, hasID := redacted["id"]

		keys := make([]string, 0, len(redacted))
		for key := range redacted {
			keys = append(keys, key)
		}
		for _, key := range keys {
			if !visibleFields[key] {
				delete(redacted, key)
			}
		}

		if hasID {
			redacted["restricted_id"] = originalID
		}
		redacted["id"] = SentinelID
	}

	return redacted
}
