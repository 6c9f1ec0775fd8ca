// Package sanitize strips HTML markup from user-supplied chat text before it is forwarded or persisted.
package sanitize

import "github.com/microcosm-cc/bluemonday"

var policy = bluemonday.StrictPolicy()

// Text removes any HTML markup from s, returning plain text safe to forward to another client or store in the
// offline message table.
func Text(s string) string {
	return policy.Sanitize(s)
}
