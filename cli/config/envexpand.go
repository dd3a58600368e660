// Package config handles config file loading for flanker run.
package config

import (
	"os"
	"regexp"
)

// envRef matches ${NAME} and ${NAME:-fallback} in a config file.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv substitutes environment references in raw config text before it
// is decoded, so one lab config can serve several stations:
//
//	results:
//	  dir: ${FLANKER_RESULTS_DIR:-results}
//	adapter:
//	  url: ${LAB_WEBHOOK_URL}
//
// A set, non-empty variable wins. Otherwise the fallback is used, and an
// unset reference without one becomes the empty string. Fields that must
// not be empty are caught by Validate.
func ExpandEnv(input string) string {
	return expandWith(input, os.LookupEnv)
}

func expandWith(input string, lookup func(string) (string, bool)) string {
	return envRef.ReplaceAllStringFunc(input, func(ref string) string {
		m := envRef.FindStringSubmatch(ref)
		if v, ok := lookup(m[1]); ok && v != "" {
			return v
		}
		return m[2]
	})
}
