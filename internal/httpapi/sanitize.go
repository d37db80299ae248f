package httpapi

import (
	"regexp"
	"strings"
)

var (
	pathPattern = regexp.MustCompile(`(/[\w.\-]+)+`)
	ipPattern   = regexp.MustCompile(`\b\d{1,3}(\.\d{1,3}){3}(:\d+)?\b`)
)

var sqlKeywords = []string{
	"SELECT", "INSERT", "UPDATE", "DELETE", "CREATE", "DROP", "PRAGMA", "VACUUM",
}

// sanitize scrubs filesystem paths, addresses and SQL fragments out of
// an error string before it leaves the process.
func sanitize(detail string) string {
	detail = pathPattern.ReplaceAllString(detail, "[path]")
	detail = ipPattern.ReplaceAllString(detail, "[addr]")
	upper := strings.ToUpper(detail)
	for _, keyword := range sqlKeywords {
		if strings.Contains(upper, keyword) {
			return "internal server error"
		}
	}
	if strings.TrimSpace(detail) == "" {
		return "internal server error"
	}
	return detail
}
