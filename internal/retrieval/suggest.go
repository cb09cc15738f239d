package retrieval

import "strings"

// Suggest returns a user-facing hint for a failed query, derived from the
// error text.
func Suggest(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "not found"):
		return "The corpus may have been deleted. Try listing available corpora."
	case strings.Contains(msg, "permission"):
		return "Check if you have permission to access this corpus."
	case strings.Contains(msg, "quota"):
		return "You may have hit API quota limits. Try again in a few minutes."
	default:
		return "Check your retrieval service configuration and network connection."
	}
}
