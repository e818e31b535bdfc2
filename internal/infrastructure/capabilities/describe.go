// Package capabilities provides the terminal host's grant persistence,
// prompting and rationale policy.
package capabilities

import (
	"fmt"
	"strings"
)

// Kind returns the part of a capability name before the first colon, or the
// whole name when it has none ("fs:read:/etc" -> "fs", "camera" -> "camera").
func Kind(name string) string {
	if i := strings.Index(name, ":"); i >= 0 {
		return name[:i]
	}
	return name
}

// Describe returns a human-readable description of a capability name.
func Describe(name string) string {
	kind := Kind(name)
	pattern := strings.TrimPrefix(name, kind+":")
	if pattern == name {
		return name
	}

	switch kind {
	case "network":
		if pattern == "outbound:*" || pattern == "*" {
			return "Network access to any port"
		}
		if pattern == "outbound:private" {
			return "Network access to private/reserved IPs (localhost, 192.168.x.x, 10.x.x.x, 169.254.169.254, etc.)"
		}
		if strings.HasPrefix(pattern, "outbound:") {
			return fmt.Sprintf("Network access to port %s", strings.TrimPrefix(pattern, "outbound:"))
		}
		return fmt.Sprintf("Network: %s", pattern)
	case "fs":
		if strings.HasPrefix(pattern, "read:") {
			return fmt.Sprintf("Read files: %s", strings.TrimPrefix(pattern, "read:"))
		}
		if strings.HasPrefix(pattern, "write:") {
			return fmt.Sprintf("Write files: %s", strings.TrimPrefix(pattern, "write:"))
		}
		return fmt.Sprintf("Filesystem: %s", pattern)
	case "exec":
		if pattern == "/bin/sh" {
			return "Shell execution (executes shell commands)"
		}
		return fmt.Sprintf("Execute commands: %s", pattern)
	case "env":
		return fmt.Sprintf("Read environment variables: %s", pattern)
	default:
		return fmt.Sprintf("%s: %s", kind, pattern)
	}
}
