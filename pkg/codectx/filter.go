package codectx

import "path"

// matchPattern matches one glob against a repo-relative path. Patterns
// containing a slash match against the full path, with a trailing "/*"
// matching the whole subtree; bare patterns match the base name.
func matchPattern(pattern, filePath string) bool {
	if pattern == "" {
		return false
	}
	if containsSlash(pattern) {
		if ok, _ := path.Match(pattern, filePath); ok {
			return true
		}
		// "vendor/*" should cover nested paths too.
		if len(pattern) > 2 && pattern[len(pattern)-2:] == "/*" {
			prefix := pattern[:len(pattern)-1]
			return len(filePath) > len(prefix) && filePath[:len(prefix)] == prefix
		}
		return false
	}
	ok, _ := path.Match(pattern, path.Base(filePath))
	return ok
}

func containsSlash(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			return true
		}
	}
	return false
}

// included reports whether a path passes the include/exclude pattern sets.
// Excludes win over includes; an empty include set includes everything.
func included(filePath string, includes, excludes []string) bool {
	for _, pattern := range excludes {
		if matchPattern(pattern, filePath) {
			return false
		}
	}
	if len(includes) == 0 {
		return true
	}
	for _, pattern := range includes {
		if matchPattern(pattern, filePath) {
			return true
		}
	}
	return false
}
