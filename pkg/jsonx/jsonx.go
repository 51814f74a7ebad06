// Package jsonx extracts JSON values from free-form model output. Models
// wrap JSON in prose and code fences often enough that a strict parse is
// the exception, so every extractor here is permissive and total: bad input
// yields a zero result, never an error surfaced to the caller.
package jsonx

import (
	"encoding/json"
	"strings"
)

// ExtractObject unmarshals the first JSON object found in content into out.
// Strategies, in order: direct parse, fenced code block, first balanced
// brace span. Returns false when nothing parsed.
func ExtractObject(content string, out any) bool {
	return extract(content, out, '{', '}')
}

// ExtractArray unmarshals the first JSON array found in content into out.
func ExtractArray(content string, out any) bool {
	return extract(content, out, '[', ']')
}

func extract(content string, out any, opener, closer byte) bool {
	content = strings.TrimSpace(content)
	if content == "" {
		return false
	}
	if json.Unmarshal([]byte(content), out) == nil {
		return true
	}
	if fenced := Fenced(content); fenced != "" {
		if json.Unmarshal([]byte(fenced), out) == nil {
			return true
		}
	}
	if span := balancedSpan(content, opener, closer); span != "" {
		if json.Unmarshal([]byte(span), out) == nil {
			return true
		}
	}
	return false
}

// Fenced returns the body of the first ``` code fence, tolerating a
// language tag on the opening line. Empty when no complete fence exists.
func Fenced(content string) string {
	start := strings.Index(content, "```")
	if start < 0 {
		return ""
	}
	rest := content[start+3:]
	if newline := strings.IndexByte(rest, '\n'); newline >= 0 {
		rest = rest[newline+1:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}

// balancedSpan returns the first balanced opener..closer span, tracking
// JSON string literals so braces inside strings do not count.
func balancedSpan(content string, opener, closer byte) string {
	start := strings.IndexByte(content, opener)
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		ch := content[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case opener:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}
	return ""
}
