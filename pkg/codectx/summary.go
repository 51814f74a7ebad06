package codectx

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"caretaker/pkg/persistence"
)

var languageByExtension = map[string]string{
	".go":   "Go",
	".py":   "Python",
	".js":   "JavaScript",
	".ts":   "TypeScript",
	".tsx":  "TypeScript",
	".rs":   "Rust",
	".java": "Java",
	".rb":   "Ruby",
	".c":    "C",
	".cpp":  "C++",
	".cs":   "C#",
	".kt":   "Kotlin",
	".php":  "PHP",
	".ex":   "Elixir",
}

var wellKnownFiles = []string{
	"go.mod", "package.json", "Cargo.toml", "pyproject.toml", "setup.py",
	"Gemfile", "pom.xml", "Makefile", "Dockerfile", "README.md", "LICENSE",
}

// deriveSummary builds a short repository description from the cached file
// tree: dominant language by extension count, top-level layout, and which
// well-known marker files exist.
func deriveSummary(repo string, entries []persistence.FileEntry) string {
	extensionCounts := make(map[string]int)
	topDirs := make(map[string]bool)
	present := make(map[string]bool)

	for _, entry := range entries {
		if ext := path.Ext(entry.Path); ext != "" {
			extensionCounts[ext]++
		}
		if idx := strings.IndexByte(entry.Path, '/'); idx > 0 {
			topDirs[entry.Path[:idx]] = true
		}
		present[path.Base(entry.Path)] = true
	}

	language := "unknown"
	best := 0
	for ext, count := range extensionCounts {
		name, known := languageByExtension[ext]
		if known && count > best {
			language = name
			best = count
		}
	}

	dirs := make([]string, 0, len(topDirs))
	for dir := range topDirs {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	if len(dirs) > 12 {
		dirs = dirs[:12]
	}

	var markers []string
	for _, name := range wellKnownFiles {
		if present[name] {
			markers = append(markers, name)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Repository %s: primarily %s, %d tracked files.", repo, language, len(entries))
	if len(dirs) > 0 {
		fmt.Fprintf(&b, " Top-level directories: %s.", strings.Join(dirs, ", "))
	}
	if len(markers) > 0 {
		fmt.Fprintf(&b, " Notable files: %s.", strings.Join(markers, ", "))
	}
	return b.String()
}
