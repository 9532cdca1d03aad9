package config

import (
	"bufio"
	"io"
	"os"
	"strings"

	log "github.com/go-pkgz/lgr"
)

// Load reads the configuration file and returns the raw parsed sections in
// file order. A missing or unreadable file is not an error, the registry
// defaults are returned untouched.
func Load(path string) []Section {
	fh, err := os.Open(path) //nolint:gosec // path is operator-provided config location
	if err != nil {
		log.Printf("[DEBUG] can't read config file %s, using defaults: %v", path, err)
		return Registry()
	}
	defer fh.Close() //nolint:errcheck // read-only file

	parsed := Parse(fh)
	if len(parsed) == 0 {
		return Registry()
	}
	return parsed
}

// Parse reads INI-style text: [Section Name] headers (spaces allowed),
// "key = value" lines, # starts a trailing comment stripped from values,
// blank lines ignored. Key casing and file order are preserved; this is
// the raw intermediate representation, not the served view.
func Parse(r io.Reader) []Section {
	var sections []Section
	var current *Section

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.Contains(line, "]") {
			name := strings.TrimSpace(line[1:strings.Index(line, "]")])
			sections = append(sections, Section{Name: name})
			current = &sections[len(sections)-1]
			continue
		}

		if current == nil {
			continue // key before any section header, drop it
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		current.Options = append(current.Options, Option{
			Key:   strings.TrimSpace(key),
			Value: stripInlineComment(value),
		})
	}
	if err := scanner.Err(); err != nil {
		log.Printf("[WARN] config scan failed: %v", err)
	}
	return sections
}

// stripInlineComment drops text from the comment marker to end of line and
// trims surrounding whitespace
func stripInlineComment(value string) string {
	if i := strings.IndexByte(value, '#'); i >= 0 {
		value = value[:i]
	}
	return strings.TrimSpace(value)
}
