// Package mdscan is a line-oriented scanner for the structured fragments
// embedded in research markdown: section bodies, bullet lists, citation
// markers and bare URLs. Parsers here return positions so callers can
// report loud, structured errors instead of silently dropping lines.
package mdscan

import (
	"regexp"
	"strings"
)

// Lines splits content into lines without trailing newlines.
func Lines(content string) []string {
	return strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
}

// IsHeading reports whether a line is any markdown heading.
func IsHeading(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "#")
}

// headingTitle returns the title of an H2 line, or "" if not an H2.
func headingTitle(line string) string {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "## ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(trimmed, "## "))
}

// Headings returns every H2 title in order.
func Headings(lines []string) []string {
	var out []string
	for _, line := range lines {
		if t := headingTitle(line); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Section returns the body lines of the named H2 section and the 0-based
// index of its first body line. The match is case-insensitive. ok is false
// when the section is absent.
func Section(lines []string, name string) (body []string, start int, ok bool) {
	for i, line := range lines {
		t := headingTitle(line)
		if t == "" || !strings.EqualFold(t, name) {
			continue
		}
		start = i + 1
		end := len(lines)
		for j := start; j < len(lines); j++ {
			if headingTitle(lines[j]) != "" {
				end = j
				break
			}
		}
		return lines[start:end], start, true
	}
	return nil, 0, false
}

// WordCount counts whitespace-separated words across lines.
func WordCount(lines []string) int {
	n := 0
	for _, line := range lines {
		n += len(strings.Fields(line))
	}
	return n
}

// Bullet is one "- ..." list item with its 0-based line index.
type Bullet struct {
	Line int
	Text string
}

// Bullets returns the list items in a section body. offset is added to
// each reported line index so callers can report file positions.
func Bullets(body []string, offset int) []Bullet {
	var out []Bullet
	for i, line := range body {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "- ") {
			out = append(out, Bullet{Line: offset + i, Text: strings.TrimPrefix(trimmed, "- ")})
		}
	}
	return out
}

var urlPattern = regexp.MustCompile(`https?://[^\s)\]>"']+`)

// URLs returns every absolute http(s) URL in a line, trailing punctuation
// trimmed.
func URLs(line string) []string {
	matches := urlPattern.FindAllString(line, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimRight(m, ".,;:"))
	}
	return out
}

var cidPattern = regexp.MustCompile(`\[@(cid_[0-9a-f]+)\]`)

// CitationMarkers returns every [@cid_...] marker occurrence in order,
// duplicates included.
func CitationMarkers(content string) []string {
	var out []string
	for _, m := range cidPattern.FindAllStringSubmatch(content, -1) {
		out = append(out, m[1])
	}
	return out
}

// HasCitationMarker reports whether a line contains a [@cid_...] marker.
func HasCitationMarker(line string) bool {
	return cidPattern.MatchString(line)
}

var numberPattern = regexp.MustCompile(`\d`)

// HasNumber reports whether a line contains a digit.
func HasNumber(line string) bool {
	return numberPattern.MatchString(line)
}
