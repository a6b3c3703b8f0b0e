// Package aiparse extracts file specifications from free-text AI responses.
//
// Two strategies are tried in order. Fenced blocks whose info string carries
// an explicit path (```go:cmd/main.go) are taken directly. When none exist,
// a labeled file list ("Files to create:") is cross-referenced with the
// untagged fenced blocks of the same response.
package aiparse

import (
	"path"
	"regexp"
	"strings"
)

// DefaultLanguage is used for blocks that carry a path but no language tag.
const DefaultLanguage = "text"

// FileSpec is one file the AI asked to create.
type FileSpec struct {
	Path     string `json:"path"`
	Language string `json:"language"`
	Content  string `json:"content"`
}

// block is one fenced code block found in the response.
type block struct {
	language string
	path     string
	info     string // rest of the opening line
	content  string
	start    int
}

const fence = "```"

// openRe matches an opening fence line: language, optional ":path", info.
var openRe = regexp.MustCompile("^[ \\t]*```([A-Za-z0-9_+#.\\-]*)(?::[ \\t]*([^\\s`]+))?([^`]*)$")

// Parse returns the file specs found in text, in the order they appear.
// An empty result is valid and means there is nothing to create.
func Parse(text string) []FileSpec {
	blocks := scanBlocks(text)

	specs := taggedSpecs(blocks)
	if len(specs) > 0 {
		return specs
	}
	return listedSpecs(text, blocks)
}

// scanBlocks walks text line by line. A block opens on a fence at the start
// of a line and closes on the first later line that starts or ends with a
// fence; backticks in the middle of a line never close it. An opener that
// never closes is skipped.
func scanBlocks(text string) []block {
	lines := strings.SplitAfter(text, "\n")
	offsets := make([]int, len(lines))
	for i, off := 0, 0; i < len(lines); i++ {
		offsets[i] = off
		off += len(lines[i])
	}

	var blocks []block
	for i := 0; i < len(lines); i++ {
		m := openRe.FindStringSubmatch(trimEOL(lines[i]))
		if m == nil || !strings.HasSuffix(lines[i], "\n") {
			continue
		}
		body, end, ok := closeBlock(lines[i+1:])
		if !ok {
			continue
		}
		blocks = append(blocks, block{
			language: strings.ToLower(m[1]),
			path:     m[2],
			info:     strings.TrimSpace(m[3]),
			content:  strings.TrimSuffix(body, "\r"),
			start:    offsets[i],
		})
		i += end + 1
	}
	return blocks
}

// closeBlock finds the closing fence in lines and returns the body before
// it and the index of the closing line.
func closeBlock(lines []string) (string, int, bool) {
	var body []string
	for j, raw := range lines {
		line := trimEOL(raw)
		if strings.HasPrefix(strings.TrimLeft(line, " \t"), fence) {
			return strings.Join(body, "\n"), j, true
		}
		if rest, ok := strings.CutSuffix(strings.TrimRight(line, " \t"), fence); ok {
			return strings.Join(append(body, rest), "\n"), j, true
		}
		body = append(body, strings.TrimSuffix(raw, "\n"))
	}
	return "", 0, false
}

func trimEOL(line string) string {
	return strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
}

func taggedSpecs(blocks []block) []FileSpec {
	var specs []FileSpec
	for _, b := range blocks {
		if b.path == "" {
			continue
		}
		p := NormalizePath(b.path)
		if p == "" {
			continue
		}
		specs = append(specs, FileSpec{Path: p, Language: languageOr(b.language), Content: b.content})
	}
	return specs
}

func languageOr(lang string) string {
	if lang == "" {
		return DefaultLanguage
	}
	return lang
}

// NormalizePath turns a path into the forward-slash relative form used as a
// file store key. It returns "" when nothing usable is left.
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.ReplaceAll(p, "\\", "/")
	trailing := strings.HasSuffix(p, "/")

	parts := strings.Split(p, "/")
	kept := parts[:0]
	for _, part := range parts {
		switch part {
		case "", ".", "..":
			continue
		}
		kept = append(kept, part)
	}
	if len(kept) == 0 {
		return ""
	}

	out := path.Clean(strings.Join(kept, "/"))
	if trailing {
		out += "/"
	}
	return out
}
