package aiparse

import (
	"regexp"
	"strings"
)

var (
	headingRe = regexp.MustCompile(`(?i)^\s*(?:#{1,6}\s*)?(?:\*\*|__)?\s*(?:files?\s+to\s+(?:create|generate)|file\s+structure|project\s+structure|folder\s+structure|files)\s*:?\s*(?:\*\*|__)?\s*:?\s*$`)
	bulletRe  = regexp.MustCompile(`^\s*(?:[-*+]|\d+[.)])\s+(.+)$`)
)

// listedSpecs implements the fallback strategy: read the paths listed under
// a file-structure heading and pair each one with an untagged fenced block
// that names it. Paths without a matching block are dropped.
func listedSpecs(text string, blocks []block) []FileSpec {
	paths := listedPaths(text)
	if len(paths) == 0 {
		return nil
	}

	used := make([]bool, len(blocks))
	var specs []FileSpec
	for _, p := range paths {
		i := matchBlock(text, blocks, used, p)
		if i < 0 {
			continue
		}
		used[i] = true
		specs = append(specs, FileSpec{
			Path:     p,
			Language: languageOr(blocks[i].language),
			Content:  blocks[i].content,
		})
	}
	return specs
}

// listedPaths returns the paths of the first bullet list following a
// file-structure heading. Fenced regions are skipped so headings quoted
// inside code do not count.
func listedPaths(text string) []string {
	lines := strings.Split(text, "\n")
	inFence := false

	for i := 0; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], "\r")
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			continue
		}
		if inFence || !headingRe.MatchString(line) {
			continue
		}

		var paths []string
		seen := map[string]bool{}
		for j := i + 1; j < len(lines); j++ {
			item := strings.TrimRight(lines[j], "\r")
			if strings.TrimSpace(item) == "" {
				if len(paths) == 0 {
					continue
				}
				break
			}
			m := bulletRe.FindStringSubmatch(item)
			if m == nil {
				break
			}
			if p := pathFromItem(m[1]); p != "" && !seen[p] {
				seen[p] = true
				paths = append(paths, p)
			}
		}
		if len(paths) > 0 {
			return paths
		}
	}
	return nil
}

// pathFromItem pulls the path out of a list item such as
// "`src/app.js` - entry point" or "**index.html**: markup".
func pathFromItem(item string) string {
	item = strings.TrimSpace(item)
	if strings.HasPrefix(item, "`") {
		if end := strings.Index(item[1:], "`"); end >= 0 {
			item = item[1 : end+1]
		}
	}
	item = strings.NewReplacer("**", "", "__", "", "`", "").Replace(item)
	for _, sep := range []string{" - ", " – ", ": ", " (", "\t"} {
		if i := strings.Index(item, sep); i >= 0 {
			item = item[:i]
		}
	}
	item = strings.TrimSuffix(strings.TrimSpace(item), ":")
	if item == "" || strings.ContainsAny(item, " ") || strings.HasSuffix(item, "/") {
		return ""
	}
	if !strings.ContainsAny(item, "./") {
		return ""
	}
	return NormalizePath(item)
}

// matchBlock finds the first unused untagged block that names p in its info
// string, on the closest non-empty line before it, or in a leading comment.
func matchBlock(text string, blocks []block, used []bool, p string) int {
	for i, b := range blocks {
		if used[i] || b.path != "" {
			continue
		}
		if namesPath(b.info, p) || namesPath(precedingLine(text, b.start), p) || namesPath(firstLine(b.content), p) {
			return i
		}
	}
	return -1
}

func namesPath(s, p string) bool {
	if s == "" {
		return false
	}
	s = strings.ReplaceAll(s, "\\", "/")
	idx := strings.Index(s, p)
	if idx < 0 {
		return false
	}
	// reject partial names such as "app.js" inside "myapp.jsx"
	if idx > 0 && isPathByte(s[idx-1]) {
		return false
	}
	end := idx + len(p)
	if end < len(s) && isPathByte(s[end]) {
		// a sentence-ending period is not part of the name
		sentenceEnd := s[end] == '.' && (end+1 == len(s) || s[end+1] == ' ')
		if !sentenceEnd {
			return false
		}
	}
	return true
}

func isPathByte(c byte) bool {
	return c == '/' || c == '.' || c == '_' || c == '-' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func precedingLine(text string, start int) string {
	lines := strings.Split(text[:start], "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}

func firstLine(content string) string {
	line, _, _ := strings.Cut(content, "\n")
	line = strings.TrimSpace(line)
	for _, prefix := range []string{"//", "#", "<!--", "/*", "--"} {
		if strings.HasPrefix(line, prefix) {
			return line
		}
	}
	return ""
}
