// Package markdown rewrites links in Markdown documentation.
package markdown

import (
	"slices"
	"strings"

	gm "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	gmparser "github.com/gomarkdown/markdown/parser"

	"github.com/jcdickinson/docloc/internal/dri"
)

// Scheme prefixes link destinations that name a declaration.
const Scheme = "dri:"

// destinations returns the unique link destinations in src, in document order.
func destinations(src string) []string {
	doc := gm.Parse([]byte(src), gmparser.NewWithExtensions(
		gmparser.CommonExtensions|gmparser.Autolink,
	))

	seen := make(map[string]bool)
	var dests []string
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		var dest string
		switch n := node.(type) {
		case *ast.Link:
			dest = string(n.Destination)
		case *ast.Image:
			dest = string(n.Destination)
		default:
			return ast.GoToNext
		}
		if !seen[dest] {
			seen[dest] = true
			dests = append(dests, dest)
		}
		return ast.GoToNext
	})
	return dests
}

// RewriteLinks rewrites markdown link destinations using the provided link map.
// It parses the markdown to AST to find all link destinations, then performs
// targeted string replacements to preserve original formatting.
func RewriteLinks(src string, linkMap map[string]string) string {
	if len(linkMap) == 0 {
		return src
	}

	type replacement struct {
		oldDest string
		newDest string
	}
	var replacements []replacement
	for _, dest := range destinations(src) {
		if newDest, ok := linkMap[dest]; ok {
			replacements = append(replacements, replacement{dest, newDest})
		}
	}
	if len(replacements) == 0 {
		return src
	}

	result := src

	// Inline links: [text](destination)
	for _, r := range replacements {
		result = strings.ReplaceAll(result, "]("+r.oldDest+")", "]("+r.newDest+")")
	}

	// Reference-style definitions: [ref]: destination
	refMap := make(map[string]string, len(replacements))
	for _, r := range replacements {
		refMap["]: "+r.oldDest] = "]: " + r.newDest
	}
	lines := strings.Split(result, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		for oldSuffix, newSuffix := range refMap {
			if strings.HasSuffix(trimmed, oldSuffix) {
				lines[i] = strings.Replace(line, oldSuffix, newSuffix, 1)
				break
			}
		}
	}
	return strings.Join(lines, "\n")
}

// ResolveDRILinks replaces every dri: link destination with the location
// resolve returns for it. Links that do not resolve, or whose identifier is
// malformed, are reduced to their text. The unresolved destinations are
// returned sorted.
func ResolveDRILinks(src string, resolve func(dri.DRI) (string, bool)) (string, []string) {
	linkMap := make(map[string]string)
	var unresolved []string
	for _, dest := range destinations(src) {
		raw, ok := strings.CutPrefix(dest, Scheme)
		if !ok {
			continue
		}
		d, err := dri.Parse(raw)
		if err == nil {
			if loc, ok := resolve(d); ok {
				linkMap[dest] = loc
				continue
			}
		}
		unresolved = append(unresolved, dest)
	}

	result := RewriteLinks(src, linkMap)
	for _, dest := range unresolved {
		result = unlinkInline(result, dest)
		result = unlinkReference(result, dest)
	}
	slices.Sort(unresolved)
	return result, unresolved
}

// unlinkInline replaces [text](dest) and ![text](dest) with text.
func unlinkInline(src, dest string) string {
	needle := "](" + dest + ")"
	var b strings.Builder
	for {
		i := strings.Index(src, needle)
		if i < 0 {
			b.WriteString(src)
			return b.String()
		}
		open := matchingOpen(src, i)
		if open < 0 {
			b.WriteString(src[:i+len(needle)])
			src = src[i+len(needle):]
			continue
		}
		start := open
		if start > 0 && src[start-1] == '!' {
			start--
		}
		b.WriteString(src[:start])
		b.WriteString(src[open+1 : i])
		src = src[i+len(needle):]
	}
}

// unlinkReference drops the [label]: dest definition and reduces
// [text][label] and [label][] uses to their text.
func unlinkReference(src, dest string) string {
	lines := strings.Split(src, "\n")
	var labels []string
	kept := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]: "+dest) {
			labels = append(labels, strings.TrimSuffix(trimmed[1:], "]: "+dest))
			continue
		}
		kept = append(kept, line)
	}
	if len(labels) == 0 {
		return src
	}
	result := strings.Join(kept, "\n")
	for _, label := range labels {
		result = strings.ReplaceAll(result, "["+label+"][]", label)
		result = unlinkInlineRef(result, label)
	}
	return result
}

func unlinkInlineRef(src, label string) string {
	needle := "][" + label + "]"
	var b strings.Builder
	for {
		i := strings.Index(src, needle)
		if i < 0 {
			b.WriteString(src)
			return b.String()
		}
		open := matchingOpen(src, i)
		if open < 0 {
			b.WriteString(src[:i+len(needle)])
			src = src[i+len(needle):]
			continue
		}
		b.WriteString(src[:open])
		b.WriteString(src[open+1 : i])
		src = src[i+len(needle):]
	}
}

// matchingOpen returns the index of the [ closing at s[end], or -1.
func matchingOpen(s string, end int) int {
	depth := 0
	for j := end - 1; j >= 0; j-- {
		switch s[j] {
		case ']':
			depth++
		case '[':
			if depth == 0 {
				return j
			}
			depth--
		}
	}
	return -1
}
