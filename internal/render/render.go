// Package render turns lookup results into markdown for the CLI and MCP
// surfaces. It is a pure projection over the indexes: it never reorders
// stored entries, only presents them.
package render

import (
	"fmt"
	"strings"

	"github.com/cratenav/cratenav/internal/index"
)

// Implementors renders a trait's implementor list in storage order. Synthetic
// (compiler-generated blanket) impls stay in place but are visually marked.
// Signatures pass through RewriteLinks when a link map is provided, so
// navdoc:// cross-references in the pre-rendered markup resolve to real URLs.
func Implementors(traitPath string, items []index.Implementor, linkMap map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Implementors of %s\n\n", traitPath)

	if len(items) == 0 {
		b.WriteString("No known implementors.\n")
		return b.String()
	}

	for _, impl := range items {
		sig := RewriteLinks(impl.Signature, linkMap)
		b.WriteString("- ")
		b.WriteString(sig)
		if impl.Synthetic {
			b.WriteString(" *(auto)*")
		}
		b.WriteString("\n")
		for _, tp := range impl.TypePaths {
			fmt.Fprintf(&b, "  - `%s`\n", tp)
		}
	}
	return b.String()
}

// kindOrder fixes the heading order for sidebar sections, matching the order
// rustdoc sidebars use.
var kindOrder = []index.ItemKind{
	index.KindMod,
	index.KindMacro,
	index.KindStruct,
	index.KindEnum,
	index.KindTrait,
	index.KindFn,
	index.KindType,
	index.KindConstant,
	index.KindUnion,
}

var kindHeadings = map[index.ItemKind]string{
	index.KindMod:      "Modules",
	index.KindMacro:    "Macros",
	index.KindStruct:   "Structs",
	index.KindEnum:     "Enums",
	index.KindTrait:    "Traits",
	index.KindFn:       "Functions",
	index.KindType:     "Type Aliases",
	index.KindConstant: "Constants",
	index.KindUnion:    "Unions",
}

// Sidebar renders a module's members grouped by kind. The grouping is
// index.GroupByKind, a stateless projection, so within each section the
// registration order survives.
func Sidebar(modulePath string, items []index.SidebarItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", modulePath)

	if len(items) == 0 {
		b.WriteString("No known members.\n")
		return b.String()
	}

	groups := index.GroupByKind(items)
	for _, kind := range kindOrder {
		group, ok := groups[kind]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", kindHeadings[kind])
		for _, it := range group {
			b.WriteString("- **")
			b.WriteString(it.Name)
			b.WriteString("**")
			if it.Summary != "" {
				b.WriteString(": ")
				b.WriteString(firstLine(it.Summary))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	// Kinds outside the known set still render, after the fixed sections.
	for kind, group := range groups {
		if _, known := kindHeadings[kind]; known {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", kind)
		for _, it := range group {
			fmt.Fprintf(&b, "- **%s**\n", it.Name)
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

// DocsLinkMap maps the navdoc:// URI of every implementing type to a docs URL
// under baseURL. The first path segment of a type path is its crate.
func DocsLinkMap(items []index.Implementor, baseURL string) map[string]string {
	linkMap := make(map[string]string)
	for _, impl := range items {
		for _, tp := range impl.TypePaths {
			uri := "navdoc://" + tp
			if _, ok := linkMap[uri]; ok {
				continue
			}
			crate, rest, found := strings.Cut(tp, "::")
			target := strings.TrimRight(baseURL, "/") + "/" + crate + "/latest"
			if found {
				target += "/" + strings.ReplaceAll(rest, "::", "/")
			}
			linkMap[uri] = target
		}
	}
	return linkMap
}

func firstLine(s string) string {
	return strings.SplitN(s, "\n", 2)[0]
}
