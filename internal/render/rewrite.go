package render

import (
	"strings"

	gm "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	gmparser "github.com/gomarkdown/markdown/parser"
)

// RewriteLinks rewrites markdown link destinations using the provided link
// map. The source is parsed to AST only to discover which destinations are
// actually links; the rewrite itself is a targeted string replacement so the
// generator's original formatting survives byte-for-byte everywhere else.
func RewriteLinks(src string, linkMap map[string]string) string {
	if len(linkMap) == 0 || !strings.Contains(src, "](") {
		return src
	}

	doc := gm.Parse([]byte(src), gmparser.NewWithExtensions(
		gmparser.CommonExtensions|gmparser.Autolink,
	))

	seen := make(map[string]bool)
	result := src
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		link, ok := node.(*ast.Link)
		if !ok {
			return ast.GoToNext
		}
		dest := string(link.Destination)
		newDest, ok := linkMap[dest]
		if !ok || seen[dest] {
			return ast.GoToNext
		}
		seen[dest] = true
		result = strings.ReplaceAll(result, "]("+dest+")", "]("+newDest+")")
		return ast.GoToNext
	})

	return result
}
