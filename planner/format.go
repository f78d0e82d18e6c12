package planner

import (
	"io"
	"strings"
)

// Format renders a plan as an indented tree:
//
//	TableFinish[3]: memory.orders [rows]
//	└── Delete[2]: memory.orders rowId=$row_id
//	    └── TableScan[1]: memory.orders [$row_id]
func Format(root PlanNode) string {
	var sb strings.Builder
	Print(&sb, root)
	return sb.String()
}

// Print writes the tree rendering of root to w.
func Print(w io.Writer, root PlanNode) {
	p := printer{w: w}
	p.line(root.String())
	p.children(root, "")
}

type printer struct {
	w io.Writer
}

func (p printer) children(n PlanNode, prefix string) {
	sources := n.Sources()
	for i, s := range sources {
		connector, indent := "├── ", "│   "
		if i == len(sources)-1 {
			connector, indent = "└── ", "    "
		}
		p.line(prefix + connector + s.String())
		p.children(s, prefix+indent)
	}
}

func (p printer) line(s string) {
	_, _ = io.WriteString(p.w, s+"\n")
}
