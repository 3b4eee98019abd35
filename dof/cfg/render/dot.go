package render

import (
	"fmt"
	"strings"

	"github.com/zboralski/dof-dumper/dof/cfg"
)

// maxBlockLines limits how many calls and variable accesses a block label shows.
const maxBlockLines = 10

// DOT renders the graphs of one or more compiled objects in Graphviz DOT
// format, one cluster per object.
// Style: ink on washi, one vermillion accent for the not-taken edge.
func DOT(funcs []*cfg.Func, title string) string {
	const (
		sumi   = "#2D2D2D" // ink black
		ai     = "#2D4A7A" // indigo
		shu    = "#BF3F2F" // vermillion
		kinari = "#FAF6F0" // unbleached white
		nezumi = "#8E8E8E" // warm gray
	)

	var b strings.Builder
	b.WriteString("digraph cfg {\n")
	b.WriteString("  rankdir=TB;\n")
	b.WriteString("  splines=true;\n")
	b.WriteString("  nodesep=0.5;\n")
	b.WriteString("  ranksep=0.4;\n")
	fmt.Fprintf(&b, "  bgcolor=%q;\n", kinari)
	fmt.Fprintf(&b, "  node [shape=rect, style=\"\", color=%q, penwidth=0.3, fontname=\"Helvetica Neue,Helvetica,Arial\", fontsize=8, fontcolor=%q, height=0.3, margin=\"0.14,0.08\"];\n", nezumi, sumi)
	fmt.Fprintf(&b, "  edge [color=%q, penwidth=0.4, arrowsize=0.35, arrowhead=vee];\n", nezumi)
	if title != "" {
		fmt.Fprintf(&b, "  labelloc=t;\n  labeljust=l;\n")
		fmt.Fprintf(&b, "  label=<<font face=\"Helvetica Neue,Helvetica\" point-size=\"8\" color=\"%s\">%s</font>>;\n", sumi, dotEscape(title))
	}
	b.WriteByte('\n')

	for fi, f := range funcs {
		fmt.Fprintf(&b, "  subgraph cluster_%d {\n", fi)
		fmt.Fprintf(&b, "    label=<<font face=\"Helvetica Neue,Helvetica\" point-size=\"8\" color=\"%s\">%s</font>>;\n", sumi, dotEscape(f.Name))
		fmt.Fprintf(&b, "    style=dotted;\n    color=%q;\n    penwidth=0.3;\n", nezumi)

		for _, block := range f.Blocks {
			id := blockNodeID(fi, block.ID)
			label := blockLabel(block, block.ID == 0)
			switch {
			case block.ID == 0:
				fmt.Fprintf(&b, "    %s [label=%s, style=filled, fillcolor=%q, color=%q, penwidth=0];\n", id, label, sumi, sumi)
			case block.Term && len(block.Succs) == 0 && len(block.Calls) == 0 && len(block.Vars) == 0:
				fmt.Fprintf(&b, "    %s [label=%s, shape=plaintext];\n", id, label)
			default:
				fmt.Fprintf(&b, "    %s [label=%s];\n", id, label)
			}
		}

		for _, block := range f.Blocks {
			src := blockNodeID(fi, block.ID)
			for _, s := range block.Succs {
				dst := blockNodeID(fi, s.BlockID)
				if s.Cond == "" {
					fmt.Fprintf(&b, "    %s -> %s;\n", src, dst)
					continue
				}
				color := ai
				if s.Cond == "F" {
					color = shu
				}
				fmt.Fprintf(&b, "    %s -> %s [color=%q, label=<<font point-size=\"8\" color=\"%s\">%s</font>>];\n",
					src, dst, color, color, s.Cond)
			}
		}
		b.WriteString("  }\n\n")
	}

	b.WriteString("}\n")
	return b.String()
}

// blockLabel builds an HTML label: the instruction range, then calls and
// variable accesses in order. dark is for the filled entry block.
func blockLabel(block *cfg.BasicBlock, dark bool) string {
	textColor, varColor, callColor := "#2D2D2D", "#8B7355", "#9B2335"
	if dark {
		textColor, varColor, callColor = "#FAF6F0", "#D4C5A9", "#E8A0A0"
	}
	const pt = "8"

	head := fmt.Sprintf("%02d-%02d", block.Start, block.End-1)
	if block.End <= block.Start {
		head = "entry"
	}
	if len(block.Calls) == 0 && len(block.Vars) == 0 {
		if block.Term && len(block.Succs) == 0 {
			head += " ret"
		}
		return fmt.Sprintf("<<font point-size=\"%s\" color=\"%s\">%s</font>>", pt, textColor, head)
	}

	type row struct {
		index int
		text  string
		color string
	}
	var rows []row
	for _, v := range block.Vars {
		text := v.Name
		if v.Store {
			text += " ="
		}
		rows = append(rows, row{v.Index, text, varColor})
	}
	for _, c := range block.Calls {
		name := c.Name
		if name == "" {
			name = fmt.Sprintf("DIF_SUBR(%d)", c.Subr)
		}
		rows = append(rows, row{c.Index, name + "()", callColor})
	}
	sortRows(rows, func(r row) int { return r.index })

	var b strings.Builder
	b.WriteString("<<table border=\"0\" cellborder=\"0\" cellspacing=\"0\" cellpadding=\"2\">")
	fmt.Fprintf(&b, "<tr><td align=\"left\"><font point-size=\"%s\" color=\"%s\">%s</font></td></tr>", pt, textColor, head)
	for i, r := range rows {
		if i >= maxBlockLines {
			fmt.Fprintf(&b, "<tr><td align=\"left\"><font point-size=\"%s\" color=\"%s\">+%d more</font></td></tr>",
				pt, varColor, len(rows)-maxBlockLines)
			break
		}
		fmt.Fprintf(&b, "<tr><td align=\"left\"><font point-size=\"%s\" color=\"%s\">%s</font></td></tr>",
			pt, r.color, dotEscape(r.text))
	}
	b.WriteString("</table>>")
	return b.String()
}

// blockNodeID creates a unique DOT node ID for a basic block.
func blockNodeID(funcIdx, blockID int) string {
	return fmt.Sprintf("f%d_b%d", funcIdx, blockID)
}
