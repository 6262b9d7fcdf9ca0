package query

import (
	"fmt"
	"io"
	"strings"
)

// String renders n on one line, e.g. ("abc" AND ("bcd" OR "xyz")).
func String(n Node) string {
	var sb strings.Builder
	writeInline(&sb, n)
	return sb.String()
}

func writeInline(sb *strings.Builder, n Node) {
	switch n := n.(type) {
	case *Term:
		sb.WriteString(n.Trigram.String())
	case *And:
		sb.WriteByte('(')
		writeInline(sb, n.Left)
		sb.WriteString(" AND ")
		writeInline(sb, n.Right)
		sb.WriteByte(')')
	case *Or:
		sb.WriteByte('(')
		writeInline(sb, n.Left)
		sb.WriteString(" OR ")
		writeInline(sb, n.Right)
		sb.WriteByte(')')
	default:
		sb.WriteString("<nil>")
	}
}

// Print writes n as an indented tree, one node per line.
func Print(w io.Writer, n Node) error {
	return printNode(w, n, 0)
}

func printNode(w io.Writer, n Node, depth int) error {
	indent := strings.Repeat("  ", depth)
	switch n := n.(type) {
	case *Term:
		_, err := fmt.Fprintf(w, "%s%s\n", indent, n.Trigram)
		return err
	case *And:
		if _, err := fmt.Fprintf(w, "%sAND\n", indent); err != nil {
			return err
		}
		if err := printNode(w, n.Left, depth+1); err != nil {
			return err
		}
		return printNode(w, n.Right, depth+1)
	case *Or:
		if _, err := fmt.Fprintf(w, "%sOR\n", indent); err != nil {
			return err
		}
		if err := printNode(w, n.Left, depth+1); err != nil {
			return err
		}
		return printNode(w, n.Right, depth+1)
	}
	return nil
}
