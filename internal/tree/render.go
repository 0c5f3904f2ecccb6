package tree

import "strings"

const (
	indentContinue = "│   "
	indentBlank    = "    "
	connectorMid   = "├── "
	connectorLast  = "└── "
)

// Render serializes a forest back into connector-decorated text, one node
// per line. It is the inverse of Parse: Parse(Render(t)) is Equivalent to t
// for every forest Parse can produce.
func Render(nodes []*Node) string {
	var sb strings.Builder
	renderLevel(&sb, nodes, "", 0)
	return sb.String()
}

func renderLevel(sb *strings.Builder, nodes []*Node, indent string, depth int) {
	for i, n := range nodes {
		last := i == len(nodes)-1
		if depth > 0 {
			sb.WriteString(indent)
			if last {
				sb.WriteString(connectorLast)
			} else {
				sb.WriteString(connectorMid)
			}
		}
		sb.WriteString(lineBody(n.Label(), n.Kind, n.Comment))
		sb.WriteByte('\n')

		if n.Kind != Folder || len(n.Children) == 0 {
			continue
		}
		next := indent
		if depth > 0 {
			if last {
				next += indentBlank
			} else {
				next += indentContinue
			}
		}
		renderLevel(sb, n.Children, next, depth+1)
	}
}

func lineBody(label string, kind Kind, comment string) string {
	body := label
	if kind == Folder {
		body += "/"
	}
	if comment != "" {
		body += " # " + comment
	}
	return body
}
