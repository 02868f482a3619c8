package etl

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"bankcap/internal/pipeline"
)

// Selector identifies the table element by tag and class attribute
type Selector struct {
	Tag   string `json:"tag"`
	Class string `json:"class"`
}

func (s Selector) String() string {
	if s.Class == "" {
		return s.Tag
	}
	return s.Tag + "." + strings.Join(strings.Fields(s.Class), ".")
}

// Columns gives the zero-based cell positions of the extracted fields
type Columns struct {
	Rank   int `json:"rank"`
	Name   int `json:"name"`
	Metric int `json:"metric"`
}

// DefaultColumns is the layout of the largest banks table
var DefaultColumns = Columns{Rank: 0, Name: 1, Metric: 2}

// ParseTable extracts ranked records from the first table matching sel.
// The first row is a header. Rows without data cells, rows too short to hold
// every column, and rows whose metric is empty or equal to placeholder are dropped.
func ParseTable(document []byte, sel Selector, cols Columns, placeholder string) ([]Record, error) {
	root, err := html.Parse(bytes.NewReader(document))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	table := findElement(root, sel)
	if table == nil {
		return nil, pipeline.NewTableNotFoundError(sel.String())
	}

	placeholder = strings.TrimSpace(placeholder)
	width := max(cols.Rank, cols.Name, cols.Metric) + 1

	records := make([]Record, 0)
	position := 0
	for i, row := range elements(table, atom.Tr) {
		if i == 0 {
			continue
		}
		cells := childElements(row, atom.Td)
		if len(cells) == 0 {
			continue
		}
		position++
		if len(cells) < width {
			continue
		}

		metric := cellText(cells[cols.Metric])
		if metric == "" || (placeholder != "" && metric == placeholder) {
			continue
		}

		rank, err := strconv.Atoi(cellText(cells[cols.Rank]))
		if err != nil {
			rank = position
		}

		records = append(records, Record{
			Rank:      rank,
			Name:      cellText(cells[cols.Name]),
			RawMetric: metric,
		})
	}
	return records, nil
}

// findElement returns the first element in document order matching sel
func findElement(n *html.Node, sel Selector) *html.Node {
	if n.Type == html.ElementNode && n.Data == sel.Tag && classMatches(n, sel.Class) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, sel); found != nil {
			return found
		}
	}
	return nil
}

// classMatches compares class token sets, ignoring order
func classMatches(n *html.Node, class string) bool {
	want := strings.Fields(class)
	if len(want) == 0 {
		return true
	}

	have := make(map[string]bool)
	for _, attr := range n.Attr {
		if attr.Key == "class" {
			for _, token := range strings.Fields(attr.Val) {
				have[token] = true
			}
		}
	}
	if len(have) != len(uniq(want)) {
		return false
	}
	for _, token := range want {
		if !have[token] {
			return false
		}
	}
	return true
}

func uniq(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

// elements returns every descendant element of n with the given tag, in document order
func elements(n *html.Node, tag atom.Atom) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.DataAtom == tag {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

func childElements(n *html.Node, tag atom.Atom) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == tag {
			out = append(out, c)
		}
	}
	return out
}

// cellText returns the trimmed text content of a cell
func cellText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}
