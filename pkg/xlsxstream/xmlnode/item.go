// Package xmlnode groups the tag and text events of one XML part into
// logical nodes: runs of open-tag descriptors ending in a text value.
package xmlnode

// Item is a single buffered event: either an element descriptor or a text
// fragment.
type Item struct {
	// Name is the element's local name. Empty for text items.
	Name string
	// Attrs maps attribute local names to values.
	Attrs map[string]string
	// Text is the fragment content for text items.
	Text string
	// Depth is the element nesting depth, 0 for the root element.
	Depth int

	text bool
}

// IsText reports whether the item is a text fragment.
func (it Item) IsText() bool {
	return it.text
}

// Attr returns the attribute value, or "" when absent.
func (it Item) Attr(name string) string {
	return it.Attrs[name]
}

// LookupAttr returns the attribute value and whether it was present.
func (it Item) LookupAttr(name string) (string, bool) {
	v, ok := it.Attrs[name]
	return v, ok
}

// Node is a grouped unit delivered by the Assembler.
type Node []Item

// Name returns the name of the first element descriptor, or "" for a node
// that starts with text.
func (n Node) Name() string {
	if len(n) == 0 {
		return ""
	}
	return n[0].Name
}

// Head returns the first item.
func (n Node) Head() (Item, bool) {
	if len(n) == 0 {
		return Item{}, false
	}
	return n[0], true
}

// Shift splits off the first item.
func (n Node) Shift() (Item, Node) {
	if len(n) == 0 {
		return Item{}, nil
	}
	return n[0], n[1:]
}

// Text returns the concatenated text fragments of the node.
func (n Node) Text() string {
	var s string
	for _, it := range n {
		if it.text {
			s += it.Text
		}
	}
	return s
}

// NewText returns a text item.
func NewText(s string) Item {
	return Item{Text: s, text: true}
}

// NewElement returns an element descriptor item.
func NewElement(name string, depth int, attrs map[string]string) Item {
	return Item{Name: name, Attrs: attrs, Depth: depth}
}
