package layout

import (
	"fmt"
	"strings"
)

// Element is the element class code of an atom. It indexes the per-class
// output buffers directly; there is no per-element behavior.
type Element int32

// Element classes, in output-buffer order.
const (
	H Element = iota
	C
	N
	O
)

// NumElements is the number of element classes.
const NumElements = 4

var symbols = [NumElements]string{"H", "C", "N", "O"}

// String returns the chemical symbol.
func (e Element) String() string {
	if e.Valid() {
		return symbols[e]
	}
	return fmt.Sprintf("Element(%d)", int32(e))
}

// Valid reports whether e is one of the known classes.
func (e Element) Valid() bool {
	return e >= 0 && e < NumElements
}

// ParseElement maps a chemical symbol (case-insensitive) to its class.
func ParseElement(symbol string) (Element, error) {
	s := strings.TrimSpace(symbol)
	for i, sym := range symbols {
		if strings.EqualFold(s, sym) {
			return Element(i), nil
		}
	}
	return 0, fmt.Errorf("unsupported element %q (want one of %v)", symbol, symbols)
}

// Elements returns all element classes in buffer order.
func Elements() [NumElements]Element {
	return [NumElements]Element{H, C, N, O}
}
