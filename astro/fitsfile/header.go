package fitsfile

import (
	"fmt"
	"strings"

	"github.com/astrogo/fitsio"
)

// Card is a single header keyword record.
type Card = fitsio.Card

// structural keywords are owned by the writer and never copied verbatim.
var structural = map[string]bool{
	"SIMPLE": true, "XTENSION": true, "BITPIX": true, "NAXIS": true,
	"EXTEND": true, "PCOUNT": true, "GCOUNT": true, "END": true,
	"BSCALE": true, "BZERO": true, "BLANK": true,
}

func isStructural(name string) bool {
	if structural[name] {
		return true
	}
	if strings.HasPrefix(name, "NAXIS") {
		return true
	}
	return false
}

// Header is an ordered list of header cards.
type Header struct {
	cards []Card
}

// NewHeader returns a header holding copies of cards.
func NewHeader(cards ...Card) *Header {
	h := &Header{}
	for _, c := range cards {
		h.Set(c.Name, c.Value, c.Comment)
	}
	return h
}

func fromFitsio(hdr *fitsio.Header) *Header {
	h := &Header{}
	seen := map[string]bool{}
	for _, key := range hdr.Keys() {
		if key == "" || key == "COMMENT" || key == "HISTORY" || seen[key] {
			continue
		}
		seen[key] = true
		c := hdr.Get(key)
		if c == nil {
			continue
		}
		h.cards = append(h.cards, Card{Name: c.Name, Value: c.Value, Comment: c.Comment})
	}
	return h
}

// Cards returns the cards in order. The slice must not be modified.
func (h *Header) Cards() []Card {
	return h.cards
}

// Len returns the number of cards.
func (h *Header) Len() int { return len(h.cards) }

func (h *Header) index(name string) int {
	name = strings.ToUpper(name)
	for i := range h.cards {
		if h.cards[i].Name == name {
			return i
		}
	}
	return -1
}

// Has reports whether name is present.
func (h *Header) Has(name string) bool {
	return h.index(name) >= 0
}

// Get returns the card called name.
func (h *Header) Get(name string) (Card, bool) {
	i := h.index(name)
	if i < 0 {
		return Card{}, false
	}
	return h.cards[i], true
}

// Set updates the card called name, appending it when missing. An empty
// comment keeps the existing one.
func (h *Header) Set(name string, value any, comment string) {
	name = strings.ToUpper(name)
	if i := h.index(name); i >= 0 {
		h.cards[i].Value = value
		if comment != "" {
			h.cards[i].Comment = comment
		}
		return
	}
	h.cards = append(h.cards, Card{Name: name, Value: value, Comment: comment})
}

// Delete removes the card called name.
func (h *Header) Delete(name string) {
	if i := h.index(name); i >= 0 {
		h.cards = append(h.cards[:i], h.cards[i+1:]...)
	}
}

// Clone returns a deep copy.
func (h *Header) Clone() *Header {
	out := &Header{cards: make([]Card, len(h.cards))}
	copy(out.cards, h.cards)
	return out
}

// Float returns the numeric value of name.
func (h *Header) Float(name string) (float64, error) {
	c, ok := h.Get(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrKeyNotFound, name)
	}
	switch v := c.Value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("fitsfile: %s is %T, not numeric", name, c.Value)
	}
}

// FloatOr returns the numeric value of name or def when it is missing.
func (h *Header) FloatOr(name string, def float64) float64 {
	v, err := h.Float(name)
	if err != nil {
		return def
	}
	return v
}

// Int returns the integer value of name.
func (h *Header) Int(name string) (int, error) {
	c, ok := h.Get(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrKeyNotFound, name)
	}
	switch v := c.Value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case int32:
		return int(v), nil
	case float64:
		if v == float64(int(v)) {
			return int(v), nil
		}
	}
	return 0, fmt.Errorf("fitsfile: %s is %v, not an integer", name, c.Value)
}

// String returns the string value of name, trimmed of FITS padding.
func (h *Header) String(name string) (string, error) {
	c, ok := h.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrKeyNotFound, name)
	}
	s, ok := c.Value.(string)
	if !ok {
		return "", fmt.Errorf("fitsfile: %s is %T, not a string", name, c.Value)
	}
	return strings.TrimSpace(s), nil
}

// StringOr returns the string value of name or def.
func (h *Header) StringOr(name, def string) string {
	s, err := h.String(name)
	if err != nil {
		return def
	}
	return s
}

// Shape returns NAXIS1..NAXISn as recorded in the header.
func (h *Header) Shape() ([]int, error) {
	n, err := h.Int("NAXIS")
	if err != nil {
		return nil, err
	}
	shape := make([]int, n)
	for i := range shape {
		shape[i], err = h.Int(fmt.Sprintf("NAXIS%d", i+1))
		if err != nil {
			return nil, err
		}
	}
	return shape, nil
}

// withoutStructural returns the cards the writer may copy as-is.
func (h *Header) withoutStructural() []Card {
	out := make([]Card, 0, len(h.cards))
	for _, c := range h.cards {
		if isStructural(c.Name) {
			continue
		}
		out = append(out, c)
	}
	return out
}
