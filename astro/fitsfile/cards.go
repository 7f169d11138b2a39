package fitsfile

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	blockSize = 2880
	cardSize  = 80
)

// padded returns n rounded up to a whole number of FITS blocks.
func padded(n int64) int64 {
	if r := n % blockSize; r != 0 {
		return n + blockSize - r
	}
	return n
}

// encodeCard renders a fixed-format 80 character card.
func encodeCard(c Card) (string, error) {
	name := strings.ToUpper(c.Name)
	if len(name) > 8 {
		return "", fmt.Errorf("fitsfile: keyword %q longer than 8 characters", name)
	}
	if name == "END" {
		return fmt.Sprintf("%-80s", "END"), nil
	}

	var value string
	switch v := c.Value.(type) {
	case nil:
		value = ""
	case string:
		s := strings.ReplaceAll(v, "'", "''")
		value = fmt.Sprintf("'%-8s'", s)
	case bool:
		if v {
			value = fmt.Sprintf("%20s", "T")
		} else {
			value = fmt.Sprintf("%20s", "F")
		}
	case int:
		value = fmt.Sprintf("%20d", v)
	case int64:
		value = fmt.Sprintf("%20d", v)
	case int32:
		value = fmt.Sprintf("%20d", v)
	case float32:
		value = fmt.Sprintf("%20s", formatFloat(float64(v)))
	case float64:
		value = fmt.Sprintf("%20s", formatFloat(v))
	default:
		return "", fmt.Errorf("fitsfile: unsupported value %T for %s", c.Value, name)
	}

	line := fmt.Sprintf("%-8s= %s", name, value)
	if len(line) > cardSize {
		return "", fmt.Errorf("fitsfile: value of %s does not fit in a card", name)
	}
	if c.Comment != "" {
		line += " / " + c.Comment
	}
	if len(line) > cardSize {
		line = line[:cardSize]
	}
	return fmt.Sprintf("%-80s", line), nil
}

func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'G', -1, 64)
	if !strings.ContainsAny(s, ".EN") {
		s += "."
	}
	return s
}

// encodeHeader renders a primary header for a BITPIX -32 image with the
// given axes followed by the non-structural cards of h.
func encodeHeader(h *Header, axes []int) ([]byte, error) {
	cards := []Card{
		{Name: "SIMPLE", Value: true, Comment: "conforms to FITS standard"},
		{Name: "BITPIX", Value: -32, Comment: "array data type"},
		{Name: "NAXIS", Value: len(axes), Comment: "number of array dimensions"},
	}
	for i, a := range axes {
		cards = append(cards, Card{Name: fmt.Sprintf("NAXIS%d", i+1), Value: a})
	}
	cards = append(cards, Card{Name: "EXTEND", Value: true})
	if h != nil {
		cards = append(cards, h.withoutStructural()...)
	}
	cards = append(cards, Card{Name: "END"})

	var buf bytes.Buffer
	for _, c := range cards {
		line, err := encodeCard(c)
		if err != nil {
			return nil, err
		}
		buf.WriteString(line)
	}
	for int64(buf.Len()) < padded(int64(buf.Len())) {
		buf.WriteByte(' ')
	}
	return buf.Bytes(), nil
}

// parseValue decodes the value field of a card.
func parseValue(field string) any {
	field = strings.TrimSpace(field)
	if strings.HasPrefix(field, "'") {
		end := 1
		var sb strings.Builder
		for end < len(field) {
			if field[end] == '\'' {
				if end+1 < len(field) && field[end+1] == '\'' {
					sb.WriteByte('\'')
					end += 2
					continue
				}
				break
			}
			sb.WriteByte(field[end])
			end++
		}
		return strings.TrimRight(sb.String(), " ")
	}
	if i := strings.Index(field, "/"); i >= 0 {
		field = strings.TrimSpace(field[:i])
	}
	switch field {
	case "T":
		return true
	case "F":
		return false
	case "":
		return nil
	}
	if v, err := strconv.Atoi(field); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(strings.ReplaceAll(field, "D", "E"), 64); err == nil {
		return v
	}
	return field
}

// rawHDU describes one header-data unit located inside a file.
type rawHDU struct {
	header     *Header
	offset     int64 // start of the header
	dataOffset int64
	dataSize   int64 // unpadded
}

// end returns the offset just past the padded data segment.
func (u rawHDU) end() int64 {
	return u.dataOffset + padded(u.dataSize)
}

// readHeaderAt parses header blocks starting at off.
func readHeaderAt(r io.ReaderAt, off int64) (*Header, int64, error) {
	h := &Header{}
	block := make([]byte, blockSize)
	pos := off
	for {
		n, err := r.ReadAt(block, pos)
		if n < blockSize {
			if err == nil || err == io.EOF {
				return nil, 0, io.ErrUnexpectedEOF
			}
			return nil, 0, err
		}
		pos += blockSize
		for i := 0; i < blockSize; i += cardSize {
			card := string(block[i : i+cardSize])
			name := strings.TrimSpace(card[:8])
			if name == "END" {
				return h, pos, nil
			}
			if name == "" || name == "COMMENT" || name == "HISTORY" || card[8:10] != "= " {
				continue
			}
			h.cards = append(h.cards, Card{Name: name, Value: parseValue(card[10:])})
		}
	}
}

// scanHDUs walks every HDU of a FITS file.
func scanHDUs(r io.ReaderAt, size int64) ([]rawHDU, error) {
	var hdus []rawHDU
	var off int64
	for off < size {
		h, dataOff, err := readHeaderAt(r, off)
		if err != nil {
			if len(hdus) > 0 && err == io.ErrUnexpectedEOF {
				break
			}
			return nil, err
		}
		if len(hdus) == 0 && !h.Has("SIMPLE") {
			return nil, ErrNotFITS
		}
		ds, err := dataSize(h)
		if err != nil {
			return nil, err
		}
		u := rawHDU{header: h, offset: off, dataOffset: dataOff, dataSize: ds}
		hdus = append(hdus, u)
		off = u.end()
	}
	return hdus, nil
}

func dataSize(h *Header) (int64, error) {
	bitpix, err := h.Int("BITPIX")
	if err != nil {
		return 0, err
	}
	shape, err := h.Shape()
	if err != nil {
		return 0, err
	}
	if len(shape) == 0 {
		return 0, nil
	}
	n := int64(1)
	for _, a := range shape {
		n *= int64(a)
	}
	pcount := int64(0)
	if v, err := h.Int("PCOUNT"); err == nil {
		pcount = int64(v)
	}
	gcount := int64(1)
	if v, err := h.Int("GCOUNT"); err == nil {
		gcount = int64(v)
	}
	bytesPer := int64(bitpix)
	if bytesPer < 0 {
		bytesPer = -bytesPer
	}
	return bytesPer / 8 * gcount * (pcount + n), nil
}
