package protocol

import (
	"errors"
	"strings"
)

var (
	ErrInvalidPacket = errors.New("invalid packet format")
)

// Packet is one inbound line: TYPE, TYPE|CONTENT or TYPE|DESTINATION|CONTENT.
// With a destination, CONTENT runs to the end of the line, unescaped "|"
// included.
type Packet struct {
	Type        string
	Destination string
	Content     string
}

func ParsePacket(line string) (*Packet, error) {
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	if line == "" {
		return nil, ErrInvalidPacket
	}

	parts := splitUnescaped(line, '|')

	pkt := &Packet{
		Type: Unescape(parts[0]),
	}

	if len(parts) == 2 {
		// TYPE|CONTENT
		pkt.Content = Unescape(parts[1])
	} else if len(parts) >= 3 {
		// TYPE|DESTINATION|CONTENT
		pkt.Destination = Unescape(parts[1])
		pkt.Content = Unescape(strings.Join(parts[2:], "|"))
	}

	return pkt, nil
}

// FormatFields writes pktType followed by individually escaped fields.
func FormatFields(pktType string, fields ...string) string {
	parts := make([]string, 0, len(fields)+1)
	parts = append(parts, Escape(pktType))
	for _, f := range fields {
		parts = append(parts, Escape(f))
	}
	return strings.Join(parts, "|") + "\n"
}

// FormatRawList writes pktType followed by items joined with ",". Items are
// expected to be pre-escaped records whose own "|" separators stay bare.
func FormatRawList(pktType string, prefix []string, items []string) string {
	parts := make([]string, 0, len(prefix)+2)
	parts = append(parts, Escape(pktType))
	for _, p := range prefix {
		parts = append(parts, Escape(p))
	}
	parts = append(parts, strings.Join(items, ","))
	return strings.Join(parts, "|") + "\n"
}

// Record joins pre-escaped fields of one list item.
func Record(fields ...string) string {
	escaped := make([]string, len(fields))
	for i, f := range fields {
		escaped[i] = Escape(f)
	}
	return strings.Join(escaped, "|")
}

// splitUnescaped splits s on delimiter, skipping escaped delimiters.
func splitUnescaped(s string, delimiter rune) []string {
	var parts []string
	var current strings.Builder
	escape := false

	for _, r := range s {
		if escape {
			current.WriteRune(r)
			escape = false
			continue
		}

		if r == '\\' {
			escape = true
			current.WriteRune(r)
			continue
		}

		if r == delimiter {
			parts = append(parts, current.String())
			current.Reset()
			continue
		}

		current.WriteRune(r)
	}

	parts = append(parts, current.String())
	return parts
}

// Unescape decodes the escapes produced by Escape.
func Unescape(s string) string {
	var result strings.Builder
	escape := false

	for i, r := range s {
		if escape {
			switch r {
			case '|':
				result.WriteRune('|')
			case ',':
				result.WriteRune(',')
			case '\\':
				result.WriteRune('\\')
			case 'n':
				result.WriteRune('\n')
			case 'r':
				result.WriteRune('\r')
			default:
				// unknown escape stays as is
				result.WriteRune('\\')
				result.WriteRune(r)
			}
			escape = false
			continue
		}

		if r == '\\' {
			if i < len(s)-1 {
				escape = true
				continue
			}
		}

		result.WriteRune(r)
	}

	// trailing lone backslash
	if escape {
		result.WriteRune('\\')
	}

	return result.String()
}

// Escape escapes the field and list separators and line breaks.
func Escape(s string) string {
	var result strings.Builder

	for _, r := range s {
		switch r {
		case '|':
			result.WriteString("\\|")
		case ',':
			result.WriteString("\\,")
		case '\\':
			result.WriteString("\\\\")
		case '\n':
			result.WriteString("\\n")
		case '\r':
			result.WriteString("\\r")
		default:
			result.WriteRune(r)
		}
	}

	return result.String()
}
