package bc3

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// BC3 predates Unicode: files are legacy 8-bit text unless the ~V header
// says otherwise. The header itself is ASCII in every supported charset, so
// the declared name can be sniffed from the raw bytes before decoding.

// DefaultCharset is assumed when the file declares nothing and the caller
// configured nothing.
const DefaultCharset = "latin1"

func decodeInput(data []byte, assumed string) (string, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	name := sniffCharset(data)
	if name == "" {
		name = assumed
	}
	if name == "" {
		name = DefaultCharset
	}

	switch normalizeCharset(name) {
	case "latin1":
		return charmap.ISO8859_1.NewDecoder().String(string(data))
	case "ansi":
		return charmap.Windows1252.NewDecoder().String(string(data))
	case "850":
		return charmap.CodePage850.NewDecoder().String(string(data))
	case "437":
		return charmap.CodePage437.NewDecoder().String(string(data))
	case "utf8":
		if !utf8.Valid(data) {
			return "", &EncodingError{Charset: name, Reason: "input is not valid UTF-8"}
		}
		return string(data), nil
	default:
		return "", &EncodingError{Charset: name, Reason: "unknown charset"}
	}
}

func normalizeCharset(name string) string {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "LATIN1", "LATIN-1", "ISO-8859-1", "ISO8859-1":
		return "latin1"
	case "ANSI", "WINDOWS-1252", "CP1252":
		return "ansi"
	case "850", "PC850", "CP850":
		return "850"
	case "437", "PC437", "CP437":
		return "437"
	case "UTF8", "UTF-8":
		return "utf8"
	case "":
		return ""
	default:
		return strings.ToLower(strings.TrimSpace(name))
	}
}

// sniffCharset extracts the charset field from the ~V header record, if
// present. The ~V layout is
// ~V|PROPERTY|VERSION|PROGRAM|HEADER|CHARSET|... so the charset is the
// fifth field after the type tag.
func sniffCharset(data []byte) string {
	idx := bytes.Index(data, []byte("~V|"))
	if idx != 0 {
		// Only honor a header at the very start of the file (possibly
		// after leading whitespace).
		trimmed := bytes.TrimLeft(data, " \t\r\n")
		if !bytes.HasPrefix(trimmed, []byte("~V|")) {
			return ""
		}
		data = trimmed
	}
	end := bytes.IndexByte(data, '~')
	if end == 0 {
		if next := bytes.IndexByte(data[1:], '~'); next >= 0 {
			end = next + 1
		} else {
			end = len(data)
		}
	}
	fields := strings.Split(string(data[:end]), "|")
	if len(fields) <= 5 {
		return ""
	}
	return strings.TrimSpace(fields[5])
}
