package bc3

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Record is one logical BC3 record: a type tag and its fields, with escape
// sequences already resolved. Line is the 1-based physical line the record
// started on.
type Record struct {
	Type   string
	Fields []string
	Line   int
}

// Field returns field i, or "" when the record is shorter than that.
func (r *Record) Field(i int) string {
	if i < 0 || i >= len(r.Fields) {
		return ""
	}
	return r.Fields[i]
}

// recordTypes is the FIEBDC-3 record-type alphabet. Anything else is a
// malformed record.
var recordTypes = map[string]bool{
	"V": true, "K": true, "C": true, "D": true, "T": true, "M": true,
	"N": true, "R": true, "A": true, "B": true, "F": true, "G": true,
	"E": true, "X": true, "L": true, "Q": true, "J": true, "P": true,
	"O": true, "W": true, "S": true, "U": true, "Y": true,
}

// Tokenizer produces Records one at a time from a decoded BC3 stream. It
// is restartable only from the start: create a new Tokenizer to re-read.
//
// A record begins with '~' at the start of a physical line and is
// terminated by the next record start (or EOF); lines in between continue
// the record with their line break preserved. Blank lines and '#' comment
// lines between records are skipped without emitting a Record.
type Tokenizer struct {
	sc   *bufio.Scanner
	line int

	cur      strings.Builder
	curLine  int
	inRecord bool
	done     bool
}

func NewTokenizer(r io.Reader) *Tokenizer {
	sc := bufio.NewScanner(r)
	// Long ~T descriptions can put an entire paragraph on one line.
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &Tokenizer{sc: sc}
}

// Next returns the next Record, io.EOF when the stream is exhausted, or a
// *MalformedRecordError.
func (t *Tokenizer) Next() (*Record, error) {
	for !t.done {
		if !t.sc.Scan() {
			if err := t.sc.Err(); err != nil {
				return nil, fmt.Errorf("read input: %w", err)
			}
			t.done = true
			break
		}
		t.line++
		line := strings.TrimSuffix(t.sc.Text(), "\r")

		if strings.HasPrefix(line, "~") {
			rec, err := t.finish()
			t.cur.WriteString(line)
			t.curLine = t.line
			t.inRecord = true
			if rec != nil || err != nil {
				return rec, err
			}
			continue
		}

		if !t.inRecord {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "#") {
				continue
			}
			return nil, &MalformedRecordError{Line: t.line, Reason: "content outside any record"}
		}

		// Comment lines are only comments once the current record looks
		// complete; inside a multi-line field a leading '#' is data.
		if strings.HasPrefix(line, "#") && strings.HasSuffix(strings.TrimRight(t.cur.String(), " \t"), "|") {
			continue
		}
		t.cur.WriteString("\n")
		t.cur.WriteString(line)
	}

	if t.inRecord {
		t.inRecord = false
		rec, err := t.finish()
		if rec != nil || err != nil {
			return rec, err
		}
	}
	return nil, io.EOF
}

// finish turns the accumulated raw text into a Record, or nil when nothing
// is accumulated.
func (t *Tokenizer) finish() (*Record, error) {
	if t.cur.Len() == 0 {
		return nil, nil
	}
	raw := strings.TrimRight(t.cur.String(), " \t\n")
	startLine := t.curLine
	t.cur.Reset()

	body, ok := strings.CutPrefix(raw, "~")
	if !ok || !strings.Contains(body, "|") {
		return nil, &MalformedRecordError{Line: startLine, Reason: "missing field separator"}
	}
	tag, rest, _ := strings.Cut(body, "|")
	tag = strings.TrimSpace(tag)
	if !recordTypes[strings.ToUpper(tag)] {
		return nil, &MalformedRecordError{Line: startLine, Reason: fmt.Sprintf("unrecognized record type %q", tag)}
	}

	fields := splitFields(rest)
	// The closing '|' of a well-formed record leaves one empty trailing
	// field behind; drop it.
	if n := len(fields); n > 0 && fields[n-1] == "" {
		fields = fields[:n-1]
	}

	return &Record{Type: strings.ToUpper(tag), Fields: fields, Line: startLine}, nil
}

// splitFields splits on '|', resolving the \| escape to a literal '|'.
func splitFields(s string) []string {
	var fields []string
	var cur strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s) && s[i+1] == '|':
			cur.WriteByte('|')
			i++
		case c == '|':
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	fields = append(fields, cur.String())
	return fields
}
