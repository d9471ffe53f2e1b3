package reference

import "bytes"

// FindAll returns every well-formed reference in line, left to right and
// non-overlapping. Text that looks like a reference but does not satisfy the
// grammar is skipped.
//
// Grammar (no whitespace anywhere):
//
//	func   = "url" | "src"
//	ref    = func "(" [quote] prefix "/" name "." ext [suffix] [quote] ")"
//	prefix = 1*( ALNUM | "_" | "-" | "." | "/" )
//	name   = 1*( ALNUM | "_" | "-" | "." )
//	suffix = ( "?" | "#" ) *( ALNUM | "_" | "-" | "." | "=" | "&" | "?" | "#" )   ; fonts only
//
// The closing quote must equal the opening one.
func FindAll(line []byte) []Match {
	var out []Match
	for i := 0; i < len(line); {
		j := nextFunc(line, i)
		if j < 0 {
			break
		}
		if m, ok := parseAt(line, j); ok {
			out = append(out, m)
			i = m.End
			continue
		}
		i = j + 1
	}
	return out
}

// nextFunc returns the index of the next "url(" or "src(" at or after from.
func nextFunc(line []byte, from int) int {
	best := -1
	for _, fn := range [][]byte{[]byte("url("), []byte("src(")} {
		if k := bytes.Index(line[from:], fn); k >= 0 && (best < 0 || from+k < best) {
			best = from + k
		}
	}
	return best
}

func parseAt(line []byte, start int) (Match, bool) {
	m := Match{Start: start, Func: string(line[start : start+3])}
	i := start + 4

	if i < len(line) && (line[i] == '\'' || line[i] == '"') {
		m.Quote = string(line[i])
		i++
	}

	bodyStart := i
	for i < len(line) && isBodyByte(line[i]) {
		i++
	}
	body := line[bodyStart:i]

	if m.Quote != "" {
		if i >= len(line) || string(line[i]) != m.Quote {
			return Match{}, false
		}
		i++
	}
	if i >= len(line) || line[i] != ')' {
		return Match{}, false
	}
	m.End = i + 1

	ref := body
	if k := bytes.IndexAny(body, "?#"); k >= 0 {
		ref, m.Suffix = body[:k], string(body[k:])
		if bytes.IndexByte(body[k:], '/') >= 0 {
			return Match{}, false
		}
	}

	slash := bytes.LastIndexByte(ref, '/')
	if slash <= 0 {
		return Match{}, false
	}
	prefix, file := ref[:slash], ref[slash+1:]
	for _, c := range prefix {
		if !isPrefixByte(c) {
			return Match{}, false
		}
	}
	dot := bytes.LastIndexByte(file, '.')
	if dot <= 0 || dot == len(file)-1 {
		return Match{}, false
	}
	for _, c := range file[:dot] {
		if !isNameByte(c) {
			return Match{}, false
		}
	}
	m.Prefix = string(prefix)
	m.Name = string(file[:dot])
	m.Ext = string(file[dot+1:])
	m.Kind = kindOf(m.Ext)

	switch m.Kind {
	case KindImage:
		if m.Suffix != "" {
			return Match{}, false
		}
	case KindFont:
	default:
		return Match{}, false
	}
	return m, true
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func isPrefixByte(c byte) bool { return isAlnum(c) || c == '_' || c == '-' || c == '.' || c == '/' }
func isNameByte(c byte) bool   { return isAlnum(c) || c == '_' || c == '-' || c == '.' }
func isBodyByte(c byte) bool {
	switch c {
	case '_', '-', '.', '/', '?', '#', '=', '&':
		return true
	}
	return isAlnum(c)
}
