package caseload

import "strings"

const demographicNo = "demographic_no"

// scan calls fn for every byte of sql that sits outside quoted text and
// comments, together with its parenthesis depth. Scanning stops when fn
// returns false.
func scan(sql string, fn func(i, depth int) bool) {
	walk(sql, fn, nil)
}

// walk is scan that also reports each comment as the range [start, end).
func walk(sql string, fn func(i, depth int) bool, comment func(start, end int)) {
	depth := 0
	var quote byte
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		if quote != 0 {
			if c == quote {
				if i+1 < len(sql) && sql[i+1] == quote {
					i++
					continue
				}
				quote = 0
			}
			continue
		}
		if end := commentEnd(sql, i); end > i {
			if comment != nil {
				comment(i, end)
			}
			i = end - 1
			continue
		}
		switch c {
		case '\'', '"', '`':
			quote = c
			continue
		case '(':
			if !fn(i, depth) {
				return
			}
			depth++
			continue
		case ')':
			depth--
		}
		if !fn(i, depth) {
			return
		}
	}
}

// commentEnd returns the offset just past a -- or /* */ comment starting at
// sql[i], or -1. An unterminated comment runs to the end of sql.
func commentEnd(sql string, i int) int {
	if i+1 >= len(sql) {
		return -1
	}
	switch sql[i : i+2] {
	case "--":
		if nl := strings.IndexByte(sql[i+2:], '\n'); nl >= 0 {
			return i + 2 + nl + 1
		}
		return len(sql)
	case "/*":
		if end := strings.Index(sql[i+2:], "*/"); end >= 0 {
			return i + 2 + end + 2
		}
		return len(sql)
	}
	return -1
}

// stripComments replaces every comment with a single space so the fragment
// can be nested inside other SQL.
func stripComments(sql string) string {
	var b strings.Builder
	last := 0
	walk(sql, func(int, int) bool { return true }, func(start, end int) {
		b.WriteString(sql[last:start])
		b.WriteByte(' ')
		last = end
	})
	if last == 0 {
		return sql
	}
	b.WriteString(sql[last:])
	return b.String()
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// wordAt reports whether the identifier word starts at sql[i].
func wordAt(sql string, i int, word string) bool {
	end := i + len(word)
	if end > len(sql) || !strings.EqualFold(sql[i:end], word) {
		return false
	}
	if i > 0 && isIdentByte(sql[i-1]) {
		return false
	}
	return end == len(sql) || !isIdentByte(sql[end])
}

// countMarkers returns the number of ? markers outside quoted text and
// comments.
func countMarkers(sql string) int {
	n := 0
	scan(sql, func(i, _ int) bool {
		if sql[i] == '?' {
			n++
		}
		return true
	})
	return n
}

// numberMarkers rewrites every ? marker into the dialect placeholder for
// next, next+1, ... and returns the rewritten text and the next free index.
// Comments are dropped from the result.
func numberMarkers(sql string, d Dialect, next int) (string, int) {
	sql = stripComments(sql)
	var b strings.Builder
	b.Grow(len(sql) + 8)
	last := 0
	scan(sql, func(i, _ int) bool {
		if sql[i] == '?' {
			b.WriteString(sql[last:i])
			b.WriteString(d.Placeholder(next))
			next++
			last = i + 1
		}
		return true
	})
	b.WriteString(sql[last:])
	return b.String(), next
}

// demographicColumn finds the demographic_no column of the outermost
// projection list and returns the offset just past it.
func demographicColumn(sql string) (int, bool) {
	end := -1
	scan(sql, func(i, depth int) bool {
		if depth != 0 {
			return true
		}
		if wordAt(sql, i, "from") {
			return false
		}
		if wordAt(sql, i, demographicNo) {
			end = i + len(demographicNo)
			return false
		}
		return true
	})
	return end, end >= 0
}

// splicePoint returns the offset of the first top-level comma after the
// given offset, provided it still belongs to the projection list.
func splicePoint(sql string, after int) (int, bool) {
	at := -1
	scan(sql, func(i, depth int) bool {
		if i < after || depth != 0 {
			return true
		}
		if sql[i] == ',' {
			at = i
			return false
		}
		return !wordAt(sql, i, "from")
	})
	return at, at >= 0
}
