package huffman

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// maxTableLineBytes bounds a single line of a code table file. A code can
// never be longer than 255 bits for a byte alphabet.
const maxTableLineBytes = 1024

// Code table file format:
//
//	<symbol>\t<code>\n
//
// one line per symbol in ascending symbol order, where <symbol> is a Go
// double-quoted string literal holding exactly one byte (for example "a",
// "\t" or "\xff") and <code> is the bit string. Quoting keeps tabs and
// newlines in the alphabet unambiguous.

// WriteTable writes table to w in the code table file format.
func WriteTable(w io.Writer, table CodeTable) (int64, error) {
	bw := bufio.NewWriter(w)
	var total int64
	for _, s := range table.Symbols() {
		n, err := fmt.Fprintf(bw, "%s\t%s\n", strconv.Quote(string([]byte{s})), table[s])
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, bw.Flush()
}

// ReadTable parses a code table file. The input is treated as data only:
// symbols are unquoted with strconv.Unquote and codes are checked to be bit
// strings. Only double-quoted symbols are accepted. Blank lines are ignored. The result is validated as a prefix code.
func ReadTable(r io.Reader) (CodeTable, error) {
	table := make(CodeTable)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 256), maxTableLineBytes)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		quoted, code, ok := strings.Cut(text, "\t")
		if !ok {
			return nil, fmt.Errorf("%w: line %d: missing tab separator", ErrMalformedTable, line)
		}
		if !strings.HasPrefix(quoted, `"`) {
			return nil, fmt.Errorf("%w: line %d: symbol %s is not a double-quoted string", ErrMalformedTable, line, quoted)
		}
		sym, err := strconv.Unquote(quoted)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: bad symbol %s: %v", ErrMalformedTable, line, quoted, err)
		}
		if len(sym) != 1 {
			return nil, fmt.Errorf("%w: line %d: symbol %s is %d bytes, want 1", ErrMalformedTable, line, quoted, len(sym))
		}
		if code == "" || strings.Trim(code, "01") != "" {
			return nil, fmt.Errorf("%w: line %d: bad code %q", ErrMalformedTable, line, code)
		}
		if _, dup := table[sym[0]]; dup {
			return nil, fmt.Errorf("%w: line %d: duplicate symbol %s", ErrMalformedTable, line, quoted)
		}
		table[sym[0]] = code
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedTable, line+1, err)
		}
		return nil, fmt.Errorf("read code table: %w", err)
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}
