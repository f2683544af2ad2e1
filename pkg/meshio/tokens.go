package meshio

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// maxCount bounds any single count read from a file header.
const maxCount = 1 << 26

// growChunk caps the capacity reserved ahead of parsing; slices grow past it
// only as values are actually read.
const growChunk = 1 << 12

// mulCount multiplies two header counts, failing when the product is
// negative or exceeds maxCount.
func mulCount(a, b int) (int, error) {
	if a < 0 || b < 0 {
		return 0, fmt.Errorf("negative count %d x %d", a, b)
	}
	if a != 0 && b > maxCount/a {
		return 0, fmt.Errorf("count %d x %d exceeds limit %d", a, b, maxCount)
	}
	return a * b, nil
}

// fits checks that n values, each taking at least unit bytes, can be stored
// in a file of size bytes.
func fits(n int, unit, size int64) error {
	if n < 0 || n > maxCount {
		return fmt.Errorf("count %d out of range", n)
	}
	if size >= 0 && int64(n)*unit > size {
		return fmt.Errorf("count %d needs at least %d bytes, file has %d", n, int64(n)*unit, size)
	}
	return nil
}

// tokens is a whitespace-separated word reader with one word of lookahead,
// shared by the ASCII VTK and PLY decoders. size is the length of the
// underlying file and bounds every count the decoders accept; a negative
// size disables the check.
type tokens struct {
	s      *bufio.Scanner
	size   int64
	peeked string
	ok     bool
}

func newTokens(r io.Reader, size int64) *tokens {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), 1024*1024)
	s.Split(bufio.ScanWords)
	return &tokens{s: s, size: size}
}

func (t *tokens) peek() (string, bool) {
	if t.ok {
		return t.peeked, true
	}
	if !t.s.Scan() {
		return "", false
	}
	t.peeked, t.ok = t.s.Text(), true
	return t.peeked, true
}

func (t *tokens) next() (string, bool) {
	w, ok := t.peek()
	t.ok = false
	return w, ok
}

// word returns the next word or io.ErrUnexpectedEOF.
func (t *tokens) word() (string, error) {
	w, ok := t.next()
	if !ok {
		if err := t.s.Err(); err != nil {
			return "", err
		}
		return "", io.ErrUnexpectedEOF
	}
	return w, nil
}

func (t *tokens) count() (int, error) {
	w, err := t.word()
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(w)
	if err != nil {
		return 0, fmt.Errorf("expected integer, got %q", w)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count %d", n)
	}
	return n, nil
}

func (t *tokens) number() (float64, error) {
	w, err := t.word()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(w, 64)
	if err != nil {
		return 0, fmt.Errorf("expected number, got %q", w)
	}
	return v, nil
}

// numbers reads n numbers. Every ASCII number takes at least one byte, so a
// count larger than the file is rejected before anything is allocated.
func (t *tokens) numbers(n int) ([]float64, error) {
	if err := fits(n, 1, t.size); err != nil {
		return nil, err
	}
	out := make([]float64, 0, min(n, growChunk))
	for range n {
		v, err := t.number()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (t *tokens) expect(want string) error {
	w, err := t.word()
	if err != nil {
		return err
	}
	if w != want {
		return fmt.Errorf("expected %q, got %q", want, w)
	}
	return nil
}
