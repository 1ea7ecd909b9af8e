package storage

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

var ErrMalformedMatrix = errors.New("malformed weight matrix")

// EncodeMatrix renders w as a "rows cols" header line followed by one line
// of space separated values per row. Values use the shortest representation
// that parses back to the same float64.
func EncodeMatrix(w *mat.Dense) ([]byte, error) {
	if w == nil || w.IsEmpty() {
		return nil, fmt.Errorf("%w: matrix is empty", ErrMalformedMatrix)
	}
	rows, cols := w.Dims()

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d %d\n", rows, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if j > 0 {
				buf.WriteByte(' ')
			}
			buf.WriteString(strconv.FormatFloat(w.At(i, j), 'g', -1, 64))
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// DecodeMatrix parses the format written by EncodeMatrix. Values may be
// separated by any whitespace, including line breaks.
func DecodeMatrix(data []byte) (*mat.Dense, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	scanner.Split(bufio.ScanWords)

	next := func(what string) (string, error) {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", fmt.Errorf("%w: %v", ErrMalformedMatrix, err)
			}
			return "", fmt.Errorf("%w: missing %s", ErrMalformedMatrix, what)
		}
		return scanner.Text(), nil
	}

	dims := [2]int{}
	for i, what := range []string{"row count", "column count"} {
		token, err := next(what)
		if err != nil {
			return nil, err
		}
		n, err := strconv.Atoi(token)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%w: invalid %s %q", ErrMalformedMatrix, what, token)
		}
		dims[i] = n
	}

	rows, cols := dims[0], dims[1]
	// Every value takes at least one byte plus a separator.
	if rows > (len(data)/2+1)/cols {
		return nil, fmt.Errorf("%w: header %d x %d exceeds the %d byte payload", ErrMalformedMatrix, rows, cols, len(data))
	}
	values := make([]float64, rows*cols)
	for k := range values {
		token, err := next(fmt.Sprintf("value %d of %d", k+1, len(values)))
		if err != nil {
			return nil, err
		}
		v, err := strconv.ParseFloat(token, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: value %d: %q", ErrMalformedMatrix, k+1, token)
		}
		values[k] = v
	}
	if scanner.Scan() {
		return nil, fmt.Errorf("%w: trailing data %q", ErrMalformedMatrix, strings.TrimSpace(scanner.Text()))
	}
	return mat.NewDense(rows, cols, values), nil
}
