package results

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

type csvWriter struct {
	w          *csv.Writer
	closer     io.Closer
	additional []string
	buf        []string
}

// NewCSVWriter writes CSV results to w and emits the header immediately.
// Close flushes but does not close w.
func NewCSVWriter(w io.Writer, additional []string) (Writer, error) {
	return newCSVWriter(w, nil, additional)
}

func newCSVWriter(w io.Writer, closer io.Closer, additional []string) (*csvWriter, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns(additional)); err != nil {
		return nil, fmt.Errorf("writing results header: %w", err)
	}
	return &csvWriter{w: cw, closer: closer, additional: additional}, nil
}

func (c *csvWriter) WriteRow(r Row) error {
	if err := checkWidth(r, c.additional); err != nil {
		return err
	}
	c.buf = c.buf[:0]
	c.buf = append(c.buf, r.Timestamp.UTC().Format(time.DateTime), formatFloat(r.Value))
	for _, v := range r.Values {
		c.buf = append(c.buf, formatFloat(v))
	}
	c.buf = append(c.buf, strconv.Itoa(r.Label))
	if err := c.w.Write(c.buf); err != nil {
		return fmt.Errorf("writing results row: %w", err)
	}
	return nil
}

func (c *csvWriter) Close() error {
	c.w.Flush()
	err := c.w.Error()
	if c.closer != nil {
		if cerr := c.closer.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return fmt.Errorf("closing csv results: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
