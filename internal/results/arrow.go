package results

import (
	"fmt"
	"os"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

// arrowBatchSize is the number of rows buffered per record batch.
const arrowBatchSize = 4096

// ArrowSchema returns the Arrow schema of a results file.
func ArrowSchema(additional []string) *arrow.Schema {
	fields := make([]arrow.Field, 0, 4+len(additional))
	fields = append(fields,
		arrow.Field{Name: "timestamp", Type: arrow.FixedWidthTypes.Timestamp_s},
		arrow.Field{Name: "value", Type: arrow.PrimitiveTypes.Float64},
		arrow.Field{Name: "anomaly_score", Type: arrow.PrimitiveTypes.Float64},
	)
	for _, name := range additional {
		fields = append(fields, arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Float64})
	}
	fields = append(fields, arrow.Field{Name: "label", Type: arrow.PrimitiveTypes.Int64})
	return arrow.NewSchema(fields, nil)
}

type arrowWriter struct {
	f          *os.File
	fw         *ipc.FileWriter
	b          *array.RecordBuilder
	additional []string
	pending    int
}

func newArrowWriter(f *os.File, additional []string) (*arrowWriter, error) {
	mem := memory.NewGoAllocator()
	schema := ArrowSchema(additional)
	fw, err := ipc.NewFileWriter(f, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err != nil {
		return nil, fmt.Errorf("creating arrow writer: %w", err)
	}
	return &arrowWriter{
		f:          f,
		fw:         fw,
		b:          array.NewRecordBuilder(mem, schema),
		additional: additional,
	}, nil
}

func (a *arrowWriter) WriteRow(r Row) error {
	if err := checkWidth(r, a.additional); err != nil {
		return err
	}
	a.b.Field(0).(*array.TimestampBuilder).Append(arrow.Timestamp(r.Timestamp.Unix()))
	a.b.Field(1).(*array.Float64Builder).Append(r.Value)
	for i, v := range r.Values {
		a.b.Field(2 + i).(*array.Float64Builder).Append(v)
	}
	a.b.Field(2 + len(r.Values)).(*array.Int64Builder).Append(int64(r.Label))

	a.pending++
	if a.pending >= arrowBatchSize {
		return a.flush()
	}
	return nil
}

func (a *arrowWriter) flush() error {
	if a.pending == 0 {
		return nil
	}
	rec := a.b.NewRecord()
	defer rec.Release()
	a.pending = 0
	if err := a.fw.Write(rec); err != nil {
		return fmt.Errorf("writing arrow batch: %w", err)
	}
	return nil
}

func (a *arrowWriter) Close() error {
	defer a.b.Release()
	if err := a.flush(); err != nil {
		a.f.Close()
		return err
	}
	if err := a.fw.Close(); err != nil {
		a.f.Close()
		return fmt.Errorf("closing arrow writer: %w", err)
	}
	return a.f.Close()
}
