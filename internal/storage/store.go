// Package storage writes and reads the per-iteration torque logs.
//
// Each log is a headerless CSV file with one row per control iteration and
// one field per joint, every row ending in a trailing comma:
//
//	0.0281,-0.0075,0.0544,-0.0319,0.016,-0.0124,-0.0286,
package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/multierr"

	"github.com/san-kum/jointtorque/internal/dynamo"
)

const (
	DefaultReferenceFile = "list_torques_ref.csv"
	DefaultMeasuredFile  = "list_torques_read.csv"
)

// Log is an append-only torque log.
type Log struct {
	path string
	dim  int
	file *os.File
	w    *csv.Writer
	rows int
}

// Create truncates or creates path and returns a log expecting dim values per row.
func Create(path string, dim int) (*Log, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &Log{path: path, dim: dim, file: file, w: csv.NewWriter(file)}, nil
}

func (l *Log) Path() string { return l.path }
func (l *Log) Rows() int    { return l.rows }

// FormatValue renders v with six significant digits, the way an untuned
// C++ ostream prints a double.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// Append writes one row. The empty last field produces the trailing comma.
func (l *Log) Append(v dynamo.Vector) error {
	if err := dynamo.CheckDim(l.path, v, l.dim); err != nil {
		return err
	}
	row := make([]string, 0, len(v)+1)
	for _, x := range v {
		row = append(row, FormatValue(x))
	}
	row = append(row, "")
	if err := l.w.Write(row); err != nil {
		return err
	}
	l.rows++
	return nil
}

// Close flushes buffered rows and closes the file.
func (l *Log) Close() error {
	l.w.Flush()
	return multierr.Append(l.w.Error(), l.file.Close())
}

// TorqueLogs pairs the commanded and measured torque logs of one run.
type TorqueLogs struct {
	Ref  *Log
	Read *Log
}

// OpenTorqueLogs creates both logs in dir.
func OpenTorqueLogs(dir, refName, readName string, dim int) (*TorqueLogs, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	ref, err := Create(filepath.Join(dir, refName), dim)
	if err != nil {
		return nil, err
	}
	read, err := Create(filepath.Join(dir, readName), dim)
	if err != nil {
		return nil, multierr.Append(err, ref.Close())
	}
	return &TorqueLogs{Ref: ref, Read: read}, nil
}

// Append writes one row to each log.
func (t *TorqueLogs) Append(ref, read dynamo.Vector) error {
	if err := t.Ref.Append(ref); err != nil {
		return err
	}
	return t.Read.Append(read)
}

func (t *TorqueLogs) Close() error {
	return multierr.Append(t.Ref.Close(), t.Read.Close())
}

var ErrRaggedRow = errors.New("storage: row length differs from the first row")

// Load reads a torque log back. The trailing empty field is dropped.
func Load(path string) ([][]float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	rows := make([][]float64, 0, len(records))
	for i, record := range records {
		if n := len(record); n > 0 && record[n-1] == "" {
			record = record[:n-1]
		}
		if len(record) == 0 {
			continue
		}
		if len(rows) > 0 && len(record) != len(rows[0]) {
			return nil, fmt.Errorf("%w: %s line %d has %d values, want %d", ErrRaggedRow, path, i+1, len(record), len(rows[0]))
		}

		row := make([]float64, len(record))
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("storage: %s line %d field %d: %w", path, i+1, j+1, err)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// LoadPair reads the reference and measured logs and checks they line up.
func LoadPair(refPath, readPath string) (ref, read [][]float64, err error) {
	if ref, err = Load(refPath); err != nil {
		return nil, nil, err
	}
	if read, err = Load(readPath); err != nil {
		return nil, nil, err
	}
	if len(ref) != len(read) {
		return nil, nil, fmt.Errorf("storage: %s has %d rows but %s has %d", refPath, len(ref), readPath, len(read))
	}
	return ref, read, nil
}

// Column extracts joint j from every row.
func Column(rows [][]float64, j int) []float64 {
	col := make([]float64, 0, len(rows))
	for _, row := range rows {
		if j < len(row) {
			col = append(col, row[j])
		}
	}
	return col
}
