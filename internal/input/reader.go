package input

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/vvka-141/classload/pkg/classload"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadFile opens path and reads all classification rows from it.
func ReadFile(path string) ([]classload.InputRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open %s: %w", classload.ErrInvalidInput, path, err)
	}
	defer f.Close()

	rows, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// Read parses CSV content with a header row into InputRows.
// Errors wrap classload.ErrInvalidInput.
func Read(r io.Reader) ([]classload.InputRow, error) {
	br := bufio.NewReader(r)
	if first3, _ := br.Peek(3); len(first3) == 3 && string(first3) == string(utf8BOM) {
		_, _ = br.Discard(3)
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: file is empty, expected a header row", classload.ErrInvalidInput)
		}
		return nil, fmt.Errorf("%w: header: %w", classload.ErrInvalidInput, err)
	}

	idx := headerIndex(header)
	labelIdx, ok := idx[classload.LabelColumn]
	if !ok {
		return nil, missingColumn(classload.LabelColumn, header)
	}
	clusterIdx, ok := idx[classload.ClusterIDColumn]
	if !ok {
		return nil, missingColumn(classload.ClusterIDColumn, header)
	}

	var rows []classload.InputRow
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: %w", classload.ErrInvalidInput, err)
		}

		line, _ := cr.FieldPos(0)
		rows = append(rows, classload.InputRow{
			Line:      line,
			Label:     field(rec, labelIdx),
			ClusterID: field(rec, clusterIdx),
		})
	}

	return rows, nil
}

// headerIndex maps column names to positions. The first occurrence of a
// duplicated name wins.
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		if _, exists := idx[name]; !exists {
			idx[name] = i
		}
	}
	return idx
}

func field(rec []string, i int) string {
	if i < len(rec) {
		return rec[i]
	}
	return ""
}

func missingColumn(name string, header []string) error {
	return fmt.Errorf("%w: missing required column %q (found columns: %q)", classload.ErrInvalidInput, name, header)
}
