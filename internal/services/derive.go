package services

import (
	"github.com/vvka-141/classload/internal/urlparts"
	"github.com/vvka-141/classload/pkg/classload"
)

// DeriveRow decomposes the label of one input row into table columns.
// An empty cluster_id becomes a NULL class.
func DeriveRow(in classload.InputRow) classload.ClassificationRow {
	parts := urlparts.Decompose(in.Label)

	row := classload.ClassificationRow{
		URLScheme: parts.Scheme,
		URLHost:   parts.Host,
		URLPath:   parts.Path,
		Line:      in.Line,
		Label:     in.Label,
	}
	if in.ClusterID != "" {
		class := in.ClusterID
		row.Class = &class
	}
	return row
}

// DeriveRows derives every input row and collapses rows that share a key.
// The survivor keeps the position of the key's first occurrence and takes
// the class (and line, for error reports) of the last. The second return
// value counts collapsed rows.
func DeriveRows(inputs []classload.InputRow) ([]classload.ClassificationRow, int) {
	rows := make([]classload.ClassificationRow, 0, len(inputs))
	index := make(map[classload.RowKey]int, len(inputs))
	duplicates := 0

	for _, in := range inputs {
		row := DeriveRow(in)
		key := row.Key()
		if i, seen := index[key]; seen {
			rows[i].Class = row.Class
			rows[i].Line = row.Line
			rows[i].Label = row.Label
			duplicates++
			continue
		}
		index[key] = len(rows)
		rows = append(rows, row)
	}

	return rows, duplicates
}
