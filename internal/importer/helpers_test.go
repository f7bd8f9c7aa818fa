package importer

import (
	"github.com/horecametrics/importer/internal/sheet"
)

// cellRows converts raw string rows into the tagged cell matrix the engine
// consumes, the same way the sheet readers do.
func cellRows(rows [][]string) [][]sheet.Cell {
	out := make([][]sheet.Cell, len(rows))
	for i, row := range rows {
		cells := make([]sheet.Cell, len(row))
		for j, v := range row {
			cells[j] = sheet.FromString(v)
		}
		out[i] = cells
	}
	return out
}

func mustProfile(name string) Profile {
	p, err := ProfileByName(name)
	if err != nil {
		panic(err)
	}
	return p
}
