package entity

// Table is an ordered sequence of rows. Every row holds exactly
// ColumnCount() cells; missing values are empty strings, never omitted.
type Table [][]string

func (t Table) RowCount() int { return len(t) }

func (t Table) ColumnCount() int {
	if len(t) == 0 {
		return 0
	}
	return len(t[0])
}

// Rectangular reports whether every row has the same cell count.
func (t Table) Rectangular() bool {
	if len(t) == 0 {
		return true
	}
	n := len(t[0])
	for _, row := range t {
		if len(row) != n {
			return false
		}
	}
	return true
}
