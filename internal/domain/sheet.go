package domain

// SheetRange is an A1 address paired with a grid of cell values (rows of columns)
type SheetRange struct {
	// Range is the sheet name plus cell range, e.g. "Sheet1!A1:C3"
	Range string

	// MajorDimension is "ROWS" or "COLUMNS"; empty means the API default
	MajorDimension string

	Values [][]any
}

// Rows returns the number of rows in the grid
func (r SheetRange) Rows() int {
	return len(r.Values)
}

// Spreadsheet describes a remote spreadsheet and its sheets
type Spreadsheet struct {
	ID       string
	Title    string
	Locale   string
	TimeZone string
	URL      string
	Sheets   []Sheet
}

// Sheet is one tab of a spreadsheet
type Sheet struct {
	SheetID     int64
	Title       string
	Index       int64
	RowCount    int64
	ColumnCount int64
}

// SheetByTitle returns the sheet with the given title
func (s *Spreadsheet) SheetByTitle(title string) (Sheet, bool) {
	for _, sh := range s.Sheets {
		if sh.Title == title {
			return sh, true
		}
	}
	return Sheet{}, false
}
