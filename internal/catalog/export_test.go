package catalog

// SetMaxCountedRows lowers the count bound for a test and returns a restore func.
func SetMaxCountedRows(n int64) func() {
	prev := maxCountedRows
	maxCountedRows = n
	return func() { maxCountedRows = prev }
}
