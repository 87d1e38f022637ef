package agent

// NoResultsSentinel is returned in place of records when a query produced no
// rows or no columns.
const NoResultsSentinel = "No results found."

// Record maps a column name to its cell value. Column-name uniqueness within
// a record is assumed, not enforced.
type Record map[string]any

// FormatResults pairs each cell with its column name by ordinal position.
// The return value is either the sentinel string or a []Record in row order.
func FormatResults(rows [][]any, columns []string) any {
	if len(rows) == 0 || len(columns) == 0 {
		return NoResultsSentinel
	}
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		record := make(Record, len(columns))
		for i, name := range columns {
			if i < len(row) {
				record[name] = row[i]
			}
		}
		records = append(records, record)
	}
	return records
}
