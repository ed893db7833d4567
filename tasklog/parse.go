/*
parse.go - Task-log row ingestion

PURPOSE:
  Turns an uploaded warehouse export into []TaskEvent. Two physical formats
  are supported:
  - Delimited text (.csv/.txt/.tsv): the delimiter is detected by trying
    ';', tab and ',' against the header line and keeping whichever yields
    the most columns. Exports from the WMS commonly use ';'.
  - Excel workbooks (.xlsx) via excelize: first sheet, first row as header.

  Only five columns are required, located by header name regardless of
  position or of extra columns: Type, LastAssociationTime, AlterationTime,
  Completed, ActorName.

ROW FILTERING:
  Rows without a task type or actor name carry no classifiable information
  and are dropped during parsing. Timestamp validation is NOT done here;
  the classifier handles bad timestamps per row so they can be tallied.
*/
package tasklog

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Required column headers.
const (
	ColType            = "Type"
	ColLastAssociation = "LastAssociationTime"
	ColAlteration      = "AlterationTime"
	ColCompleted       = "Completed"
	ColActorName       = "ActorName"
)

var requiredColumns = []string{ColType, ColLastAssociation, ColAlteration, ColCompleted, ColActorName}

// ErrMissingColumns is returned when the header row lacks required columns.
var ErrMissingColumns = errors.New("task log is missing required columns")

// ErrEmptyFile is returned for files with no data rows.
var ErrEmptyFile = errors.New("task log has no data rows")

// ParseFile dispatches on the file extension: .xlsx goes through excelize,
// everything else is treated as delimited text.
func ParseFile(r io.Reader, filename string) ([]TaskEvent, error) {
	if strings.EqualFold(filepath.Ext(filename), ".xlsx") {
		return ParseXLSX(r)
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading task log: %w", err)
	}
	return ParseDelimited(string(content))
}

// ParseDelimited parses delimited text content into task events.
func ParseDelimited(content string) ([]TaskEvent, error) {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) < 2 {
		return nil, ErrEmptyFile
	}

	sep := detectSeparator(lines[0])
	headers := splitRow(lines[0], sep)

	cols, err := columnIndex(headers)
	if err != nil {
		return nil, err
	}

	var events []TaskEvent
	for _, line := range lines[1:] {
		values := splitRow(line, sep)
		if ev, ok := eventFromRow(values, cols); ok {
			events = append(events, ev)
		}
	}
	return events, nil
}

// ParseXLSX parses the first sheet of an Excel workbook into task events.
func ParseXLSX(r io.Reader) ([]TaskEvent, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return nil, ErrEmptyFile
	}

	cols, err := columnIndex(rows[0])
	if err != nil {
		return nil, err
	}

	var events []TaskEvent
	for _, row := range rows[1:] {
		if ev, ok := eventFromRow(row, cols); ok {
			events = append(events, ev)
		}
	}
	return events, nil
}

// detectSeparator picks the candidate yielding the most header columns.
func detectSeparator(header string) string {
	best, bestCount := ";", 0
	for _, sep := range []string{";", "\t", ","} {
		if n := len(strings.Split(header, sep)); n > bestCount {
			best, bestCount = sep, n
		}
	}
	return best
}

func splitRow(line, sep string) []string {
	parts := strings.Split(line, sep)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// columnIndex maps required column names to their positions in the header.
func columnIndex(headers []string) (map[string]int, error) {
	index := make(map[string]int, len(requiredColumns))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		for _, want := range requiredColumns {
			if strings.EqualFold(h, want) {
				index[want] = i
			}
		}
	}
	var missing []string
	for _, want := range requiredColumns {
		if _, ok := index[want]; !ok {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return index, nil
}

func eventFromRow(values []string, cols map[string]int) (TaskEvent, bool) {
	get := func(col string) string {
		i := cols[col]
		if i >= len(values) {
			return ""
		}
		return strings.TrimSpace(values[i])
	}

	ev := TaskEvent{
		TaskType:            get(ColType),
		ActorName:           get(ColActorName),
		Completed:           parseCompleted(get(ColCompleted)),
		LastAssociationTime: get(ColLastAssociation),
		AlterationTime:      get(ColAlteration),
	}
	if ev.TaskType == "" || ev.ActorName == "" {
		return TaskEvent{}, false
	}
	return ev, true
}

// parseCompleted accepts the WMS export's "1" flag plus common boolean
// spellings.
func parseCompleted(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
