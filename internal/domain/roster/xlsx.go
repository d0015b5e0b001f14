package roster

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	sheetName     = "Roster"
	maxImportRows = 2000
)

var (
	ErrImportNoData    = errors.New("spreadsheet has no data rows")
	ErrImportBadHeader = errors.New("spreadsheet header must include name, bed, day group and shift")
	ErrImportTooLarge  = fmt.Errorf("spreadsheet has more than %d rows", maxImportRows)
)

// RowError reports one rejected spreadsheet row. Row is 1-based as shown
// in spreadsheet applications.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

var headers = []string{"name", "furigana", "bed", "day_group", "shift"}

var headerAliases = map[string]string{
	"name": "name", "氏名": "name", "名前": "name",
	"furigana": "furigana", "furigana_name": "furigana", "ふりがな": "furigana", "フリガナ": "furigana",
	"bed": "bed", "bed_label": "bed", "ベッド": "bed", "ベッド番号": "bed",
	"day_group": "day_group", "days": "day_group", "曜日": "day_group",
	"shift": "shift", "クール": "shift",
}

func headerIndex(header []string) map[string]int {
	idx := map[string]int{"name": -1, "furigana": -1, "bed": -1, "day_group": -1, "shift": -1}
	for i, h := range header {
		if col, ok := headerAliases[strings.ToLower(strings.TrimSpace(h))]; ok {
			idx[col] = i
		}
	}
	return idx
}

// ReadWorkbook parses the first sheet of an .xlsx roster into master
// patients for facility. Invalid rows are skipped and reported; blank rows
// are ignored.
func ReadWorkbook(r io.Reader, facility string) ([]*MasterPatient, []RowError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet: %w", err)
	}
	if len(rows) < 2 {
		return nil, nil, ErrImportNoData
	}
	if len(rows)-1 > maxImportRows {
		return nil, nil, ErrImportTooLarge
	}

	idx := headerIndex(rows[0])
	if idx["name"] < 0 || idx["bed"] < 0 || idx["day_group"] < 0 || idx["shift"] < 0 {
		return nil, nil, ErrImportBadHeader
	}

	cellAt := func(row []string, col string) string {
		i := idx[col]
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []*MasterPatient
	var rowErrs []RowError
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if strings.TrimSpace(strings.Join(row, "")) == "" {
			continue
		}

		m := &MasterPatient{
			Facility: facility,
			Name:     cellAt(row, "name"),
			BedLabel: cellAt(row, "bed"),
			Shift:    cellAt(row, "shift"),
		}
		if furigana := cellAt(row, "furigana"); furigana != "" {
			m.FuriganaName = &furigana
		}
		group, err := ParseDayGroup(cellAt(row, "day_group"))
		if err != nil {
			rowErrs = append(rowErrs, RowError{Row: i + 1, Message: err.Error()})
			continue
		}
		m.DayGroup = group
		if err := m.validate(); err != nil {
			rowErrs = append(rowErrs, RowError{Row: i + 1, Message: err.Error()})
			continue
		}
		out = append(out, m)
	}

	if len(out) == 0 && len(rowErrs) == 0 {
		return nil, nil, ErrImportNoData
	}
	return out, rowErrs, nil
}

// WriteWorkbook writes ms as an .xlsx roster that ReadWorkbook accepts.
func WriteWorkbook(w io.Writer, ms []*MasterPatient) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	f.SetColWidth(sheetName, "A", "B", 24)
	f.SetColWidth(sheetName, "C", "E", 12)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
	})

	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return err
	}
	f.SetCellStyle(sheetName, "A1", "E1", headerStyle)

	for i, m := range ms {
		furigana := ""
		if m.FuriganaName != nil {
			furigana = *m.FuriganaName
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{m.Name, furigana, m.BedLabel, m.DayGroup.Label(), m.Shift}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	return f.Write(w)
}
