// Package export renders queried readings into tabular files.
package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/vitalio/vitalsync-agent/internal/models"
)

// timestampLayout matches the export surface contract.
const timestampLayout = "2006-01-02 15:04:05"

var columns = []string{"timestamp", "temperature", "oxygen", "heart_rate"}

// WriteCSV writes one header row followed by one comma-separated row per
// record.
func WriteCSV(w io.Writer, records []models.VitalSign) error {
	if _, err := fmt.Fprintf(w, "%s,%s,%s,%s\n", columns[0], columns[1], columns[2], columns[3]); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, r := range records {
		_, err := fmt.Fprintf(w, "%s,%s,%d,%d\n",
			r.Timestamp.Format(timestampLayout),
			strconv.FormatFloat(r.Temperature, 'f', -1, 64),
			r.OxygenSaturation,
			r.HeartRate)
		if err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	return nil
}

// WriteXLSX writes the same table as a styled spreadsheet.
func WriteXLSX(w io.Writer, records []models.VitalSign) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Vital Signs"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to drop default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for col, name := range columns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return fmt.Errorf("failed to write header cell: %w", err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to style header cell: %w", err)
		}
	}

	for i, r := range records {
		row := i + 2
		values := []interface{}{
			r.Timestamp.Format(timestampLayout),
			r.Temperature,
			r.OxygenSaturation,
			r.HeartRate,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("failed to write cell: %w", err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
