// Package roster moves the driver list in and out of spreadsheet files.
package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"fleet-dashboard/internal/domain"
)

var (
	ErrUnsupportedFile   = errors.New("unsupported file type")
	ErrUnsupportedFormat = errors.New("unsupported export format")
	ErrMissingColumns    = errors.New("missing required columns")
	ErrEmptyFile         = errors.New("file has no header row")
	ErrPersist           = errors.New("could not save imported drivers")
)

// Import columns, matched case-insensitively in any order.
const (
	colName    = "name"
	colEmail   = "email"
	colPhone   = "phone"
	colLicense = "license"
	colVehicle = "vehicle"
	colStatus  = "status"
)

var requiredColumns = []string{colName, colEmail, colLicense}

// ExportLabels are the export header cells, in order.
var ExportLabels = []string{
	"Name", "Email", "Phone", "License", "Status", "Vehicle",
	"Trips Today", "Total Trips", "Rating", "Join Date",
}

// Kind is the spreadsheet family of an uploaded file.
type Kind string

const (
	KindCSV   Kind = "csv"
	KindExcel Kind = "excel"
)

// KindOf picks the parser from the file extension.
func KindOf(name string) (Kind, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return KindCSV, nil
	case ".xlsx", ".xls":
		return KindExcel, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFile, name)
}

// readRows returns every row of the file's first sheet.
func readRows(kind Kind, r io.Reader) ([][]string, error) {
	switch kind {
	case KindCSV:
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1
		cr.TrimLeadingSpace = true
		rows, err := cr.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		return rows, nil
	case KindExcel:
		f, err := excelize.OpenReader(r)
		if err != nil {
			return nil, fmt.Errorf("open workbook: %w", err)
		}
		defer f.Close()
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrEmptyFile
		}
		rows, err := f.GetRows(sheets[0])
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
		}
		return rows, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, kind)
}

// header maps lower-cased column names to their index.
type header map[string]int

func parseHeader(row []string) (header, error) {
	h := make(header, len(row))
	for i, cell := range row {
		key := strings.ToLower(strings.TrimSpace(cell))
		if key == "" {
			continue
		}
		if _, dup := h[key]; !dup {
			h[key] = i
		}
	}
	var missing []string
	for _, c := range requiredColumns {
		if _, ok := h[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return h, nil
}

func (h header) get(row []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// exportRow renders one driver under ExportLabels.
func exportRow(d domain.Driver) []string {
	return []string{
		d.Name,
		d.Email,
		d.Phone,
		d.License,
		string(d.Status),
		d.VehicleID,
		strconv.Itoa(d.TripsToday),
		strconv.Itoa(d.TotalTrips),
		strconv.FormatFloat(d.Rating, 'f', -1, 64),
		d.JoinDate,
	}
}
