package roster

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"fleet-dashboard/internal/domain"
	"fleet-dashboard/pkg/logger"
)

const (
	uploadMessage = "Processing bulk upload..."
	sheetName     = "Drivers"
)

type DriverStore interface {
	Drivers() []domain.Driver
	SetDrivers([]domain.Driver)
}

// Catalog is where imported drivers are persisted so the next catalog
// refresh keeps them.
type Catalog interface {
	AddDrivers(ctx context.Context, drivers []domain.Driver) error
}

type Loader interface {
	Run(ctx context.Context, msg string, delay time.Duration, fn func(context.Context) error) error
}

// File describes an upload the way the import dialog reports it.
type File struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// RowIssue is a skipped data row. Row is 1-based and counts the header.
type RowIssue struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

type ImportReport struct {
	File       File            `json:"file"`
	Added      []domain.Driver `json:"added"`
	Duplicates []RowIssue      `json:"duplicates"`
	Invalid    []RowIssue      `json:"invalid"`
}

type Delays struct {
	Upload time.Duration
	Export time.Duration
}

type Service struct {
	store   DriverStore
	catalog Catalog
	loader  Loader
	delays  Delays
	log     logger.Logger
	now     func() time.Time
}

func NewService(store DriverStore, catalog Catalog, loader Loader, delays Delays, log logger.Logger) *Service {
	return &Service{store: store, catalog: catalog, loader: loader, delays: delays, log: log, now: time.Now}
}

// Import parses an uploaded roster, writes the new drivers to the catalog and
// appends them to the store. Nothing is added when the catalog write fails.
// Rows whose email or license already exists, in the store or earlier in the
// file, are skipped as duplicates.
func (s *Service) Import(ctx context.Context, f File, r io.Reader) (ImportReport, error) {
	report := ImportReport{File: f}
	kind, err := KindOf(f.Name)
	if err != nil {
		return report, err
	}

	err = s.loader.Run(ctx, uploadMessage, s.delays.Upload, func(ctx context.Context) error {
		rows, err := readRows(kind, r)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return ErrEmptyFile
		}
		h, err := parseHeader(rows[0])
		if err != nil {
			return err
		}

		existing := s.store.Drivers()
		emails := make(map[string]struct{}, len(existing))
		licenses := make(map[string]struct{}, len(existing))
		for _, d := range existing {
			emails[strings.ToLower(d.Email)] = struct{}{}
			licenses[strings.ToLower(d.License)] = struct{}{}
		}

		for i, row := range rows[1:] {
			line := i + 2
			if blank(row) {
				continue
			}
			d, reason := s.driverFromRow(h, row)
			if reason != "" {
				report.Invalid = append(report.Invalid, RowIssue{Row: line, Reason: reason})
				continue
			}
			email, license := strings.ToLower(d.Email), strings.ToLower(d.License)
			if _, dup := emails[email]; dup {
				report.Duplicates = append(report.Duplicates, RowIssue{Row: line, Reason: "email " + d.Email + " already exists"})
				continue
			}
			if _, dup := licenses[license]; dup {
				report.Duplicates = append(report.Duplicates, RowIssue{Row: line, Reason: "license " + d.License + " already exists"})
				continue
			}
			emails[email] = struct{}{}
			licenses[license] = struct{}{}
			report.Added = append(report.Added, d)
		}

		if len(report.Added) == 0 {
			return nil
		}
		if err := s.catalog.AddDrivers(ctx, report.Added); err != nil {
			report.Added = nil
			return fmt.Errorf("%w: %w", ErrPersist, err)
		}
		s.store.SetDrivers(append(existing, report.Added...))
		return nil
	})
	if err != nil {
		s.log.Error("roster_import_failed", fmt.Errorf("import %s: %w", f.Name, err))
		return report, err
	}

	s.log.WithFields(logger.LogFields{
		"file":       f.Name,
		"size":       f.Size,
		"added":      len(report.Added),
		"duplicates": len(report.Duplicates),
		"invalid":    len(report.Invalid),
	}).Info("roster_imported", "bulk upload processed")
	return report, nil
}

func (s *Service) driverFromRow(h header, row []string) (domain.Driver, string) {
	d := domain.Driver{
		Name:       h.get(row, colName),
		Email:      h.get(row, colEmail),
		Phone:      h.get(row, colPhone),
		License:    h.get(row, colLicense),
		VehicleID:  h.get(row, colVehicle),
		Status:     domain.DriverOffline,
		JoinDate:   s.now().Format("2006-01-02"),
		LastActive: "Never",
	}
	switch {
	case d.Name == "":
		return d, "name is empty"
	case !strings.Contains(d.Email, "@"):
		return d, "invalid email " + d.Email
	case d.License == "":
		return d, "license is empty"
	}
	if st := h.get(row, colStatus); st != "" {
		d.Status = domain.DriverStatus(st)
		if !d.Status.IsValid() {
			return d, "unknown status " + st
		}
	}
	d.ID = "DRV-" + strings.ToUpper(uuid.NewString()[:8])
	d.Avatar = initials(d.Name)
	return d, ""
}

func initials(name string) string {
	var b strings.Builder
	n := 0
	for _, part := range strings.Fields(name) {
		r, _ := utf8.DecodeRuneInString(part)
		b.WriteRune(unicode.ToUpper(r))
		if n++; n == 2 {
			break
		}
	}
	return b.String()
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Export is a rendered download.
type Export struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Export renders drivers, normally the currently filtered list, as csv or excel.
func (s *Service) Export(ctx context.Context, drivers []domain.Driver, format string) (Export, error) {
	format = strings.ToLower(format)
	if format != "csv" && format != "excel" {
		return Export{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	var out Export
	msg := fmt.Sprintf("Downloading %s file...", strings.ToUpper(format))
	err := s.loader.Run(ctx, msg, s.delays.Export, func(context.Context) error {
		var err error
		stamp := s.now().Format("20060102")
		if format == "csv" {
			out, err = renderCSV(drivers)
			out.Filename = "drivers-" + stamp + ".csv"
		} else {
			out, err = renderExcel(drivers)
			out.Filename = "drivers-" + stamp + ".xlsx"
		}
		return err
	})
	if err != nil {
		s.log.Error("roster_export_failed", err)
		return Export{}, err
	}
	s.log.WithFields(logger.LogFields{"format": format, "rows": len(drivers)}).Info("roster_exported", out.Filename)
	return out, nil
}

func renderCSV(drivers []domain.Driver) (Export, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(ExportLabels); err != nil {
		return Export{}, err
	}
	for _, d := range drivers {
		if err := w.Write(exportRow(d)); err != nil {
			return Export{}, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return Export{}, fmt.Errorf("write csv: %w", err)
	}
	return Export{ContentType: "text/csv", Body: buf.Bytes()}, nil
}

func renderExcel(drivers []domain.Driver) (Export, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return Export{}, fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(sheetName, "A1", &ExportLabels); err != nil {
		return Export{}, fmt.Errorf("write header: %w", err)
	}
	for i, d := range drivers {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return Export{}, err
		}
		row := []interface{}{
			d.Name, d.Email, d.Phone, d.License, string(d.Status), d.VehicleID,
			d.TripsToday, d.TotalTrips, d.Rating, d.JoinDate,
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return Export{}, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return Export{}, fmt.Errorf("write workbook: %w", err)
	}
	return Export{
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Body:        buf.Bytes(),
	}, nil
}
