package roster

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"fleet-dashboard/internal/catalog"
	"fleet-dashboard/internal/domain"
	"fleet-dashboard/internal/navigation"
	"fleet-dashboard/internal/store"
	"fleet-dashboard/pkg/logger"
)

func existingDrivers() []domain.Driver {
	return []domain.Driver{
		{ID: "DRV001", Name: "John Doe", Email: "john.doe@travel.com", Phone: "+91 98765 43210", License: "MH-12-2023-001234", Status: domain.DriverActive, VehicleID: "MH-12-AB-1234", TripsToday: 8, TotalTrips: 1247, Rating: 4.8, JoinDate: "2022-03-15"},
		{ID: "DRV002", Name: "Jane Smith", Email: "jane.smith@travel.com", License: "MH-12-2021-005678", Status: domain.DriverOnTrip},
	}
}

// memCatalog records persisted drivers and fails with err when set.
type memCatalog struct {
	added []domain.Driver
	err   error
}

func (c *memCatalog) AddDrivers(_ context.Context, drivers []domain.Driver) error {
	if c.err != nil {
		return c.err
	}
	c.added = append(c.added, drivers...)
	return nil
}

func newService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	st := store.New(logger.Nop())
	st.SetDrivers(existingDrivers())
	return NewService(st, &memCatalog{}, navigation.NewCoordinator(logger.Nop()), Delays{}, logger.Nop()), st
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name    string
		want    Kind
		wantErr bool
	}{
		{"drivers.csv", KindCSV, false},
		{"DRIVERS.XLSX", KindExcel, false},
		{"legacy.xls", KindExcel, false},
		{"notes.pdf", "", true},
		{"noext", "", true},
	}
	for _, tt := range tests {
		got, err := KindOf(tt.name)
		if got != tt.want || (err != nil) != tt.wantErr {
			t.Errorf("KindOf(%q) = %q, %v", tt.name, got, err)
		}
		if tt.wantErr && !errors.Is(err, ErrUnsupportedFile) {
			t.Errorf("KindOf(%q) err = %v", tt.name, err)
		}
	}
}

func TestImportCSVSkipsDuplicatesAndIgnoresUnknownColumns(t *testing.T) {
	svc, st := newService(t)
	body := strings.Join([]string{
		"Status,EMAIL,Name,License,Shoe Size,Phone,Vehicle",
		"Active,amy.lee@travel.com,Amy Lee,MH-12-2024-000001,9,+91 90000 00001,MH-12-CD-0001",
		"Active,JOHN.DOE@travel.com,John Again,MH-12-2024-000002,10,,",
		",raj@travel.com,Raj Kumar,mh-12-2021-005678,8,,",
		",amy.lee@travel.com,Amy Twin,MH-12-2024-000003,7,,",
		",bad-email,Nobody,MH-12-2024-000004,7,,",
		"Retired,old@travel.com,Old Timer,MH-12-2024-000005,7,,",
		",,,,,,",
		",new@travel.com,New Hire,MH-12-2024-000006,7,,",
	}, "\n")

	report, err := svc.Import(context.Background(), File{Name: "drivers.csv", Size: int64(len(body)), Type: "text/csv"}, strings.NewReader(body))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	if len(report.Added) != 2 {
		t.Fatalf("added = %+v", report.Added)
	}
	amy := report.Added[0]
	if amy.Name != "Amy Lee" || amy.Status != domain.DriverActive || amy.VehicleID != "MH-12-CD-0001" || amy.Avatar != "AL" {
		t.Errorf("amy = %+v", amy)
	}
	if !strings.HasPrefix(amy.ID, "DRV-") {
		t.Errorf("id = %q", amy.ID)
	}
	if report.Added[1].Status != domain.DriverOffline {
		t.Errorf("missing status should default to Offline: %+v", report.Added[1])
	}

	wantDupRows := []int{3, 4, 5}
	if len(report.Duplicates) != len(wantDupRows) {
		t.Fatalf("duplicates = %+v", report.Duplicates)
	}
	for i, row := range wantDupRows {
		if report.Duplicates[i].Row != row {
			t.Errorf("duplicate %d row = %d, want %d", i, report.Duplicates[i].Row, row)
		}
	}
	if len(report.Invalid) != 2 || report.Invalid[0].Row != 6 || report.Invalid[1].Row != 7 {
		t.Errorf("invalid = %+v", report.Invalid)
	}
	if report.File.Name != "drivers.csv" {
		t.Errorf("file = %+v", report.File)
	}

	if got := len(st.Drivers()); got != 4 {
		t.Errorf("store has %d drivers, want 4", got)
	}
}

func TestImportMissingColumns(t *testing.T) {
	svc, st := newService(t)
	_, err := svc.Import(context.Background(), File{Name: "x.csv"}, strings.NewReader("Name,Phone\nA,1\n"))
	if !errors.Is(err, ErrMissingColumns) {
		t.Errorf("err = %v", err)
	}
	if len(st.Drivers()) != 2 {
		t.Error("store should be untouched")
	}
}

func TestImportRejectsUnsupportedFile(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Import(context.Background(), File{Name: "drivers.txt"}, strings.NewReader(""))
	if !errors.Is(err, ErrUnsupportedFile) {
		t.Errorf("err = %v", err)
	}
}

func TestImportEmptyFile(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Import(context.Background(), File{Name: "drivers.csv"}, strings.NewReader(""))
	if !errors.Is(err, ErrEmptyFile) {
		t.Errorf("err = %v", err)
	}
}

func TestImportExcelWorkbook(t *testing.T) {
	f := excelize.NewFile()
	rows := [][]interface{}{
		{"Name", "Email", "License"},
		{"Priya Shah", "priya@travel.com", "MH-12-2024-100000"},
		{"Jane Copy", "jane.smith@travel.com", "MH-12-2024-100001"},
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &r); err != nil {
			t.Fatal(err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}

	svc, _ := newService(t)
	report, err := svc.Import(context.Background(), File{Name: "drivers.xlsx", Size: int64(buf.Len())}, buf)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(report.Added) != 1 || report.Added[0].Email != "priya@travel.com" {
		t.Errorf("added = %+v", report.Added)
	}
	if len(report.Duplicates) != 1 || report.Duplicates[0].Row != 3 {
		t.Errorf("duplicates = %+v", report.Duplicates)
	}
}

func TestExportCSV(t *testing.T) {
	svc, st := newService(t)
	out, err := svc.Export(context.Background(), st.Drivers()[:1], "CSV")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if out.ContentType != "text/csv" || !strings.HasSuffix(out.Filename, ".csv") {
		t.Errorf("export = %q %q", out.Filename, out.ContentType)
	}

	records, err := csv.NewReader(bytes.NewReader(out.Body)).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %v", records)
	}
	if strings.Join(records[0], "|") != strings.Join(ExportLabels, "|") {
		t.Errorf("header = %v", records[0])
	}
	want := []string{"John Doe", "john.doe@travel.com", "+91 98765 43210", "MH-12-2023-001234", "Active", "MH-12-AB-1234", "8", "1247", "4.8", "2022-03-15"}
	if strings.Join(records[1], "|") != strings.Join(want, "|") {
		t.Errorf("row = %v", records[1])
	}
}

func TestExportExcel(t *testing.T) {
	svc, st := newService(t)
	out, err := svc.Export(context.Background(), st.Drivers(), "excel")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !strings.HasSuffix(out.Filename, ".xlsx") {
		t.Errorf("filename = %q", out.Filename)
	}

	f, err := excelize.OpenReader(bytes.NewReader(out.Body))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 || rows[0][0] != "Name" || rows[2][0] != "Jane Smith" {
		t.Errorf("rows = %v", rows)
	}
}

func TestExportUnsupportedFormat(t *testing.T) {
	svc, _ := newService(t)
	if _, err := svc.Export(context.Background(), nil, "pdf"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v", err)
	}
}

func TestImportedDriversSurviveCatalogRefresh(t *testing.T) {
	ctx := context.Background()
	st := store.New(logger.Nop())
	src := &catalog.SeedSource{}
	poller := catalog.NewPoller(src, st, 0, logger.Nop())
	if err := poller.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	svc := NewService(st, src, navigation.NewCoordinator(logger.Nop()), Delays{}, logger.Nop())

	body := "Name,Email,License\nAmy Lee,amy.lee@travel.com,MH-12-2024-000001\n"
	report, err := svc.Import(ctx, File{Name: "new.csv"}, strings.NewReader(body))
	if err != nil || len(report.Added) != 1 {
		t.Fatalf("Import: %+v, %v", report, err)
	}
	if err := poller.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	drivers := st.Drivers()
	if len(drivers) != 5 || drivers[4].Email != "amy.lee@travel.com" {
		t.Fatalf("drivers after refresh = %d, last = %+v", len(drivers), drivers[len(drivers)-1])
	}

	// a second import sees the persisted row as a duplicate
	report, err = svc.Import(ctx, File{Name: "again.csv"}, strings.NewReader(body))
	if err != nil || len(report.Added) != 0 || len(report.Duplicates) != 1 {
		t.Errorf("re-import: %+v, %v", report, err)
	}
}

func TestImportLeavesStoreUntouchedWhenCatalogFails(t *testing.T) {
	st := store.New(logger.Nop())
	st.SetDrivers(existingDrivers())
	cat := &memCatalog{err: errors.New("duplicate key value violates unique constraint")}
	svc := NewService(st, cat, navigation.NewCoordinator(logger.Nop()), Delays{}, logger.Nop())

	body := "Name,Email,License\nAmy Lee,amy.lee@travel.com,MH-12-2024-000001\n"
	report, err := svc.Import(context.Background(), File{Name: "new.csv"}, strings.NewReader(body))
	if !errors.Is(err, ErrPersist) {
		t.Fatalf("err = %v, want ErrPersist", err)
	}
	if len(report.Added) != 0 {
		t.Errorf("report claims %d added", len(report.Added))
	}
	if len(st.Drivers()) != 2 {
		t.Errorf("store drivers = %d, want 2", len(st.Drivers()))
	}
}
