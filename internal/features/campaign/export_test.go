package campaign

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestExportToExcel(t *testing.T) {
	c := &Campaign{
		ID:         primitive.NewObjectID(),
		Name:       "Spring Sale",
		Status:     StatusSent,
		Recipients: []string{"a@x.com", "b@x.com"},
		Metrics:    Metrics{Sent: 2, Delivered: 2, Opened: 1},
		Analytics: Analytics{
			Devices: CounterMap{"Mobile": 1, "Desktop": 3},
			Geos:    CounterMap{"US": 2},
		},
	}

	data, filename, err := ExportToExcel(c)
	if err != nil {
		t.Fatalf("ExportToExcel failed: %v", err)
	}
	if filename == "" || len(data) == 0 {
		t.Fatal("expected a named non-empty workbook")
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("workbook did not open: %v", err)
	}
	defer f.Close()

	if v, _ := f.GetCellValue("Metrics", "B4"); v != "2" {
		t.Errorf("expected sent count 2 in Metrics!B4, got %q", v)
	}
	if v, _ := f.GetCellValue("Devices", "A2"); v != "Desktop" {
		t.Errorf("expected most frequent device first, got %q", v)
	}
	if v, _ := f.GetCellValue("Geos", "B2"); v != "2" {
		t.Errorf("expected US count 2, got %q", v)
	}
}
