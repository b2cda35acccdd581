package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"idscan/internal/model"
)

func sampleSession() *model.Session {
	return &model.Session{
		SlotName: "Morning Session",
		Records: []model.AttendanceRecord{
			{StudentName: "B. Rao", Identifier: "VTU2000", SlotName: "Morning Session", CaptureDate: "2026-08-28", CaptureTime: "09:20"},
			{StudentName: "A. Kumar", Identifier: "VTU1023", SlotName: "Morning Session", CaptureDate: "2026-08-28", CaptureTime: "09:15"},
		},
	}
}

func TestCSVOutput(t *testing.T) {
	data, err := CSV(sampleSession())
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	want := "Name,Identifier,Slot,Date,Time\n" +
		`"B. Rao","VTU2000","Morning Session","2026-08-28","09:20"` + "\n" +
		`"A. Kumar","VTU1023","Morning Session","2026-08-28","09:15"` + "\n"
	if string(data) != want {
		t.Fatalf("csv mismatch:\n%s\nwant:\n%s", data, want)
	}
}

func TestCSVIdempotent(t *testing.T) {
	sess := sampleSession()
	a, err := CSV(sess)
	if err != nil {
		t.Fatalf("first export: %v", err)
	}
	b, err := CSV(sess)
	if err != nil {
		t.Fatalf("second export: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("exporting the same session twice produced different bytes")
	}
}

func TestCSVQuotesEmbeddedQuotes(t *testing.T) {
	sess := &model.Session{
		SlotName: "Lab",
		Records: []model.AttendanceRecord{
			{StudentName: `R. "Raj" Mehta`, Identifier: "VTU7", SlotName: "Lab", CaptureDate: "2026-08-28", CaptureTime: "11:00"},
		},
	}
	data, err := CSV(sess)
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if !strings.Contains(string(data), `"R. ""Raj"" Mehta"`) {
		t.Fatalf("embedded quotes not escaped: %s", data)
	}
}

func TestCSVEmptySession(t *testing.T) {
	if _, err := CSV(nil); err != ErrEmptySession {
		t.Fatalf("nil session: expected ErrEmptySession, got %v", err)
	}
	if _, err := CSV(&model.Session{SlotName: "Slot"}); err != ErrEmptySession {
		t.Fatalf("empty session: expected ErrEmptySession, got %v", err)
	}
}

func TestFilename(t *testing.T) {
	date := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	got := Filename("Morning  Session", date)
	if got != "attendance_Morning_Session_2026-08-28.csv" {
		t.Fatalf("filename = %q", got)
	}
}
