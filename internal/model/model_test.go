package model

import "testing"

func TestNormalizeIdentifier(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"vtu 1023", "VTU1023"},
		{"VTU1023", "VTU1023"},
		{"  vtu\t10 23 ", "VTU1023"},
		{"vTu1023", "VTU1023"},
		{"", ""},
		{"   ", ""},
	}
	for _, c := range cases {
		if got := NormalizeIdentifier(c.in); got != c.want {
			t.Fatalf("NormalizeIdentifier(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSeenIdentifiersDerivedFromRecords(t *testing.T) {
	s := &Session{
		SlotName: "Morning Session",
		Records: []AttendanceRecord{
			{Identifier: "VTU1023"},
			{Identifier: "VTU2000"},
			{Identifier: "VTU1023"},
		},
	}
	seen := s.SeenIdentifiers()
	if len(seen) != 2 {
		t.Fatalf("expected 2 distinct identifiers, got %d", len(seen))
	}
	for _, id := range []string{"VTU1023", "VTU2000"} {
		if _, ok := seen[id]; !ok {
			t.Fatalf("missing %s in derived set", id)
		}
	}
}
