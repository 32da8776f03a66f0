package canalyst

import (
	"errors"
	"testing"
)

func TestCatalogResolve(t *testing.T) {
	cat := DefaultCatalog()

	tests := []struct {
		label   string
		timing0 uint8
		timing1 uint8
		wantErr bool
	}{
		{"10 Kbps", 0x31, 0x1C, false},
		{"125 Kbps", 0x03, 0x1C, false},
		{"250 Kbps", 0x01, 0x1C, false},
		{"500 Kbps", 0x00, 0x1C, false},
		{"1000 Kbps", 0x00, 0x14, false},
		{"2 Mbps", 0, 0, true},
		{"", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			p, err := cat.Resolve(tt.label)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Resolve(%q) error = %v, wantErr %v", tt.label, err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownProfile) {
					t.Errorf("error = %v, want ErrUnknownProfile", err)
				}
				return
			}
			if p.Timing0 != tt.timing0 || p.Timing1 != tt.timing1 {
				t.Errorf("Resolve(%q) = 0x%02X/0x%02X, want 0x%02X/0x%02X",
					tt.label, p.Timing0, p.Timing1, tt.timing0, tt.timing1)
			}
		})
	}
}

func TestCatalogDefault(t *testing.T) {
	p, ok := DefaultCatalog().Default()
	if !ok {
		t.Fatal("default catalog is missing the default rate")
	}
	if p.Label != DefaultRate {
		t.Errorf("default = %q, want %q", p.Label, DefaultRate)
	}

	cat, err := NewCatalog([]BaudRateProfile{{"500 Kbps", 0x00, 0x1C}})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := cat.Default(); ok {
		t.Error("Default() = ok for a catalog without the default rate")
	}
}

func TestNewCatalogRejectsBadTables(t *testing.T) {
	if _, err := NewCatalog([]BaudRateProfile{{"", 0x01, 0x1C}}); err == nil {
		t.Error("empty label accepted")
	}
	dup := []BaudRateProfile{
		{"250 Kbps", 0x01, 0x1C},
		{"250 Kbps", 0x00, 0x1C},
	}
	if _, err := NewCatalog(dup); err == nil {
		t.Error("duplicate label accepted")
	}
}

func TestCatalogOrderStable(t *testing.T) {
	cat := DefaultCatalog()
	labels := cat.Labels()
	profiles := cat.Profiles()
	if len(labels) != len(profiles) {
		t.Fatalf("labels %d, profiles %d", len(labels), len(profiles))
	}
	for i := range labels {
		if labels[i] != profiles[i].Label {
			t.Fatalf("order mismatch at %d: %q vs %q", i, labels[i], profiles[i].Label)
		}
	}
	if labels[0] != "10 Kbps" || labels[len(labels)-1] != "1000 Kbps" {
		t.Errorf("table order changed: first %q last %q", labels[0], labels[len(labels)-1])
	}
}
