package tours

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestCatalog_Lookup(t *testing.T) {
	cat := NewCatalog(NewCache(filepath.Join(t.TempDir(), "tours.json")), &fakeSource{records: sampleRecords()})
	if err := cat.Ensure(context.Background()); err != nil {
		t.Fatalf("Ensure error: %v", err)
	}

	tests := []struct {
		query       string
		wantName    string
		wantDirect  bool
		wantRelated int
		wantErr     error
	}{
		{"laguna 69", "Trekking Laguna 69", true, 0, nil},
		{"pastoruri", "Tour Nevado Pastoruri", true, 0, nil},
		{"glaciar", "Tour Nevado Pastoruri", false, 0, nil},
		{"cerca", "Laguna Churup", false, 0, nil},
		{"caminata", "Laguna Churup", false, 0, nil},
		{"machu picchu", "", false, 0, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			m, err := cat.Lookup(tt.query)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if m.Name != tt.wantName || m.Related != tt.wantRelated || m.Direct != tt.wantDirect {
				t.Errorf("Lookup = %q (direct=%v, +%d), want %q (direct=%v, +%d)", m.Name, m.Direct, m.Related, tt.wantName, tt.wantDirect, tt.wantRelated)
			}
		})
	}
}

func TestCatalog_LookupCountsRelated(t *testing.T) {
	records := []TourRecord{
		{Name: "Tour Llanganuco", Description: "lagunas glaciares", Category: CategoryTour},
		{Name: "Tour Parón", Description: "laguna glaciar turquesa", Category: CategoryTour},
		{Name: "Trekking 69", Description: "glaciar y laguna", Category: CategoryTrekking},
	}
	cat := NewCatalog(NewCache(filepath.Join(t.TempDir(), "tours.json")), &fakeSource{records: records})
	cat.Ensure(context.Background())

	m, err := cat.Lookup("glaciar")
	if err != nil {
		t.Fatalf("Lookup error: %v", err)
	}
	if m.Name != "Tour Llanganuco" || m.Related != 2 || m.Direct {
		t.Errorf("Lookup = %+v, want Tour Llanganuco (+2)", m)
	}
}

func TestCatalog_RefreshUsesSource(t *testing.T) {
	src := &fakeSource{records: sampleRecords()}
	cat := NewCatalog(NewCache(filepath.Join(t.TempDir(), "tours.json")), src)
	if _, err := cat.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if src.calls.Load() != 1 || cat.Len() != len(sampleRecords()) {
		t.Errorf("calls=%d len=%d", src.calls.Load(), cat.Len())
	}
}
