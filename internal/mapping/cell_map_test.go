package mapping

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCellMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cells.yaml")
	content := `cells:
  exacel01:
    cluster: exa-prod
    notes: rack 1
  exacel02:
    cluster: exa-prod
  testcel01:
    notes: no cluster yet
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cm, err := LoadCellMap(path)
	if err != nil {
		t.Fatalf("LoadCellMap() error = %v", err)
	}

	tests := []struct {
		cell string
		want string
	}{
		{"exacel01", "exa-prod"},
		{"EXACEL02", "exa-prod"},
		{"testcel01", "testcel01"},
		{"unknown", "unknown"},
	}
	for _, tt := range tests {
		if got := cm.ClusterName(tt.cell); got != tt.want {
			t.Errorf("ClusterName(%q) = %q, want %q", tt.cell, got, tt.want)
		}
	}
}

func TestLoadCellMapErrors(t *testing.T) {
	if _, err := LoadCellMap(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("cells: [unclosed"), 0644)
	if _, err := LoadCellMap(path); err == nil {
		t.Error("expected error for invalid yaml")
	}
}

func TestEmptyCellMap(t *testing.T) {
	if got := EmptyCellMap().ClusterName("exacel01"); got != "exacel01" {
		t.Errorf("ClusterName() = %q, want exacel01", got)
	}
}
