package mapping

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CellInfo describes one storage cell
type CellInfo struct {
	Cluster string `yaml:"cluster"`
	Notes   string `yaml:"notes"`
}

// CellMap maps host identities found in iostat headers to the cluster they belong to
type CellMap struct {
	Cells map[string]CellInfo `yaml:"cells"`
}

// LoadCellMap loads a cell map YAML file
//
//	cells:
//	  exacel01:
//	    cluster: exa-prod
func LoadCellMap(path string) (*CellMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cell map: %w", err)
	}

	var cm CellMap
	if err := yaml.Unmarshal(data, &cm); err != nil {
		return nil, fmt.Errorf("failed to parse cell map: %w", err)
	}
	if cm.Cells == nil {
		cm.Cells = make(map[string]CellInfo)
	}

	return &cm, nil
}

// EmptyCellMap returns a map that resolves every cell to itself
func EmptyCellMap() *CellMap {
	return &CellMap{Cells: make(map[string]CellInfo)}
}

// ClusterName returns the cluster of a cell, or the cell itself when unknown.
// Lookup ignores case.
func (cm *CellMap) ClusterName(cell string) string {
	if info, ok := cm.Cells[cell]; ok && info.Cluster != "" {
		return info.Cluster
	}
	for name, info := range cm.Cells {
		if strings.EqualFold(name, cell) && info.Cluster != "" {
			return info.Cluster
		}
	}
	return cell
}
