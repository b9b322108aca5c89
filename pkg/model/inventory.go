package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/munet-project/unet/pkg/util"
)

// inventoryFile is the on-disk shape of topology.json: nodes, links, and
// locations in one file, mirroring the teacher's single-file network spec
// convention rather than splitting each entity into its own file.
type inventoryFile struct {
	Nodes     []*Node     `json:"nodes"`
	Links     []*Link     `json:"links"`
	Locations []*Location `json:"locations"`
}

// LoadTopology reads topology.json from configDir and validates every node.
func LoadTopology(configDir string) (*Topology, error) {
	path := filepath.Join(configDir, "topology.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewTopology(nil, nil, nil), nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var inv inventoryFile
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	v := &util.ValidationBuilder{}
	for _, n := range inv.Nodes {
		if err := n.Validate(); err != nil {
			v.AddErrorf("node %q: %v", n.ID, err)
		}
	}
	if err := v.Build(); err != nil {
		return nil, err
	}

	return NewTopology(inv.Nodes, inv.Links, inv.Locations), nil
}

// SaveTopology writes t to topology.json under configDir atomically
// (temp file in the same directory, then rename).
func SaveTopology(configDir string, t *Topology) error {
	inv := inventoryFile{}
	for _, n := range t.Nodes {
		inv.Nodes = append(inv.Nodes, n)
	}
	for _, l := range t.Links {
		inv.Links = append(inv.Links, l)
	}
	for _, loc := range t.Locations {
		inv.Locations = append(inv.Locations, loc)
	}

	data, err := json.MarshalIndent(&inv, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling topology: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	path := filepath.Join(configDir, "topology.json")
	tmp, err := os.CreateTemp(configDir, "topology-*.json.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
