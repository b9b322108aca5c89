package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/munet-project/unet/pkg/auth"
	"github.com/munet-project/unet/pkg/util"
)

// loadAccessPolicy reads access.json from configDir. A missing file yields
// an empty policy (no superusers, no grants) rather than an error, so a
// freshly initialized config directory doesn't block every command.
func loadAccessPolicy(configDir string) *auth.AccessPolicy {
	path := filepath.Join(configDir, "access.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			util.Logger.Warnf("reading access policy %s: %v", path, err)
		}
		return &auth.AccessPolicy{}
	}

	var policy auth.AccessPolicy
	if err := json.Unmarshal(data, &policy); err != nil {
		util.Logger.Warnf("parsing access policy %s: %v", path, err)
		return &auth.AccessPolicy{}
	}
	return &policy
}
