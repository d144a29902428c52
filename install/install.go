// Package install provides functions for installing and upgrading the
// llama.cpp shared libraries the bridge loads at runtime.
package install

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hybridgroup/yzma/pkg/download"
)

const versionFile = "version.json"

type tag struct {
	TagName string `json:"tag_name"`
}

// Version provides information about what is installed and what is the
// latest version of llama.cpp available.
type Version struct {
	Latest  string
	Current string
}

// InstalledVersion retrieves the current version of llama.cpp installed.
func InstalledVersion(libPath string) (string, error) {
	versionInfoPath := filepath.Join(libPath, versionFile)

	d, err := os.ReadFile(versionInfoPath)
	if err != nil {
		return "unknown", fmt.Errorf("unable to read version info file: %w", err)
	}

	var tag tag
	if err := json.Unmarshal(d, &tag); err != nil {
		return "unknown", fmt.Errorf("unable to parse version info file: %w", err)
	}

	return tag.TagName, nil
}

// VersionInformation retrieves the latest version of llama.cpp published on
// GitHub and the version currently installed.
func VersionInformation(libPath string) (Version, error) {
	currentVersion, _ := InstalledVersion(libPath)

	// We found out that when this variable is set the download fails.
	if os.Getenv("GITHUB_TOKEN") != "" {
		os.Unsetenv("GITHUB_TOKEN")
	}

	version, err := download.LlamaLatestVersion()
	if err != nil {
		return Version{}, fmt.Errorf("unable to get latest version of llama.cpp: %w", err)
	}

	return Version{Latest: version, Current: currentVersion}, nil
}

// Libraries installs or upgrades to the latest version of llama.cpp at the
// specified libPath.
func Libraries(libPath string, processor download.Processor, allowUpgrade bool) (Version, error) {
	// We found out that when this variable is set the download fails.
	if os.Getenv("GITHUB_TOKEN") != "" {
		os.Unsetenv("GITHUB_TOKEN")
	}

	if err := download.InstallLibraries(libPath, processor, allowUpgrade); err != nil {
		return Version{}, fmt.Errorf("unable to install llama.cpp: %w", err)
	}

	return VersionInformation(libPath)
}
