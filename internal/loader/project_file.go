package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ProjectFileName is the dbt project file read from the project directory.
const ProjectFileName = "dbt_project.yml"

// ProjectFile is the subset of dbt_project.yml the loader reads.
type ProjectFile struct {
	Name       string `yaml:"name"`
	TargetPath string `yaml:"target-path"`
}

// ReadProjectFile reads dbt_project.yml from dir. A missing file yields an
// empty ProjectFile and no error.
func ReadProjectFile(dir string) (*ProjectFile, error) {
	path := filepath.Join(dir, ProjectFileName)
	data, err := os.ReadFile(path) //nolint:gosec // path is the configured project dir
	if errors.Is(err, os.ErrNotExist) {
		return &ProjectFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var pf ProjectFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, &ManifestError{File: path, Message: fmt.Sprintf("invalid YAML: %v", err)}
	}
	return &pf, nil
}

// targetDir returns the dbt target directory, "target" unless overridden.
func (pf *ProjectFile) targetDir(projectDir string) string {
	target := pf.TargetPath
	if target == "" {
		target = "target"
	}
	if filepath.IsAbs(target) {
		return target
	}
	return filepath.Join(projectDir, target)
}
