package proxy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrConfigNotFound = errors.New("proxy: no gateway config file")

// configNames are tried in order inside every search directory.
var configNames = []string{
	"gateway.yaml",
	"gateway.yml",
	filepath.Join("proxy", "proxy.yaml"),
	filepath.Join("proxy", "proxy.yml"),
}

// configDirs is the working directory followed by the directory holding the
// running binary, which is where a Lambda deployment package unpacks.
func configDirs() []string {
	dirs := []string{""}
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	return dirs
}

// FindDefaultConfigFile returns the first gateway config file found. Paths
// under the working directory are returned relative.
func FindDefaultConfigFile() (string, error) {
	for _, dir := range configDirs() {
		for _, name := range configNames {
			p := filepath.Join(dir, name)
			if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
				return p, nil
			}
		}
	}
	return "", fmt.Errorf("%w: tried %v", ErrConfigNotFound, configNames)
}

func WithDefaultConfigFile() Option {
	p, err := FindDefaultConfigFile()
	if err != nil {
		return failOption("WithDefaultConfigFile", err)
	}
	return WithConfigFile(p)
}
