package netsplit

import (
	"fmt"
	"os"
	"path/filepath"
)

// CheckReadableFiles probes the file system to ensure that every
// one of the argument filenames exists and is readable
func CheckReadableFiles(names []string) error {
	return checkFiles(names, true)
}

// CheckOutputFiles probes the file system to ensure that the directory of every
// argument filename exists, so the file can be written
func CheckOutputFiles(names []string) error {
	return checkFiles(names, false)
}

func checkFiles(names []string, checkExistence bool) error {
	errs := make([]error, 0)

	for _, name := range names {
		// skip unset names
		if len(name) == 0 {
			continue
		}

		directory, _ := filepath.Split(name)
		if directory == "" {
			directory = "."
		}
		if _, err := os.Stat(directory); err != nil {
			errs = append(errs, fmt.Errorf("directory of %s: %w", name, err))
			continue
		}

		if checkExistence {
			if _, err := os.Stat(name); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return ReportErrs(errs)
}

// IsYAMLFile reports whether the extension of a file name selects YAML serialization
func IsYAMLFile(filename string) bool {
	switch filepath.Ext(filename) {
	case ".yaml", ".YAML", ".yml":
		return true
	}
	return false
}
