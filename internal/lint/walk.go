package lint

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScanPaths scans files and directory trees. Directories named vendor or
// starting with "." or "_" are skipped, as are paths matching an exclude
// glob (matched against the slash-separated path and its base name).
func (s *Scanner) ScanPaths(paths []string, exclude []string) ([]Finding, error) {
	var findings []Finding
	for _, root := range paths {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if excluded(path, exclude) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if path != root && skipDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.HasSuffix(path, ".go") {
				return nil
			}
			src, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			got, err := s.ScanSource(path, src)
			if err != nil {
				return err
			}
			findings = append(findings, got...)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].File != findings[j].File {
			return findings[i].File < findings[j].File
		}
		return findings[i].Line < findings[j].Line
	})
	return findings, nil
}

func skipDir(name string) bool {
	return name == "vendor" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}

func excluded(path string, patterns []string) bool {
	slash := filepath.ToSlash(path)
	base := filepath.Base(path)
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, slash); ok {
			return true
		}
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
		if strings.HasSuffix(p, "/") && strings.Contains(slash+"/", p) {
			return true
		}
	}
	return false
}
