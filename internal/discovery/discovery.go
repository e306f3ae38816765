// Package discovery lists the slide files a batch run will convert.
package discovery

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"wsiconvert/internal/services"
)

// Discover returns absolute paths of regular files directly inside dir whose
// extension matches one of exts, case-insensitively. Results are grouped by
// extension in the order given and sorted within each group. Hidden files are
// skipped. A directory with no matches yields an empty slice.
func Discover(dir string, exts []string) ([]string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, services.Wrap(services.ErrInvalidInputPath, "discover", "resolve", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, services.Wrap(services.ErrInvalidInputPath, "discover", "stat", abs, err)
	}
	if !info.IsDir() {
		return nil, services.Wrap(services.ErrInvalidInputPath, "discover", "stat", abs+" is not a directory", nil)
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, services.Wrap(services.ErrInvalidInputPath, "discover", "read dir", abs, err)
	}

	groups := make(map[string][]string, len(exts))
	order := make([]string, 0, len(exts))
	for _, ext := range exts {
		key := strings.ToLower(ext)
		if _, ok := groups[key]; ok {
			continue
		}
		groups[key] = nil
		order = append(order, key)
	}

	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		path := filepath.Join(abs, entry.Name())
		if !isRegular(entry, path) {
			continue
		}
		key := matchExtension(entry.Name(), order)
		if key == "" {
			continue
		}
		groups[key] = append(groups[key], path)
	}

	files := make([]string, 0, len(entries))
	for _, key := range order {
		group := groups[key]
		sort.Strings(group)
		files = append(files, group...)
	}
	return files, nil
}

// matchExtension returns the longest configured extension the name ends with.
func matchExtension(name string, exts []string) string {
	lower := strings.ToLower(name)
	best := ""
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) && len(lower) > len(ext) && len(ext) > len(best) {
			best = ext
		}
	}
	return best
}

func isRegular(entry os.DirEntry, path string) bool {
	if entry.Type().IsRegular() {
		return true
	}
	if entry.Type()&os.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
