package shell

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Resolver maps a command name to a path on disk.
type Resolver struct {
	searchPath []string

	// RequireExecutable restricts matches to regular files with at least one
	// execute bit set. Without it any existing entry matches.
	RequireExecutable bool

	stat func(name string) (fs.FileInfo, error)
}

func NewResolver(searchPath []string) *Resolver {
	return &Resolver{
		searchPath: searchPath,
		stat:       os.Stat,
	}
}

// SplitSearchPath splits a PATH style list, dropping empty entries.
func SplitSearchPath(list string) []string {
	var dirs []string
	for _, dir := range strings.Split(list, string(os.PathListSeparator)) {
		if dir != "" {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

func (r *Resolver) SearchPath() []string {
	return r.searchPath
}

// Resolve returns name unchanged when it is absolute, otherwise the first of
// cwd/name and dir/name for each search path entry that exists.
func (r *Resolver) Resolve(name, cwd string) (string, bool) {
	if filepath.IsAbs(name) {
		return name, true
	}
	if name == "" {
		return "", false
	}

	if cwd != "" {
		if pathToCheck := filepath.Join(cwd, name); r.matches(pathToCheck) {
			return pathToCheck, true
		}
	}

	for _, dir := range r.searchPath {
		if pathToCheck := filepath.Join(dir, name); r.matches(pathToCheck) {
			return pathToCheck, true
		}
	}

	return "", false
}

func (r *Resolver) matches(pathToCheck string) bool {
	info, err := r.stat(pathToCheck)
	if err != nil {
		return false
	}
	if !r.RequireExecutable {
		return true
	}
	return info.Mode().IsRegular() && info.Mode()&0111 != 0
}

func isDirectory(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
