package process

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"git.tatikoma.dev/corpix/keeper/errors"
)

var ErrSidecarNotFound = errors.New("sidecar not found")

// Resolver locates co-packaged binaries by logical name.
type Resolver struct {
	Dirs       []string
	Triple     string
	executable func() (string, error)
}

var triples = map[string]string{
	"linux/amd64":   "x86_64-unknown-linux-gnu",
	"linux/arm64":   "aarch64-unknown-linux-gnu",
	"linux/386":     "i686-unknown-linux-gnu",
	"linux/arm":     "armv7-unknown-linux-gnueabihf",
	"darwin/amd64":  "x86_64-apple-darwin",
	"darwin/arm64":  "aarch64-apple-darwin",
	"windows/amd64": "x86_64-pc-windows-msvc",
	"windows/arm64": "aarch64-pc-windows-msvc",
	"windows/386":   "i686-pc-windows-msvc",
}

// TargetTriple returns the platform suffix sidecar binaries are packaged with.
func TargetTriple(goos, goarch string) string {
	if triple, ok := triples[goos+"/"+goarch]; ok {
		return triple
	}
	return goarch + "-unknown-" + goos
}

func NewResolver(dirs ...string) *Resolver {
	return &Resolver{
		Dirs:       dirs,
		Triple:     TargetTriple(runtime.GOOS, runtime.GOARCH),
		executable: os.Executable,
	}
}

func (r *Resolver) searchDirs() []string {
	dirs := append([]string{}, r.Dirs...)
	if r.executable != nil {
		if exe, err := r.executable(); err == nil {
			if resolved, err := filepath.EvalSymlinks(exe); err == nil {
				exe = resolved
			}
			dirs = append(dirs, filepath.Dir(exe))
		}
	}
	return dirs
}

// Candidates lists the paths Resolve probes for name, in order.
func (r *Resolver) Candidates(name string) []string {
	ext := ""
	if runtime.GOOS == "windows" {
		ext = ".exe"
	}

	var paths []string
	for _, dir := range r.searchDirs() {
		if r.Triple != "" {
			paths = append(paths, filepath.Join(dir, name+"-"+r.Triple+ext))
		}
		paths = append(paths, filepath.Join(dir, name+ext))
	}
	return paths
}

// Resolve returns the first executable candidate for name.
// Names containing a path separator are used as is.
func (r *Resolver) Resolve(name string) (string, error) {
	if strings.ContainsRune(name, filepath.Separator) || strings.ContainsRune(name, '/') {
		if isExecutable(name) {
			return name, nil
		}
		return "", errors.Wrapf(ErrSidecarNotFound, "%q", name)
	}

	paths := r.Candidates(name)
	for _, path := range paths {
		if isExecutable(path) {
			return path, nil
		}
	}
	return "", errors.Wrapf(ErrSidecarNotFound, "%q (searched %s)", name, strings.Join(paths, ", "))
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
