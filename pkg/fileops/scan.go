package fileops

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// StdinPath is the argument that stands for standard input.
const StdinPath = "-"

// DefaultMaxDepth bounds recursion when scanning for diagrams.
const DefaultMaxDepth = 20

// DiagramExtensions are the file extensions recognised as Mermaid source.
var DiagramExtensions = []string{".mmd", ".mermaid"}

// IsDiagramFile reports whether name has a Mermaid file extension.
func IsDiagramFile(name string) bool {
	return slices.Contains(DiagramExtensions, strings.ToLower(filepath.Ext(name)))
}

// ScanOptions configures a Scanner.
type ScanOptions struct {
	// MaxDepth limits recursion; the scan root is depth 1.
	MaxDepth int

	// IncludeHidden includes files and directories whose name starts with '.'
	IncludeHidden bool

	// SkipPatterns are directory names that are never entered.
	SkipPatterns []string

	// FileFilter selects files by base name. Nil includes every file.
	FileFilter func(filename string) bool
}

// DefaultScanOptions returns options that find diagram files and skip
// dependency and build directories.
func DefaultScanOptions() *ScanOptions {
	return &ScanOptions{
		MaxDepth:      DefaultMaxDepth,
		IncludeHidden: false,
		SkipPatterns:  getDefaultSkipPatterns(),
		FileFilter:    IsDiagramFile,
	}
}

// getDefaultSkipPatterns returns commonly skipped directory patterns.
func getDefaultSkipPatterns() []string {
	return []string{
		"node_modules",
		".git",
		"vendor",
		"dist",
		"build",
		".next",
		".cache",
	}
}

// FileInfo describes a file found by a scan.
type FileInfo struct {
	// Name is the base filename
	Name string

	// Path is relative to the scan root
	Path string

	Size int64
}

// Scanner walks one directory tree inside an os.Root.
type Scanner struct {
	root     *os.Root
	opts     *ScanOptions
	scanRoot string
	results  []FileInfo
}

// NewScanner opens scanPath for scanning. Nil opts selects DefaultScanOptions.
func NewScanner(scanPath string, opts *ScanOptions) (*Scanner, error) {
	if opts == nil {
		opts = DefaultScanOptions()
	}

	if strings.TrimSpace(scanPath) == "" {
		return nil, fmt.Errorf("scan path cannot be empty")
	}

	absPath, err := filepath.Abs(ExpandPath(scanPath))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve scan path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("cannot access scan path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan path is not a directory: %s", absPath)
	}

	root, err := os.OpenRoot(absPath)
	if err != nil {
		return nil, fmt.Errorf("cannot create secure scan root: %w", err)
	}

	return &Scanner{
		root:     root,
		opts:     opts,
		scanRoot: absPath,
	}, nil
}

// Root returns the absolute path being scanned.
func (s *Scanner) Root() string {
	return s.scanRoot
}

// Close releases the underlying os.Root.
func (s *Scanner) Close() error {
	if s.root != nil {
		err := s.root.Close()
		s.root = nil
		return err
	}
	return nil
}

// Scan walks the tree and returns matching files in directory order.
// Unreadable directories and broken symlinks are skipped.
func (s *Scanner) Scan() ([]FileInfo, error) {
	if s.root == nil {
		return nil, fmt.Errorf("scanner has been closed")
	}

	s.results = []FileInfo{}
	s.scanRecursive(".", 1)

	resultsCopy := make([]FileInfo, len(s.results))
	copy(resultsCopy, s.results)
	return resultsCopy, nil
}

func (s *Scanner) scanRecursive(relativePath string, depth int) {
	if depth > s.opts.MaxDepth {
		return
	}

	dir, err := s.root.Open(relativePath)
	if err != nil {
		return
	}
	entries, err := dir.ReadDir(-1)
	dir.Close()
	if err != nil {
		return
	}

	for _, entry := range entries {
		name := entry.Name()
		entryPath := filepath.Join(relativePath, name)

		if !s.opts.IncludeHidden && strings.HasPrefix(name, ".") {
			continue
		}

		switch {
		case entry.Type()&fs.ModeSymlink != 0:
			// Stat through the root fails when the link escapes it.
			info, err := s.root.Stat(entryPath)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			s.addFile(name, entryPath, info.Size())
		case entry.IsDir():
			if slices.Contains(s.opts.SkipPatterns, name) {
				continue
			}
			s.scanRecursive(entryPath, depth+1)
		case entry.Type().IsRegular():
			info, err := entry.Info()
			if err != nil {
				continue
			}
			s.addFile(name, entryPath, info.Size())
		}
	}
}

func (s *Scanner) addFile(name, path string, size int64) {
	if s.opts.FileFilter != nil && !s.opts.FileFilter(name) {
		return
	}
	s.results = append(s.results, FileInfo{Name: name, Path: path, Size: size})
}

// FindDiagrams scans dir for Mermaid files and returns their absolute paths.
func FindDiagrams(dir string, maxDepth int) ([]string, error) {
	opts := DefaultScanOptions()
	if maxDepth > 0 {
		opts.MaxDepth = maxDepth
	}

	scanner, err := NewScanner(dir, opts)
	if err != nil {
		return nil, err
	}
	defer scanner.Close()

	files, err := scanner.Scan()
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, filepath.Join(scanner.Root(), f.Path))
	}
	return paths, nil
}

// CollectDiagramFiles expands command-line arguments into files to check.
// Directories are scanned, files are kept regardless of extension and "-"
// is passed through unchanged.
func CollectDiagramFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		if arg == StdinPath {
			files = append(files, arg)
			continue
		}

		path := ExpandPath(arg)
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if !info.IsDir() {
			files = append(files, path)
			continue
		}

		found, err := FindDiagrams(path, DefaultMaxDepth)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", arg, err)
		}
		files = append(files, found...)
	}
	return files, nil
}
