// Package fileops provides the small set of filesystem helpers the CLI needs
// to find Mermaid diagrams on disk.
//
// # Directory Scanning
//
// Scanner walks a directory inside an os.Root, so a symlink can never lead
// the scan outside the directory it was pointed at. Symlinked files are
// followed only when they resolve inside the root; symlinked directories are
// never followed.
//
//	files, err := fileops.FindDiagrams("./docs", fileops.DefaultMaxDepth)
//	if err != nil {
//	    return fmt.Errorf("scan failed: %w", err)
//	}
//
// # Argument Expansion
//
// CollectDiagramFiles turns command-line arguments into a list of files:
// directories are scanned for .mmd and .mermaid files, regular files are
// kept as given and "-" is passed through for stdin.
package fileops
