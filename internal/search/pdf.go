package search

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

var ErrUnsafeName = errors.New("unsafe asset name")

// PDFDir is the folder of manually uploaded PDFs. All access goes through an
// os.Root, so names cannot resolve outside the folder.
type PDFDir struct {
	path string
	root *os.Root
}

// OpenPDFDir creates the folder if needed and opens it.
func OpenPDFDir(path string) (*PDFDir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create pdf folder: %w", err)
	}
	root, err := os.OpenRoot(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf folder: %w", err)
	}
	return &PDFDir{path: path, root: root}, nil
}

func (d *PDFDir) Path() string {
	return d.path
}

func (d *PDFDir) Close() error {
	return d.root.Close()
}

// Lookup reports whether "<query>.pdf" exists and returns that filename.
func (d *PDFDir) Lookup(query string) (string, bool) {
	name := query + ".pdf"
	if !safeName(name) {
		return "", false
	}
	info, err := d.root.Stat(name)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return name, true
}

// Open returns the named PDF for serving. Missing files yield fs.ErrNotExist.
func (d *PDFDir) Open(name string) (*os.File, fs.FileInfo, error) {
	if !safeName(name) {
		return nil, nil, ErrUnsafeName
	}
	f, err := d.root.Open(name)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return nil, nil, fs.ErrNotExist
	}
	return f, info, nil
}

// PDFURL is the route a matched PDF is served from.
func PDFURL(name string) string {
	return "/pdfs/" + url.PathEscape(name)
}

func safeName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return false
	}
	return filepath.Base(name) == name
}
