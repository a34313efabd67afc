// Package filesystem finds saved HTML pages on disk for batch runs.
package filesystem

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/gabriel-vasile/mimetype"

	"github.com/GriffinCanCode/pagelens/internal/domain/dom"
)

// DefaultInclude matches saved pages by extension.
var DefaultInclude = []string{"**/*.{html,htm,xhtml}"}

// skipDirs are never descended into.
var skipDirs = map[string]bool{".git": true, "node_modules": true, "vendor": true}

// PageFile is a discovered page.
type PageFile struct {
	Path string `json:"path"`
	Rel  string `json:"rel"`
	Size int64  `json:"size"`
	MIME string `json:"mime"`
}

// Options selects pages. Patterns are doublestar globs over slash
// separated paths relative to the root.
type Options struct {
	Include []string
	Exclude []string
	// SniffContent drops matches whose content is not HTML.
	SniffContent bool
}

// Discover walks root and returns matching pages sorted by relative path.
func Discover(ctx context.Context, root string, opts Options) ([]PageFile, error) {
	if len(opts.Include) == 0 {
		opts.Include = DefaultInclude
	}
	for _, p := range append(append([]string{}, opts.Include...), opts.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid pattern %q", p)
		}
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	var (
		mu    sync.Mutex
		pages []PageFile
	)
	conf := fastwalk.Config{Follow: false}
	err = fastwalk.Walk(&conf, root, func(p string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != root && skipDirs[d.Name()] {
				return fastwalk.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if !matchAny(opts.Include, rel) || matchAny(opts.Exclude, rel) {
			return nil
		}

		page := PageFile{Path: p, Rel: rel}
		if info, err := d.Info(); err == nil {
			page.Size = info.Size()
		}
		mt, err := mimetype.DetectFile(p)
		if err != nil {
			return nil
		}
		page.MIME = mt.String()
		if opts.SniffContent && !IsHTML(mt) {
			return nil
		}

		mu.Lock()
		pages = append(pages, page)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", root, err)
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].Rel < pages[j].Rel })
	return pages, nil
}

// IsHTML reports whether mt is an HTML or XHTML type.
func IsHTML(mt *mimetype.MIME) bool {
	return mt.Is("text/html") || mt.Is("application/xhtml+xml")
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// Load parses a page file. Its document URL is the file:// URL of the path.
func Load(path string) (*dom.Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer f.Close()

	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return dom.ParseReader(f, u.String())
}
