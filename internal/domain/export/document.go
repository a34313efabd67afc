// Package export serializes captured descriptors into a versioned document.
//
// The document carries its own metadata and plain descriptor values; it
// holds no references to live nodes, so it can be written, copied and read
// back without the session that produced it.
package export

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/GriffinCanCode/pagelens/internal/domain/inspector"
)

// Version is the schema version written into every export.
const Version = "2.0"

var (
	ErrUnsupportedFormat  = errors.New("unsupported export format")
	ErrUnsupportedVersion = errors.New("unsupported export version")
)

// Viewport is the browser window size at export time.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Meta describes where and when an export was taken.
type Meta struct {
	ExportTime    time.Time `json:"exportTime"`
	URL           string    `json:"url"`
	UserAgent     string    `json:"userAgent"`
	TotalElements int       `json:"totalElements"`
	Version       string    `json:"version"`
	Viewport      *Viewport `json:"viewport,omitempty"`
}

// Document is the export schema.
type Document struct {
	Meta     Meta                   `json:"meta"`
	Elements []inspector.Descriptor `json:"elements"`
	// Observations are keyed by element index.
	Observations map[string][]inspector.Observation `json:"observations,omitempty"`
}

// New builds a document for elements, filling in the version and count.
func New(meta Meta, elements []inspector.Descriptor) Document {
	if elements == nil {
		elements = []inspector.Descriptor{}
	}
	meta.Version = Version
	meta.TotalElements = len(elements)
	if meta.ExportTime.IsZero() {
		meta.ExportTime = time.Now()
	}
	return Document{Meta: meta, Elements: elements}
}

// Single builds the one-element document used for per-element copies.
func Single(meta Meta, d inspector.Descriptor) Document {
	return New(meta, []inspector.Descriptor{d})
}

// WithObservations attaches recorded observations by element index.
func (d Document) WithObservations(obs map[int][]inspector.Observation) Document {
	if len(obs) == 0 {
		return d
	}
	d.Observations = make(map[string][]inspector.Observation, len(obs))
	for i, o := range obs {
		if len(o) > 0 {
			d.Observations[strconv.Itoa(i)] = o
		}
	}
	return d
}

// CheckVersion accepts documents with the same major version.
func (d Document) CheckVersion() error {
	major, _, _ := strings.Cut(d.Meta.Version, ".")
	want, _, _ := strings.Cut(Version, ".")
	if major != want {
		return fmt.Errorf("%w: %q", ErrUnsupportedVersion, d.Meta.Version)
	}
	return nil
}
