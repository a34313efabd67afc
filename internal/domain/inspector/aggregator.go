// Package inspector builds element descriptors: the role, name and
// selectors of an element together with a snapshot of its attributes,
// geometry and surrounding structure.
package inspector

import (
	"errors"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/GriffinCanCode/pagelens/internal/domain/a11y"
	"github.com/GriffinCanCode/pagelens/internal/domain/dom"
	"github.com/GriffinCanCode/pagelens/internal/domain/selector"
)

// ErrNotElement is returned when capture is asked for a non-element node.
var ErrNotElement = errors.New("node is not an element")

// Aggregator combines the resolver, the selector synthesizer and a layout
// source into descriptors. Capture does not modify the node.
type Aggregator struct {
	doc       *dom.Document
	resolver  *a11y.Resolver
	layout    Layout
	sanitizer *bluemonday.Policy
	now       func() time.Time
	logger    *zap.Logger
}

// NewAggregator creates an aggregator over doc with a static layout.
func NewAggregator(doc *dom.Document) *Aggregator {
	return &Aggregator{
		doc:       doc,
		resolver:  a11y.NewResolver(doc),
		layout:    StaticLayout{},
		sanitizer: bluemonday.UGCPolicy(),
		now:       time.Now,
		logger:    zap.NewNop(),
	}
}

// WithLayout sets the layout source.
func (a *Aggregator) WithLayout(l Layout) *Aggregator {
	if l != nil {
		a.layout = l
	}
	return a
}

// WithClock replaces the capture clock.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	if now != nil {
		a.now = now
	}
	return a
}

// WithLogger attaches a logger for layout failures.
func (a *Aggregator) WithLogger(l *zap.Logger) *Aggregator {
	if l != nil {
		a.logger = l
	}
	return a
}

// Document returns the document the aggregator reads from.
func (a *Aggregator) Document() *dom.Document { return a.doc }

// Resolver returns the accessibility resolver.
func (a *Aggregator) Resolver() *a11y.Resolver { return a.resolver }

// Capture snapshots n. Layout errors degrade to zero geometry and no styles.
func (a *Aggregator) Capture(n *html.Node) (Descriptor, error) {
	if !dom.IsElement(n) {
		return Descriptor{}, ErrNotElement
	}

	geom, err := a.layout.Geometry(n)
	if err != nil {
		a.logger.Debug("geometry unavailable", zap.String("tag", dom.TagName(n)), zap.Error(err))
		geom = Geometry{}
	}
	styles, err := a.layout.Style(n)
	if err != nil {
		a.logger.Debug("style unavailable", zap.String("tag", dom.TagName(n)), zap.Error(err))
		styles = nil
	}

	outer := dom.OuterHTML(n)
	return Descriptor{
		Role:                  a.resolver.Role(n),
		AccessibleName:        a.resolver.Name(n),
		AccessibleDescription: a.resolver.Description(n),
		Selectors:             selector.For(n),
		Geometry:              geom,
		Attributes:            AttributesOf(n),
		CapturedAt:            a.now(),

		TagName:            dom.TagName(n),
		ElementID:          dom.ID(n),
		ClassName:          dom.AttrValue(n, "class"),
		TextContent:        strings.TrimSpace(dom.TextContent(n)),
		InnerHTML:          dom.Truncate(dom.InnerHTML(n), maxInnerHTML),
		OuterHTML:          dom.Truncate(outer, maxOuterHTML),
		Preview:            dom.Truncate(a.sanitizer.Sanitize(outer), maxOuterHTML),
		AlternateSelectors: selector.AlternatesFor(n),
		Aria:               ariaOf(n),
		Focus:              focusOf(n),
		Form:               formOf(a.doc, n),
		Media:              mediaOf(a.doc, n),
		Interaction:        interactionOf(n),
		Context:            contextOf(n),
		Styles:             styles,
		Metadata:           metadataOf(n),
	}, nil
}
