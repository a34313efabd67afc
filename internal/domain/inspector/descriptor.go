package inspector

import (
	"time"

	"github.com/GriffinCanCode/pagelens/internal/domain/selector"
)

// Descriptor is an immutable snapshot of one element taken at capture
// time. It holds no reference back to the node.
type Descriptor struct {
	Role                  string       `json:"role"`
	AccessibleName        string       `json:"accessibleName"`
	AccessibleDescription string       `json:"accessibleDescription"`
	Selectors             selector.Set `json:"selectors"`
	Geometry              Geometry     `json:"geometry"`
	Attributes            Attributes   `json:"attributes"`
	CapturedAt            time.Time    `json:"capturedAt"`

	TagName            string              `json:"tagName"`
	ElementID          string              `json:"elementId,omitempty"`
	ClassName          string              `json:"className,omitempty"`
	TextContent        string              `json:"textContent"`
	InnerHTML          string              `json:"innerHTML"`
	OuterHTML          string              `json:"outerHTML"`
	Preview            string              `json:"preview"`
	AlternateSelectors selector.Alternates `json:"alternateSelectors"`
	Aria               Aria                `json:"aria"`
	Focus              Focus               `json:"focus"`
	Form               *FormInfo           `json:"form,omitempty"`
	Media              *MediaInfo          `json:"media,omitempty"`
	Interaction        Interaction         `json:"interaction"`
	Context            Context             `json:"context"`
	Styles             map[string]string   `json:"styles,omitempty"`
	Metadata           Metadata            `json:"metadata"`
}

// Geometry is a viewport-relative bounding box.
type Geometry struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IsZero reports whether no layout information was available.
func (g Geometry) IsZero() bool {
	return g == Geometry{}
}

type Aria struct {
	Attributes    Attributes    `json:"attributes"`
	ExplicitRole  string        `json:"explicitRole,omitempty"`
	ImplicitRole  string        `json:"implicitRole"`
	LabelInfo     LabelInfo     `json:"labelInfo"`
	State         AriaState     `json:"state"`
	Relationships Relationships `json:"relationships"`
}

type LabelInfo struct {
	AriaLabel       string `json:"ariaLabel,omitempty"`
	AriaLabelledBy  string `json:"ariaLabelledBy,omitempty"`
	AriaDescribedBy string `json:"ariaDescribedBy,omitempty"`
}

type AriaState struct {
	Hidden   string `json:"hidden,omitempty"`
	Expanded string `json:"expanded,omitempty"`
	Selected string `json:"selected,omitempty"`
	Checked  string `json:"checked,omitempty"`
	Disabled string `json:"disabled,omitempty"`
	Busy     string `json:"busy,omitempty"`
	Live     string `json:"live,omitempty"`
}

type Relationships struct {
	Owns             string `json:"owns,omitempty"`
	Controls         string `json:"controls,omitempty"`
	FlowTo           string `json:"flowTo,omitempty"`
	ActiveDescendant string `json:"activeDescendant,omitempty"`
}

type Focus struct {
	TabIndex        int  `json:"tabIndex"`
	IsFocusable     bool `json:"isFocusable"`
	CanReceiveFocus bool `json:"canReceiveFocus"`
}

// FormInfo is present for form controls and forms.
type FormInfo struct {
	Type        string      `json:"type,omitempty"`
	Name        string      `json:"name,omitempty"`
	Value       string      `json:"value,omitempty"`
	Checked     bool        `json:"checked"`
	Multiple    bool        `json:"multiple"`
	Form        *FormOwner  `json:"form,omitempty"`
	Labels      []LabelRef  `json:"labels"`
	Constraints Constraints `json:"constraints"`
}

type FormOwner struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
	Action string `json:"action"`
	Method string `json:"method"`
}

type LabelRef struct {
	ID          string `json:"id,omitempty"`
	TextContent string `json:"textContent"`
}

// Constraints mirrors the validation attributes. MinLength and MaxLength
// are -1 when unset.
type Constraints struct {
	Required  bool   `json:"required"`
	Pattern   string `json:"pattern,omitempty"`
	Min       string `json:"min,omitempty"`
	Max       string `json:"max,omitempty"`
	Step      string `json:"step,omitempty"`
	MinLength int    `json:"minLength"`
	MaxLength int    `json:"maxLength"`
}

// MediaInfo is present for embedded media.
type MediaInfo struct {
	TagName  string `json:"tagName"`
	Src      string `json:"src,omitempty"`
	Alt      string `json:"alt,omitempty"`
	Title    string `json:"title,omitempty"`
	Loading  string `json:"loading,omitempty"`
	Decoding string `json:"decoding,omitempty"`
	Sizes    string `json:"sizes,omitempty"`
	Srcset   string `json:"srcset,omitempty"`
	Width    string `json:"width,omitempty"`
	Height   string `json:"height,omitempty"`
	Controls bool   `json:"controls,omitempty"`
	Autoplay bool   `json:"autoplay,omitempty"`
	Loop     bool   `json:"loop,omitempty"`
	Muted    bool   `json:"muted,omitempty"`
	Preload  string `json:"preload,omitempty"`
}

type Interaction struct {
	Clickable         bool   `json:"clickable"`
	Editable          bool   `json:"editable"`
	Draggable         bool   `json:"draggable"`
	HasEventListeners bool   `json:"hasEventListeners"`
	Disabled          bool   `json:"disabled"`
	Readonly          bool   `json:"readonly"`
	Required          bool   `json:"required"`
	ContentEditable   string `json:"contentEditable"`
}

// ElementRef is a short reference to a related element.
type ElementRef struct {
	TagName   string `json:"tagName"`
	ID        string `json:"id,omitempty"`
	ClassName string `json:"className,omitempty"`
	Role      string `json:"role,omitempty"`
}

type Siblings struct {
	Previous *ElementRef `json:"previous,omitempty"`
	Next     *ElementRef `json:"next,omitempty"`
	Total    int         `json:"total"`
	Position int         `json:"position"`
}

type Context struct {
	Parent          *ElementRef  `json:"parent,omitempty"`
	Children        []ElementRef `json:"children"`
	Siblings        Siblings     `json:"siblings"`
	Ancestors       []ElementRef `json:"ancestors"`
	DescendantCount int          `json:"descendantCount"`
}

type Metadata struct {
	IsCustomElement bool       `json:"isCustomElement"`
	Lang            string     `json:"lang,omitempty"`
	Dir             string     `json:"dir,omitempty"`
	Title           string     `json:"title,omitempty"`
	Dataset         Attributes `json:"dataset"`
}
