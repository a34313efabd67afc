package inspector

import "time"

// ObservationKind classifies a change reported for a captured element.
type ObservationKind string

const (
	ObservedAttributes    ObservationKind = "attributes"
	ObservedChildList     ObservationKind = "childList"
	ObservedCharacterData ObservationKind = "characterData"
	ObservedVisibility    ObservationKind = "visibility"
	ObservedResize        ObservationKind = "resize"
)

// Observation is a change to a captured element reported after capture.
// Observations are kept next to descriptors, never folded into them.
type Observation struct {
	Kind          ObservationKind `json:"type"`
	Timestamp     time.Time       `json:"timestamp"`
	AttributeName string          `json:"attributeName,omitempty"`
	OldValue      string          `json:"oldValue,omitempty"`
	AddedNodes    []string        `json:"addedNodes,omitempty"`
	RemovedNodes  []string        `json:"removedNodes,omitempty"`
	Visible       *bool           `json:"visible,omitempty"`
	Ratio         float64         `json:"intersectionRatio,omitempty"`
	Geometry      *Geometry       `json:"geometry,omitempty"`
}
