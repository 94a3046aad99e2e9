package schema

import (
	"encoding/json"
	"fmt"
)

// SwitchType classifies how a switch's two branches reconverge on the grid.
type SwitchType int

const (
	SwitchTypeUnknown        SwitchType = iota
	SwitchTypeBothNext                  // both targets one column to the right
	SwitchTypeSameNext                  // one target below in the same column, the other to the right
	SwitchTypeNextPrior                 // one target to the right, the other back to the left
	SwitchTypeSameBelowAbove            // both targets in the same column, one below and one above
	SwitchTypePriorAbove                // one target above in the same column, the other back to the left
)

var switchTypeNames = map[SwitchType]string{
	SwitchTypeUnknown:        "unknown",
	SwitchTypeBothNext:       "both-next",
	SwitchTypeSameNext:       "same-next",
	SwitchTypeNextPrior:      "next-prior",
	SwitchTypeSameBelowAbove: "same-below-above",
	SwitchTypePriorAbove:     "prior-above",
}

func (t SwitchType) String() string {
	if name, ok := switchTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("switch-type(%d)", int(t))
}

// MapPoint is one positioned tile handed to the renderer.
type MapPoint struct {
	Item        WorkflowItem `json:"item"`
	Occurrences uint64       `json:"occurrences"`
	X           int          `json:"x"`
	Y           int          `json:"y"`

	NextItemID    string `json:"next_item_id,omitempty"`
	NextYesItemID string `json:"next_yes_item_id,omitempty"`
	NextNoItemID  string `json:"next_no_item_id,omitempty"`

	IsPointedAtTop   bool `json:"is_pointed_at_top"`
	IsPointedAtLeft  bool `json:"is_pointed_at_left"`
	IsPointedAtRight bool `json:"is_pointed_at_right"`

	WorkflowSwitchTypeID SwitchType `json:"workflow_switch_type_id,omitempty"`
}

// IsSwitch reports whether the tile is a switch.
func (p MapPoint) IsSwitch() bool { return p.Item.Kind == KindSwitch }

// Successors returns the non-empty successor ids with their edge labels.
func (p MapPoint) Successors() []Successor {
	var out []Successor
	if p.NextItemID != "" {
		out = append(out, Successor{ID: p.NextItemID})
	}
	if p.NextYesItemID != "" {
		out = append(out, Successor{ID: p.NextYesItemID, Label: OutcomeLabel(true)})
	}
	if p.NextNoItemID != "" {
		out = append(out, Successor{ID: p.NextNoItemID, Label: OutcomeLabel(false)})
	}
	return out
}

// Successor is one outgoing pointer of a MapPoint.
type Successor struct {
	ID    string
	Label string // "", "yes" or "no"
}

// MarshalLayout encodes MapPoints deterministically.
func MarshalLayout(points []MapPoint) ([]byte, error) {
	if points == nil {
		points = []MapPoint{}
	}
	return json.Marshal(points)
}
