package schema

// WorkflowDefinition is the JSON/YAML-serializable workflow format.
// Clients register it via tileflow.define or pass it inline to tileflow.layout.
type WorkflowDefinition struct {
	ID           string              `json:"id,omitempty" yaml:"id,omitempty"`
	Title        string              `json:"title,omitempty" yaml:"title,omitempty"`
	Elements     []ElementDefinition `json:"elements" yaml:"elements"`
	MaxLoopTurns int                 `json:"max_loop_turns,omitempty" yaml:"max_loop_turns,omitempty"` // default 1
	InputsSchema map[string]any      `json:"inputs_schema,omitempty" yaml:"inputs_schema,omitempty"`   // JSON Schema for trace inputs
	Metadata     map[string]any      `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// ElementDefinition describes a single element in a workflow.
type ElementDefinition struct {
	ID        string         `json:"id" yaml:"id"`
	Type      ElementKind    `json:"type,omitempty" yaml:"type,omitempty"` // action, status, switch, boundary, placeholder (default: action)
	Title     string         `json:"title,omitempty" yaml:"title,omitempty"`
	Action    string         `json:"action,omitempty" yaml:"action,omitempty"`       // action name (e.g. "email.send")
	Status    string         `json:"status,omitempty" yaml:"status,omitempty"`       // status value set by status elements
	Condition string         `json:"condition,omitempty" yaml:"condition,omitempty"` // switch only
	Lang      string         `json:"lang,omitempty" yaml:"lang,omitempty"`           // cel | expr | jq (default: cel)
	Yes       *Branch        `json:"yes,omitempty" yaml:"yes,omitempty"`
	No        *Branch        `json:"no,omitempty" yaml:"no,omitempty"`
	Params    map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// Branch is one outcome of a switch. Without GoTo or End it merges back into
// the element that follows the switch.
type Branch struct {
	Elements []ElementDefinition `json:"elements,omitempty" yaml:"elements,omitempty"`
	GoTo     string              `json:"goto,omitempty" yaml:"goto,omitempty"` // loop back to an element already passed
	End      bool                `json:"end,omitempty" yaml:"end,omitempty"`   // terminate the workflow after the branch
}

// Condition languages accepted on switch elements.
const (
	LangCEL  = "cel"
	LangExpr = "expr"
	LangJQ   = "jq"
)

// Loop turn bounds for WorkflowDefinition.MaxLoopTurns.
const (
	DefaultMaxLoopTurns = 1
	MaxLoopTurnsLimit   = 8
)

// LoopTurns returns the effective loop turn bound.
func (d *WorkflowDefinition) LoopTurns() int {
	if d.MaxLoopTurns <= 0 {
		return DefaultMaxLoopTurns
	}
	return d.MaxLoopTurns
}

// Label returns the display title of the definition.
func (d *WorkflowDefinition) Label() string {
	if d.Title != "" {
		return d.Title
	}
	if name, ok := d.Metadata["name"].(string); ok && name != "" {
		return name
	}
	return d.ID
}

// Kind returns the element kind, defaulting to action.
func (e *ElementDefinition) Kind() ElementKind {
	if e.Type == "" {
		return KindAction
	}
	return e.Type
}

// Label returns the element title, falling back to its ID.
func (e *ElementDefinition) Label() string {
	if e.Title != "" {
		return e.Title
	}
	return e.ID
}

// ConditionLang returns the switch condition language, defaulting to CEL.
func (e *ElementDefinition) ConditionLang() string {
	if e.Lang == "" {
		return LangCEL
	}
	return e.Lang
}
