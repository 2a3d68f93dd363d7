// Package flow drives step-based setup dialogs ("config flows").
//
// A flow handler exposes named steps. The Manager creates one handler per flow,
// calls the step named by the flow's source, and afterwards calls whichever step the
// last shown form belongs to, passing the user's input. Steps answer with a Result:
// show a form, create an entry, or abort with a reason. Creating an entry is what
// finishes a flow successfully; the Manager persists it through the entry store.
package flow

import "github.com/andreweacott/poolstation-setup/pkg/entry"

// ResultType says how a step ended
type ResultType string

const (
	ResultForm        ResultType = "form"
	ResultCreateEntry ResultType = "create_entry"
	ResultAbort       ResultType = "abort"
)

// Sources a flow can be started from
const (
	SourceUser   = "user"
	SourceReauth = "reauth"
)

// ErrorBase is the errors key for problems not tied to a single field
const ErrorBase = "base"

// Abort reasons raised by the framework itself
const (
	ReasonAlreadyConfigured = "already_configured"
)

// Result is what a step hands back to the host
type Result struct {
	Type    ResultType `json:"type"`
	FlowID  string     `json:"flow_id"`
	Domain  string     `json:"handler"`
	StepID  string     `json:"step_id,omitempty"`
	Schema  Schema     `json:"data_schema,omitempty"`
	Errors  Errors     `json:"errors,omitempty"`
	Reason  string     `json:"reason,omitempty"`
	Title   string     `json:"title,omitempty"`
	EntryID string     `json:"entry_id,omitempty"`

	DescriptionPlaceholders map[string]string `json:"description_placeholders,omitempty"`

	// Data is the payload of a created entry. It never leaves the process.
	Data entry.Data `json:"-"`
	// UniqueID of the created entry.
	UniqueID string `json:"-"`
}

// Errors maps a form field (or ErrorBase) to an error code
type Errors map[string]string

// Done reports whether the flow is finished after this result
func (r *Result) Done() bool {
	return r.Type != ResultForm
}
