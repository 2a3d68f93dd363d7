package poolstation

import "github.com/andreweacott/poolstation-setup/pkg/flow"

// Domain is the integration domain entries are stored under
const Domain = "poolstation"

// Form and entry data keys
const (
	ConfEmail    = "email"
	ConfPassword = "password"
	ConfToken    = "token"
)

// Step IDs
const (
	StepUser          = flow.SourceUser
	StepReauth        = flow.SourceReauth
	StepReauthConfirm = "reauth_confirm"
)

// Error codes shown on the form's base field
const (
	ErrorCannotConnect = "cannot_connect"
	ErrorInvalidAuth   = "invalid_auth"
	ErrorUnknown       = "unknown"
)

// Abort reasons
const (
	ReasonAlreadyConfigured  = flow.ReasonAlreadyConfigured
	ReasonReauthSuccessful   = "reauth_successful"
	ReasonReauthEntryMissing = "reauth_entry_missing"
)

// DataSchema is the credentials form used by both user-facing steps
var DataSchema = flow.Schema{
	{Name: ConfEmail, Type: "string", Required: true},
	{Name: ConfPassword, Type: "password", Required: true},
}
