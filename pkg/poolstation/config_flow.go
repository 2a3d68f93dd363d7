// Package poolstation implements the setup wizard for PoolStation accounts.
//
// The wizard asks for the account email and password, logs in through an
// account.Client and stores the returned token in a config entry whose unique ID is
// the lower-cased email. When a stored token stops working the host starts a reauth
// flow, which asks for the password again and updates the existing entry in place.
package poolstation

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/andreweacott/poolstation-setup/pkg/account"
	"github.com/andreweacott/poolstation-setup/pkg/entry"
	"github.com/andreweacott/poolstation-setup/pkg/flow"
	"github.com/andreweacott/poolstation-setup/pkg/logger"
	"github.com/andreweacott/poolstation-setup/pkg/metrics"
)

// ConfigFlow handles a setup or reauth flow for one PoolStation account
type ConfigFlow struct {
	*flow.Base

	client  account.Client
	log     *logger.Logger
	metrics *metrics.FlowMetrics

	// reauthData is the entry data handed to the reauth step, including the email
	reauthData entry.Data
}

// NewFlowFactory returns a flow.Factory creating ConfigFlows that log in with client.
// fm may be nil.
func NewFlowFactory(client account.Client, log *logger.Logger, fm *metrics.FlowMetrics) flow.Factory {
	if log == nil {
		log = logger.Discard()
	}
	return func(base *flow.Base) flow.Handler {
		return &ConfigFlow{
			Base:    base,
			client:  client,
			log:     log,
			metrics: fm,
		}
	}
}

// Register installs the PoolStation flow on m
func Register(m *flow.Manager, client account.Client, log *logger.Logger, fm *metrics.FlowMetrics) {
	m.Register(Domain, NewFlowFactory(client, log, fm))
}

// Steps implements flow.Handler
func (f *ConfigFlow) Steps() map[string]flow.StepFunc {
	return map[string]flow.StepFunc{
		StepUser:          f.StepUser,
		StepReauth:        f.StepReauth,
		StepReauthConfirm: f.StepReauthConfirm,
	}
}

// StepUser handles the initial step
func (f *ConfigFlow) StepUser(ctx context.Context, input flow.Input) (*flow.Result, error) {
	if input == nil {
		return f.ShowForm(StepUser, DataSchema, nil, nil), nil
	}

	email := input[ConfEmail]
	token, code := f.login(ctx, StepUser, email, input[ConfPassword])
	if code != "" {
		return f.ShowForm(StepUser, DataSchema, flow.Errors{flow.ErrorBase: code}, nil), nil
	}

	uniqueID := strings.ToLower(email)
	if _, err := f.SetUniqueID(ctx, uniqueID); err != nil {
		return nil, err
	}
	if res, err := f.AbortIfUniqueIDConfigured(ctx); res != nil || err != nil {
		return res, err
	}

	return f.CreateEntry(uniqueID, entry.Data{ConfToken: token}), nil
}

// StepReauth receives the data of the entry whose token was rejected
func (f *ConfigFlow) StepReauth(ctx context.Context, input flow.Input) (*flow.Result, error) {
	f.reauthData = entry.Data(input).Clone()
	if f.reauthData == nil {
		f.reauthData = entry.Data{}
	}
	if f.reauthData[ConfEmail] == "" {
		if e := f.ReauthEntry(); e != nil {
			f.reauthData[ConfEmail] = e.UniqueID
		}
	}
	if f.reauthData[ConfEmail] == "" {
		return f.Abort(ReasonReauthEntryMissing), nil
	}

	return f.StepReauthConfirm(ctx, nil)
}

// StepReauthConfirm asks for the password of the stored email and refreshes the token
func (f *ConfigFlow) StepReauthConfirm(ctx context.Context, input flow.Input) (*flow.Result, error) {
	email := f.reauthData[ConfEmail]
	schema := DataSchema.WithDefault(ConfEmail, email)
	placeholders := map[string]string{ConfEmail: email}

	if input == nil {
		return f.ShowForm(StepReauthConfirm, schema, nil, placeholders), nil
	}

	token, code := f.login(ctx, StepReauthConfirm, email, input[ConfPassword])
	if code != "" {
		return f.ShowForm(StepReauthConfirm, schema, flow.Errors{flow.ErrorBase: code}, placeholders), nil
	}

	existing, err := f.SetUniqueID(ctx, strings.ToLower(email))
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return f.Abort(ReasonReauthEntryMissing), nil
	}

	data := existing.Data.Clone()
	if data == nil {
		data = entry.Data{}
	}
	data[ConfToken] = token
	if _, err := f.UpdateEntry(ctx, existing, data); err != nil {
		return nil, fmt.Errorf("failed to store new token: %w", err)
	}

	if err := f.ReloadEntry(ctx, existing.ID); err != nil {
		f.log.WithFlowID(f.FlowID()).
			WithField("entry_id", existing.ID).
			WithField("error", err.Error()).
			Warn("Reload after reauth failed")
	}

	return f.Abort(ReasonReauthSuccessful), nil
}

// login runs one login attempt and returns the token or the form error code
func (f *ConfigFlow) login(ctx context.Context, step, email, password string) (token string, code string) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			token, code = "", f.unexpected(step, fmt.Errorf("login panicked: %v", r), debug.Stack())
		}
		if f.metrics != nil {
			result := code
			if result == "" {
				result = "success"
			}
			f.metrics.RecordLoginAttempt(step, result, time.Since(start))
		}
	}()

	token, err := f.client.Login(ctx, email, password)
	code = loginErrorCode(err)

	switch code {
	case "":
		f.log.WithFlowID(f.FlowID()).WithField("step_id", step).Debug("Login succeeded")
	case ErrorUnknown:
		code = f.unexpected(step, err, debug.Stack())
	default:
		f.log.WithFlowID(f.FlowID()).
			WithField("step_id", step).
			WithField("code", code).
			WithField("error", err.Error()).
			Warn("Login failed")
	}

	if code != "" {
		token = ""
	}
	return token, code
}

func (f *ConfigFlow) unexpected(step string, err error, stack []byte) string {
	f.log.WithFlowID(f.FlowID()).
		WithField("step_id", step).
		WithField("error", err.Error()).
		WithField("error_type", fmt.Sprintf("%T", err)).
		WithField("stack", string(stack)).
		Error("Unexpected exception during login")
	return ErrorUnknown
}

// loginErrorCode maps a login error to the code shown on the form
func loginErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case account.IsConnectivityError(err), errors.Is(err, context.DeadlineExceeded):
		return ErrorCannotConnect
	case errors.Is(err, account.ErrAuthentication):
		return ErrorInvalidAuth
	default:
		return ErrorUnknown
	}
}
