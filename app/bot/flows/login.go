package flows

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/payoutbot/app/copperx"
	"github.com/m3rciful/payoutbot/app/session"
	"github.com/m3rciful/payoutbot/core/logger"
	"github.com/m3rciful/payoutbot/core/telegram/state"
)

// FlowLogin authenticates a chat via email OTP.
const FlowLogin state.Flow = "login"

const (
	stepLoginEmail state.Step = "email"
	stepLoginCode  state.Step = "code"
	stepLoginStale state.Step = "stale_choice"
)

const (
	// ChoiceLoginResend and ChoiceLoginCancel are the stale-OTP buttons.
	ChoiceLoginResend = "login_resend"
	ChoiceLoginCancel = "login_cancel"
)

type loginData struct {
	Email string
	Sid   string
}

func (e *Engine) loginFlow() *flowDef {
	return &flowDef{
		id:      FlowLogin,
		initial: stepLoginEmail,
		newData: func() any { return &loginData{} },
		enter: func(t *turn) error {
			return t.out.Say("Please enter your Copperx email address:")
		},
		steps: map[state.Step]stepFunc{
			stepLoginEmail: e.loginEmailStep,
			stepLoginCode:  e.loginCodeStep,
			stepLoginStale: e.loginStaleStep,
		},
	}
}

func (e *Engine) loginEmailStep(t *turn) error {
	email, ok := t.text()
	if !ok || !ValidEmail(email) {
		return t.out.Say("That doesn't look like an email address. Please enter a valid email:")
	}

	sid, err := e.api.RequestEmailOTP(t.ctx, email)
	if err != nil {
		return t.fail(err)
	}

	d := convData[loginData](t)
	d.Email = email
	d.Sid = sid
	t.next(stepLoginCode)
	return t.out.Say(fmt.Sprintf("📧 A one-time code was sent to %s.\nPlease enter the 6-digit code:", email))
}

func (e *Engine) loginCodeStep(t *turn) error {
	code, ok := t.text()
	if !ok {
		return t.out.Say("Please enter the 6-digit code from your email:")
	}

	d := convData[loginData](t)
	creds, err := e.api.AuthenticateWithOTP(t.ctx, d.Email, code, d.Sid)
	if errors.Is(err, copperx.ErrStaleOTP) {
		t.next(stepLoginStale)
		return t.out.Say("That code has expired. Request a new one?",
			Choice{Label: "🔄 Resend code", ID: ChoiceLoginResend},
			Choice{Label: "✖️ Cancel", ID: ChoiceLoginCancel},
		)
	}
	if err != nil {
		return t.fail(err)
	}

	sess := session.Session{
		Email:        d.Email,
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		ExpireAt:     creds.ExpireAt,
	}

	// The organization id scopes profile lookups and the deposit
	// notification channel; resolve it once while we hold fresh credentials.
	if profile, perr := e.api.Profile(t.ctx, creds.AccessToken, ""); perr == nil {
		sess.OrganizationID = profile.OrganizationID
	} else {
		logger.Flow.LogAttrs(t.ctx, slog.LevelWarn, "login.profile_lookup_failed",
			slog.String("err", logger.SanitizeLimit(perr.Error(), 256)),
			slog.Int64("chat_id", t.chatID),
		)
	}

	e.sessions.Set(t.chatID, sess)
	if e.OnLogin != nil {
		sess.ChatID = t.chatID
		e.OnLogin(t.ctx, sess)
	}

	return t.complete(fmt.Sprintf("✅ Logged in as %s. Use /help to see what I can do.", d.Email))
}

func (e *Engine) loginStaleStep(t *turn) error {
	if t.ev.Kind != EventChoice {
		return t.out.Say("Please use the buttons above, or /cancel to stop.")
	}
	switch t.ev.Choice {
	case ChoiceLoginResend:
		d := convData[loginData](t)
		sid, err := e.api.RequestEmailOTP(t.ctx, d.Email)
		if err != nil {
			return t.fail(err)
		}
		d.Sid = sid
		t.next(stepLoginCode)
		return t.out.Say(fmt.Sprintf("📧 A new code was sent to %s.\nPlease enter it:", d.Email))
	case ChoiceLoginCancel:
		return t.cancel("Login cancelled.")
	default:
		return t.out.Say("Please use the buttons above, or /cancel to stop.")
	}
}

// convData returns the flow's typed data bag. Begin always seeds it, so a
// missing value means a programming error; returning a fresh value keeps
// the handler nil-safe regardless.
func convData[T any](t *turn) *T {
	if d, ok := t.conv.Data.(*T); ok {
		return d
	}
	d := new(T)
	t.conv.Data = d
	return d
}
