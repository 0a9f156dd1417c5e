package flows

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/payoutbot/app/copperx"
	"github.com/m3rciful/payoutbot/app/session"
	coreconfig "github.com/m3rciful/payoutbot/core/config"
	"github.com/m3rciful/payoutbot/core/telegram/state"
)

const testChatID int64 = 42

// recorder captures everything a flow says.
type recorder struct {
	says     []string
	choices  [][]Choice
	finished []string
}

func (r *recorder) Say(text string, cs ...Choice) error {
	r.says = append(r.says, text)
	r.choices = append(r.choices, cs)
	return nil
}

func (r *recorder) Finish(text string) error {
	r.finished = append(r.finished, text)
	return nil
}

func (r *recorder) lastSay() string {
	if len(r.says) == 0 {
		return ""
	}
	return r.says[len(r.says)-1]
}

func (r *recorder) lastChoices() []Choice {
	if len(r.choices) == 0 {
		return nil
	}
	return r.choices[len(r.choices)-1]
}

func newTestEngine(t *testing.T, handler http.Handler) (*Engine, *session.Store) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	api := copperx.New(coreconfig.CopperxConfig{BaseURL: srv.URL, RequestTimeoutSeconds: 5})
	store := session.NewStore()
	return NewEngine(state.NewMemoryManager(), api, store), store
}

func textEvent(s string) Event { return Event{Kind: EventText, Text: s} }

func choiceEvent(id string) Event { return Event{Kind: EventChoice, Choice: id} }

func TestLoginFlowHappyPath(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/email-otp/request", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"sid": "sid-1"})
	})
	mux.HandleFunc("POST /api/auth/email-otp/authenticate", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "sid-1", body["sid"])
		assert.Equal(t, "123456", body["otp"])
		json.NewEncoder(w).Encode(map[string]string{
			"accessToken": "tok-1",
			"expireAt":    time.Now().Add(time.Hour).Format(time.RFC3339),
		})
	})
	mux.HandleFunc("GET /api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"email":          "alice@example.com",
			"organizationId": "org-1",
		})
	})

	eng, store := newTestEngine(t, mux)
	var hooked *session.Session
	eng.OnLogin = func(_ context.Context, sess session.Session) { hooked = &sess }

	out := &recorder{}
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx, out, testChatID, FlowLogin))
	require.NoError(t, eng.Handle(ctx, out, testChatID, textEvent("alice@example.com")))
	require.NoError(t, eng.Handle(ctx, out, testChatID, textEvent("123456")))

	assert.False(t, eng.InProgress(testChatID))
	assert.True(t, store.IsAuthenticated(testChatID))
	sess, ok := store.Get(testChatID)
	require.True(t, ok)
	assert.Equal(t, "org-1", sess.OrganizationID)
	assert.Equal(t, "tok-1", sess.AccessToken)
	require.NotNil(t, hooked)
	assert.Equal(t, testChatID, hooked.ChatID)
	require.Len(t, out.finished, 1)
	assert.Contains(t, out.finished[0], "alice@example.com")
}

func TestLoginFlowRejectsBadEmail(t *testing.T) {
	eng, store := newTestEngine(t, http.NewServeMux())

	out := &recorder{}
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx, out, testChatID, FlowLogin))
	require.NoError(t, eng.Handle(ctx, out, testChatID, textEvent("not-an-email")))

	assert.True(t, eng.InProgress(testChatID))
	assert.False(t, store.IsAuthenticated(testChatID))
	assert.Contains(t, out.lastSay(), "valid email")
}

func TestLoginFlowStaleOTPOffersResend(t *testing.T) {
	requests := 0
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/email-otp/request", func(w http.ResponseWriter, r *http.Request) {
		requests++
		json.NewEncoder(w).Encode(map[string]string{"sid": "sid-1"})
	})
	mux.HandleFunc("POST /api/auth/email-otp/authenticate", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"message": "OTP is not latest"})
	})

	eng, store := newTestEngine(t, mux)
	out := &recorder{}
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx, out, testChatID, FlowLogin))
	require.NoError(t, eng.Handle(ctx, out, testChatID, textEvent("alice@example.com")))
	require.NoError(t, eng.Handle(ctx, out, testChatID, textEvent("000000")))

	ids := []string{}
	for _, c := range out.lastChoices() {
		ids = append(ids, c.ID)
	}
	assert.Contains(t, ids, ChoiceLoginResend)
	assert.Contains(t, ids, ChoiceLoginCancel)

	// Resend requests a fresh code and returns to code entry.
	require.NoError(t, eng.Handle(ctx, out, testChatID, choiceEvent(ChoiceLoginResend)))
	assert.Equal(t, 2, requests)
	assert.True(t, eng.InProgress(testChatID))
	assert.False(t, store.IsAuthenticated(testChatID))
}

func TestLoginFlowInvalidCodeEndsConversation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/email-otp/request", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"sid": "sid-1"})
	})
	mux.HandleFunc("POST /api/auth/email-otp/authenticate", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"message": "Invalid OTP"})
	})

	eng, store := newTestEngine(t, mux)
	out := &recorder{}
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx, out, testChatID, FlowLogin))
	require.NoError(t, eng.Handle(ctx, out, testChatID, textEvent("alice@example.com")))
	require.NoError(t, eng.Handle(ctx, out, testChatID, textEvent("999999")))

	assert.False(t, eng.InProgress(testChatID))
	assert.False(t, store.IsAuthenticated(testChatID))
	require.Len(t, out.finished, 1)
	assert.Contains(t, out.finished[0], "Invalid OTP")
}

func TestLoginFlowStaleCancelEndsConversation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/email-otp/request", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"sid": "sid-1"})
	})
	mux.HandleFunc("POST /api/auth/email-otp/authenticate", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"message": "OTP is not latest"})
	})

	eng, _ := newTestEngine(t, mux)
	out := &recorder{}
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx, out, testChatID, FlowLogin))
	require.NoError(t, eng.Handle(ctx, out, testChatID, textEvent("alice@example.com")))
	require.NoError(t, eng.Handle(ctx, out, testChatID, textEvent("000000")))
	require.NoError(t, eng.Handle(ctx, out, testChatID, choiceEvent(ChoiceLoginCancel)))

	assert.False(t, eng.InProgress(testChatID))
	require.Len(t, out.finished, 1)
	assert.Contains(t, out.finished[0], "cancelled")
}

func TestSendWalletFlowRejectsShortAddress(t *testing.T) {
	eng, _ := newTestEngine(t, http.NewServeMux())
	out := &recorder{}
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx, out, testChatID, FlowSendWallet))
	require.NoError(t, eng.Handle(ctx, out, testChatID, textEvent("0xdeadbeef")))

	assert.True(t, eng.InProgress(testChatID))
	assert.Contains(t, out.lastSay(), "full address")
}

func TestSendWalletFlowHappyPath(t *testing.T) {
	const address = "0x1234567890abcdef1234567890abcdef12345678"
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/transfers/wallet", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, address, body["walletAddress"])
		assert.Equal(t, "12.5", body["amount"])
		json.NewEncoder(w).Encode(map[string]string{"id": "tr-1", "status": "pending"})
	})

	eng, store := newTestEngine(t, mux)
	store.Set(testChatID, session.Session{AccessToken: "tok-1"})

	out := &recorder{}
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx, out, testChatID, FlowSendWallet))
	require.NoError(t, eng.Handle(ctx, out, testChatID, textEvent(address)))
	require.NoError(t, eng.Handle(ctx, out, testChatID, textEvent("12,5")))

	assert.Contains(t, out.lastSay(), "12.5 USDC")
	require.NoError(t, eng.Handle(ctx, out, testChatID, choiceEvent(ChoiceConfirm)))

	assert.False(t, eng.InProgress(testChatID))
	require.Len(t, out.finished, 1)
	assert.Contains(t, out.finished[0], "tr-1")
}

func TestWithdrawFlowEndsWithoutPayees(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/payees", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[]"))
	})

	eng, store := newTestEngine(t, mux)
	store.Set(testChatID, session.Session{AccessToken: "tok-1"})

	out := &recorder{}
	require.NoError(t, eng.Start(context.Background(), out, testChatID, FlowWithdraw))

	assert.False(t, eng.InProgress(testChatID))
	require.Len(t, out.finished, 1)
	assert.Contains(t, out.finished[0], "no saved bank payees")
}

func TestWithdrawFlowHappyPath(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/payees", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]string{
			{"id": "p-1", "nickName": "Main checking", "bankName": "Chase"},
			{"id": "p-2", "nickName": "Savings"},
		})
	})
	mux.HandleFunc("POST /api/transfers/bank", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "p-1", body["payeeId"])
		assert.Equal(t, "100", body["amount"])
		json.NewEncoder(w).Encode(map[string]string{"id": "tr-9", "status": "initiated"})
	})

	eng, store := newTestEngine(t, mux)
	store.Set(testChatID, session.Session{AccessToken: "tok-1"})

	out := &recorder{}
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx, out, testChatID, FlowWithdraw))

	choices := out.lastChoices()
	require.Len(t, choices, 2)
	assert.Equal(t, ChoicePayee, choices[0].ID)
	assert.Equal(t, "p-1", choices[0].Payload)

	require.NoError(t, eng.Handle(ctx, out, testChatID, Event{Kind: EventChoice, Choice: ChoicePayee, Payload: "p-1"}))
	require.NoError(t, eng.Handle(ctx, out, testChatID, textEvent("100")))
	require.NoError(t, eng.Handle(ctx, out, testChatID, choiceEvent(ChoiceConfirm)))

	assert.False(t, eng.InProgress(testChatID))
	require.Len(t, out.finished, 1)
	assert.Contains(t, out.finished[0], "tr-9")
}

func TestBatchFlowReportsAllProblems(t *testing.T) {
	eng, _ := newTestEngine(t, http.NewServeMux())
	out := &recorder{}
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx, out, testChatID, FlowBatchSend))
	require.NoError(t, eng.Handle(ctx, out, testChatID, textEvent("alice@example.com,10\nbroken\nbob@example.com,-5")))

	assert.True(t, eng.InProgress(testChatID))
	last := out.lastSay()
	assert.Contains(t, last, "Line 2")
	assert.Contains(t, last, "Line 3")
}

func TestBatchFlowHappyPath(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/transfers/batch", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Transfers []map[string]string `json:"transfers"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Transfers, 2)
		json.NewEncoder(w).Encode(map[string]any{
			"transfers": []map[string]string{{"id": "tr-1"}, {"id": "tr-2"}},
		})
	})

	eng, store := newTestEngine(t, mux)
	store.Set(testChatID, session.Session{AccessToken: "tok-1"})

	out := &recorder{}
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx, out, testChatID, FlowBatchSend))
	require.NoError(t, eng.Handle(ctx, out, testChatID, textEvent("alice@example.com,10\nbob@example.com,15.50")))

	assert.Contains(t, out.lastSay(), "2 transfers")
	require.NoError(t, eng.Handle(ctx, out, testChatID, choiceEvent(ChoiceConfirm)))

	assert.False(t, eng.InProgress(testChatID))
	require.Len(t, out.finished, 1)
	assert.Contains(t, out.finished[0], "2 transfers created")
}

func TestHandleWithoutConversation(t *testing.T) {
	eng, _ := newTestEngine(t, http.NewServeMux())
	err := eng.Handle(context.Background(), &recorder{}, testChatID, textEvent("hello"))
	assert.ErrorIs(t, err, ErrNoConversation)
}

func TestStartReplacesActiveConversation(t *testing.T) {
	eng, _ := newTestEngine(t, http.NewServeMux())
	out := &recorder{}
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx, out, testChatID, FlowSendEmail))
	require.NoError(t, eng.Start(ctx, out, testChatID, FlowSendWallet))
	require.NoError(t, eng.Handle(ctx, out, testChatID, textEvent("alice@example.com")))

	// The wallet flow is active now, so an email address is a short address.
	assert.Contains(t, out.lastSay(), "wallet address")
}
