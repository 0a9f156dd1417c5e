// Package bot wires the Copperx payout bot: command handlers, conversation
// flows, menus, and deposit notifications on top of the telegram core.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/payoutbot/app/bot/flows"
	"github.com/m3rciful/payoutbot/app/copperx"
	"github.com/m3rciful/payoutbot/app/format"
	"github.com/m3rciful/payoutbot/app/notify"
	"github.com/m3rciful/payoutbot/app/session"
	coreconfig "github.com/m3rciful/payoutbot/core/config"
	"github.com/m3rciful/payoutbot/core/logger"
	tg "github.com/m3rciful/payoutbot/core/telegram"
	"github.com/m3rciful/payoutbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/payoutbot/core/telegram/helpers"
	"github.com/m3rciful/payoutbot/core/telegram/router"
	"github.com/m3rciful/payoutbot/core/telegram/state"
)

// App owns every application-level component of the bot.
type App struct {
	cfg      *coreconfig.Config
	api      *copperx.Client
	sessions *session.Store
	flows    *flows.Engine
	notify   *notify.Manager
	registry *tg.Registry

	// runCtx outlives any single update; deposit listeners hang off it.
	runCtx context.Context
	bot    *tele.Bot
}

// New assembles the application. Call Start from the telegram runtime's
// OnStart hook before updates flow.
func New(cfg *coreconfig.Config, api *copperx.Client, sessions *session.Store, conv state.Manager) *App {
	a := &App{
		cfg:      cfg,
		api:      api,
		sessions: sessions,
		registry: tg.NewRegistry(),
		runCtx:   context.Background(),
	}

	a.flows = flows.NewEngine(conv, api, sessions)
	a.flows.OnLogin = a.onLogin

	a.notify = notify.NewManager(
		notify.Config{AppKey: cfg.Pusher.AppKey, Cluster: cfg.Pusher.Cluster},
		api,
		a.onDeposit,
	)

	a.registerCommands()
	a.registerCallbacks()
	return a
}

// Registry exposes registered commands for the runtime.
func (a *App) Registry() *tg.Registry {
	return a.registry
}

// Routes builds the full route table: commands, callbacks, free text.
func (a *App) Routes() []tg.Route {
	routes := router.CommandRoutes(a.registry)
	routes = append(routes, router.CallbackRoute(a, a.registry, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(a, a.registry, router.TextOptions{})...)
	return routes
}

// Start runs once the bot is up; ctx bounds all background listeners.
func (a *App) Start(ctx context.Context, rt tg.Runtime) error {
	a.runCtx = ctx
	a.bot = rt.Bot
	return nil
}

// Stop tears down background listeners.
func (a *App) Stop(context.Context, tg.Runtime) error {
	a.notify.Close()
	return nil
}

// InProgress implements router.Conversations.
func (a *App) InProgress(chatID int64) bool {
	return a.flows.InProgress(chatID)
}

// HandleText feeds a text update into the active conversation.
// A /cancel always aborts; any other slash command is handed to the current
// step as ordinary input, which re-prompts instead of silently switching.
func (a *App) HandleText(c tele.Context) error {
	chatID := chatIDOf(c)
	text := strings.TrimSpace(c.Text())

	if strings.EqualFold(text, "/cancel") {
		a.flows.Cancel(chatID)
		return tghelpers.SendText(c, "Cancelled.", &tele.SendOptions{ReplyMarkup: mainMenu()})
	}

	ctx := tghelpers.BuildContext(c)
	err := a.flows.Handle(ctx, teleResponder{c: c}, chatID, flows.Event{Kind: flows.EventText, Text: text})
	if errors.Is(err, flows.ErrNoConversation) {
		return nil
	}
	return err
}

// HandleCallback feeds an inline-button press into the active conversation.
func (a *App) HandleCallback(c tele.Context) error {
	key, payload := callbacks.ParseCallbackData(c.Callback())
	ctx := tghelpers.BuildContext(c)
	err := a.flows.Handle(ctx, teleResponder{c: c}, chatIDOf(c), flows.Event{
		Kind:    flows.EventChoice,
		Choice:  key,
		Payload: payload,
	})
	if errors.Is(err, flows.ErrNoConversation) {
		return nil
	}
	return err
}

// guard diverts commands issued mid-conversation into the conversation
// itself, so a stray /balance during login re-prompts instead of running.
func (a *App) guard(name string, h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if name != "/cancel" && a.flows.InProgress(chatIDOf(c)) {
			return a.HandleText(c)
		}
		return h(c)
	}
}

func (a *App) onLogin(_ context.Context, sess session.Session) {
	a.notify.Start(a.runCtx, sess.ChatID, sess.AccessToken, sess.OrganizationID)
}

func (a *App) onDeposit(chatID int64, ev notify.DepositEvent) {
	if a.bot == nil {
		return
	}
	amount := ev.Amount
	if amount == "" {
		amount = "funds"
	} else {
		amount = format.USDC(amount)
	}
	text := "💰 New deposit received\n\n" + amount
	if ev.Network != "" {
		text += " on " + format.Network(ev.Network)
	}
	if _, err := a.bot.Send(tele.ChatID(chatID), text); err != nil {
		logger.Notify.LogAttrs(a.runCtx, slog.LevelWarn, "deposit.send_failed",
			slog.Int64("chat_id", chatID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
}

func chatIDOf(c tele.Context) int64 {
	if chat := c.Chat(); chat != nil {
		return chat.ID
	}
	return 0
}
