package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/payoutbot/app/bot/flows"
	"github.com/m3rciful/payoutbot/app/copperx"
	"github.com/m3rciful/payoutbot/app/format"
	"github.com/m3rciful/payoutbot/app/session"
	"github.com/m3rciful/payoutbot/core/buildinfo"
	"github.com/m3rciful/payoutbot/core/telegram/callbacks"
	"github.com/m3rciful/payoutbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/payoutbot/core/telegram/helpers"
	"github.com/m3rciful/payoutbot/core/telegram/keyboard"
	"github.com/m3rciful/payoutbot/core/telegram/state"
)

const historyPageSize = 10

func (a *App) registerCommands() {
	reg := func(name string, h tele.HandlerFunc, desc string, hidden bool, aliases ...string) {
		a.registry.RegisterCommand(name, commands.Command{
			Handler:     a.guard(name, h),
			Description: desc,
			Hidden:      hidden,
			Aliases:     aliases,
		})
	}

	reg("/start", a.cmdStart, "Welcome and main menu", false)
	reg("/help", a.cmdHelp, "List available commands", false)
	reg("/login", a.cmdLogin, "Log in with your Copperx email", false)
	reg("/logout", a.cmdLogout, "Log out and forget this chat's session", false)
	reg("/profile", a.cmdProfile, "Show your account profile", false)
	reg("/kyc", a.cmdKYC, "Show your KYC verification status", false)
	reg("/balance", a.cmdBalance, "Show wallet balances", false)
	reg("/setdefault", a.cmdSetDefault, "Choose your default wallet", false)
	reg("/deposit", a.cmdDeposit, "Show deposit addresses", false)
	reg("/history", a.cmdHistory, "Show recent transfers", false)
	reg("/send", a.cmdSend, "Send USDC to an email", false)
	reg("/sendwallet", a.cmdSendWallet, "Send USDC to a wallet address", false)
	reg("/withdraw", a.cmdWithdraw, "Withdraw USDC to your bank", false)
	reg("/batchsend", a.cmdBatchSend, "Send USDC to many emails at once", false)
	reg("/dashboard", a.cmdDashboard, "Account overview at a glance", false)
	reg("/cancel", a.cmdCancel, "Cancel the current operation", true)
}

func (a *App) registerCallbacks() {
	// Main menu buttons reuse the command handlers.
	_ = a.registry.RegisterCallback(cbMenuBalance, a.cmdBalance)
	_ = a.registry.RegisterCallback(cbMenuHistory, a.cmdHistory)
	_ = a.registry.RegisterCallback(cbMenuProfile, a.cmdProfile)
	_ = a.registry.RegisterCallback(cbMenuDeposit, a.cmdDeposit)
	_ = a.registry.RegisterCallback(cbMenuHelp, a.cmdHelp)
	_ = a.registry.RegisterCallback(cbMenuSend, func(c tele.Context) error {
		return tghelpers.SendText(c, "How do you want to send funds?", &tele.SendOptions{ReplyMarkup: transferMenu()})
	})

	_ = a.registry.RegisterCallback(cbSendEmail, a.cmdSend)
	_ = a.registry.RegisterCallback(cbSendWallet, a.cmdSendWallet)
	_ = a.registry.RegisterCallback(cbSendBank, a.cmdWithdraw)
	_ = a.registry.RegisterCallback(cbSendBatch, a.cmdBatchSend)

	_ = a.registry.RegisterCallback(cbWalletDefault, a.cbSetDefaultWallet)
	_ = a.registry.RegisterCallback(cbHistoryPage, a.cbHistoryPage)
	_ = a.registry.RegisterCallback(cbRetry, a.cbRetry)
}

// requireAuth returns the chat's session or prompts for login.
func (a *App) requireAuth(c tele.Context) (session.Session, bool) {
	chatID := chatIDOf(c)
	if a.sessions.IsAuthenticated(chatID) {
		sess, _ := a.sessions.Get(chatID)
		return sess, true
	}
	_ = tghelpers.SendText(c, "🔒 You need to log in first. Use /login.")
	return session.Session{}, false
}

// expireSession drops everything tied to the chat after the API rejected its
// credentials.
func (a *App) expireSession(c tele.Context) {
	chatID := chatIDOf(c)
	a.sessions.Clear(chatID)
	a.notify.Stop(chatID)
}

// withProgress is the shared shape of every one-shot command: auth gate,
// a placeholder message, one or more API calls, then the placeholder is
// replaced with the result or an error carrying a retry button.
func (a *App) withProgress(c tele.Context, command, progress string, fn func(ctx context.Context, sess session.Session) (string, *tele.ReplyMarkup, error)) error {
	sess, ok := a.requireAuth(c)
	if !ok {
		return nil
	}
	ctx := tghelpers.WithHandler(c, strings.TrimPrefix(command, "/"))

	// Sent synchronously so the handle is available for the closing edit.
	placeholder, sendErr := c.Bot().Send(c.Recipient(), "⏳ "+progress)

	text, markup, err := fn(ctx, sess)
	if err != nil {
		if copperx.IsUnauthorized(err) {
			a.expireSession(c)
			text = "🔒 Your session has expired. Please /login again."
			markup = nil
		} else {
			text = "❌ " + copperx.UserMessage(err)
			markup = retryMarkup(command)
		}
	}

	if sendErr == nil && placeholder != nil {
		var editErr error
		if markup != nil {
			_, editErr = c.Bot().Edit(placeholder, text, markup)
		} else {
			_, editErr = c.Bot().Edit(placeholder, text)
		}
		if editErr == nil {
			return nil
		}
	}
	if markup != nil {
		return tghelpers.SendText(c, text, &tele.SendOptions{ReplyMarkup: markup})
	}
	return tghelpers.SendText(c, text)
}

func (a *App) startFlow(c tele.Context, flow state.Flow) error {
	if _, ok := a.requireAuth(c); !ok {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	return a.flows.Start(ctx, teleResponder{c: c}, chatIDOf(c), flow)
}

func (a *App) cmdStart(c tele.Context) error {
	chatID := chatIDOf(c)
	if sess, ok := a.sessions.Get(chatID); ok && a.sessions.IsAuthenticated(chatID) {
		return tghelpers.SendText(c,
			fmt.Sprintf("👋 Welcome back, %s!\nWhat would you like to do?", sess.Email),
			&tele.SendOptions{ReplyMarkup: mainMenu()})
	}
	return tghelpers.SendText(c,
		"👋 Welcome to the Copperx payout bot!\n\n"+
			"Send USDC to emails, wallets, and bank accounts right from Telegram.\n"+
			"Use /login to connect your Copperx account.",
		&tele.SendOptions{ReplyMarkup: mainMenu()})
}

func (a *App) cmdHelp(c tele.Context) error {
	var b strings.Builder
	b.WriteString("Available commands:\n\n")
	for _, cmd := range a.registry.ListCommands(true) {
		fmt.Fprintf(&b, "%s — %s\n", cmd.Text, cmd.Description)
	}
	b.WriteString("\nDuring any operation, /cancel aborts it.")
	return tghelpers.SendText(c, b.String())
}

func (a *App) cmdLogin(c tele.Context) error {
	chatID := chatIDOf(c)
	if sess, ok := a.sessions.Get(chatID); ok && a.sessions.IsAuthenticated(chatID) {
		return tghelpers.SendText(c, fmt.Sprintf("You are already logged in as %s. Use /logout to switch accounts.", sess.Email))
	}
	ctx := tghelpers.BuildContext(c)
	return a.flows.Start(ctx, teleResponder{c: c}, chatID, flows.FlowLogin)
}

func (a *App) cmdLogout(c tele.Context) error {
	chatID := chatIDOf(c)
	if _, ok := a.sessions.Get(chatID); !ok {
		return tghelpers.SendText(c, "You are not logged in.")
	}
	a.expireSession(c)
	return tghelpers.SendText(c, "👋 Logged out. Your session in this chat was forgotten.")
}

func (a *App) cmdProfile(c tele.Context) error {
	return a.withProgress(c, "/profile", "Fetching your profile...", func(ctx context.Context, sess session.Session) (string, *tele.ReplyMarkup, error) {
		user, err := a.api.Profile(ctx, sess.AccessToken, sess.OrganizationID)
		if err != nil {
			return "", nil, err
		}
		return profileText(user), nil, nil
	})
}

func (a *App) cmdKYC(c tele.Context) error {
	return a.withProgress(c, "/kyc", "Checking verification status...", func(ctx context.Context, sess session.Session) (string, *tele.ReplyMarkup, error) {
		records, err := a.api.KYCStatus(ctx, sess.AccessToken)
		if err != nil {
			return "", nil, err
		}
		return kycText(records), nil, nil
	})
}

func (a *App) cmdBalance(c tele.Context) error {
	return a.withProgress(c, "/balance", "Fetching balances...", func(ctx context.Context, sess session.Session) (string, *tele.ReplyMarkup, error) {
		balances, err := a.api.WalletBalances(ctx, sess.AccessToken)
		if err != nil {
			return "", nil, err
		}
		return balanceText(balances, a.defaultWalletID(ctx, sess)), nil, nil
	})
}

// defaultWalletID resolves which wallet gets the default marker. The session
// caches the id after /setdefault; a fresh login starts without one, so ask
// the API and remember the answer. A failed lookup only costs the marker.
func (a *App) defaultWalletID(ctx context.Context, sess session.Session) string {
	if sess.DefaultWalletID != "" {
		return sess.DefaultWalletID
	}
	wallet, err := a.api.DefaultWallet(ctx, sess.AccessToken)
	if err != nil {
		return ""
	}
	a.sessions.Update(sess.ChatID, func(s *session.Session) {
		s.DefaultWalletID = wallet.ID
	})
	return wallet.ID
}

func (a *App) cmdSetDefault(c tele.Context) error {
	return a.withProgress(c, "/setdefault", "Fetching wallets...", func(ctx context.Context, sess session.Session) (string, *tele.ReplyMarkup, error) {
		wallets, err := a.api.Wallets(ctx, sess.AccessToken)
		if err != nil {
			return "", nil, err
		}
		if len(wallets) == 0 {
			return "You have no wallets yet.", nil, nil
		}
		btns := make([]keyboard.InlineBtn, 0, len(wallets))
		for _, w := range wallets {
			label := walletLabel(w)
			if w.IsDefault {
				label = "⭐ " + label
			}
			btns = append(btns, keyboard.InlineBtn{Text: label, Unique: cbWalletDefault, Data: w.ID})
		}
		return "Choose your default wallet:", keyboard.InlineButtons(btns), nil
	})
}

func (a *App) cbSetDefaultWallet(c tele.Context) error {
	sess, ok := a.requireAuth(c)
	if !ok {
		return nil
	}
	walletID := callbacks.CallbackPayload(c)
	if walletID == "" {
		return tghelpers.SendText(c, "That wallet is no longer available.")
	}

	ctx := tghelpers.WithHandler(c, "setdefault.pick")
	wallet, err := a.api.SetDefaultWallet(ctx, sess.AccessToken, walletID)
	if err != nil {
		if copperx.IsUnauthorized(err) {
			a.expireSession(c)
			return tghelpers.EditOrSendMD(c, "🔒 Your session has expired. Please /login again.")
		}
		return tghelpers.EditOrSendMD(c, "❌ "+copperx.UserMessage(err))
	}

	a.sessions.Update(chatIDOf(c), func(s *session.Session) {
		s.DefaultWalletID = wallet.ID
	})
	return tghelpers.EditOrSendMD(c, fmt.Sprintf("✅ Default wallet set to %s.", walletLabel(wallet)))
}

func (a *App) cmdDeposit(c tele.Context) error {
	return a.withProgress(c, "/deposit", "Fetching deposit addresses...", func(ctx context.Context, sess session.Session) (string, *tele.ReplyMarkup, error) {
		accounts, err := a.api.DepositAccounts(ctx, sess.AccessToken)
		if err != nil {
			return "", nil, err
		}
		return depositText(accounts), nil, nil
	})
}

func (a *App) cmdHistory(c tele.Context) error {
	return a.withProgress(c, "/history", "Fetching transfers...", func(ctx context.Context, sess session.Session) (string, *tele.ReplyMarkup, error) {
		return a.historyPage(ctx, sess, 1)
	})
}

func (a *App) cbHistoryPage(c tele.Context) error {
	sess, ok := a.requireAuth(c)
	if !ok {
		return nil
	}
	page, err := strconv.Atoi(callbacks.CallbackPayload(c))
	if err != nil || page < 1 {
		page = 1
	}

	ctx := tghelpers.WithHandler(c, "history.page")
	text, markup, err := a.historyPage(ctx, sess, page)
	if err != nil {
		if copperx.IsUnauthorized(err) {
			a.expireSession(c)
			return tghelpers.EditOrSendMD(c, "🔒 Your session has expired. Please /login again.")
		}
		return tghelpers.EditOrSendMD(c, "❌ "+copperx.UserMessage(err))
	}
	if markup != nil {
		return tghelpers.EditOrSendMD(c, text, markup)
	}
	return tghelpers.EditOrSendMD(c, text)
}

// historyPage renders one page of transfer history with pagination buttons.
// A full page implies there may be a next one; the API does not expose totals.
func (a *App) historyPage(ctx context.Context, sess session.Session, page int) (string, *tele.ReplyMarkup, error) {
	transfers, err := a.api.Transfers(ctx, sess.AccessToken, page, historyPageSize)
	if err != nil {
		return "", nil, err
	}

	text := historyText(transfers, page)

	var nav []keyboard.InlineBtn
	if page > 1 {
		nav = append(nav, keyboard.InlineBtn{Text: "⬅️ Newer", Unique: cbHistoryPage, Data: strconv.Itoa(page - 1)})
	}
	if len(transfers) == historyPageSize {
		nav = append(nav, keyboard.InlineBtn{Text: "Older ➡️", Unique: cbHistoryPage, Data: strconv.Itoa(page + 1)})
	}
	if len(nav) == 0 {
		return text, nil, nil
	}
	return text, keyboard.InlineButtonsNPerRow(nav, 2), nil
}

func (a *App) cmdSend(c tele.Context) error {
	return a.startFlow(c, flows.FlowSendEmail)
}

func (a *App) cmdSendWallet(c tele.Context) error {
	return a.startFlow(c, flows.FlowSendWallet)
}

func (a *App) cmdWithdraw(c tele.Context) error {
	return a.startFlow(c, flows.FlowWithdraw)
}

func (a *App) cmdBatchSend(c tele.Context) error {
	return a.startFlow(c, flows.FlowBatchSend)
}

func (a *App) cmdCancel(c tele.Context) error {
	chatID := chatIDOf(c)
	if !a.flows.InProgress(chatID) {
		return tghelpers.SendText(c, "Nothing to cancel.")
	}
	a.flows.Cancel(chatID)
	return tghelpers.SendText(c, "Cancelled.", &tele.SendOptions{ReplyMarkup: mainMenu()})
}

// cmdDashboard aggregates profile, balances, and recent transfers in
// parallel. A failed section degrades to an inline notice instead of
// failing the whole view.
func (a *App) cmdDashboard(c tele.Context) error {
	return a.withProgress(c, "/dashboard", "Building your dashboard...", func(ctx context.Context, sess session.Session) (string, *tele.ReplyMarkup, error) {
		var (
			wg sync.WaitGroup

			user    copperx.User
			userErr error

			balances    []copperx.WalletBalance
			balancesErr error

			transfers    []copperx.Transfer
			transfersErr error
		)

		wg.Add(3)
		go func() {
			defer wg.Done()
			user, userErr = a.api.Profile(ctx, sess.AccessToken, sess.OrganizationID)
		}()
		go func() {
			defer wg.Done()
			balances, balancesErr = a.api.WalletBalances(ctx, sess.AccessToken)
		}()
		go func() {
			defer wg.Done()
			transfers, transfersErr = a.api.Transfers(ctx, sess.AccessToken, 1, 5)
		}()
		wg.Wait()

		// All sections unauthorized means the token is gone for good.
		if copperx.IsUnauthorized(userErr) && copperx.IsUnauthorized(balancesErr) {
			return "", nil, userErr
		}

		var b strings.Builder
		b.WriteString("📊 Dashboard\n\n")

		if userErr != nil {
			b.WriteString("👤 Profile unavailable: " + copperx.UserMessage(userErr) + "\n\n")
		} else {
			fmt.Fprintf(&b, "👤 %s (%s)\n\n", displayName(user), user.Email)
		}

		if balancesErr != nil {
			b.WriteString("💰 Balances unavailable: " + copperx.UserMessage(balancesErr) + "\n\n")
		} else {
			b.WriteString(balanceText(balances, sess.DefaultWalletID) + "\n\n")
		}

		if transfersErr != nil {
			b.WriteString("📜 History unavailable: " + copperx.UserMessage(transfersErr))
		} else {
			b.WriteString(historyText(transfers, 1))
		}

		fmt.Fprintf(&b, "\n\npayoutbot %s", buildinfo.Version)
		return strings.TrimRight(b.String(), "\n"), nil, nil
	})
}

func (a *App) cbRetry(c tele.Context) error {
	command := callbacks.CallbackPayload(c)
	if _, cmd, ok := a.registry.LookupCommand(command); ok && cmd.Handler != nil {
		return cmd.Handler(c)
	}
	return tghelpers.SendText(c, "Nothing to retry.")
}

func displayName(u copperx.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

func walletLabel(w copperx.Wallet) string {
	if w.Name != "" {
		return w.Name
	}
	label := format.Network(w.Network.String())
	if addr := w.WalletAddress.String(); addr != "" {
		label += " " + format.WalletAddress(addr)
	}
	return label
}

func profileText(u copperx.User) string {
	var b strings.Builder
	b.WriteString("👤 Profile\n\n")
	fmt.Fprintf(&b, "Name: %s\n", displayName(u))
	fmt.Fprintf(&b, "Email: %s\n", u.Email)
	if u.Role != "" {
		fmt.Fprintf(&b, "Role: %s\n", u.Role)
	}
	if u.Status != "" {
		fmt.Fprintf(&b, "Status: %s\n", u.Status)
	}
	if u.OrganizationID != "" {
		fmt.Fprintf(&b, "Organization: %s\n", u.OrganizationID)
	}
	return strings.TrimRight(b.String(), "\n")
}

func kycText(records []copperx.KYC) string {
	if len(records) == 0 {
		return "🪪 No KYC records found.\nComplete verification in the Copperx web app to unlock transfers."
	}
	latest := records[0]
	var b strings.Builder
	b.WriteString("🪪 KYC status\n\n")
	fmt.Fprintf(&b, "Status: %s\n", format.KYCStatus(latest.Status))
	if latest.Type != "" {
		fmt.Fprintf(&b, "Type: %s\n", latest.Type)
	}
	fmt.Fprintf(&b, "Updated: %s", format.DateString(latest.UpdatedAt))
	return b.String()
}

func balanceText(balances []copperx.WalletBalance, defaultWalletID string) string {
	if len(balances) == 0 {
		return "💰 You have no wallet balances yet.\nUse /deposit to fund your account."
	}
	var b strings.Builder
	b.WriteString("💰 Balances\n\n")
	for _, bal := range balances {
		marker := "•"
		if defaultWalletID != "" && bal.WalletID == defaultWalletID {
			marker = "⭐"
		}
		symbol := bal.Symbol
		if symbol == "" {
			symbol = "USDC"
		}
		fmt.Fprintf(&b, "%s %s: %s %s\n", marker, format.Network(bal.Network.String()), format.Amount(bal.Balance.String()), symbol)
	}
	return strings.TrimRight(b.String(), "\n")
}

func depositText(accounts []copperx.DepositAccount) string {
	if len(accounts) == 0 {
		return "💵 No deposit addresses available yet."
	}
	var b strings.Builder
	b.WriteString("💵 Deposit addresses\n\n")
	for _, acc := range accounts {
		fmt.Fprintf(&b, "%s:\n%s\n\n", format.Network(acc.Network.String()), acc.Address.String())
	}
	b.WriteString("Send only USDC on the matching network.")
	return b.String()
}

func historyText(transfers []copperx.Transfer, page int) string {
	if len(transfers) == 0 {
		if page > 1 {
			return "📜 No more transfers."
		}
		return "📜 No transfers yet."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📜 Transfers (page %d)\n\n", page)
	for _, tr := range transfers {
		fmt.Fprintf(&b, "%s %s %s — %s\n",
			format.TransferType(tr.Type),
			format.USDC(tr.Amount.String()),
			format.TransferStatus(tr.Status),
			format.DateString(tr.CreatedAt),
		)
		if dest := transferDestination(tr); dest != "" {
			fmt.Fprintf(&b, "   → %s\n", dest)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func transferDestination(tr copperx.Transfer) string {
	switch {
	case tr.DestinationEmail != "":
		return tr.DestinationEmail
	case tr.DestinationWalletAddress != "":
		return format.WalletAddress(tr.DestinationWalletAddress)
	case tr.DestinationPayeeID != "":
		return "bank payee"
	}
	return ""
}
