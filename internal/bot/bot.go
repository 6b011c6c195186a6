package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"taskcal/internal/calendar"
	"taskcal/internal/model"
	"taskcal/internal/repository"
	"taskcal/internal/service"
)

const cbUnschedulePrefix = "unschedule:"

const (
	menuLabelCalendar    = "📅 Calendar"
	menuLabelAgenda      = "📋 Agenda"
	menuLabelUnscheduled = "📥 Unscheduled"
	menuLabelHelp        = "ℹ️ Help"
)

// sender is the part of tgbotapi.BotAPI the bot uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Deps are the services the bot calls into.
type Deps struct {
	Users     *repository.UserRepository
	Occupancy *service.OccupancyService
	Calendar  *service.CalendarService
	Agenda    *service.AgendaService
	Location  *time.Location
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api      sender
	botAPI   *tgbotapi.BotAPI
	deps     Deps
	now      func() time.Time
	sessions map[int64]*service.Session
	mu       sync.Mutex
}

func New(token string, deps Deps) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	b := newBot(api, deps)
	b.botAPI = api
	return b, nil
}

func newBot(api sender, deps Deps) *Bot {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	return &Bot{
		api:      api,
		deps:     deps,
		now:      time.Now,
		sessions: make(map[int64]*service.Session),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	if b.botAPI == nil {
		return errors.New("bot is not connected")
	}
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.botAPI.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.botAPI.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				log.Printf("handle callback: %v", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				log.Printf("handle message: %v", err)
			}
		}
	}

	b.closeSessions()
	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s %s", msg.From.ID, msg.Command(), msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if handled, err := b.handleMenuAlias(ctx, msg); handled {
		return err
	}

	return b.SendText(msg.Chat.ID, "I did not get that. Try /help for the list of commands.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "link":
		return b.handleLink(ctx, msg)
	case "agenda":
		return b.handleAgenda(ctx, msg)
	case "unscheduled":
		return b.handleUnscheduled(ctx, msg)
	case "calendar":
		return b.handleCalendar(ctx, msg)
	default:
		return b.SendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	switch strings.TrimSpace(msg.Text) {
	case menuLabelCalendar:
		return true, b.handleCalendar(ctx, msg)
	case menuLabelAgenda:
		return true, b.handleAgenda(ctx, msg)
	case menuLabelUnscheduled:
		return true, b.handleUnscheduled(ctx, msg)
	case menuLabelHelp:
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}

	text := fmt.Sprintf("👋 Hi, %s!\n<b>I keep your task calendar in your pocket.</b>\n\n", escape(name))
	if user, err := b.deps.Users.FindByTelegramID(ctx, msg.From.ID); err == nil {
		text += fmt.Sprintf("This chat is linked to <b>%s</b> (%s).\n", escape(user.Name), user.Role)
	} else {
		text += "Link this chat first: /link &lt;user-id&gt;\n"
	}
	text += "\nSee /help for commands."
	return b.SendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Commands</b>\n" +
		"• /link &lt;user-id&gt; — link this chat to your account\n" +
		"• /agenda — the coming days of your calendar\n" +
		"• /unscheduled — tasks not on your calendar yet\n" +
		"• /calendar — scheduled tasks, with a button to take each off the calendar\n" +
		"• /help — this message"
	return b.SendText(msg.Chat.ID, text)
}

func (b *Bot) handleLink(ctx context.Context, msg *tgbotapi.Message) error {
	userID := strings.TrimSpace(msg.CommandArguments())
	if userID == "" {
		return b.SendText(msg.Chat.ID, "Give your user id: /link 3f1c…")
	}
	user, err := b.deps.Users.LinkTelegram(ctx, userID, msg.From.ID)
	if err != nil {
		if errors.Is(err, calendar.ErrNotFound) {
			return b.SendText(msg.Chat.ID, "No user with that id.")
		}
		return b.SendText(msg.Chat.ID, "Could not link the chat: "+escape(err.Error()))
	}
	b.dropSession(msg.Chat.ID)
	return b.SendText(msg.Chat.ID, fmt.Sprintf("✅ Linked to <b>%s</b>. Daily agendas will arrive here.", escape(user.Name)))
}

func (b *Bot) handleAgenda(ctx context.Context, msg *tgbotapi.Message) error {
	user, ok, err := b.linkedUser(ctx, msg)
	if !ok {
		return err
	}
	text, err := b.deps.Agenda.Summary(ctx, user.ID, b.now().In(b.deps.Location))
	if err != nil {
		return b.SendText(msg.Chat.ID, "Could not build the agenda: "+describeError(err))
	}
	return b.SendText(msg.Chat.ID, text)
}

func (b *Bot) handleUnscheduled(ctx context.Context, msg *tgbotapi.Message) error {
	user, ok, err := b.linkedUser(ctx, msg)
	if !ok {
		return err
	}
	_, tasks, err := b.deps.Calendar.Unscheduled(ctx, user.ID)
	if err != nil {
		return b.SendText(msg.Chat.ID, "Could not load tasks: "+describeError(err))
	}
	if len(tasks) == 0 {
		return b.SendText(msg.Chat.ID, "📥 Everything is on the calendar.")
	}

	var builder strings.Builder
	builder.WriteString("📥 <b>Not on the calendar</b>\n\n")
	for _, task := range tasks {
		builder.WriteString(formatTask(task, b.now().In(b.deps.Location)))
	}
	return b.SendText(msg.Chat.ID, strings.TrimSpace(builder.String()))
}

// handleCalendar opens a fresh session for the chat and lists its
// scheduled tasks with a remove button each.
func (b *Bot) handleCalendar(ctx context.Context, msg *tgbotapi.Message) error {
	user, ok, err := b.linkedUser(ctx, msg)
	if !ok {
		return err
	}
	sess, err := b.deps.Occupancy.OpenSession(ctx, user.ID)
	if err != nil {
		return b.SendText(msg.Chat.ID, "Could not load the calendar: "+describeError(err))
	}
	b.setSession(msg.Chat.ID, sess)
	return b.sendCalendar(msg.Chat.ID, sess)
}

func (b *Bot) sendCalendar(chatID int64, sess *service.Session) error {
	now := b.now().In(b.deps.Location)
	events := sess.Events(now)
	if len(events) == 0 {
		return b.SendText(chatID, "📅 Nothing on your calendar. See /unscheduled.")
	}

	var builder strings.Builder
	builder.WriteString("📅 <b>Your calendar</b>\n\n")
	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, ev := range events {
		te, ok := ev.(calendar.TaskEvent)
		if !ok {
			continue
		}
		builder.WriteString(formatEvent(te))
		if te.Editable {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("🗑 Remove · "+shortTitle(te.Task.Title, 24), cbUnschedulePrefix+te.Task.ID),
			))
		}
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ParseMode = tgbotapi.ModeHTML
	if len(buttons) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	}
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("callback ack: %v", err)
	}

	if !strings.HasPrefix(cb.Data, cbUnschedulePrefix) {
		return nil
	}
	taskID := strings.TrimPrefix(cb.Data, cbUnschedulePrefix)
	chatID := cb.Message.Chat.ID
	log.Printf("[info] callback unschedule user=%d task=%s", cb.From.ID, taskID)

	sess := b.session(chatID)
	if sess == nil {
		return b.SendText(chatID, "This list is out of date. Open /calendar again.")
	}
	task, err := sess.Unschedule(ctx, taskID)
	if err != nil {
		return b.SendText(chatID, "Could not remove the task: "+describeError(err))
	}
	if err := b.SendText(chatID, fmt.Sprintf("🗑 \"%s\" is off the calendar.", escape(task.Title))); err != nil {
		return err
	}
	return b.sendCalendar(chatID, sess)
}

// SendText sends an HTML message with the main menu keyboard.
func (b *Bot) SendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

// linkedUser resolves the account bound to the chat. When there is none
// it tells the user how to link and reports ok=false.
func (b *Bot) linkedUser(ctx context.Context, msg *tgbotapi.Message) (*model.User, bool, error) {
	user, err := b.deps.Users.FindByTelegramID(ctx, msg.From.ID)
	if err == nil {
		return user, true, nil
	}
	if errors.Is(err, calendar.ErrNotFound) {
		return nil, false, b.SendText(msg.Chat.ID, "This chat is not linked yet. Use /link &lt;user-id&gt;.")
	}
	return nil, false, b.SendText(msg.Chat.ID, "Could not look up your account: "+describeError(err))
}

func (b *Bot) session(chatID int64) *service.Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessions[chatID]
}

// setSession replaces the chat's session. The old board is closed so
// answers to its pending changes are ignored.
func (b *Bot) setSession(chatID int64, sess *service.Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if old, ok := b.sessions[chatID]; ok {
		old.Close()
	}
	b.sessions[chatID] = sess
}

func (b *Bot) dropSession(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if old, ok := b.sessions[chatID]; ok {
		old.Close()
		delete(b.sessions, chatID)
	}
}

func (b *Bot) closeSessions() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sess := range b.sessions {
		sess.Close()
		delete(b.sessions, id)
	}
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelCalendar),
			tgbotapi.NewKeyboardButton(menuLabelAgenda),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelUnscheduled),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func describeError(err error) string {
	switch {
	case errors.Is(err, service.ErrMutationInFlight):
		return "the previous change is still being saved."
	case errors.Is(err, calendar.ErrTaskDone):
		return "the task is done and can no longer move."
	}
	switch calendar.Kind(err) {
	case "unauthorized":
		return "you are not allowed to change this task."
	case "not_found":
		return "the task no longer exists."
	case "transient":
		return "the server is unavailable, try again later."
	case "invalid_date":
		return "the dates are not valid."
	default:
		return escape(err.Error())
	}
}

func escape(s string) string {
	return html.EscapeString(s)
}

func shortTitle(title string, maxLen int) string {
	clean := strings.Join(strings.Fields(title), " ")
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func formatEvent(ev calendar.TaskEvent) string {
	icon := "📌"
	if ev.Task.IsDone() {
		icon = "✅"
	}
	last := ev.End.AddDate(0, 0, -1)
	span := ev.Start.Format("Mon 02 Jan")
	if last.After(ev.Start) {
		span += " – " + last.Format("Mon 02 Jan")
	}
	return fmt.Sprintf("%s %s\n   🗓 %s\n", icon, escape(strings.TrimSpace(ev.Task.Title)), span)
}

func formatTask(task model.Task, now time.Time) string {
	var sb strings.Builder

	icon := "🟢"
	if task.Deadline != nil {
		d := task.Deadline.In(now.Location())
		switch {
		case now.After(d):
			icon = "⚠️"
		case d.Sub(now) <= 48*time.Hour:
			icon = "⏳"
		}
	}
	sb.WriteString(fmt.Sprintf("%s %s", icon, escape(strings.TrimSpace(task.Title))))

	switch {
	case task.StartDate != nil && task.Deadline != nil:
		sb.WriteString(fmt.Sprintf("\n   ⏰ %s → %s", task.StartDate.Format("2006-01-02"), task.Deadline.Format("2006-01-02")))
	case task.Deadline != nil:
		sb.WriteString(fmt.Sprintf("\n   ⏰ due %s", task.Deadline.Format("2006-01-02")))
	case task.StartDate != nil:
		sb.WriteString(fmt.Sprintf("\n   ⏰ from %s", task.StartDate.Format("2006-01-02")))
	}
	if task.Description != "" {
		sb.WriteString(fmt.Sprintf("\n   📝 %s", escape(strings.TrimSpace(task.Description))))
	}
	sb.WriteByte('\n')
	return sb.String()
}
