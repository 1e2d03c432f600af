package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"chore-tracker/internal/model"
	"chore-tracker/internal/repository"
	"chore-tracker/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageLink
	stageTitle
	stageDescription
	stageFrequency
	stagePriority
	stageAssignment
)

const (
	cbCompletePrefix = "complete:"
	cbUndoPrefix     = "undo:"
)

const (
	btnSkip         = "⏭️ Пропустить"
	btnConfirm      = "✅ Подтвердить"
	btnCancel       = "↩️ Отмена"
	btnCancelDialog = "⏪ Отменить ввод"
	btnWeekly       = "Каждую неделю"
	btnMonthly      = "Каждый месяц"
	btnHigh         = "🔴 Важно"
	btnMedium       = "🟡 Обычное"
	btnLow          = "🟢 Не срочно"
	btnEveryone     = "Все помощники"
	menuLabelNew    = "➕ Новое дело"
	menuLabelTasks  = "📋 Дела"
	menuLabelReport = "🏠 Отчёт"
	menuLabelHelp   = "ℹ️ Помощь"
)

var statusIcons = map[model.Status]string{
	model.StatusOverdue:  "⚠️",
	model.StatusDueToday: "⏰",
	model.StatusUpcoming: "⏳",
	model.StatusOK:       "🟢",
}

var statusSections = map[model.Status]string{
	model.StatusOverdue:  "⚠️ <b>Просроченные</b>",
	model.StatusDueToday: "⏰ <b>На сегодня</b>",
	model.StatusUpcoming: "⏳ <b>Скоро</b>",
	model.StatusOK:       "🟢 <b>Без спешки</b>",
}

type conversationState struct {
	stage conversationStage
	input service.TaskInput
}

type confirmationRequest struct {
	taskID string
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api           *tgbotapi.BotAPI
	userRepo      *repository.UserRepository
	taskSvc       *service.TaskService
	completionSvc *service.CompletionService
	reminderSvc   *service.ReminderService
	clock         service.Clock
	conversations map[int64]*conversationState
	confirmations map[int64]confirmationRequest
	lastList      map[int64][]string // task ids as last rendered, for /complete N
	mu            sync.Mutex
}

func New(token string, userRepo *repository.UserRepository, taskSvc *service.TaskService, completionSvc *service.CompletionService, reminderSvc *service.ReminderService, clock service.Clock) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	return &Bot{
		api:           api,
		userRepo:      userRepo,
		taskSvc:       taskSvc,
		completionSvc: completionSvc,
		reminderSvc:   reminderSvc,
		clock:         clock,
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]confirmationRequest),
		lastList:      make(map[int64][]string),
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
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

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Диалог отменён.")
	}

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s %s", msg.From.ID, msg.Command(), msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if state := b.getConversation(msg.From.ID); state != nil && state.stage == stageLink {
		return b.handleLinkInput(ctx, msg)
	}

	if handled, err := b.handleMenuAlias(ctx, msg); handled {
		return err
	}

	if pending, ok := b.getConfirmation(msg.From.ID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if b.hasConversation(msg.From.ID) {
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "Я не понял сообщение. Набери /tasks для списка дел или /help для подсказок.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "tasks":
		return b.handleListTasks(ctx, msg)
	case "complete":
		return b.handleComplete(ctx, msg)
	case "newtask":
		return b.startNewTaskConversation(ctx, msg)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "report":
		return b.handleReport(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Диалог отменён.")
	default:
		return b.sendText(msg.Chat.ID, "Команда не поддерживается. Загляни в /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.linkedUser(ctx, msg.From.ID)
	if err == nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("👋 Привет, %s! Ты уже в системе. Набери /tasks, чтобы посмотреть дела.", escape(user.Name)))
	}

	b.setConversation(msg.From.ID, &conversationState{stage: stageLink})
	return b.sendWithReplyMarkup(msg.Chat.ID,
		"👋 Привет! Это семейный трекер домашних дел.\n"+
			"Чтобы войти, отправь своё имя и PIN через пробел, например: <code>Маша 1234</code>",
		cancelKeyboard())
}

func (b *Bot) handleLinkInput(ctx context.Context, msg *tgbotapi.Message) error {
	fields := strings.Fields(strings.TrimSpace(msg.Text))
	if len(fields) < 2 {
		return b.sendWithReplyMarkup(msg.Chat.ID, "Нужно имя и PIN через пробел, например: <code>Маша 1234</code>", cancelKeyboard())
	}

	name := strings.Join(fields[:len(fields)-1], " ")
	pin := fields[len(fields)-1]

	user, err := b.userRepo.Authenticate(ctx, name, pin)
	if err != nil {
		log.Printf("[info] failed login attempt from %d as %q", msg.From.ID, name)
		return b.sendWithReplyMarkup(msg.Chat.ID, "Не нашёл такого члена семьи или PIN не подходит. Попробуй ещё раз.", cancelKeyboard())
	}

	if err := b.userRepo.LinkTelegram(ctx, user, msg.From.ID); err != nil {
		return err
	}
	b.clearConversation(msg.From.ID)

	log.Printf("[info] telegram %d linked to member %s (%s)", msg.From.ID, user.ID, user.Role)
	text := fmt.Sprintf("✅ Готово, %s! Ты вошёл как <b>%s</b>.\n\nКоманды:\n"+
		"• /tasks — список дел\n"+
		"• /complete &lt;номер&gt; — отметить дело сделанным\n"+
		"• /report — сводка по дому\n"+
		"• /help — подсказки",
		escape(user.Name), roleLabel(user.Role))
	if user.Role == model.RoleOwner {
		text += "\n• /newtask — добавить дело\n• /delete &lt;номер&gt; — удалить дело"
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Подсказки</b>\n" +
		"• /tasks — дела по статусам, с кнопками «сделано»\n" +
		"• /complete &lt;номер&gt; [заметка] — отметить дело по номеру из списка\n" +
		"• /report — сводка по дому\n" +
		"• /newtask — добавить дело (только владелец)\n" +
		"• /delete &lt;номер&gt; — удалить дело (только владелец)\n" +
		"• /cancel — отменить текущий ввод\n\n" +
		"После отметки «сделано» есть 5 минут, чтобы отменить её кнопкой."
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleReport(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.requireUser(ctx, msg.Chat.ID, msg.From.ID)
	if err != nil || user == nil {
		return err
	}
	text, err := b.reminderSvc.DailySummary(ctx, *user)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось сформировать отчёт: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleListTasks(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.requireUser(ctx, msg.Chat.ID, msg.From.ID)
	if err != nil || user == nil {
		return err
	}
	return b.sendTaskList(ctx, msg.Chat.ID, user)
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64, user *model.User) error {
	tasks, err := b.taskSvc.ListActive(ctx)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось получить дела: %s", escape(err.Error())))
	}

	visible := service.FilterTasks(tasks, service.TaskFilter{Viewer: user, ActiveOnly: true})
	service.SortTasksByStatus(visible)
	groups := service.GroupTasksByStatus(visible)

	if len(visible) == 0 {
		b.setLastList(chatID, nil)
		return b.sendText(chatID, "Дел нет. Можно отдыхать 🙂")
	}

	now := b.clock.Now()
	ids := make([]string, 0, len(visible))
	index := make(map[string]int, len(visible))
	for _, task := range visible {
		ids = append(ids, task.ID)
		index[task.ID] = len(ids)
	}
	b.setLastList(chatID, ids)

	var builder strings.Builder
	builder.WriteString("📋 <b>Домашние дела</b>\n")
	builder.WriteString("Нажми на кнопку, чтобы отметить дело сделанным.\n\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, status := range service.StatusOrder {
		section := groups[status]
		if len(section) == 0 {
			continue
		}
		builder.WriteString(statusSections[status])
		builder.WriteByte('\n')
		for _, task := range section {
			n := index[task.ID]
			builder.WriteString(formatTaskEntry(task, n, now))
			buttons = append(buttons, []tgbotapi.InlineKeyboardButton{
				tgbotapi.NewInlineKeyboardButtonData(
					fmt.Sprintf("✅ #%d · %s", n, shortTitle(task.Title, 24)),
					cbCompletePrefix+task.ID,
				),
			})
		}
		builder.WriteByte('\n')
	}

	out := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	out.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(out)
	return err
}

func (b *Bot) handleComplete(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.requireUser(ctx, msg.Chat.ID, msg.From.ID)
	if err != nil || user == nil {
		return err
	}

	args := strings.Fields(strings.TrimSpace(msg.CommandArguments()))
	if len(args) == 0 {
		return b.sendText(msg.Chat.ID, "Укажи номер дела из списка /tasks: например, /complete 2")
	}

	taskID, ok := b.taskIDByNumber(msg.Chat.ID, args[0])
	if !ok {
		return b.sendText(msg.Chat.ID, "Не нашёл такой номер. Сначала открой список: /tasks")
	}

	note := strings.TrimSpace(strings.Join(args[1:], " "))
	return b.completeTask(ctx, msg.Chat.ID, user, taskID, note)
}

func (b *Bot) completeTask(ctx context.Context, chatID int64, user *model.User, taskID, note string) error {
	task, err := b.taskSvc.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return b.sendText(chatID, "Дело не найдено или уже удалено.")
		}
		return b.sendText(chatID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
	}
	if !task.VisibleTo(*user) {
		return b.sendText(chatID, "Это дело не назначено тебе.")
	}

	task, entry, err := b.completionSvc.RecordCompletion(ctx, taskID, *user, note, nil)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось отметить дело: %s", escape(err.Error())))
	}

	remaining := int(entry.UndoUntil.Sub(b.clock.Now()).Seconds())
	text := fmt.Sprintf("✅ Дело «%s» сделано!", escape(normalizeTitle(task.Title)))
	if task.NextDueAt != nil {
		text += fmt.Sprintf("\nСледующий раз: %s", task.NextDueAt.Format("2006-01-02"))
	}

	out := tgbotapi.NewMessage(chatID, text)
	out.ParseMode = tgbotapi.ModeHTML
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("↩️ Отменить (%s)", formatCountdown(remaining)),
				cbUndoPrefix+task.ID+":"+entry.ID,
			),
		),
	)
	_, err = b.api.Send(out)
	return err
}

func (b *Bot) undoCompletion(ctx context.Context, chatID int64, user *model.User, taskID, logID string) error {
	task, err := b.completionSvc.UndoCompletion(ctx, taskID, logID)
	switch {
	case errors.Is(err, service.ErrStaleUndo):
		return b.sendText(chatID, "⌛️ Время для отмены вышло: отметку уже нельзя убрать.")
	case errors.Is(err, service.ErrNotFound):
		return b.sendText(chatID, "Отметка не найдена — возможно, уже отменена.")
	case err != nil:
		return b.sendText(chatID, fmt.Sprintf("Не удалось отменить: %s", escape(err.Error())))
	}

	if err := b.sendText(chatID, fmt.Sprintf("↩️ Отметка снята: дело «%s» снова в списке.", escape(normalizeTitle(task.Title)))); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, user)
}

func (b *Bot) startNewTaskConversation(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.requireUser(ctx, msg.Chat.ID, msg.From.ID)
	if err != nil || user == nil {
		return err
	}
	if user.Role != model.RoleOwner {
		return b.sendText(msg.Chat.ID, "Добавлять дела может только владелец.")
	}

	log.Printf("[info] start new task conversation user=%s", user.ID)
	b.setConversation(msg.From.ID, &conversationState{stage: stageTitle})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 Создаём новое дело.\n<b>Шаг 1:</b> как его назвать?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageTitle:
		state.input.Title = text
		state.stage = stageDescription
		return b.sendWithReplyMarkup(msg.Chat.ID, "✏️ Добавь короткое описание (или нажми «Пропустить»).", skipKeyboard())
	case stageDescription:
		if !isSkipInput(text) {
			state.input.Description = text
		}
		state.stage = stageFrequency
		return b.sendWithReplyMarkup(msg.Chat.ID, "🔁 Как часто повторять дело?", frequencyKeyboard())
	case stageFrequency:
		switch strings.ToLower(text) {
		case strings.ToLower(btnWeekly), "weekly", "неделя":
			state.input.Frequency = model.FrequencyWeekly
		case strings.ToLower(btnMonthly), "monthly", "месяц":
			state.input.Frequency = model.FrequencyMonthly
		default:
			return b.sendWithReplyMarkup(msg.Chat.ID, "Выбери «Каждую неделю» или «Каждый месяц».", frequencyKeyboard())
		}
		state.stage = stagePriority
		return b.sendWithReplyMarkup(msg.Chat.ID, "❗️ Насколько это важно?", priorityKeyboard())
	case stagePriority:
		switch strings.ToLower(text) {
		case strings.ToLower(btnHigh), "важно":
			state.input.Priority = model.PriorityHigh
		case strings.ToLower(btnLow), "не срочно":
			state.input.Priority = model.PriorityLow
		case strings.ToLower(btnMedium), "обычное":
			state.input.Priority = model.PriorityMedium
		default:
			return b.sendWithReplyMarkup(msg.Chat.ID, "Выбери важность кнопкой.", priorityKeyboard())
		}
		state.stage = stageAssignment
		return b.sendWithReplyMarkup(msg.Chat.ID,
			"👥 Кому назначить? Нажми «Все помощники» или перечисли имена через запятую.",
			b.assignmentKeyboard(ctx))
	case stageAssignment:
		if strings.EqualFold(text, btnEveryone) {
			state.input.AssignedToAll = true
			state.input.Assignees = nil
		} else {
			ids, unknown, err := b.resolveHelpers(ctx, text)
			if err != nil {
				return err
			}
			if len(unknown) > 0 {
				return b.sendWithReplyMarkup(msg.Chat.ID,
					fmt.Sprintf("Не нашёл помощников: %s. Попробуй ещё раз.", escape(strings.Join(unknown, ", "))),
					b.assignmentKeyboard(ctx))
			}
			if len(ids) == 0 {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Нужен хотя бы один помощник или кнопка «Все помощники».", b.assignmentKeyboard(ctx))
			}
			state.input.AssignedToAll = false
			state.input.Assignees = ids
		}
		err := b.finishTaskCreation(ctx, msg.Chat.ID, msg.From.ID, state.input)
		b.clearConversation(msg.From.ID)
		return err
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Диалог сброшен. Попробуй ещё раз через /newtask.")
	}
}

func (b *Bot) finishTaskCreation(ctx context.Context, chatID, telegramID int64, input service.TaskInput) error {
	user, err := b.requireUser(ctx, chatID, telegramID)
	if err != nil || user == nil {
		return err
	}

	task, err := b.taskSvc.CreateTask(ctx, input)
	if err != nil {
		if errors.Is(err, service.ErrInvalidAssignment) {
			return b.sendTextWithRemove(chatID, "Назначение должно быть либо «все помощники», либо конкретные имена.")
		}
		return b.sendTextWithRemove(chatID, fmt.Sprintf("Не удалось сохранить дело: %s", escape(err.Error())))
	}

	log.Printf("[info] task created id=%s freq=%s priority=%s", task.ID, task.Frequency, task.Priority)

	var summary strings.Builder
	summary.WriteString("✅ <b>Дело сохранено</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>Название:</b> %s\n", escape(normalizeTitle(task.Title))))
	if task.Description != "" {
		summary.WriteString(fmt.Sprintf("• <b>Описание:</b> %s\n", escape(task.Description)))
	}
	summary.WriteString(fmt.Sprintf("• <b>Повтор:</b> %s\n", frequencyLabel(task.Frequency)))
	summary.WriteString(fmt.Sprintf("• <b>Важность:</b> %s\n", priorityTitle(task.Priority)))
	if task.NextDueAt != nil {
		summary.WriteString(fmt.Sprintf("• <b>Срок:</b> %s\n", task.NextDueAt.Format("2006-01-02")))
	}

	if err := b.sendTextWithRemove(chatID, strings.TrimSpace(summary.String())); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, user)
}

// handleDelete удаляет дело вместе со всей историей выполнений.
func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.requireUser(ctx, msg.Chat.ID, msg.From.ID)
	if err != nil || user == nil {
		return err
	}
	if user.Role != model.RoleOwner {
		return b.sendText(msg.Chat.ID, "Удалять дела может только владелец.")
	}

	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return b.sendText(msg.Chat.ID, "Укажи номер дела из списка /tasks: например, /delete 2")
	}

	taskID, ok := b.taskIDByNumber(msg.Chat.ID, args)
	if !ok {
		return b.sendText(msg.Chat.ID, "Не нашёл такой номер. Сначала открой список: /tasks")
	}

	task, err := b.taskSvc.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return b.sendText(msg.Chat.ID, "Дело не найдено.")
		}
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
	}

	b.setConfirmation(msg.From.ID, confirmationRequest{taskID: task.ID})
	text := fmt.Sprintf("Удалить дело «%s» вместе с историей выполнений?", escape(normalizeTitle(task.Title)))
	return b.sendWithReplyMarkup(msg.Chat.ID, text, confirmKeyboard())
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.deleteTaskAndRefresh(ctx, msg.Chat.ID, msg.From.ID, req.taskID)
	case isCancelInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.sendTextWithRemove(msg.Chat.ID, "Удаление отменено.")
	default:
		return b.sendWithReplyMarkup(msg.Chat.ID, "Подтверди или отмени удаление дела.", confirmKeyboard())
	}
}

func (b *Bot) deleteTaskAndRefresh(ctx context.Context, chatID, telegramID int64, taskID string) error {
	user, err := b.requireUser(ctx, chatID, telegramID)
	if err != nil || user == nil {
		return err
	}

	task, err := b.taskSvc.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return b.sendTextWithRemove(chatID, "Дело не найдено или уже удалено.")
		}
		return b.sendTextWithRemove(chatID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
	}

	if err := b.taskSvc.DeleteTask(ctx, taskID); err != nil {
		return b.sendTextWithRemove(chatID, fmt.Sprintf("Не удалось удалить дело: %s", escape(err.Error())))
	}

	log.Printf("[info] task deleted id=%s by=%s", taskID, user.ID)
	if err := b.sendTextWithRemove(chatID, fmt.Sprintf("🗑 Дело «%s» удалено.", escape(normalizeTitle(task.Title)))); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, user)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}

	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("callback ack: %v", err)
	}

	user, err := b.requireUser(ctx, cb.Message.Chat.ID, cb.From.ID)
	if err != nil || user == nil {
		return err
	}

	data := cb.Data
	switch {
	case strings.HasPrefix(data, cbCompletePrefix):
		taskID := strings.TrimPrefix(data, cbCompletePrefix)
		log.Printf("[info] callback complete user=%s task=%s", user.ID, taskID)
		return b.completeTask(ctx, cb.Message.Chat.ID, user, taskID, "")
	case strings.HasPrefix(data, cbUndoPrefix):
		parts := strings.SplitN(strings.TrimPrefix(data, cbUndoPrefix), ":", 2)
		if len(parts) != 2 {
			return nil
		}
		log.Printf("[info] callback undo user=%s task=%s log=%s", user.ID, parts[0], parts[1])
		return b.undoCompletion(ctx, cb.Message.Chat.ID, user, parts[0], parts[1])
	default:
		return nil
	}
}

// SendDailyReports sends a personal summary to every linked member.
func (b *Bot) SendDailyReports(ctx context.Context) error {
	users, err := b.userRepo.ListAll(ctx)
	if err != nil {
		return err
	}
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if user.TelegramID == 0 {
			continue
		}
		text, err := b.reminderSvc.DailySummary(ctx, user)
		if err != nil {
			log.Printf("build summary for user %s: %v", user.ID, err)
			continue
		}
		if err := b.sendText(user.TelegramID, text); err != nil {
			log.Printf("send summary to %s: %v", user.ID, err)
		}
	}
	return nil
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelNew):
		return true, b.startNewTaskConversation(ctx, msg)
	case strings.ToLower(menuLabelTasks):
		return true, b.handleListTasks(ctx, msg)
	case strings.ToLower(menuLabelReport):
		return true, b.handleReport(ctx, msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

// requireUser resolves the linked member for a Telegram account. If nobody is
// linked yet it prompts for login and returns a nil user with nil error.
func (b *Bot) requireUser(ctx context.Context, chatID, telegramID int64) (*model.User, error) {
	user, err := b.linkedUser(ctx, telegramID)
	if err != nil {
		b.setConversation(telegramID, &conversationState{stage: stageLink})
		return nil, b.sendWithReplyMarkup(chatID,
			"Сначала нужно войти: отправь имя и PIN через пробел, например <code>Маша 1234</code>", cancelKeyboard())
	}
	return user, nil
}

func (b *Bot) linkedUser(ctx context.Context, telegramID int64) (*model.User, error) {
	return b.userRepo.FindByTelegramID(ctx, telegramID)
}

func (b *Bot) resolveHelpers(ctx context.Context, raw string) ([]string, []string, error) {
	helpers, err := b.userRepo.ListHelpers(ctx)
	if err != nil {
		return nil, nil, err
	}
	byName := make(map[string]string, len(helpers))
	for _, helper := range helpers {
		byName[strings.ToLower(helper.Name)] = helper.ID
	}

	var ids, unknown []string
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		if id, ok := byName[strings.ToLower(name)]; ok {
			ids = append(ids, id)
		} else {
			unknown = append(unknown, name)
		}
	}
	return ids, unknown, nil
}

func (b *Bot) assignmentKeyboard(ctx context.Context) tgbotapi.ReplyKeyboardMarkup {
	rows := [][]tgbotapi.KeyboardButton{
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnEveryone)),
	}
	if helpers, err := b.userRepo.ListHelpers(ctx); err == nil {
		var row []tgbotapi.KeyboardButton
		for _, helper := range helpers {
			row = append(row, tgbotapi.NewKeyboardButton(helper.Name))
			if len(row) == 2 {
				rows = append(rows, row)
				row = nil
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancelDialog)))

	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendTextWithRemove(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) setLastList(chatID int64, ids []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastList[chatID] = ids
}

func (b *Bot) taskIDByNumber(chatID int64, raw string) (string, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return "", false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := b.lastList[chatID]
	if n > len(ids) {
		return "", false
	}
	return ids[n-1], true
}

func (b *Bot) getConfirmation(userID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[userID]
	return req, ok
}

func (b *Bot) setConfirmation(userID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[userID] = req
}

func (b *Bot) clearConfirmation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, userID)
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[userID]
	return ok
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

func formatTaskEntry(task model.Task, n int, now time.Time) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s <b>#%d</b> %s\n", statusIcons[task.Status], n, escape(normalizeTitle(task.Title))))

	if task.NextDueAt != nil {
		due := task.NextDueAt.In(now.Location())
		switch task.Status {
		case model.StatusOverdue:
			sb.WriteString(fmt.Sprintf("   ⏰ до %s — <b>просрочено</b>\n", due.Format("2006-01-02")))
		case model.StatusDueToday:
			sb.WriteString("   ⏰ срок сегодня\n")
		default:
			sb.WriteString(fmt.Sprintf("   ⏰ до %s\n", due.Format("2006-01-02")))
		}
	}
	if task.Description != "" {
		sb.WriteString(fmt.Sprintf("   📝 %s\n", escape(task.Description)))
	}
	if len(task.LastCompletions) > 0 {
		last := task.LastCompletions[0].In(now.Location())
		sb.WriteString(fmt.Sprintf("   ✅ Последний раз: %s\n", last.Format("2006-01-02")))
	}
	sb.WriteByte('\n')
	return sb.String()
}

func formatCountdown(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

func frequencyLabel(f model.Frequency) string {
	if f == model.FrequencyMonthly {
		return "каждый месяц"
	}
	return "каждую неделю"
}

func priorityTitle(p model.Priority) string {
	switch p {
	case model.PriorityHigh:
		return "важно"
	case model.PriorityLow:
		return "не срочно"
	default:
		return "обычное"
	}
}

func roleLabel(r model.Role) string {
	if r == model.RoleOwner {
		return "владелец"
	}
	return "помощник"
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func confirmKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnConfirm),
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelTasks),
			tgbotapi.NewKeyboardButton(menuLabelNew),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelReport),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func frequencyKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnWeekly),
			tgbotapi.NewKeyboardButton(btnMonthly),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func priorityKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnHigh),
			tgbotapi.NewKeyboardButton(btnMedium),
			tgbotapi.NewKeyboardButton(btnLow),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func isSkipInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "-" || value == strings.ToLower(btnSkip) || value == "пропустить" || value == "skip"
}

func isConfirmInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnConfirm) || value == "подтвердить" || value == "да"
}

func isCancelInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancel) || value == "отмена"
}

func isCancelDialogInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancelDialog) || value == "отменить ввод" || value == "отмена"
}

func escape(s string) string {
	return html.EscapeString(s)
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
