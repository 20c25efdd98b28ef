package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/arthaus/photoshoot-bot/internal/catalog"
	"github.com/arthaus/photoshoot-bot/internal/config"
	"github.com/arthaus/photoshoot-bot/internal/models"
	"github.com/arthaus/photoshoot-bot/internal/provider"
	"github.com/arthaus/photoshoot-bot/internal/service"
)

const maxSelfies = 3

const (
	callbackStylePrev = "style:prev"
	callbackStyleNext = "style:next"
	callbackStyleMake = "style:make"
	callbackShootGo   = "shoot:go"
	callbackBuyPrefix = "buy:"
)

// ArtifactArchive mirrors storage.Archive; nil means archival is disabled.
type ArtifactArchive interface {
	Store(ctx context.Context, data []byte, contentType string) (string, error)
}

type Bot struct {
	cfg         config.Config
	api         *tgbotapi.BotAPI
	log         *slog.Logger
	accounts    *service.AccountService
	styles      *service.StyleService
	photoshoots *service.PhotoshootService
	payments    *service.PaymentService
	archive     ArtifactArchive
	state       *StateManager
}

func NewBot(cfg config.Config, api *tgbotapi.BotAPI, log *slog.Logger, accounts *service.AccountService, styles *service.StyleService, photoshoots *service.PhotoshootService, payments *service.PaymentService, archive ArtifactArchive) *Bot {
	return &Bot{
		cfg:         cfg,
		api:         api,
		log:         log,
		accounts:    accounts,
		styles:      styles,
		photoshoots: photoshoots,
		payments:    payments,
		archive:     archive,
		state:       NewStateManager(),
	}
}

func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.log.Info("telegram bot started")

	for {
		select {
		case update := <-updates:
			if update.Message != nil {
				b.handleMessage(ctx, update.Message)
			} else if update.CallbackQuery != nil {
				b.handleCallback(ctx, update.CallbackQuery)
			} else if update.PreCheckoutQuery != nil {
				b.answerPreCheckout(update.PreCheckoutQuery)
			}
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.SuccessfulPayment != nil {
		b.handleSuccessfulPayment(ctx, msg)
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	session := b.state.Get(msg.Chat.ID)
	if session.State == StateCollectingSelfies && (len(msg.Photo) > 0 || msg.Document != nil) {
		b.handleSelfie(msg, session)
		return
	}

	b.sendText(msg.Chat.ID, "Нажмите /album, чтобы выбрать стиль фотосессии.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		account, err := b.ensureAccount(ctx, msg)
		if err != nil {
			b.log.Error("ensure account", "err", err)
			return
		}
		text := fmt.Sprintf(
			"Привет! Я делаю профессиональные фотосессии из ваших селфи.\n\n"+
				"Одна фотосессия стоит %d ⭐ или 1 кредит.\n"+
				"Ваш баланс: %d ⭐, кредитов: %d.\n\n"+
				"Команды:\n/album — выбрать стиль и начать\n/balance — баланс\n/buy — купить фотосессии",
			b.cfg.PhotoshootPriceUnits, account.Balance, account.PhotoshootCredits,
		)
		b.sendText(msg.Chat.ID, text)
	case "album":
		if _, err := b.ensureAccount(ctx, msg); err != nil {
			b.log.Error("ensure account", "err", err)
			return
		}
		b.showStyle(ctx, msg.Chat.ID, 0, 0)
	case "balance":
		account, err := b.ensureAccount(ctx, msg)
		if err != nil {
			b.log.Error("ensure account", "err", err)
			return
		}
		covered := 0
		if b.cfg.PhotoshootPriceUnits > 0 {
			covered = account.Balance / b.cfg.PhotoshootPriceUnits
		}
		b.sendText(msg.Chat.ID, fmt.Sprintf("Баланс: %d ⭐ (хватит на %d фотосессий)\nКредиты на фотосессии: %d", account.Balance, covered, account.PhotoshootCredits))
	case "buy":
		if _, err := b.ensureAccount(ctx, msg); err != nil {
			b.log.Error("ensure account", "err", err)
			return
		}
		b.showOffers(msg.Chat.ID)
	case "report":
		b.handleReportCommand(ctx, msg)
	default:
		b.sendText(msg.Chat.ID, "Неизвестная команда. Используйте /album.")
	}
}

// handleReportCommand replies with the rolling 7-day report. Admins only;
// everyone else gets the unknown-command reply so the command stays invisible.
func (b *Bot) handleReportCommand(ctx context.Context, msg *tgbotapi.Message) {
	telegramID := msg.Chat.ID
	if msg.From != nil {
		telegramID = msg.From.ID
	}
	isAdmin, err := b.accounts.IsAdmin(ctx, telegramID)
	if err != nil {
		b.log.Error("check admin", "err", err)
		return
	}
	if !isAdmin {
		b.sendText(msg.Chat.ID, "Неизвестная команда. Используйте /album.")
		return
	}

	const days = 7
	shoots, err := b.photoshoots.Report(ctx, days)
	if err != nil {
		b.log.Error("photoshoot report", "err", err)
		b.sendText(msg.Chat.ID, "Не удалось собрать отчёт.")
		return
	}
	payments, err := b.payments.Report(ctx, days)
	if err != nil {
		b.log.Error("payments report", "err", err)
		b.sendText(msg.Chat.ID, "Не удалось собрать отчёт.")
		return
	}

	b.sendText(msg.Chat.ID, fmt.Sprintf(
		"Отчёт за %d дней:\n\nФотосессии: %d (успешно %d, ошибки %d)\nСписано: %d ⭐ и %d кредитов\n\nОплаты: %d на %d ⭐ (+%d кредитов)",
		days,
		shoots.Total, shoots.Success, shoots.Failed,
		shoots.SumCostUnits, shoots.SumCostCredits,
		payments.Total, payments.SumStars, payments.SumCredits,
	))
}

// showStyle renders one card of the style carousel. Styles wrap around at
// both ends.
func (b *Bot) showStyle(ctx context.Context, chatID int64, index int, messageID int) {
	total, err := b.styles.CountActive(ctx)
	if err != nil {
		b.log.Error("count styles", "err", err)
		b.sendText(chatID, "Не удалось загрузить стили, попробуйте позже.")
		return
	}
	if total == 0 {
		b.sendText(chatID, "Стили пока не настроены. Загляните позже.")
		return
	}

	index = ((index % total) + total) % total
	style, err := b.styles.ByOffset(ctx, index)
	if err != nil || style == nil {
		b.log.Error("load style", "offset", index, "err", err)
		b.sendText(chatID, "Не удалось загрузить стили, попробуйте позже.")
		return
	}

	session := b.state.Get(chatID)
	session.State = StateBrowsingStyles
	session.StyleIndex = index
	session.StyleTitle = style.Title
	session.StylePrompt = style.Prompt
	session.SelfieFileIDs = session.SelfieFileIDs[:0]
	b.state.Set(chatID, session)

	caption := fmt.Sprintf("«%s» (%d/%d)\n\n%s", style.Title, index+1, total, style.Description)
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("◀️", callbackStylePrev),
			tgbotapi.NewInlineKeyboardButtonData("Выбрать ✅", callbackStyleMake),
			tgbotapi.NewInlineKeyboardButtonData("▶️", callbackStyleNext),
		),
	)

	if messageID != 0 {
		edit := tgbotapi.NewEditMessageCaption(chatID, messageID, caption)
		edit.ReplyMarkup = &keyboard
		if _, err := b.api.Send(edit); err == nil {
			return
		}
		// Editing fails when the card was sent as plain text; fall through
		// and send a fresh one.
	}

	if data, err := os.ReadFile(fmt.Sprintf("assets/styles/%s", style.ImageFilename)); err == nil {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: style.ImageFilename, Bytes: data})
		photo.Caption = caption
		photo.ReplyMarkup = keyboard
		if _, err := b.api.Send(photo); err != nil {
			b.log.Error("send style card", "err", err)
		}
		return
	}

	text := tgbotapi.NewMessage(chatID, caption)
	text.ReplyMarkup = keyboard
	if _, err := b.api.Send(text); err != nil {
		b.log.Error("send style card", "err", err)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	chatID := cb.Message.Chat.ID
	session := b.state.Get(chatID)

	switch {
	case cb.Data == callbackStylePrev:
		b.ackCallback(cb.ID, "")
		b.showStyle(ctx, chatID, session.StyleIndex-1, cb.Message.MessageID)
	case cb.Data == callbackStyleNext:
		b.ackCallback(cb.ID, "")
		b.showStyle(ctx, chatID, session.StyleIndex+1, cb.Message.MessageID)
	case cb.Data == callbackStyleMake:
		if session.StyleTitle == "" {
			b.ackCallback(cb.ID, "Сначала выберите стиль")
			return
		}
		session.State = StateCollectingSelfies
		session.SelfieFileIDs = session.SelfieFileIDs[:0]
		b.state.Set(chatID, session)
		b.ackCallback(cb.ID, "Стиль выбран")
		b.sendText(chatID, fmt.Sprintf("Стиль «%s» выбран!\nПришлите от 1 до %d селфи, затем нажмите «Сделать фотосессию».", session.StyleTitle, maxSelfies))
	case cb.Data == callbackShootGo:
		b.ackCallback(cb.ID, "")
		b.startPhotoshoot(ctx, cb.Message.Chat.ID, cb.From, session)
	case strings.HasPrefix(cb.Data, callbackBuyPrefix):
		b.ackCallback(cb.ID, "")
		b.sendInvoice(ctx, chatID, cb.From, strings.TrimPrefix(cb.Data, callbackBuyPrefix))
	default:
		b.ackCallback(cb.ID, "Неизвестный выбор")
	}
}

func (b *Bot) handleSelfie(msg *tgbotapi.Message, session *Session) {
	var fileID string
	switch {
	case len(msg.Photo) > 0:
		fileID = msg.Photo[len(msg.Photo)-1].FileID
	case msg.Document != nil:
		if mt := strings.ToLower(msg.Document.MimeType); mt != "" && !strings.HasPrefix(mt, "image/") {
			b.sendText(msg.Chat.ID, "Это не изображение. Пришлите фото.")
			return
		}
		fileID = msg.Document.FileID
	default:
		return
	}

	if len(session.SelfieFileIDs) >= maxSelfies {
		b.sendText(msg.Chat.ID, fmt.Sprintf("Достаточно! Используются первые %d фото. Нажмите «Сделать фотосессию».", maxSelfies))
		return
	}

	session.SelfieFileIDs = append(session.SelfieFileIDs, fileID)
	b.state.Set(msg.Chat.ID, session)

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Сделать фотосессию 📸", callbackShootGo),
		),
	)
	text := tgbotapi.NewMessage(msg.Chat.ID, fmt.Sprintf("Фото получено (%d/%d). Можно прислать ещё или начать.", len(session.SelfieFileIDs), maxSelfies))
	text.ReplyMarkup = keyboard
	if _, err := b.api.Send(text); err != nil {
		b.log.Error("send selfie ack", "err", err)
	}
}

func (b *Bot) startPhotoshoot(ctx context.Context, chatID int64, from *tgbotapi.User, session *Session) {
	if session.State != StateCollectingSelfies || len(session.SelfieFileIDs) == 0 {
		b.sendText(chatID, "Сначала пришлите хотя бы одно селфи.")
		return
	}

	telegramID := chatID
	username := ""
	if from != nil {
		telegramID = from.ID
		username = from.UserName
	}
	if _, err := b.accounts.Ensure(ctx, telegramID, username); err != nil {
		b.log.Error("ensure account", "err", err)
		return
	}

	style := service.StyleInfo{Title: session.StyleTitle, Prompt: session.StylePrompt}
	selfies := append([]string(nil), session.SelfieFileIDs...)
	b.state.Reset(chatID)

	b.sendText(chatID, "Начинаю фотосессию! Обычно это занимает несколько минут, я пришлю результат сюда.")

	// The render runs for minutes; do not block the update loop on it.
	go func() {
		result, err := b.photoshoots.Generate(ctx, telegramID, style, selfies)
		if err != nil {
			b.reportGenerationFailure(chatID, err)
			return
		}
		b.deliverResult(ctx, chatID, style.Title, result)
	}()
}

func (b *Bot) reportGenerationFailure(chatID int64, err error) {
	b.log.Error("photoshoot failed", "err", err)

	if errors.Is(err, service.ErrInsufficientFunds) {
		b.sendText(chatID, fmt.Sprintf("Недостаточно средств. Фотосессия стоит %d ⭐ или 1 кредит — пополните баланс через /buy.", b.cfg.PhotoshootPriceUnits))
		return
	}

	switch provider.KindOf(err) {
	case provider.KindAuthorization:
		b.sendText(chatID, "Сервис генерации сейчас недоступен (проблема доступа). Мы уже разбираемся — попробуйте позже.")
	case provider.KindResolution:
		b.sendText(chatID, "Выбранное качество изображения временно недоступно. Попробуйте позже.")
	default:
		b.sendText(chatID, "Не получилось сделать фотосессию, попробуйте позже. Если списались средства, напишите в поддержку.")
	}
}

func (b *Bot) deliverResult(ctx context.Context, chatID int64, styleTitle string, result *service.PhotoshootResult) {
	data, err := os.ReadFile(result.Artifact.Path)
	if err != nil {
		b.log.Error("read artifact", "path", result.Artifact.Path, "err", err)
		b.sendText(chatID, "Фотосессия готова, но не удалось отправить файл. Напишите в поддержку.")
		return
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{
		Name:  "photoshoot" + extensionForMime(result.Artifact.Mime),
		Bytes: data,
	})
	photo.Caption = fmt.Sprintf("Ваша фотосессия в стиле «%s» готова! ✨", styleTitle)
	if _, err := b.api.Send(photo); err != nil {
		b.log.Error("send photoshoot", "err", err)
	}

	if b.archive != nil {
		if url, err := b.archive.Store(ctx, data, result.Artifact.Mime); err != nil {
			b.log.Error("archive artifact", "err", err)
		} else {
			b.log.Info("artifact archived", "url", url)
		}
	}
}

func (b *Bot) showOffers(chatID int64) {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, 3)
	for _, offer := range catalog.Offers() {
		label := fmt.Sprintf("%s — %d ⭐", offer.Title, offer.AmountStars)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, callbackBuyPrefix+offer.Code),
		))
	}
	msg := tgbotapi.NewMessage(chatID, "Выберите пакет фотосессий:")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send offers", "err", err)
	}
}

func (b *Bot) sendInvoice(ctx context.Context, chatID int64, from *tgbotapi.User, offerCode string) {
	offer, ok := catalog.OfferByCode(offerCode)
	if !ok {
		b.sendText(chatID, "Этот пакет больше не доступен.")
		return
	}

	telegramID := chatID
	if from != nil {
		telegramID = from.ID
	}

	payment, err := b.payments.CreatePendingPayment(ctx, telegramID, offer.Code)
	if err != nil {
		b.log.Error("create pending payment", "err", err)
		b.sendText(chatID, "Не удалось выставить счёт. Попробуйте позже.")
		return
	}

	// Stars invoices carry no provider token; the currency alone selects XTR.
	invoice := tgbotapi.NewInvoice(
		chatID,
		offer.Title,
		offer.Description,
		payment.Payload,
		"",
		"",
		b.cfg.SettlementCurrency,
		[]tgbotapi.LabeledPrice{{Label: offer.Title, Amount: offer.AmountStars}},
	)
	invoice.SuggestedTipAmounts = []int{}
	if _, err := b.api.Request(invoice); err != nil {
		b.log.Error("send invoice", "err", err)
		b.sendText(chatID, "Не удалось выставить счёт. Попробуйте позже.")
	}
}

func (b *Bot) answerPreCheckout(query *tgbotapi.PreCheckoutQuery) {
	answer := tgbotapi.PreCheckoutConfig{
		PreCheckoutQueryID: query.ID,
		OK:                 true,
	}
	if _, err := b.api.Request(answer); err != nil {
		b.log.Error("answer pre-checkout", "err", err)
	}
}

func (b *Bot) handleSuccessfulPayment(ctx context.Context, msg *tgbotapi.Message) {
	payment := msg.SuccessfulPayment

	settlement, err := b.payments.Settle(ctx, payment.InvoicePayload, payment.TelegramPaymentChargeID, payment.TotalAmount, payment.Currency)
	if err != nil {
		b.log.Error("settle payment", "payload", payment.InvoicePayload, "err", err)
		b.sendText(msg.Chat.ID, "Оплата получена, но зачисление не прошло. Напишите в поддержку — мы всё исправим.")
		return
	}

	if settlement.AlreadySettled {
		b.sendText(msg.Chat.ID, fmt.Sprintf("Эта оплата уже была зачислена. Кредитов на фотосессии: %d.", settlement.Account.PhotoshootCredits))
		return
	}
	b.sendText(msg.Chat.ID, fmt.Sprintf("Оплата получена! +%d фотосессий. Теперь у вас %d кредитов — жмите /album.", settlement.Payment.Credits, settlement.Account.PhotoshootCredits))
	b.notifyAdmins(ctx, settlement)
}

func (b *Bot) notifyAdmins(ctx context.Context, settlement *service.Settlement) {
	ids, err := b.accounts.AdminIDs(ctx)
	if err != nil {
		b.log.Error("list admin ids", "err", err)
		return
	}
	text := fmt.Sprintf("Покупка: %d ⭐ (+%d кредитов), пользователь %d.",
		settlement.Payment.AmountStars, settlement.Payment.Credits, settlement.Payment.TelegramID)
	for _, id := range ids {
		if id == settlement.Payment.TelegramID {
			continue
		}
		b.sendText(id, text)
	}
}

func (b *Bot) ensureAccount(ctx context.Context, msg *tgbotapi.Message) (*models.Account, error) {
	telegramID := msg.Chat.ID
	username := ""
	if msg.From != nil {
		telegramID = msg.From.ID
		username = msg.From.UserName
	}
	return b.accounts.Ensure(ctx, telegramID, username)
}

func (b *Bot) ackCallback(id, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, text)); err != nil {
		b.log.Error("callback ack", "err", err)
	}
}

func (b *Bot) sendText(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send text", "err", err)
	}
}

func extensionForMime(mime string) string {
	switch {
	case strings.Contains(mime, "png"):
		return ".png"
	case strings.Contains(mime, "webp"):
		return ".webp"
	default:
		return ".jpg"
	}
}
