package gateway

import (
	"context"
	"fmt"
	"log"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/rahul/karya/internal/agent"
)

// TelegramGateway turns each incoming message into a goal and replies with
// the deliverable.
type TelegramGateway struct {
	Bot   *tgbotapi.BotAPI
	Brain agent.Brain
	ctx   context.Context
}

func NewTelegramGateway(ctx context.Context, token string, brain agent.Brain) (*TelegramGateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect telegram bot")
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	return &TelegramGateway{
		Bot:   bot,
		Brain: brain,
		ctx:   ctx,
	}, nil
}

func (tg *TelegramGateway) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := tg.Bot.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil || update.Message.Text == "" {
			continue
		}

		log.Printf("[%s] %s", update.Message.From.UserName, update.Message.Text)

		chatID := strconv.FormatInt(update.Message.Chat.ID, 10)
		go tg.handle(chatID, update.Message.Text)
	}
	return nil
}

func (tg *TelegramGateway) handle(chatID, goal string) {
	response, err := tg.Brain.Think(tg.ctx, chatID, goal)
	if err != nil {
		log.Printf("Error running goal for chat %s: %v", chatID, err)
		response = fallbackReply
	}
	if err := tg.Send(chatID, response); err != nil {
		log.Printf("Failed to reply to chat %s: %v", chatID, err)
	}
}

func (tg *TelegramGateway) Send(chatID string, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid chat ID: %s", chatID)
	}

	for _, chunk := range Chunk(text, TelegramMaxMessage) {
		msg := tgbotapi.NewMessage(id, chunk)
		if _, err := tg.Bot.Send(msg); err != nil {
			return goerr.Wrap(err, "failed to send telegram message", goerr.V("chat_id", chatID))
		}
	}
	return nil
}

func (tg *TelegramGateway) Stop() error {
	tg.Bot.StopReceivingUpdates()
	return nil
}
