package gateway

import (
	"context"
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramGateway runs one synthesis session per Telegram chat.
type TelegramGateway struct {
	Bot    *tgbotapi.BotAPI
	Engine Conversant
}

func NewTelegramGateway(token string, engine Conversant) (*TelegramGateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	return &TelegramGateway{
		Bot:    bot,
		Engine: engine,
	}, nil
}

func (tg *TelegramGateway) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := tg.Bot.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}

		log.Printf("[%s] %s", update.Message.From.UserName, update.Message.Text)

		ctx := context.Background()
		chatID := fmt.Sprintf("tg-%d", update.Message.Chat.ID)
		res := tg.Engine.HandleTurn(ctx, chatID, update.Message.Text)

		msg := tgbotapi.NewMessage(update.Message.Chat.ID, formatResult(res))
		msg.ParseMode = "Markdown"
		if _, err := tg.Bot.Send(msg); err != nil {
			log.Printf("Error sending to chat %s: %v", chatID, err)
		}
	}
	return nil
}

func (tg *TelegramGateway) Send(chatID string, text string) error {
	id := int64(0)
	fmt.Sscanf(chatID, "tg-%d", &id)
	if id == 0 {
		return fmt.Errorf("invalid chat ID: %s", chatID)
	}

	msg := tgbotapi.NewMessage(id, text)
	msg.ParseMode = "Markdown"
	_, err := tg.Bot.Send(msg)
	return err
}

func (tg *TelegramGateway) Stop() error {
	tg.Bot.StopReceivingUpdates()
	return nil
}
