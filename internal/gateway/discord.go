package gateway

import (
	"context"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
)

// DiscordGateway runs one synthesis session per Discord channel.
type DiscordGateway struct {
	Session *discordgo.Session
	Engine  Conversant
}

func NewDiscordGateway(token string, engine Conversant) (*DiscordGateway, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}

	g := &DiscordGateway{
		Session: dg,
		Engine:  engine,
	}
	dg.AddHandler(g.onMessage)
	dg.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages

	return g, nil
}

func (g *DiscordGateway) Start() error {
	return g.Session.Open()
}

func (g *DiscordGateway) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.ID == s.State.User.ID || m.Author.Bot {
		return
	}

	log.Printf("[discord %s] %s", m.Author.Username, m.Content)

	ctx := context.Background()
	chatID := "dc-" + m.ChannelID
	res := g.Engine.HandleTurn(ctx, chatID, m.Content)

	if _, err := s.ChannelMessageSend(m.ChannelID, formatResult(res)); err != nil {
		log.Printf("Error sending to channel %s: %v", m.ChannelID, err)
	}
}

func (g *DiscordGateway) Send(chatID string, text string) error {
	if len(chatID) <= 3 || chatID[:3] != "dc-" {
		return fmt.Errorf("invalid channel ID: %s", chatID)
	}
	_, err := g.Session.ChannelMessageSend(chatID[3:], text)
	return err
}

func (g *DiscordGateway) Stop() error {
	return g.Session.Close()
}
