package gateway

import (
	"context"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/m-mizutani/goerr/v2"
	"github.com/rahul/karya/internal/agent"
)

// DiscordGateway listens to guild and direct messages. In guild channels it
// only reacts when the bot is mentioned.
type DiscordGateway struct {
	Session *discordgo.Session
	Brain   agent.Brain
	ctx     context.Context
}

func NewDiscordGateway(ctx context.Context, token string, brain agent.Brain) (*DiscordGateway, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create discord session")
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent

	dg := &DiscordGateway{Session: session, Brain: brain, ctx: ctx}
	session.AddHandler(dg.onMessage)
	return dg, nil
}

func (dg *DiscordGateway) Start() error {
	if err := dg.Session.Open(); err != nil {
		return goerr.Wrap(err, "failed to open discord session")
	}
	log.Printf("Connected to Discord as %s", dg.Session.State.User.Username)
	<-dg.ctx.Done()
	return nil
}

func (dg *DiscordGateway) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}

	goal, ok := goalFrom(m.Content, s.State.User.ID, m.GuildID == "")
	if !ok {
		return
	}

	log.Printf("[%s] %s", m.Author.Username, goal)
	go func() {
		response, err := dg.Brain.Think(dg.ctx, m.ChannelID, goal)
		if err != nil {
			log.Printf("Error running goal for channel %s: %v", m.ChannelID, err)
			response = fallbackReply
		}
		if err := dg.Send(m.ChannelID, response); err != nil {
			log.Printf("Failed to reply to channel %s: %v", m.ChannelID, err)
		}
	}()
}

// goalFrom strips the bot mention. Guild messages without a mention are ignored.
func goalFrom(content, botID string, direct bool) (string, bool) {
	mentions := []string{"<@" + botID + ">", "<@!" + botID + ">"}
	mentioned := false
	for _, tag := range mentions {
		if strings.Contains(content, tag) {
			mentioned = true
			content = strings.ReplaceAll(content, tag, "")
		}
	}
	if !direct && !mentioned {
		return "", false
	}
	content = strings.TrimSpace(content)
	return content, content != ""
}

func (dg *DiscordGateway) Send(chatID string, text string) error {
	for _, chunk := range Chunk(text, DiscordMaxMessage) {
		if _, err := dg.Session.ChannelMessageSend(chatID, chunk); err != nil {
			return goerr.Wrap(err, "failed to send discord message", goerr.V("channel_id", chatID))
		}
	}
	return nil
}

func (dg *DiscordGateway) Stop() error {
	return dg.Session.Close()
}
