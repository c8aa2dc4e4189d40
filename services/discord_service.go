package services

import (
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"

	"pnodewatch/models"
)

// DiscordNotifier posts a short fleet summary after collection runs.
// Without a token it stays disabled and every notify is a no-op.
type DiscordNotifier struct {
	session   *discordgo.Session
	channelID string
	enabled   bool
}

func NewDiscordNotifier(token string, channelID string) (*DiscordNotifier, error) {
	if token == "" || channelID == "" {
		log.Println("Discord token or channel not configured, notifications disabled")
		return &DiscordNotifier{enabled: false}, nil
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("failed to open Discord connection: %w", err)
	}

	log.Printf("Discord notifier connected, channel: %s", channelID)
	return &DiscordNotifier{
		session:   session,
		channelID: channelID,
		enabled:   true,
	}, nil
}

func (d *DiscordNotifier) Close() {
	if d.enabled && d.session != nil {
		d.session.Close()
	}
}

// NotifyCollectionSummary is best-effort; a send failure is logged and
// swallowed.
func (d *DiscordNotifier) NotifyCollectionSummary(summary *models.CollectionSummary, stats models.SnapshotStats) {
	if !d.enabled {
		return
	}

	modal := "n/a"
	if stats.ModalVersion != nil {
		modal = *stats.ModalVersion
	}

	msg := fmt.Sprintf(
		"**pNode stats run** (%s)\nNodes: %d total, %d with RPC\nCollected: %d | Failed: %d | Skipped: %d\nModal version: %s",
		summary.Timestamp.Format("2006-01-02 15:04 MST"),
		stats.TotalNodes, stats.NodesWithRpc,
		summary.Collected, summary.Failed, summary.Skipped,
		modal,
	)

	if _, err := d.session.ChannelMessageSend(d.channelID, msg); err != nil {
		log.Printf("Discord notification failed: %v", err)
	}
}
