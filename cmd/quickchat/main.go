package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/meszmate/quickchat/internal/client"
	"github.com/meszmate/quickchat/internal/config"
	"github.com/meszmate/quickchat/internal/logging"
	"github.com/meszmate/quickchat/internal/transport"
)

func main() {
	userID := flag.Int("user", 0, "numeric user id to sign in with")
	password := flag.String("password", "", "account password")
	peerID := flag.Int("peer", 0, "user id to chat with")
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *userID == 0 || *password == "" || *peerID == 0 {
		log.Fatalf("Usage: quickchat -user <id> -password <pw> -peer <id>")
	}

	if err := logging.Init(logging.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: false, // the terminal belongs to the UI
	}); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}

	channel := transport.NewXMPP(transport.XMPPConfig{
		AppID:       cfg.App.ID,
		Host:        cfg.Chat.Host,
		Port:        cfg.Chat.Port,
		Domain:      cfg.Chat.Domain,
		Resource:    cfg.Chat.Resource,
		SendTimeout: time.Duration(cfg.Timeouts.SendMS) * time.Millisecond,
	})

	session := client.New(client.Config{
		AppID:          cfg.App.ID,
		Domain:         cfg.Chat.Domain,
		LoginTimeout:   time.Duration(cfg.Timeouts.LoginMS) * time.Millisecond,
		RequestTimeout: time.Duration(cfg.Timeouts.RequestMS) * time.Millisecond,
		Reconnect: client.ReconnectPolicy{
			Enabled:     cfg.Reconnect.Enabled,
			BaseDelay:   time.Duration(cfg.Reconnect.BaseDelayMS) * time.Millisecond,
			MaxDelay:    time.Duration(cfg.Reconnect.MaxDelayMS) * time.Millisecond,
			MaxAttempts: cfg.Reconnect.MaxAttempts,
		},
	}, channel)
	defer session.Disconnect()

	model := newModel(session, transport.Credentials{UserID: *userID, Password: *password}, *peerID)

	p := tea.NewProgram(model, tea.WithAltScreen())

	// Listeners run on the inbound path; hand events to the UI loop.
	session.OnMessage(func(userID int, msg client.Message) {
		p.Send(incomingMsg{userID: userID, msg: msg})
	})
	session.OnSystemMessage(func(userID int, msg client.Message) {
		p.Send(systemMsg{userID: userID, msg: msg})
	})
	session.OnDeliveredStatus(func(messageID, dialogID string, userID int) {
		p.Send(receiptMsg{kind: "delivered", messageID: messageID})
	})
	session.OnReadStatus(func(messageID, dialogID string, userID int) {
		p.Send(receiptMsg{kind: "read", messageID: messageID})
	})
	session.OnMessageTyping(func(composing bool, userID int, dialogID string) {
		p.Send(typingMsg{composing: composing, userID: userID})
	})

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}
