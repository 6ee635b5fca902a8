package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"chat-sync/api"
	"chat-sync/auth"
	"chat-sync/channel"
	"chat-sync/contract"
	"chat-sync/domain/chat"
	"chat-sync/domain/event"
	"chat-sync/internal"
	"chat-sync/observability"
	"chat-sync/pipeline"
	"chat-sync/projection"
	"chat-sync/session"
	"chat-sync/store"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the chat client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Chat client error: %v\n", err)
	}
	os.Exit(code)
}

// run wires the synchronization core end to end: REST client, channel
// client, store, room session, and both pipelines, then drives them
// from stdin until a termination signal.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Identity comes from the session collaborator's token.
	identity, err := auth.IdentityFromToken(config.SessionToken)
	if err != nil {
		return exitConfig, fmt.Errorf("session token error: %w", err)
	}

	metrics := observability.NewManager(log)
	apiClient := api.NewClient(config.APIBaseURL, log,
		api.WithToken(config.SessionToken),
		api.WithTimeout(config.RequestTimeout),
	)
	channelClient := channel.NewClient(channel.Config{
		URL:                  config.ChannelURL,
		HandshakeTimeout:     config.HandshakeTimeout,
		ReconnectBaseDelay:   config.ReconnectBaseDelay,
		ReconnectMaxDelay:    config.ReconnectMaxDelay,
		MaxReconnectAttempts: config.MaxReconnectAttempts,
	}, log, metrics)

	messageStore := store.NewStore(log, metrics)
	defer messageStore.Close()

	// 4. Live channel. Failure to connect degrades to REST-only: send
	// and delete still work, live updates are missing.
	if err := channelClient.Connect(ctx, identity); err != nil {
		log.Warn("Channel unavailable, running without live updates", "err", err)
	}
	defer func() { _ = channelClient.Disconnect() }()

	conversation := chat.ConversationID(config.ConversationID)
	roomSession := session.NewRoomSession(channelClient, store.NewSink(messageStore, log), log, metrics)
	defer roomSession.Leave()
	if channelClient.State() == contract.StateIdentified {
		if err := roomSession.Join(conversation); err != nil {
			log.Warn("Could not join room", "conversation", conversation, "err", err)
		}
	}

	// 5. Initial history over REST. An empty history is normal.
	history, err := apiClient.List(ctx, conversation)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not load history: %w", err)
	}
	messageStore.LoadConfirmed(history)
	printView(messageStore, identity)

	sender := pipeline.NewSendPipeline(apiClient, messageStore, log)
	deleter := pipeline.NewDeletePipeline(apiClient, messageStore, log)

	// Repaint whenever a live event lands; the store has already
	// reconciled it (or drops it as foreign) by the time we render.
	defer channelClient.OnNewMessage(func(event.MessageReceived) {
		printView(messageStore, identity)
	})()
	defer channelClient.OnMessageDeleted(func(event.MessageDeleted) {
		printView(messageStore, identity)
	})()

	// A reconnect rejoins the room, but messages broadcast during the
	// outage were never delivered. Refetch the history; the store drops
	// the entries it already holds.
	defer channelClient.OnStateChange(func(state contract.ConnectionState) {
		if state != contract.StateIdentified {
			return
		}
		refetched, err := apiClient.List(ctx, conversation)
		if err != nil {
			log.Warn("History refetch after reconnect failed", "err", err)
			return
		}
		messageStore.LoadConfirmed(refetched)
		printView(messageStore, identity)
	})()

	color.Green.Printf(">>> Joined %s as %s (Ctrl+C to quit, /delete <id>, /attach <path>, /status)\n",
		conversation, identity.UserID)

	// 6. Input loop. Attachments staged with /attach go out with the
	// next message.
	var staged []chat.Attachment
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info("Stopping client...")
			return exitOK, nil
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			handleLine(ctx, log, line, conversation, identity, sender, deleter, metrics, &staged)
			printView(messageStore, identity)
		}
	}
}

func handleLine(ctx context.Context, log *slog.Logger, line string,
	conversation chat.ConversationID, identity chat.Identity,
	sender *pipeline.SendPipeline, deleter *pipeline.DeletePipeline,
	metrics *observability.Manager, staged *[]chat.Attachment) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
	case line == "/status":
		stats := metrics.Snapshot()
		color.Cyan.Printf("state=%s reconnects=%d events=%d foreign=%d rss=%dMb\n",
			stats.State, stats.Reconnects, stats.EventsReceived,
			stats.EventsDroppedForeign, stats.RssMb)
	case strings.HasPrefix(line, "/delete "):
		id := strings.TrimSpace(strings.TrimPrefix(line, "/delete "))
		if err := deleter.Delete(ctx, id); err != nil {
			color.Red.Printf("Could not delete %s: %v\n", id, err)
		}
	case strings.HasPrefix(line, "/attach "):
		path := strings.TrimSpace(strings.TrimPrefix(line, "/attach "))
		attachment, err := pipeline.SniffAttachment(path)
		if err != nil {
			color.Red.Printf("Could not read %s: %v\n", path, err)
			return
		}
		*staged = append(*staged, attachment)
		color.Cyan.Printf("Staged %s (%s), goes out with the next message\n",
			attachment.Name, attachment.MimeType)
	default:
		draft := chat.Draft{
			Conversation: conversation,
			Sender:       identity,
			Body:         line,
			Attachments:  *staged,
		}
		if _, err := sender.Send(ctx, draft); err != nil {
			// Retryable: the optimistic entry is already rolled back and
			// staged attachments stay staged.
			color.Red.Printf("Message not sent, try again: %v\n", err)
			log.Debug("Send pipeline failure", "err", err)
			return
		}
		*staged = nil
	}
}

func printView(messageStore *store.Store, identity chat.Identity) {
	for _, row := range projection.Rows(messageStore.View(), 0) {
		if !row.GroupedWithPrevious {
			who := row.Message.Sender.UserID
			if who == identity.UserID {
				color.Green.Printf("%s (you)\n", who)
			} else {
				color.Yellow.Printf("%s\n", who)
			}
		}
		marker := " "
		if row.Message.Origin == chat.OriginOptimistic {
			marker = "…"
		}
		fmt.Printf("  [%s]%s %s\n",
			row.Message.CreatedAt.Format(time.TimeOnly), marker, row.Message.Body)
	}
}
