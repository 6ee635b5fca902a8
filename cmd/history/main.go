package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"chat-sync/api"
	"chat-sync/domain/chat"
	"chat-sync/internal"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "History error: %v\n", err)
	}
	os.Exit(code)
}

// run dumps a conversation's history as a table, oldest first.
func run() (int, error) {
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), config.RequestTimeout)
	defer cancel()

	client := api.NewClient(config.APIBaseURL, log,
		api.WithToken(config.SessionToken),
		api.WithTimeout(config.RequestTimeout),
	)

	messages, err := client.List(ctx, chat.ConversationID(config.ConversationID))
	if err != nil {
		return exitRuntime, err
	}
	if len(messages) == 0 {
		fmt.Println("No messages in this conversation yet.")
		return exitOK, nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"At", "Sender", "Role", "Body", "Attachments"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, m := range messages {
		table.Append([]string{
			m.CreatedAt.Format(time.DateTime),
			m.Sender.UserID,
			m.Sender.Role,
			m.Body,
			strings.Join(lo.Map(m.Attachments, func(a chat.Attachment, _ int) string { return a.URL }), "\n"),
		})
	}
	table.Render()
	return exitOK, nil
}
