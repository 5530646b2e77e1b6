package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/kirillkom/prashnly-client/internal/adapters/tui"
	"github.com/kirillkom/prashnly-client/internal/core/domain"
	"github.com/kirillkom/prashnly-client/internal/core/usecase"
)

func (r *Runner) chat(ctx context.Context, args []string) error {
	fs := r.flagSet("chat")
	chatID := fs.String("chat", "", "resume the conversation with this id")
	question := fs.String("ask", "", "ask one question and exit")
	useTUI := fs.Bool("tui", false, "open the interactive chat")
	password := fs.String("password", "", "unlock a password-protected share first")
	positional, err := parse(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return usageError{text: "chat <share-token> [--chat ID] [--ask Q] [--tui] [--password PW]"}
	}
	shareToken := positional[0]
	if *password != "" {
		if err := r.deps.Share.Verify(ctx, shareToken, *password); err != nil {
			return err
		}
	}

	onRoute := func(route string) {
		fmt.Fprintf(r.errOut, "conversation: %s\n", route)
	}
	view := r.deps.Chat.OpenWithRoute(shareToken, *chatID, onRoute)
	defer view.Close()

	if err := view.Load(ctx); err != nil {
		fmt.Fprintf(r.errOut, "Could not load the earlier messages: %s\n", domain.UserMessage(err, "chat history unavailable"))
	}

	if *useTUI {
		return tui.RunChat(ctx, view)
	}

	if *question != "" {
		if err := view.Send(ctx, *question); err != nil && domain.IsKind(err, domain.ErrInvalidInput) {
			return err
		}
		msgs := view.Messages()
		fmt.Fprintln(r.out, msgs[len(msgs)-1].Content)
		return nil
	}

	for _, msg := range view.Messages() {
		printMessage(r, msg)
	}
	for {
		line, err := r.in.Line("you")
		if err != nil {
			var usage usageError
			if errors.As(err, &usage) {
				return nil
			}
			return err
		}
		text := strings.TrimSpace(line)
		if text == "/quit" || text == "/exit" {
			return nil
		}
		if text == "" {
			continue
		}
		if err := view.Send(ctx, text); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		msgs := view.Messages()
		printMessage(r, msgs[len(msgs)-1])
	}
}

func printMessage(r *Runner, msg domain.ChatMessage) {
	label := "assistant"
	if msg.Role == domain.RoleUser {
		label = "you"
	}
	fmt.Fprintf(r.out, "%s> %s\n", label, msg.Content)
}

func (r *Runner) share(ctx context.Context, args []string) error {
	fs := r.flagSet("share")
	password := fs.String("password", "", "share password (prompted when empty)")
	positional, err := parse(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 2 || positional[0] != "verify" {
		return usageError{text: "share verify <share-token> [--password PW]"}
	}
	shareToken := positional[1]
	if *password, err = r.in.valueOr(*password, "Password", true); err != nil {
		return err
	}
	if err := r.deps.Share.Verify(ctx, shareToken, *password); err != nil {
		return err
	}
	if !r.deps.ShareUnlockPersists {
		fmt.Fprintf(r.out, "Password accepted. The unlock ends with this command; chat with `prashnly chat %s --password PW`.\n", shareToken)
		return nil
	}
	fmt.Fprintf(r.out, "Unlocked. Chat with `prashnly chat %s`.\n", shareToken)
	return nil
}

func (r *Runner) chats(ctx context.Context, args []string) error {
	fs := r.flagSet("chats")
	positional, err := parse(fs, args)
	if err != nil {
		return err
	}

	history := r.deps.ChatHistory()
	summaries, err := history.List(ctx)
	if err != nil {
		return err
	}

	if len(positional) == 0 {
		writeChats(r, summaries, time.Now())
		return nil
	}
	if len(positional) != 2 || positional[0] != "open" {
		return usageError{text: "chats [open <chat-id>]"}
	}

	chat, ok := history.Find(positional[1])
	if !ok {
		return domain.WrapError(domain.ErrNotFound, "open chat", fmt.Errorf("chat %s is not in your history", positional[1]))
	}
	if _, err := history.OpenTarget(chat); err != nil {
		return err
	}
	return r.chat(ctx, []string{chat.Document.ShareToken, "--chat", chat.ID})
}

func writeChats(r *Runner, chats []usecase.ChatSummary, now time.Time) {
	if len(chats) == 0 {
		fmt.Fprintln(r.out, "No conversations yet.")
		return
	}
	tw := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDOCUMENT\tLAST MESSAGE\tUPDATED")
	for _, c := range chats {
		updated := "-"
		if !c.UpdatedAt.IsZero() {
			updated = humanize.RelTime(c.UpdatedAt, now, "ago", "from now")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, c.Title, truncate(c.LastMessage, 48), updated)
	}
	_ = tw.Flush()
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
