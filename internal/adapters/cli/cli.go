// Package cli is the command-line front-end. Every command is mapped to an
// app route and passes the route guard before it runs.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/kirillkom/prashnly-client/internal/core/domain"
	"github.com/kirillkom/prashnly-client/internal/core/navigation"
	"github.com/kirillkom/prashnly-client/internal/core/usecase"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// Deps are the views the commands drive. The factories build a fresh view
// per command, the way a page mounts its own state.
type Deps struct {
	Guard   *navigation.Guard
	Auth    *usecase.Auth
	Share   *usecase.ShareAccess
	Chat    *usecase.ChatService
	Billing *usecase.Billing

	Documents   func() *usecase.DocumentList
	Upload      func(onComplete func(), observer func(usecase.UploadSnapshot)) *usecase.UploadFlow
	Usage       func() *usecase.UsageView
	ChatHistory func() *usecase.ChatHistory

	WatchDebounce time.Duration
	// ShareUnlockPersists is set when share unlocks outlive the process.
	ShareUnlockPersists bool
	// Ops runs next to long-running commands, e.g. the metrics server.
	Ops func(ctx context.Context) error
}

type command struct {
	summary string
	// route is where the command lives in the app; args may pick a share
	// route.
	route func(args []string) string
	run   func(ctx context.Context, args []string) error
}

type Runner struct {
	deps     Deps
	out      io.Writer
	errOut   io.Writer
	in       *lineReader
	notifier *Notifier
	commands map[string]command
}

func New(deps Deps, notifier *Notifier, stdout, stderr io.Writer, stdin io.Reader) *Runner {
	if notifier == nil {
		notifier = NewNotifier(stderr)
	}
	r := &Runner{
		deps:     deps,
		out:      stdout,
		errOut:   stderr,
		in:       newLineReader(stdin, stderr),
		notifier: notifier,
	}
	r.commands = map[string]command{
		"login":     {summary: "Sign in to your account", route: fixed(navigation.RouteLogin), run: r.login},
		"signup":    {summary: "Create an account", route: fixed(navigation.RouteSignup), run: r.signup},
		"logout":    {summary: "Sign out", route: fixed(navigation.RouteSettings), run: r.logout},
		"whoami":    {summary: "Show the signed-in account", route: fixed(navigation.RouteSettings), run: r.whoami},
		"dashboard": {summary: "Documents and usage at a glance", route: fixed(navigation.RouteDashboard), run: r.dashboard},
		"documents": {summary: "List, search, toggle or delete documents", route: fixed(navigation.RouteDocuments), run: r.documents},
		"upload":    {summary: "Upload a document and follow its processing", route: fixed(navigation.RouteDocuments), run: r.upload},
		"watch":     {summary: "Upload every document dropped into a folder", route: fixed(navigation.RouteDocuments), run: r.watch},
		"chat":      {summary: "Chat with a shared document", route: shareRoute, run: r.chat},
		"share":     {summary: "Unlock a password-protected share link", route: shareVerifyRoute, run: r.share},
		"chats":     {summary: "List or reopen past conversations", route: fixed(navigation.RouteChats), run: r.chats},
		"usage":     {summary: "Show token usage", route: fixed(navigation.RouteUsage), run: r.usage},
		"upgrade":   {summary: "Start a plan checkout", route: fixed(navigation.RouteSettings), run: r.upgrade},
	}
	return r
}

// Run executes one command line and returns the process exit code.
func (r *Runner) Run(ctx context.Context, args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		r.printUsage()
		if len(args) == 0 {
			return exitUsage
		}
		return exitOK
	}

	name, rest := args[0], args[1:]
	cmd, ok := r.commands[name]
	if !ok {
		fmt.Fprintf(r.errOut, "unknown command %q\n\n", name)
		r.printUsage()
		return exitUsage
	}

	decision := r.deps.Guard.Check(ctx, cmd.route(rest))
	switch decision.Redirect {
	case navigation.RouteLogin:
		fmt.Fprintln(r.errOut, "You are not signed in. Run `prashnly login` first.")
		return exitError
	case navigation.RouteDashboard:
		fmt.Fprintln(r.out, "Already signed in.")
		name, cmd, rest = "dashboard", r.commands["dashboard"], nil
	}

	slog.Debug("command_start", "command", name, "route", decision.Target())
	notified := r.notifier.Errors()
	err := cmd.run(ctx, rest)
	return r.report(err, r.notifier.Errors() > notified)
}

func (r *Runner) report(err error, notified bool) int {
	var usage usageError
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, flag.ErrHelp):
		return exitOK
	case errors.As(err, &usage):
		fmt.Fprintf(r.errOut, "usage: prashnly %s\n", usage.text)
		return exitUsage
	case errors.Is(err, context.Canceled):
		return exitError
	}
	if !notified {
		fmt.Fprintf(r.errOut, "error: %s\n", domain.UserMessage(err, err.Error()))
	}
	slog.Debug("command_failed", "error", err)
	return exitError
}

func (r *Runner) printUsage() {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("prashnly - chat with your documents\n\nUsage:\n  prashnly <command> [flags]\n\nCommands:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  %-10s %s\n", name, r.commands[name].summary)
	}
	b.WriteString("\nRun `prashnly <command> -h` for the flags of a command.\n")
	fmt.Fprint(r.errOut, b.String())
}

type usageError struct {
	text string
}

func (e usageError) Error() string { return "usage: " + e.text }

func (r *Runner) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(r.errOut)
	return fs
}

// parse accepts flags before and after positional arguments.
func parse(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func fixed(route string) func([]string) string {
	return func([]string) string { return route }
}

func firstPositional(args []string) string {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if strings.HasPrefix(arg, "-") {
			if !strings.Contains(arg, "=") && i+1 < len(args) && !isBoolFlag(arg) {
				i++
			}
			continue
		}
		return arg
	}
	return ""
}

func isBoolFlag(arg string) bool {
	switch strings.TrimLeft(arg, "-") {
	case "tui", "json":
		return true
	}
	return false
}

func shareRoute(args []string) string {
	token := firstPositional(args)
	if token == "" {
		return navigation.RouteChats
	}
	return navigation.ShareRoute(token, "")
}

func shareVerifyRoute(args []string) string {
	if len(args) > 0 && args[0] == "verify" {
		return shareRoute(args[1:])
	}
	return shareRoute(args)
}
