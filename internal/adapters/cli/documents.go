package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/oapi-codegen/runtime/types"

	"github.com/kirillkom/prashnly-client/internal/adapters/tui"
	"github.com/kirillkom/prashnly-client/internal/adapters/watch"
	"github.com/kirillkom/prashnly-client/internal/core/domain"
	"github.com/kirillkom/prashnly-client/internal/core/usecase"
)

func (r *Runner) dashboard(ctx context.Context, _ []string) error {
	list := r.deps.Documents()
	defer list.Close()
	if err := list.Refresh(ctx); err != nil {
		return err
	}
	docs := list.Documents()
	active := 0
	for _, doc := range docs {
		if doc.Active {
			active++
		}
	}
	fmt.Fprintf(r.out, "Documents: %d (%d active)\n", len(docs), active)

	view := r.deps.Usage()
	if _, err := view.Load(ctx); err != nil {
		_, msg := view.Render()
		fmt.Fprintln(r.out, msg)
	} else {
		summary, _ := view.Render()
		fmt.Fprintf(r.out, "Plan:      %s\n", summary.Plan)
		fmt.Fprintf(r.out, "Tokens:    %s used, %s left\n", summary.TokensUsed, summary.TokensLeft)
		fmt.Fprintln(r.out, summary.Summary)
	}

	if len(docs) > 0 {
		fmt.Fprintln(r.out)
		writeDocuments(r.out, docs, time.Now())
	}
	return nil
}

func (r *Runner) documents(ctx context.Context, args []string) error {
	fs := r.flagSet("documents")
	yes := fs.Bool("yes", false, "delete without asking")
	positional, err := parse(fs, args)
	if err != nil {
		return err
	}
	action := "list"
	if len(positional) > 0 {
		action, positional = positional[0], positional[1:]
	}

	list := r.deps.Documents()
	defer list.Close()
	if err := list.Refresh(ctx); err != nil {
		return err
	}

	switch action {
	case "list":
		writeDocuments(r.out, list.Documents(), time.Now())
		return nil
	case "search":
		found := list.Search(strings.Join(positional, " "))
		if len(found) == 0 {
			fmt.Fprintln(r.out, "No documents match.")
			return nil
		}
		writeDocuments(r.out, found, time.Now())
		return nil
	case "toggle":
		if len(positional) != 1 {
			return usageError{text: "documents toggle <document-id>"}
		}
		if err := list.ToggleActive(ctx, positional[0]); err != nil {
			return err
		}
		doc, _ := findDocument(list.Documents(), positional[0])
		fmt.Fprintf(r.out, "%s is now %s.\n", doc.Title, activeLabel(doc.Active))
		return nil
	case "delete":
		if len(positional) != 1 {
			return usageError{text: "documents delete <document-id> [--yes]"}
		}
		doc, ok := findDocument(list.Documents(), positional[0])
		if !ok {
			return domain.WrapError(domain.ErrNotFound, "delete document", fmt.Errorf("document %s is not in the list", positional[0]))
		}
		if !*yes {
			answer, err := r.in.Line(fmt.Sprintf("Delete %q? [y/N]", doc.Title))
			if err != nil {
				return err
			}
			if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
				fmt.Fprintln(r.out, "Kept.")
				return nil
			}
		}
		if err := list.Delete(ctx, doc.ID); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Deleted %s.\n", doc.Title)
		return nil
	default:
		return usageError{text: "documents [list | search <query> | toggle <id> | delete <id>]"}
	}
}

func (r *Runner) upload(ctx context.Context, args []string) error {
	fs := r.flagSet("upload")
	title := fs.String("title", "", "document title (defaults to the file name)")
	visibility := fs.String("visibility", string(domain.VisibilityPrivate), "public, private or protected")
	protection := fs.String("protection", string(domain.ProtectionNone), "none, otp or password")
	password := fs.String("password", "", "share password for password protection")
	useTUI := fs.Bool("tui", false, "show an interactive progress dialog")
	positional, err := parse(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return usageError{text: "upload <file> [--title T] [--visibility V] [--protection P] [--password PW] [--tui]"}
	}

	form, err := readUploadForm(positional[0])
	if err != nil {
		return err
	}
	form.Title = *title
	form.Visibility = domain.Visibility(strings.ToLower(*visibility))
	form.Protection = domain.ProtectionType(strings.ToLower(*protection))
	form.Password = *password
	if form.Protection == domain.ProtectionPassword && form.Password == "" {
		if form.Password, err = r.in.Secret("Share password"); err != nil {
			return err
		}
	}

	list := r.deps.Documents()
	defer list.Close()
	refresh := func() {
		if err := list.Refresh(ctx); err != nil {
			return
		}
		fmt.Fprintf(r.out, "You now have %d documents.\n", len(list.Documents()))
	}

	if *useTUI {
		return tui.RunUpload(ctx, func(observer func(usecase.UploadSnapshot)) *usecase.UploadFlow {
			return r.deps.Upload(refresh, observer)
		}, form)
	}

	progress := newProgressPrinter(r.out)
	flow := r.deps.Upload(refresh, progress.observe)
	if err := flow.Select(form); err != nil {
		return err
	}
	return flow.Submit(ctx)
}

func (r *Runner) watch(ctx context.Context, args []string) error {
	fs := r.flagSet("watch")
	visibility := fs.String("visibility", string(domain.VisibilityPrivate), "visibility of uploaded documents")
	positional, err := parse(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return usageError{text: "watch <dir> [--visibility V]"}
	}

	uploader := watch.UploaderFunc(func(ctx context.Context, path string) error {
		form, err := readUploadForm(path)
		if err != nil {
			return err
		}
		form.Visibility = domain.Visibility(strings.ToLower(*visibility))
		progress := newProgressPrinter(r.out)
		flow := r.deps.Upload(nil, progress.observe)
		if err := flow.Select(form); err != nil {
			return err
		}
		if err := flow.Submit(ctx); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Uploaded %s.\n", filepath.Base(path))
		return nil
	})

	w, err := watch.New(positional[0], uploader, watch.Options{Debounce: r.deps.WatchDebounce})
	if err != nil {
		return err
	}

	if r.deps.Ops != nil {
		go func() {
			if err := r.deps.Ops(ctx); err != nil {
				fmt.Fprintf(r.errOut, "error: %v\n", err)
			}
		}()
	}

	fmt.Fprintf(r.out, "Watching %s. Press Ctrl+C to stop.\n", positional[0])
	err = w.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func readUploadForm(path string) (domain.UploadRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.UploadRequest{}, domain.WrapError(domain.ErrInvalidInput, "read upload", err)
	}
	var file types.File
	file.InitFromBytes(data, filepath.Base(path))
	return domain.UploadRequest{File: file}, nil
}

func findDocument(docs []domain.Document, id string) (domain.Document, bool) {
	for _, doc := range docs {
		if doc.ID == id {
			return doc, true
		}
	}
	return domain.Document{}, false
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func activeLabel(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}

func writeDocuments(out io.Writer, docs []domain.Document, now time.Time) {
	if len(docs) == 0 {
		fmt.Fprintln(out, "No documents yet. Upload one with `prashnly upload <file>`.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tACTIVE\tVISIBILITY\tSHARE\tCREATED")
	for _, doc := range docs {
		created := "-"
		if !doc.CreatedAt.IsZero() {
			created = humanize.RelTime(doc.CreatedAt, now, "ago", "from now")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			doc.ID, doc.Title, doc.Status, activeLabel(doc.Active), orDash(string(doc.Visibility)), orDash(doc.ShareToken), created)
	}
	_ = tw.Flush()
}

// progressPrinter writes one line per progress change.
type progressPrinter struct {
	out  io.Writer
	last usecase.UploadSnapshot
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	return &progressPrinter{out: out}
}

func (p *progressPrinter) observe(snap usecase.UploadSnapshot) {
	if snap == p.last {
		return
	}
	prev := p.last
	p.last = snap
	switch snap.State {
	case usecase.UploadSubmitting:
		fmt.Fprintln(p.out, "Uploading...")
	case usecase.UploadAwaitingProgress:
		if snap.Progress == prev.Progress && snap.Message == prev.Message && prev.State == snap.State {
			return
		}
		line := fmt.Sprintf("%3d%%", snap.Progress)
		if snap.Message != "" {
			line += "  " + snap.Message
		}
		fmt.Fprintln(p.out, line)
	case usecase.UploadComplete:
		if prev.State != usecase.UploadComplete {
			fmt.Fprintln(p.out, "100%  Processing complete.")
		}
	}
}
