package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/kirillkom/prashnly-client/internal/core/domain"
	"github.com/kirillkom/prashnly-client/internal/infrastructure/export"
)

func (r *Runner) usage(ctx context.Context, args []string) error {
	fs := r.flagSet("usage")
	xlsxPath := fs.String("xlsx", "", "also write the usage history to this .xlsx file")
	if _, err := parse(fs, args); err != nil {
		return err
	}

	view := r.deps.Usage()
	snap, err := view.Load(ctx)
	if err != nil {
		_, msg := view.Render()
		r.notifier.Notify(domain.Notice{Level: domain.NoticeError, Message: msg})
		return err
	}

	summary, _ := view.Render()
	fmt.Fprintf(r.out, "Plan:        %s (%s)\n", summary.Plan, summary.PlanHint)
	fmt.Fprintf(r.out, "Tokens used: %s of %s\n", summary.TokensUsed, summary.MaxTokens)
	fmt.Fprintf(r.out, "Tokens left: %s\n", summary.TokensLeft)
	fmt.Fprintln(r.out, summary.Summary)

	if len(summary.Rows) > 0 {
		fmt.Fprintln(r.out)
		tw := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "DOCUMENT\tTOKENS\tWHEN")
		for _, row := range summary.Rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", row.Document, row.Tokens, row.When)
		}
		_ = tw.Flush()
	}

	if *xlsxPath == "" {
		return nil
	}
	return writeUsageFile(*xlsxPath, *snap)
}

func writeUsageFile(path string, snap domain.UsageSnapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := export.WriteUsageXLSX(f, snap, time.Now()); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (r *Runner) upgrade(ctx context.Context, args []string) error {
	fs := r.flagSet("upgrade")
	positional, err := parse(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return usageError{text: "upgrade <basic|premium|enterprise>"}
	}

	url, err := r.deps.Billing.Checkout(ctx, positional[0])
	if err != nil {
		if domain.IsKind(err, domain.ErrContactSales) {
			return nil
		}
		return err
	}
	fmt.Fprintf(r.out, "Complete your checkout at:\n%s\n", url)
	return nil
}
