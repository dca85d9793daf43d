package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"cohortboard/internal/models"
	"cohortboard/internal/services"

	"gorm.io/gorm"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db       *gorm.DB
	out      io.Writer
	approved *services.ApprovedUserService
	reports  *services.ReportService
	counters *services.CounterSync
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  import-approved -file FILE [-dry-run] - register approved users from a TSV (name<TAB>phone)")
	fmt.Fprintln(cli.out, "  promote -email EMAIL                  - make an existing user an admin")
	fmt.Fprintln(cli.out, "  stats                                 - print site and approval counts")
	fmt.Fprintln(cli.out, "  sync-counters                         - recount hearts and comments of every post")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	importCmd := flag.NewFlagSet("import-approved", flag.ContinueOnError)
	importCmd.SetOutput(cli.out)
	importFile := importCmd.String("file", "", "TSV file with name and phone columns")
	importDry := importCmd.Bool("dry-run", false, "only validate the rows")

	promoteCmd := flag.NewFlagSet("promote", flag.ContinueOnError)
	promoteCmd.SetOutput(cli.out)
	promoteEmail := promoteCmd.String("email", "", "email of the user to promote")

	ctx := context.Background()

	switch args[1] {
	case "import-approved":
		if err := importCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *importFile == "" {
			importCmd.Usage()
			return errHelp
		}
		return cli.importApproved(ctx, *importFile, *importDry)
	case "promote":
		if err := promoteCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *promoteEmail == "" {
			promoteCmd.Usage()
			return errHelp
		}
		return cli.promote(ctx, *promoteEmail)
	case "stats":
		return cli.stats(ctx)
	case "sync-counters":
		return cli.syncCounters(ctx)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) importApproved(ctx context.Context, path string, dryRun bool) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	rows := services.ParseTSV(string(raw))
	if len(rows) == 0 {
		return fmt.Errorf("%s: no rows", path)
	}

	checked, err := cli.approved.ValidateBulk(ctx, rows)
	if err != nil {
		return err
	}
	valid := 0
	for _, r := range checked {
		switch {
		case r.Skipped:
		case r.Error != "":
			fmt.Fprintf(cli.out, "row %d (%s): %s\n", r.Row, r.Name, r.Error)
		default:
			valid++
		}
	}
	fmt.Fprintf(cli.out, "%d of %d rows valid\n", valid, len(checked))
	if dryRun {
		return nil
	}

	res, err := cli.approved.BulkInsert(ctx, rows)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "imported %d, failed %d\n", res.Success, res.Failed)
	for _, e := range res.Errors {
		fmt.Fprintln(cli.out, "  "+e)
	}
	return nil
}

func (cli *commandLine) promote(ctx context.Context, email string) error {
	res := cli.db.WithContext(ctx).Model(&models.User{}).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		Update("role", models.RoleAdmin)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return services.ErrNotFound
	}
	fmt.Fprintf(cli.out, "%s is now an admin\n", email)
	return nil
}

func (cli *commandLine) stats(ctx context.Context) error {
	site, err := cli.reports.SiteStats(ctx)
	if err != nil {
		return err
	}
	approved, err := cli.approved.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "users=%d posts=%d comments=%d hearts=%d\n", site.Users, site.Posts, site.Comments, site.Hearts)
	fmt.Fprintf(cli.out, "approved=%d verified=%d unverified=%d\n", approved.Total, approved.Verified, approved.Unverified)
	return nil
}

func (cli *commandLine) syncCounters(ctx context.Context) error {
	fixed, err := cli.counters.SyncAll(ctx)
	if err != nil {
		return err
	}
	for _, f := range fixed {
		fmt.Fprintf(cli.out, "post %s: hearts %d -> %d, comments %d -> %d\n",
			f.PostID, f.OldHeartCount, f.HeartCount, f.OldCommentCount, f.CommentCount)
	}
	fmt.Fprintf(cli.out, "%d posts fixed\n", len(fixed))
	return nil
}
