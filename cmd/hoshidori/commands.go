package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hoshidori/hoshidori/internal/config"
	"github.com/hoshidori/hoshidori/internal/locallog"
	"github.com/hoshidori/hoshidori/internal/syncer"
)

// --- login / logout / whoami ---

func newLoginCmd() *cobra.Command {
	var (
		username, password string
		noSync, purge      bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and send guest logs to your account",
		Long: `Sign in with your Hoshidori account.

Logs and profile changes made while signed out are sent to the server right
after sign-in unless --no-sync is given.

Examples:
  hoshidori login --username mika
  hoshidori login --username mika --purge`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				return errors.New("--username is required")
			}
			if password == "" {
				p, err := promptLine(cmd.InOrStdin(), "Password: ")
				if err != nil {
					return fmt.Errorf("reading password: %w", err)
				}
				password = p
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if _, err := a.api.Login(ctx, username, password); err != nil {
				return fmt.Errorf("signing in: %w", err)
			}
			u := a.session.Init(ctx)
			name := username
			if u != nil && u.Profile.Username != "" {
				name = u.Profile.Username
			}
			printSuccess("Signed in as %s", name)

			if noSync || !a.hasLocalData() {
				return nil
			}
			printStep("Sending logs saved on this device")
			rep, err := a.syncer(purge).SyncReport(ctx)
			printReport(rep)
			if err != nil {
				return fmt.Errorf("syncing local data: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account username")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when empty)")
	cmd.Flags().BoolVar(&noSync, "no-sync", false, "keep local data on this device")
	cmd.Flags().BoolVar(&purge, "purge", false, "delete local logs once the server has them")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.api.Logout(); err != nil {
				return fmt.Errorf("signing out: %w", err)
			}
			a.session.Clear()
			printSuccess("Signed out")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show who is signed in",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			u := a.session.Init(cmd.Context())
			if u == nil {
				name := a.settings.DisplayName()
				if name == "" {
					name = "guest"
				}
				fmt.Fprintf(out, "[%s] %s (not signed in)\n", a.session.DisplayInitial(), name)
				return nil
			}
			if u.Profile.Username == "" {
				printWarning("Signed in, but the profile could not be loaded")
			}
			fmt.Fprintf(out, "[%s] %s\n", a.session.DisplayInitial(), orDash(u.Profile.Username))
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the session and what is stored on this device",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			state := "guest"
			if !a.logs.IsGuest() {
				state = "signed in"
			}
			fmt.Fprintf(out, "%s %s\n", colorize(colorBold, "session:"), state)
			fmt.Fprintf(out, "%s %d\n", colorize(colorBold, "local logs:"), len(a.logs.List()))
			fmt.Fprintf(out, "%s %s\n\n", colorize(colorBold, "data dir:"), a.cfg.Storage.DataDir)

			keys, err := a.store.Keys()
			if err != nil {
				return fmt.Errorf("listing stored keys: %w", err)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tUPDATED")
			for _, k := range keys {
				ts, err := a.store.UpdatedAt(k)
				if err != nil {
					return fmt.Errorf("reading %s: %w", k, err)
				}
				fmt.Fprintf(tw, "%s\t%s\n", k, ts.Local().Format(time.DateTime))
			}
			return tw.Flush()
		},
	}
}

// --- works ---

func newWorksCmd() *cobra.Command {
	var (
		query  map[string]string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "works",
		Short: "Browse the catalog",
		Long: `List works in the catalog.

Examples:
  hoshidori works
  hoshidori works --query search=hamlet --query status=running
  hoshidori works schedule 12`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			params := url.Values{}
			for k, v := range query {
				params.Set(k, v)
			}
			works, err := a.api.FetchWorks(cmd.Context(), params)
			if err != nil {
				return fmt.Errorf("fetching works: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, works)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tRATING")
			for _, w := range works {
				rating := ""
				if w.AvgRating != nil {
					rating = strconv.FormatFloat(float64(*w.AvgRating), 'f', 1, 64)
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", w.ID, w.Title, orDash(w.Status), orDash(rating))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringToStringVar(&query, "query", nil, "filter as key=value (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	cmd.AddCommand(newWorksScheduleCmd())
	return cmd
}

func newWorksScheduleCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "schedule <work-id>",
		Short: "Show the runs of a work",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			sched, err := a.api.FetchWorkSchedule(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("fetching schedule: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, sched)
			}
			fmt.Fprintln(out, colorize(colorBold, sched.Title))
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tLABEL\tAREA\tFROM\tTO")
			for _, r := range sched.Runs {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", r.ID, orDash(r.Label), orDash(r.Area), orDash(deref(r.StartDate)), orDash(deref(r.EndDate)))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}

// --- logs ---

func newLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Manage your viewing logs",
		Long: `Manage your viewing logs.

Signed out, logs are kept on this device. Signed in, they are read from and
written to your account.`,
	}
	cmd.AddCommand(newLogsListCmd(), newLogsShowCmd(), newLogsAddCmd(), newLogsEditCmd(), newLogsRmCmd())
	return cmd
}

func newLogsListCmd() *cobra.Command {
	var force, asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List logs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if a.logs.IsGuest() {
				recs := a.logs.List()
				if asJSON {
					return printJSON(out, recs)
				}
				rows := make([]logRow, 0, len(recs))
				for _, r := range recs {
					rows = append(rows, localRow(r))
				}
				return printLogRows(out, rows)
			}

			logs, err := a.api.FetchMyLogs(cmd.Context(), force)
			if err != nil {
				return fmt.Errorf("fetching logs: %w", err)
			}
			if asJSON {
				return printJSON(out, logs)
			}
			rows := make([]logRow, 0, len(logs))
			for _, l := range logs {
				rows = append(rows, serverRow(l))
			}
			return printLogRows(out, rows)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "bypass the response cache")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}

func newLogsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one log as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if a.logs.IsGuest() {
				rec, ok := a.logs.Get(args[0])
				if !ok {
					return fmt.Errorf("log %s not found", args[0])
				}
				return printJSON(out, rec)
			}
			l, err := a.api.FetchLog(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("fetching log %s: %w", args[0], err)
			}
			return printJSON(out, l)
		},
	}
}

func newLogsAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a performance you watched",
		Long: `Record a performance you watched.

Examples:
  hoshidori logs add --work 12 --watched 2024-05-01 --seat "1F C-12" --rating 4.5
  hoshidori logs add --work 12 --run 3 --tags matinee,premiere`,
		Args: cobra.NoArgs,
	}
	f := bindLogFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if err := f.validate(true); err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if !a.logs.IsGuest() {
			l, err := a.api.CreateLog(cmd.Context(), f.logInput())
			if err != nil {
				return fmt.Errorf("saving log: %w", err)
			}
			printSuccess("Saved log %d", l.ID)
			return nil
		}

		rec, err := a.logs.Create(f.payload())
		if err != nil {
			return fmt.Errorf("saving log: %w", err)
		}
		printSuccess("Saved log %s on this device", rec.ID)
		count, err := a.logs.IncrementSaveCount()
		if err != nil {
			return err
		}
		if locallog.ShouldShowInterstitial(count) {
			printWarning("Logs saved here stay on this device. Run \"hoshidori login\" to keep them with your account.")
		}
		return nil
	}
	return cmd
}

func newLogsEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a log",
		Long: `Change fields of a log. Only the flags you pass are changed.

Example:
  hoshidori logs edit 1714550400000 --rating 5 --memo "second viewing"`,
		Args: cobra.ExactArgs(1),
	}
	f := bindLogFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if err := f.validate(false); err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		id := args[0]
		if !a.logs.IsGuest() {
			if _, err := a.api.UpdateLog(cmd.Context(), id, f.updateFields()); err != nil {
				return fmt.Errorf("updating log %s: %w", id, err)
			}
			printSuccess("Updated log %s", id)
			return nil
		}

		rec, err := a.logs.Update(id, f.payload())
		if err != nil {
			return fmt.Errorf("updating log %s: %w", id, err)
		}
		if rec == nil {
			return fmt.Errorf("log %s not found", id)
		}
		printSuccess("Updated log %s", id)
		return nil
	}
	return cmd
}

func newLogsRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a log",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			id := args[0]
			if a.logs.IsGuest() {
				if _, ok := a.logs.Get(id); !ok {
					return fmt.Errorf("log %s not found", id)
				}
				if err := a.logs.Delete(id); err != nil {
					return fmt.Errorf("deleting log %s: %w", id, err)
				}
			} else if err := a.api.DeleteLog(cmd.Context(), id); err != nil {
				return fmt.Errorf("deleting log %s: %w", id, err)
			}
			printSuccess("Deleted log %s", id)
			return nil
		},
	}
}

// --- profile ---

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or change your profile",
	}
	cmd.AddCommand(newProfileShowCmd(), newProfileNameCmd(), newProfileImageCmd())
	return cmd
}

func newProfileShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if u := a.session.Init(cmd.Context()); u != nil {
				fmt.Fprintf(out, "  %s %s\n", colorize(colorBold, "username:"), orDash(u.Profile.Username))
				fmt.Fprintf(out, "  %s %s\n", colorize(colorBold, "name:"), orDash(u.Profile.FirstName))
				fmt.Fprintf(out, "  %s %s\n", colorize(colorBold, "email:"), orDash(u.Profile.Email))
				fmt.Fprintf(out, "  %s %s\n", colorize(colorBold, "initial:"), a.session.DisplayInitial())
				return nil
			}
			s := a.settings.Get()
			fmt.Fprintf(out, "  %s %s\n", colorize(colorBold, "name:"), orDash(s.DisplayName))
			fmt.Fprintf(out, "  %s %s\n", colorize(colorBold, "initial:"), a.settings.ProfileInitial())
			fmt.Fprintf(out, "  %s %s\n", colorize(colorBold, "image:"), orDash(deref(s.ProfileImageURL)))
			return nil
		},
	}
}

func newProfileNameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "name <display-name>",
		Short: "Set your display name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			name := args[0]
			if a.logs.IsGuest() {
				if err := a.settings.SetDisplayName(name); err != nil {
					return fmt.Errorf("saving display name: %w", err)
				}
				printSuccess("Display name set to %s on this device", name)
				return nil
			}
			if _, err := a.api.UpdateProfile(cmd.Context(), map[string]string{"first_name": name}); err != nil {
				return fmt.Errorf("updating profile: %w", err)
			}
			printSuccess("Display name set to %s", name)
			return nil
		},
	}
}

func newProfileImageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "image <url>",
		Short: "Set the profile image reference (guest only)",
		Long: `Set the profile image reference kept on this device.
Pass an empty string to remove it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.logs.IsGuest() {
				return errors.New("profile images cannot be uploaded to the server yet")
			}
			if err := a.settings.SetProfileImageURL(args[0]); err != nil {
				return fmt.Errorf("saving profile image: %w", err)
			}
			if args[0] == "" {
				printSuccess("Profile image removed")
			} else {
				printSuccess("Profile image saved on this device")
			}
			return nil
		},
	}
}

// --- sync ---

func newSyncCmd() *cobra.Command {
	var purge bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Send logs saved on this device to your account",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if a.logs.IsGuest() {
				return errors.New("not signed in; run \"hoshidori login\" first")
			}
			rep, err := a.syncer(purge).SyncReport(cmd.Context())
			printReport(rep)
			return err
		},
	}
	cmd.Flags().BoolVar(&purge, "purge", false, "delete local logs once the server has them")
	return cmd
}

func printReport(rep syncer.Report) {
	printStatus("logs", "%d/%d sent", rep.Synced, rep.Attempted)
	if rep.Failed > 0 {
		printWarning("%d logs could not be sent and stay on this device", rep.Failed)
	}
	if rep.ProfileSynced {
		printStatus("profile", "sent")
	}
	if rep.Purged > 0 {
		printStatus("purged", "%d", rep.Purged)
	}
}

// --- config ---

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or update configuration",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, k := range config.ShowAll(cfg) {
				fmt.Fprintf(out, "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
			}
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long:  "Set a configuration value. Valid keys:\n  " + strings.Join(config.ValidKeys(), "\n  "),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]

			if err := config.SetKey(key, value); err != nil {
				return err
			}

			printSuccess("Set %s = %s", key, value)
			return nil
		},
	}

	cmd.AddCommand(show, set)
	return cmd
}

func promptLine(r io.Reader, prompt string) (string, error) {
	fmt.Fprint(stderr, prompt)
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
