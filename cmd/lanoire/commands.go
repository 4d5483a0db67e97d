package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lanoire/lanoire-web/internal/adapters/backend"
	"github.com/lanoire/lanoire-web/internal/domain/access"
	"github.com/lanoire/lanoire-web/internal/domain/navigation"
	"github.com/lanoire/lanoire-web/internal/service"
)

var errNotSignedIn = errors.New("not signed in; run `lanoire login` first")

// cliSessionID keys profile refreshes of the single CLI session.
const cliSessionID = "cli"

func runLogin(cmdCtx *commandContext, args []string) error {
	opts, err := parseLoginFlags(args)
	if err != nil {
		return err
	}
	if opts.Password == "" {
		if err = write(cmdCtx.Out, "Password: "); err != nil {
			return err
		}
		if opts.Password, err = readLine(cmdCtx.In); err != nil {
			return fmt.Errorf("read password: %w", err)
		}
	}

	// A previous session in the file is replaced, never merged.
	if err = cmdCtx.Store.Clear(cmdCtx.Ctx); err != nil {
		return fmt.Errorf("clear previous session: %w", err)
	}
	result, err := cmdCtx.Auth.Login(cmdCtx.Ctx, cmdCtx.Store, service.LoginInput{
		Identifier: opts.Identifier,
		Password:   opts.Password,
	})
	if err != nil {
		return err
	}
	return writef(cmdCtx.Out, "Signed in as %s (session valid until %s)\n",
		result.Identity.DisplayName(), result.ExpiresAt.Format(time.RFC3339))
}

func runLogout(cmdCtx *commandContext, _ []string) error {
	if err := cmdCtx.Auth.Logout(cmdCtx.Ctx, cmdCtx.Store); err != nil {
		return err
	}
	return writeln(cmdCtx.Out, "Signed out.")
}

func runWhoami(cmdCtx *commandContext, _ []string) error {
	snap := access.Load(cmdCtx.Ctx, cmdCtx.Store)
	switch {
	case !snap.HasCredential():
		return errNotSignedIn
	case snap.Identity == nil:
		return writeln(cmdCtx.Out, "Signed in, but no profile is stored; run `lanoire profile`.")
	}
	return printIdentity(cmdCtx.Out, snap.Identity)
}

func runMenu(cmdCtx *commandContext, _ []string) error {
	snap := access.Load(cmdCtx.Ctx, cmdCtx.Store)
	menu := navigation.Default().Menu(snap)
	if len(menu) == 0 {
		return writeln(cmdCtx.Out, "No destinations available; sign in first.")
	}
	return printMenu(cmdCtx.Out, menu)
}

func runProfile(cmdCtx *commandContext, _ []string) error {
	identity, err := cmdCtx.Auth.RefreshProfile(cmdCtx.Ctx, cliSessionID, cmdCtx.Store)
	if err != nil {
		return signedOutHint(err)
	}
	return printIdentity(cmdCtx.Out, identity)
}

func runGet(cmdCtx *commandContext, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: lanoire get <path>")
	}
	payload, err := cmdCtx.API().Get(cmdCtx.Ctx, args[0])
	if err != nil {
		return signedOutHint(err)
	}
	return printJSON(cmdCtx.Out, payload)
}

func runNotifications(cmdCtx *commandContext, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: lanoire notifications <list|read|watch>")
	}
	switch args[0] {
	case "list":
		return runNotificationsList(cmdCtx, args[1:])
	case "read":
		return runNotificationsRead(cmdCtx, args[1:])
	case "watch":
		return runNotificationsWatch(cmdCtx, args[1:])
	default:
		return fmt.Errorf("unknown notifications subcommand %q", args[0])
	}
}

func runNotificationsList(cmdCtx *commandContext, args []string) error {
	opts, err := parseListFlags(args, cmdCtx.Config.Notifications.PageSize)
	if err != nil {
		return err
	}
	rows, err := cmdCtx.Notifications.List(cmdCtx.Ctx, cmdCtx.API(), service.ListInput{
		Page:     opts.Page,
		PageSize: opts.PageSize,
	})
	if err != nil {
		return signedOutHint(err)
	}
	return printNotifications(cmdCtx.Out, rows)
}

func runNotificationsRead(cmdCtx *commandContext, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: lanoire notifications read <id>")
	}
	if err := cmdCtx.Notifications.MarkRead(cmdCtx.Ctx, cmdCtx.API(), args[0]); err != nil {
		return signedOutHint(err)
	}
	return writef(cmdCtx.Out, "Notification %s marked as read.\n", args[0])
}

// runNotificationsWatch prints each new unread notification until interrupted.
func runNotificationsWatch(cmdCtx *commandContext, _ []string) error {
	if !access.Load(cmdCtx.Ctx, cmdCtx.Store).HasCredential() {
		return errNotSignedIn
	}
	poller, err := service.NewPoller(service.PollerOptions{
		Service:  cmdCtx.Notifications,
		API:      cmdCtx.API(),
		Interval: cmdCtx.Config.Notifications.PollInterval,
		PageSize: cmdCtx.Config.Notifications.PageSize,
		Logger:   cmdCtx.Logger,
		Sink: func(_ context.Context, fresh []service.Notification) {
			for _, n := range fresh {
				if werr := writeln(cmdCtx.Out, n.Summary()); werr != nil {
					cmdCtx.Logger.Warn("print notification failed", "error", werr)
				}
			}
		},
	})
	if err != nil {
		return err
	}
	if err = writef(cmdCtx.Out, "Watching notifications every %s (Ctrl-C to stop)\n",
		cmdCtx.Config.Notifications.PollInterval); err != nil {
		return err
	}
	return poller.Run(cmdCtx.Ctx)
}

// signedOutHint points the user at login once a 401 has cleared the session.
func signedOutHint(err error) error {
	if errors.Is(err, backend.ErrUnauthorized) {
		return fmt.Errorf("%w (session cleared; run `lanoire login`)", err)
	}
	return err
}

func indentJSON(raw []byte) []byte {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return raw
	}
	return buf.Bytes()
}
