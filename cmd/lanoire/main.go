package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/lanoire/lanoire-web/config"
	"github.com/lanoire/lanoire-web/internal/adapters/backend"
	"github.com/lanoire/lanoire-web/internal/adapters/filestore"
	"github.com/lanoire/lanoire-web/internal/bootstrap"
	"github.com/lanoire/lanoire-web/internal/ports"
	"github.com/lanoire/lanoire-web/internal/service"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

// commandContext carries what every command needs. The CLI keeps a single
// session in a file, so commands share one store.
type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	In     io.Reader
	Out    io.Writer

	Store         ports.SessionStore
	Transport     ports.Transport
	Auth          *service.AuthService
	Notifications *service.NotificationService
}

// API binds the transport to the CLI session.
//
//nolint:ireturn // commands only depend on the port.
func (c *commandContext) API() ports.API {
	return c.Transport.WithSession(c.Store)
}

func main() {
	logger := bootstrap.InitLogger()

	if len(os.Args) < 2 {
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}
	bootstrap.SetDebugLogging(cfg.IsDev)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmdCtx, err := newCommandContext(ctx, cfg, logger)
	if err != nil {
		stop()
		logger.ErrorContext(ctx, "initialise", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal setup failure to shell scripts
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		stop()
		logger.ErrorContext(ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

// newCommandContext opens the session file and wires the services.
func newCommandContext(ctx context.Context, cfg config.AppConfig, logger *slog.Logger) (*commandContext, error) {
	path := cfg.CLI.SessionFile
	if path == "" {
		var err error
		if path, err = filestore.DefaultPath(); err != nil {
			return nil, err
		}
	}
	store, err := filestore.New(path)
	if err != nil {
		return nil, fmt.Errorf("open session file: %w", err)
	}

	client, err := backend.New(backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create backend client: %w", err)
	}
	notifications, err := service.NewNotificationService(service.NotificationServiceOptions{
		ListExpr: cfg.Notifications.ListExpr,
	})
	if err != nil {
		return nil, fmt.Errorf("create notification service: %w", err)
	}

	return &commandContext{
		Ctx:       ctx,
		Logger:    logger,
		Config:    cfg,
		In:        os.Stdin,
		Out:       os.Stdout,
		Store:     store,
		Transport: client,
		Auth: service.NewAuthService(service.AuthServiceOptions{
			Transport:  client,
			SessionTTL: cfg.Session.TTL,
			Logger:     logger,
		}),
		Notifications: notifications,
	}, nil
}

func commands() map[string]command {
	return map[string]command{
		"login": {
			name:        "login",
			description: "Sign in and keep the session in the session file",
			run:         runLogin,
		},
		"logout": {
			name:        "logout",
			description: "End the backend session and clear the session file",
			run:         runLogout,
		},
		"whoami": {
			name:        "whoami",
			description: "Show the signed-in identity from the session file",
			run:         runWhoami,
		},
		"menu": {
			name:        "menu",
			description: "List the destinations the current session may open",
			run:         runMenu,
		},
		"profile": {
			name:        "profile",
			description: "Reload the identity from the backend",
			run:         runProfile,
		},
		"get": {
			name:        "get",
			description: "Issue an authenticated GET and print the unwrapped payload",
			run:         runGet,
		},
		"notifications": {
			name:        "notifications",
			description: "List, acknowledge, or watch notifications (list|read|watch)",
			run:         runNotifications,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: lanoire <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	names := make([]string, 0, len(commands()))
	for name := range commands() {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writef(w, "  %-16s %s\n", name, commands()[name].description); err != nil {
			return err
		}
	}
	return nil
}

type loginOptions struct {
	Identifier string
	Password   string
}

func parseLoginFlags(args []string) (loginOptions, error) {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts loginOptions
	fs.StringVar(&opts.Identifier, "identifier", "", "Username, email, phone number, or national ID")
	fs.StringVar(&opts.Password, "password", "", "Password (read from stdin when omitted)")

	if err := fs.Parse(args); err != nil {
		return loginOptions{}, err
	}
	if strings.TrimSpace(opts.Identifier) == "" {
		return loginOptions{}, errors.New("--identifier is required")
	}
	return opts, nil
}

type listOptions struct {
	Page     int
	PageSize int
}

func parseListFlags(args []string, defaultPageSize int) (listOptions, error) {
	fs := flag.NewFlagSet("notifications list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := listOptions{}
	fs.IntVar(&opts.Page, "page", 1, "Page number")
	fs.IntVar(&opts.PageSize, "page-size", defaultPageSize, "Rows per page")

	if err := fs.Parse(args); err != nil {
		return listOptions{}, err
	}
	if opts.Page < 1 {
		return listOptions{}, errors.New("--page must be at least 1")
	}
	if opts.PageSize < 1 {
		return listOptions{}, errors.New("--page-size must be at least 1")
	}
	return opts, nil
}

// readLine reads one line from r without the trailing newline.
func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
