package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/mmcdole/rolo/internal/cache"
	"github.com/mmcdole/rolo/internal/config"
	"github.com/mmcdole/rolo/internal/domain"
	"github.com/mmcdole/rolo/internal/gateway"
	"github.com/mmcdole/rolo/internal/importer"
	"github.com/mmcdole/rolo/internal/log"
	"github.com/mmcdole/rolo/internal/remote"
	"github.com/mmcdole/rolo/internal/service"
	"github.com/mmcdole/rolo/internal/session"
	"github.com/mmcdole/rolo/internal/store"
)

// Version is set at build time via -ldflags
var Version = "dev"

const usage = `usage: rolo <command> [flags] [args]

commands:
  login [-server url] [-u username]   start a session
  register [-u username] [-email e]   create an account and log in
  logout                              end the session
  whoami                              show the logged in user
  list [-filter q]                    list contacts
  search <query>                      fuzzy search contacts
  show <id>                           show a contact with phones
  add -name n [-email e] [-phone p [-type t]]
  edit <id> [-name n] [-email e]
  rm <id>
  phone add <contact-id> -number p [-type t]
  phone edit <phone-id> [-number p] [-type t]
  phone rm <phone-id>
  import [-remote] [-concurrency n] <file.vcf>
`

func main() {
	var showVersion bool
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if showVersion {
		fmt.Printf("rolo %s\n", Version)
		return
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if hint := errorHint(err); hint != "" {
			fmt.Fprintln(os.Stderr, hint)
		}
		os.Exit(1)
	}
}

// app holds the wired components for one command invocation
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.TokenStore
	manager  *session.Manager
	auth     *service.AuthService
	contacts *service.ContactService
	cache    *cache.Cache
	importer *importer.Pipeline
	out      io.Writer
}

func run(ctx context.Context, args []string) error {
	// A missing .env is fine
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := log.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = log.NullLogger()
	}
	slog.SetDefault(logger)
	logger.Debug("starting rolo", "version", Version, "command", args[0])

	a, err := newApp(cfg, logger, os.Stdout)
	if err != nil {
		return err
	}
	defer a.close()

	return a.dispatch(ctx, args)
}

func newApp(cfg *config.Config, logger *slog.Logger, out io.Writer) (*app, error) {
	st, err := store.NewTokenStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}

	client := remote.NewClient(cfg.Server.URL, cfg.Server.Timeout, logger)
	manager := session.NewManager(client, st, logger)
	gw := gateway.New(manager, logger)
	contacts := service.NewContactService(client, gw, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		manager:  manager,
		auth:     service.NewAuthService(client, manager, gw, logger),
		contacts: contacts,
		cache:    cache.New(contacts, logger),
		importer: importer.New(contacts, cfg.Import.Concurrency, logger),
		out:      out,
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close token store", "error", err)
	}
}

// errorHint suggests a next step for the failure kinds a user can act on
func errorHint(err error) string {
	switch domain.Classify(err) {
	case domain.KindAuthExpired, domain.KindAuthRejected:
		return "Run 'rolo login' to sign in again."
	case domain.KindNetwork:
		return "Check that the contact service is running and server.url is correct."
	}
	if errors.Is(err, errNotLoggedIn) {
		return "Run 'rolo login' first."
	}
	return ""
}
