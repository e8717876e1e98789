// Command shellcal-server syncs the configured calendar accounts into a
// local database and serves them on the session bus as
// org.gnome.Shell.CalendarServer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/djwarf/shellcal/internal/config"
	"github.com/djwarf/shellcal/internal/log"
	"github.com/djwarf/shellcal/internal/syncer"
	"github.com/djwarf/shellcal/pkg/providers"
	"github.com/djwarf/shellcal/pkg/providers/caldav"
	"github.com/djwarf/shellcal/pkg/providers/gnome"
	"github.com/djwarf/shellcal/pkg/providers/google"
	"github.com/djwarf/shellcal/pkg/providers/shell"
	"github.com/djwarf/shellcal/pkg/store"
)

const (
	callTimeout  = 30 * time.Second
	loginTimeout = 5 * time.Minute
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "path to config.yaml")
	envPath := flag.String("env", config.DefaultEnvPath(), "path to the .env file with secrets")
	login := flag.String("login", "", "authorise the Google account with this id and exit")
	once := flag.Bool("once", false, "sync once and exit without serving")
	logFile := flag.String("log-file", "", "append log lines to this file instead of stderr")
	flag.Parse()

	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			log.Error("failed to open log file", err, "path", *logFile)
			os.Exit(1)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	if err := config.LoadEnv(*envPath); err != nil {
		log.Error("failed to load secrets", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", err, "path", *configPath)
		os.Exit(1)
	}
	log.SetLevel(log.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *login != "":
		err = runLogin(ctx, cfg, *login)
	case *once:
		err = runOnce(ctx, cfg)
	default:
		err = serve(ctx, cfg)
	}
	if err != nil {
		log.Error("shellcal-server failed", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	st, err := store.NewStore(cfg.DatabasePath())
	if err != nil {
		return err
	}
	defer st.Close()

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer conn.Close()

	// Both hooks only fire from passes, which start after Export.
	var server *shell.Server
	s := newSyncer(st, cfg, conn, syncer.Options{
		OnChange: func() {
			if err := server.NotifyChanged(); err != nil {
				log.Error("failed to notify clients", err)
			}
		},
		OnHasCalendars: func(has bool) {
			server.SetHasCalendars(has)
		},
	})

	server, err = shell.Export(conn, s, callTimeout)
	if err != nil {
		return err
	}
	defer server.Close()

	if err := s.Start(ctx, cfg.SyncSchedule); err != nil {
		return err
	}
	log.Info("serving calendars", "accounts", len(cfg.Accounts), "schedule", cfg.SyncSchedule)

	<-ctx.Done()
	log.Info("shutting down")
	return nil
}

func runOnce(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	st, err := store.NewStore(cfg.DatabasePath())
	if err != nil {
		return err
	}
	defer st.Close()

	var conn *dbus.Conn
	if cfg.UseOnlineAccounts {
		if conn, err = dbus.ConnectSessionBus(); err != nil {
			log.Info("session bus unavailable, skipping online accounts", "err", err)
		} else {
			defer conn.Close()
		}
	}

	res, err := newSyncer(st, cfg, conn, syncer.Options{}).Sync(ctx)
	fmt.Printf("synced %d accounts, %d calendars, %d events\n", res.Accounts, res.Calendars, res.Events)
	return err
}

// newSyncer wires the configured accounts, and the desktop's online
// accounts when conn is set and enabled, into a Syncer with the hooks
// set in opts.
func newSyncer(st *store.Store, cfg *config.Config, conn *dbus.Conn, opts syncer.Options) *syncer.Syncer {
	opts.Sources = configuredSources(cfg)
	opts.PastDays = cfg.SyncPastDays
	opts.FutureDays = cfg.SyncFutureDays
	if cfg.UseOnlineAccounts && conn != nil {
		opts.Discover = gnome.New(conn).Sources
	}
	return syncer.New(st, opts)
}

func configuredSources(cfg *config.Config) []providers.Source {
	var sources []providers.Source
	for _, a := range cfg.Accounts {
		switch a.Type {
		case config.AccountCalDAV:
			sources = append(sources, caldav.NewClient(storeAccount(a, store.AccountTypeCalDAV), a.Password()))
		case config.AccountGoogle:
			sources = append(sources, google.NewClient(storeAccount(a, store.AccountTypeGoogle), googleOAuth(), cfg.TokenPath(a.ID)))
		}
	}
	return sources
}

func storeAccount(a config.AccountConfig, t store.AccountType) *store.Account {
	name := a.Name
	if name == "" {
		name = a.ID
	}
	return &store.Account{
		ID:        a.ID,
		Name:      name,
		Type:      t,
		Enabled:   true,
		ServerURL: a.ServerURL,
		Username:  a.Username,
	}
}

// googleOAuth reads the OAuth client from the environment.
func googleOAuth() google.OAuthConfig {
	return google.OAuthConfig{
		ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
	}
}

// runLogin walks the user through the browser consent for one Google
// account and stores the resulting token.
func runLogin(ctx context.Context, cfg *config.Config, accountID string) error {
	var account *config.AccountConfig
	for i := range cfg.Accounts {
		if cfg.Accounts[i].ID == accountID {
			account = &cfg.Accounts[i]
		}
	}
	if account == nil {
		return fmt.Errorf("no account %q in config", accountID)
	}
	if account.Type != config.AccountGoogle {
		return fmt.Errorf("account %q is %s, only google accounts need a login", accountID, account.Type)
	}

	oauth := googleOAuth()
	if oauth.ClientID == "" || oauth.ClientSecret == "" {
		return errors.New("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set")
	}

	callback, err := google.NewOAuthCallbackServer()
	if err != nil {
		return err
	}
	callback.Start()
	defer callback.Stop()

	oauth.RedirectURL = callback.RedirectURL()
	client := google.NewClient(storeAccount(*account, store.AccountTypeGoogle), oauth, cfg.TokenPath(account.ID))

	authURL := client.GetAuthURL(callback.State())
	fmt.Printf("Opening browser for Google sign-in. If nothing opens, visit:\n\n%s\n\n", authURL)
	if err := openBrowser(authURL); err != nil {
		log.Debug("failed to open browser", "err", err)
	}

	ctx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()
	code, err := callback.WaitForCode(ctx)
	if err != nil {
		return err
	}
	if err := client.ExchangeCode(ctx, code); err != nil {
		return err
	}
	fmt.Printf("Signed in. Token saved to %s\n", cfg.TokenPath(account.ID))
	return nil
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "linux", "freebsd", "openbsd":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	default:
		return fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}
	return cmd.Start()
}
