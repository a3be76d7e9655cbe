// Command anonftpd serves a directory tree to anonymous FTP clients.
//
// Usage:
//
//	anonftpd -root /srv/ftp -addr :2121
//
// Any client may log in as "anonymous" with any password and then list,
// change into and download anything below the root.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/gonzalop/anonftp/server"
)

type config struct {
	addr           string
	root           string
	listFormat     string
	textDefault    bool
	welcome        string
	idleTimeout    time.Duration
	passiveTimeout time.Duration
	dialTimeout    time.Duration
	writeTimeout   time.Duration
	pasvMin        int
	pasvMax        int
	publicHost     string
	bandwidth      int64
	maxConns       int
	maxConnsPerIP  int
	sequential     bool
	strictPort     bool
	activeIPCheck  bool
	hideDotFiles   bool
	redactIPs      bool
	xferlog        string
	debug          bool
}

func parseFlags(args []string) (*config, error) {
	cfg := &config{}
	fs := flag.NewFlagSet("anonftpd", flag.ContinueOnError)
	fs.StringVar(&cfg.addr, "addr", ":2121", "control connection listen address")
	fs.StringVar(&cfg.root, "root", ".", "directory served to clients")
	fs.StringVar(&cfg.listFormat, "list-format", "paths", "LIST output: paths, names or unix")
	fs.BoolVar(&cfg.textDefault, "ascii", false, "start sessions in ASCII representation")
	fs.StringVar(&cfg.welcome, "welcome", "", "220 greeting text")
	fs.DurationVar(&cfg.idleTimeout, "idle-timeout", 5*time.Minute, "close sessions idle this long (0 disables)")
	fs.DurationVar(&cfg.passiveTimeout, "passive-timeout", 30*time.Second, "wait this long for a PASV connection (0 disables)")
	fs.DurationVar(&cfg.dialTimeout, "dial-timeout", 10*time.Second, "PORT dial timeout (0 disables)")
	fs.DurationVar(&cfg.writeTimeout, "write-timeout", 0, "per-write deadline on control and data connections")
	fs.IntVar(&cfg.pasvMin, "pasv-min-port", 0, "lowest passive port (0 lets the OS choose)")
	fs.IntVar(&cfg.pasvMax, "pasv-max-port", 0, "highest passive port")
	fs.StringVar(&cfg.publicHost, "public-host", "", "host or IP advertised in PASV replies")
	fs.Int64Var(&cfg.bandwidth, "bandwidth", 0, "per-session download limit in bytes/s (0 is unlimited)")
	fs.IntVar(&cfg.maxConns, "max-conns", 0, "maximum concurrent sessions (0 is unlimited)")
	fs.IntVar(&cfg.maxConnsPerIP, "max-conns-per-ip", 0, "maximum concurrent sessions per client address (0 is unlimited)")
	fs.BoolVar(&cfg.sequential, "sequential", false, "serve one session at a time")
	fs.BoolVar(&cfg.strictPort, "strict-port", false, "reply 501 to malformed PORT arguments")
	fs.BoolVar(&cfg.activeIPCheck, "active-ip-check", false, "refuse PORT targets other than the client address")
	fs.BoolVar(&cfg.hideDotFiles, "hide-dotfiles", false, "omit dot files from listings")
	fs.BoolVar(&cfg.redactIPs, "redact-ips", false, "mask the last octet of client addresses in logs")
	fs.StringVar(&cfg.xferlog, "xferlog", "", "append completed downloads to this file in xferlog format")
	fs.BoolVar(&cfg.debug, "debug", false, "log every command")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return cfg, nil
}

// serverOptions turns the flags into server options. The returned cleanup
// closes the transfer log, if one was opened.
func (cfg *config) serverOptions(logger *slog.Logger, driver server.Driver) ([]server.Option, func(), error) {
	format, err := server.ParseListFormat(cfg.listFormat)
	if err != nil {
		return nil, nil, err
	}
	rep := server.Binary
	if cfg.textDefault {
		rep = server.Text
	}

	opts := []server.Option{
		server.WithDriver(driver),
		server.WithLogger(logger),
		server.WithListFormat(format),
		server.WithDefaultRepresentation(rep),
		server.WithIdleTimeout(cfg.idleTimeout),
		server.WithPassiveTimeout(cfg.passiveTimeout),
		server.WithDialTimeout(cfg.dialTimeout),
		server.WithWriteTimeout(cfg.writeTimeout),
		server.WithMaxConnections(cfg.maxConns),
		server.WithMaxConnectionsPerIP(cfg.maxConnsPerIP),
		server.WithSequentialSessions(cfg.sequential),
		server.WithStrictPortReplies(cfg.strictPort),
		server.WithActiveIPCheck(cfg.activeIPCheck),
		server.WithRedactIPs(cfg.redactIPs),
	}
	if cfg.welcome != "" {
		opts = append(opts, server.WithWelcomeMessage(cfg.welcome))
	}
	if cfg.publicHost != "" {
		opts = append(opts, server.WithPublicHost(cfg.publicHost))
	}
	if cfg.pasvMin != 0 || cfg.pasvMax != 0 {
		opts = append(opts, server.WithPassivePortRange(cfg.pasvMin, cfg.pasvMax))
	}
	if cfg.bandwidth > 0 {
		opts = append(opts, server.WithBandwidthLimit(cfg.bandwidth))
	}

	cleanup := func() {}
	if cfg.xferlog != "" {
		f, err := os.OpenFile(cfg.xferlog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open transfer log: %w", err)
		}
		opts = append(opts, server.WithTransferLog(f))
		cleanup = func() { f.Close() }
	}
	return opts, cleanup, nil
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "anonftpd: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config) error {
	color.NoColor = !term.IsTerminal(int(os.Stdout.Fd()))

	level := slog.LevelInfo
	if cfg.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	driver, err := server.NewFSDriver(cfg.root, server.WithHideDotFiles(cfg.hideDotFiles))
	if err != nil {
		return err
	}
	defer driver.Close()

	opts, cleanup, err := cfg.serverOptions(logger, driver)
	if err != nil {
		return err
	}
	defer cleanup()

	srv, err := server.NewServer(cfg.addr, opts...)
	if err != nil {
		return err
	}

	printBanner(os.Stdout, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, server.ErrServerClosed) {
		return err
	}
	return nil
}
