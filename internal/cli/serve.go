package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Heizenburger/chess-mentor/internal/freeplay"
	"github.com/Heizenburger/chess-mentor/internal/ident"
	"github.com/Heizenburger/chess-mentor/internal/puzzle"
	"github.com/Heizenburger/chess-mentor/internal/rules"
	"github.com/Heizenburger/chess-mentor/internal/server"
	"github.com/Heizenburger/chess-mentor/internal/session"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	sourceFlags
	Addr string

	// Listener replaces the TCP listener (for testing).
	Listener net.Listener
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the trainer over HTTP and WebSocket",
		Long: `Run the puzzle session and a free-play game behind a JSON API.

Snapshots are pushed to WebSocket clients on /ws as they change.

Example:
  chessmentor serve --addr 127.0.0.1:8080
  chessmentor serve --file ./puzzles.ndjson --db ./chessmentor.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}
	opts.sourceFlags.register(cmd)
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides server.addr)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	opts.sourceFlags.apply(cmd, &cfg)
	if opts.Addr != "" {
		cfg.Server.Addr = opts.Addr
	}
	side, err := cfg.Side()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid side", err)
	}
	difficulty, err := cfg.Difficulty()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid difficulty", err)
	}

	st, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	eng := rules.NewStandard()
	m := session.NewMachine(eng, puzzle.NewQueue(), cfg.SessionConfig())
	var runnerOpts []session.RunnerOption
	gameOpts := []freeplay.Option{}
	if st != nil {
		runnerOpts = append(runnerOpts, session.WithRecorder(st))
		gameOpts = append(gameOpts, freeplay.WithRecorder(st))
	}
	runner := session.NewRunner(ident.UUIDv7{}.Generate(), m, newSource(cfg, st), runnerOpts...)

	game := freeplay.NewGame(eng, gameOpts...)
	if err := game.Configure(side, difficulty); err != nil {
		return WrapExitError(ExitCommandError, "invalid game settings", err)
	}

	var srvOpts []server.Option
	if st != nil {
		srvOpts = append(srvOpts, server.WithHistory(st))
	}
	srv := server.New(runner, game, srvOpts...)

	ln := opts.Listener
	if ln == nil {
		ln, err = net.Listen("tcp", cfg.Server.Addr)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to listen", err)
		}
	}
	httpSrv := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runner.Run(gctx)
	})
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	runner.Enqueue(session.Event{Type: session.EventStart})
	slog.Info("server listening", "addr", ln.Addr().String())
	fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://%s\n", ln.Addr().String())

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "server error", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
