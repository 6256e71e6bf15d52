package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cwbudde/algo-chord/chord"
	"github.com/cwbudde/algo-chord/engine"
	"github.com/cwbudde/algo-chord/internal/httpapi"
	"github.com/cwbudde/algo-chord/session"
	"github.com/cwbudde/algo-chord/sink"
	"github.com/cwbudde/algo-chord/sink/otosink"
	"github.com/spf13/cobra"
)

var (
	serveAddr     string
	serveOrigins  string
	serveHeadless bool
	serveDebounce time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP control API",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadPreset()
		if err != nil {
			return err
		}
		cfg := p.Config
		cfg.Logger = logger

		var out sink.Sink = sink.NewDiscard()
		if !serveHeadless {
			dev, err := otosink.New(otosink.Config{SampleRate: cfg.Params.SampleRate})
			if err != nil {
				logger.Warn("audio device unavailable, serving without sound", "err", err)
			} else {
				out = dev
			}
		}
		e, err := engine.New(cfg, out)
		if err != nil {
			_ = out.Close()
			return err
		}
		defer e.Shutdown()

		sess := session.New(e, session.Options{
			Debounce: serveDebounce,
			Logger:   logger,
			OnChange: func(r chord.Result) {
				logger.Info("chord", "label", r.Label, "notes", strings.Join(r.Names, " "))
			},
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := e.Start(ctx); err != nil {
			return err
		}

		api := httpapi.New(sess, e, logger)
		srv := &http.Server{
			Addr:              serveAddr,
			Handler:           api.Handler(strings.Split(serveOrigins, ",")),
			ReadHeaderTimeout: 5 * time.Second,
		}

		errc := make(chan error, 1)
		go func() {
			logger.Info("listening", "addr", serveAddr, "engine", e.ID())
			errc <- srv.ListenAndServe()
		}()

		select {
		case err := <-errc:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().StringVar(&serveOrigins, "origins", "*", "comma-separated CORS origins")
	serveCmd.Flags().BoolVar(&serveHeadless, "headless", false, "discard audio instead of opening the device")
	serveCmd.Flags().DurationVar(&serveDebounce, "debounce", 50*time.Millisecond, "coalesce chord label updates")
	rootCmd.AddCommand(serveCmd)
}
