package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/gaurav-shinde-07/clueso-ai/internal/config"
	"github.com/gaurav-shinde-07/clueso-ai/internal/export"
	"github.com/gaurav-shinde-07/clueso-ai/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loadDotEnv()

	cmd := &cli.Command{
		Name:   "clueso-api",
		Usage:  "turn recorded product sessions into narrated guides",
		Action: serveAction,
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP API and background pipeline",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "listen address (overrides CLUESO_API_ADDR)",
					},
				},
				Action: serveAction,
			},
			{
				Name:      "process",
				Usage:     "run the pipeline in the foreground for a stored recording or a local media file",
				ArgsUsage: "<recording-id | media-file>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "events",
						Usage: "JSON file with captured events (media-file mode)",
					},
					&cli.StringFlag{
						Name:  "metadata",
						Usage: "JSON file with session metadata (media-file mode)",
					},
				},
				Action: processAction,
			},
			{
				Name:      "export",
				Usage:     "write a completed guide as an XLSX workbook",
				ArgsUsage: "<recording-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "out",
						Usage: "output file (defaults to <recording-id>.xlsx)",
					},
				},
				Action: exportAction,
			},
			{
				Name:      "search",
				Usage:     "query the guide knowledge base",
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "maximum number of results",
						Value: 5,
					},
				},
				Action: searchAction,
			},
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(ctx context.Context) (*app, error) {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	return newApp(ctx, cfg, log)
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := a.cfg.Addr
	if v := cmd.String("addr"); v != "" {
		addr = v
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           a.server().Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.WithField("addr", addr).WithField("base_url", a.blobs.BaseURL).Info("API listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		a.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			a.log.WithError(err).Warn("http shutdown")
		}
	}

	a.log.Info("waiting for running pipelines")
	a.orchestrator.Wait()
	return nil
}

func processAction(ctx context.Context, cmd *cli.Command) error {
	target := cmd.Args().First()
	if target == "" {
		return errors.New("missing recording id or media file")
	}
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	id := target
	if info, statErr := os.Stat(target); statErr == nil && !info.IsDir() {
		id, err = a.ingestFile(ctx, target, cmd.String("events"), cmd.String("metadata"))
		if err != nil {
			return err
		}
		a.log.WithField("recording_id", id).Info("media file ingested")
	}

	if err := a.orchestrator.Run(ctx, id); err != nil {
		return err
	}
	rec, err := a.store.GetRecording(ctx, id)
	if err != nil {
		return err
	}
	return printJSON(rec)
}

func exportAction(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return errors.New("missing recording id")
	}
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	rec, err := a.store.GetRecording(ctx, id)
	if err != nil {
		return fmt.Errorf("load recording %s: %w", id, err)
	}
	out := cmd.String("out")
	if out == "" {
		out = id + ".xlsx"
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := export.WriteGuide(f, rec); err != nil {
		_ = f.Close()
		_ = os.Remove(out)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	a.log.WithField("file", out).Info("guide exported")
	return nil
}

func searchAction(ctx context.Context, cmd *cli.Command) error {
	query := cmd.Args().First()
	if query == "" {
		return errors.New("missing query")
	}
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.indexer == nil {
		return errors.New("knowledge base is not configured (set KB_DATABASE_URL)")
	}
	hits, err := a.indexer.Search(ctx, query, int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	return printJSON(hits)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
