// cqldata serves the tenant file, folder, stream, cache, log and slot services over HTTP.
//
// Usage:
//
//	cqldata [--config cqldata.yaml] [--address :8080] [--log-level info]
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "log/slog"

	flag "github.com/spf13/pflag"

	"github.com/magiccloud/cqldata"
	"github.com/magiccloud/cqldata/config"
)

func main() {
	fs := flag.NewFlagSet("cqldata", flag.ExitOnError)
	configPath := fs.StringP("config", "c", "", "Path of the YAML or JSONC configuration file")
	address := fs.String("address", "", "HTTP listen address, overrides http.address")
	logLevel := fs.String("log-level", "", "Process log level (debug, info, warn, error)")
	showVersion := fs.BoolP("version", "v", false, "Print the version and exit")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: cqldata [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}
	if *showVersion {
		fmt.Println(cqldata.Version)
		return
	}

	cqldata.ConfigureLogging()
	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Error("loading configuration failed", "error", err)
		os.Exit(1)
	}
	if *address != "" {
		cfg.HTTP.Address = *address
	}
	if *logLevel != "" {
		cfg.Logging.Process = *logLevel
	}
	if lvl, ok := cqldata.ParseSlogLevel(cfg.Logging.Process); ok {
		cqldata.SetLogLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg); err != nil {
		log.Error("cqldata stopped", "error", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	c := config.Default()
	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		return config.Config{}, err
	}
	return c, c.Validate()
}

func run(ctx context.Context, cfg config.Config) error {
	app, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	server := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           app.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errs := make(chan error, 1)
	go func() {
		log.Info("cqldata listening", "address", cfg.HTTP.Address, "version", cqldata.Version)
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownTimeout))
	defer cancel()
	log.Info("cqldata shutting down")
	return server.Shutdown(shutdownCtx)
}
