// Command apportal is the captive-portal access point daemon.
// Run with --mock to use a simulated wireless device.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/micro-nova/apportal/internal/api"
	"github.com/micro-nova/apportal/internal/auth"
	"github.com/micro-nova/apportal/internal/config"
	"github.com/micro-nova/apportal/internal/console"
	"github.com/micro-nova/apportal/internal/controller"
	"github.com/micro-nova/apportal/internal/dnsredirect"
	"github.com/micro-nova/apportal/internal/events"
	"github.com/micro-nova/apportal/internal/hardware"
	"github.com/micro-nova/apportal/internal/identity"
	"github.com/micro-nova/apportal/internal/models"
	"github.com/micro-nova/apportal/internal/options"
	"github.com/micro-nova/apportal/internal/storage"
	"github.com/micro-nova/apportal/internal/zeroconf"
)

func main() {
	opts, err := options.Parse(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	closeLog := setupLogging(opts)
	defer closeLog()

	// Graceful shutdown context
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.Info("booting", "reset_reason", identity.ResetReason(), "boot_id", identity.BootID())

	// Storage root. Without it the portal still comes up from memory, with
	// default settings that do not survive a restart.
	var files storage.FS
	dir, err := storage.Mount(opts.StorageDir)
	if err != nil {
		slog.Error("failed to mount storage, settings will not persist", "path", opts.StorageDir, "err", err)
		files = storage.NewMemFS()
	} else {
		files = dir
	}
	if err := seedWeb(files); err != nil {
		slog.Warn("failed to seed web files", "err", err)
	}
	version := identity.GetVersionFromDir(opts.StorageDir)

	mgr := config.NewManager(files, opts.SettingsFile)
	cfg := mgr.LoadAtBoot()

	// Device driver
	var hw hardware.Driver
	if opts.Mock {
		slog.Info("using mock device driver")
		hw = hardware.NewMock()
	} else {
		slog.Info("using host wireless driver", "iface", opts.Interface)
		hw = hardware.NewHost(hardware.HostOptions{
			Interface:   opts.Interface,
			RunDir:      filepath.Join(os.TempDir(), "apportal"),
			StorageRoot: opts.StorageDir,
			Version:     version,
		})
	}
	if err := hw.Init(ctx); err != nil {
		slog.Error("device initialization failed", "err", err)
	}

	redirector := dnsredirect.New(dnsredirect.Options{
		Port:   opts.DNSPort,
		Domain: opts.DNSDomain,
		Target: cfg.IPAddress,
		TTL:    time.Duration(opts.DNSTTL) * time.Second,
		Rate:   opts.DNSRate,
	})

	bus := events.NewBus()
	ctrl := controller.New(mgr, hw, redirector, bus)
	_ = ctrl.BringUp(ctx)

	if err := redirector.Start(ctx); err != nil {
		slog.Error("dns redirector failed to start", "err", err)
	}

	// A corrupt access file must not silently open the portal.
	authSvc, err := auth.NewService(opts.AuthDir)
	if err != nil {
		slog.Error("auth service initialization failed", "dir", opts.AuthDir, "err", err)
		os.Exit(1)
	}
	defer authSvc.Close()

	if opts.MDNS {
		startZeroconf(ctx, opts.HTTPAddr, version, cfg, bus)
	}

	hidden := []string{mgr.Filename(), mgr.BackupFilename(), "/" + auth.FileName}
	router := api.NewRouter(ctrl, files, hidden, authSvc, bus)

	srv := &http.Server{
		Addr:         opts.HTTPAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // 0 = no timeout (needed for SSE)
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("portal listening", "addr", opts.HTTPAddr, "mock", opts.Mock, "storage", opts.StorageDir, "version", version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()

	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Warn("server shutdown error", "err", err)
	}
	redirector.Stop()
	if err := hw.StopAP(shutCtx); err != nil {
		slog.Warn("failed to stop access point", "err", err)
	}

	slog.Info("shutdown complete")
}

// setupLogging installs the default slog handler. Output goes to stderr and,
// when a console device is configured, to the serial port as well.
func setupLogging(opts options.Options) func() {
	logLevel := slog.LevelInfo
	if opts.Debug {
		logLevel = slog.LevelDebug
	}

	var out io.Writer = os.Stderr
	closeFn := func() {}
	var consoleErr error
	if opts.Console != "" {
		sink, err := console.Open(opts.Console, opts.ConsoleBaud)
		if err != nil {
			consoleErr = err
		} else {
			out = io.MultiWriter(os.Stderr, sink)
			closeFn = func() { sink.Close() }
		}
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: logLevel})))
	if consoleErr != nil {
		slog.Warn("serial console unavailable, logging to stderr only", "err", consoleErr)
	}
	return closeFn
}

// startZeroconf advertises the portal and keeps its TXT records in step with
// committed settings.
func startZeroconf(ctx context.Context, addr, version string, cfg models.Configuration, bus *events.Bus) {
	port := 80
	if _, p, err := net.SplitHostPort(addr); err == nil {
		if n, err := strconv.Atoi(p); err == nil {
			port = n
		}
	}

	zc := zeroconf.New(identity.GetHostname(), port, version)
	go func() {
		if err := zc.Start(ctx, cfg); err != nil {
			slog.Warn("zeroconf failed", "err", err)
		}
	}()

	id, changes := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(id)
		for {
			select {
			case c, ok := <-changes:
				if !ok {
					return
				}
				if err := zc.Update(c.Config); err != nil {
					slog.Debug("zeroconf: TXT update skipped", "err", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
