package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	prom "github.com/prometheus/client_golang/prometheus"

	"gnss-tracker/internal/config"
	"gnss-tracker/internal/logging"
	"gnss-tracker/internal/metrics"
	"gnss-tracker/internal/settings"
	"gnss-tracker/internal/status"
	"gnss-tracker/internal/storage"
	"gnss-tracker/internal/tracker"
)

var CLI struct {
	Config  string `short:"c" help:"Board configuration file (YAML); built-in defaults when empty" env:"GNSS_TRACKER_CONFIG"`
	Root    string `help:"Override storage.root" env:"GNSS_TRACKER_ROOT"`
	Verbose bool   `short:"v" help:"Log at info level until tracker.ini is read"`

	Run struct {
		ExitOnHalt bool `help:"Exit as soon as the device halts instead of holding the status LEDs" env:"GNSS_TRACKER_EXIT_ON_HALT"`
	} `cmd:"" default:"1" help:"Run the tracker"`

	Settings struct {
		Print struct{} `cmd:"" help:"Print the settings currently on the volume"`
		Check struct {
			File string `arg:"" help:"tracker.ini file to check" type:"existingfile"`
		} `cmd:"" help:"Parse a tracker.ini file and print the effective settings"`
	} `cmd:"" help:"Inspect device settings"`
}

func main() {
	// Missing .env is normal on the device.
	_ = godotenv.Load()

	ctx := kong.Parse(&CLI,
		kong.Name("gnss-tracker"),
		kong.Description("GNSS tracker with acceleration and pressure logging"),
	)

	switch ctx.Command() {
	case "run":
		os.Exit(run())
	case "settings print":
		cfg, err := loadBoard()
		if err != nil {
			slog.Error("Failed to load configuration", "error", err)
			os.Exit(1)
		}
		if err := printSettings(os.Stdout, cfg); err != nil {
			slog.Error("Failed to read settings", "error", err)
			os.Exit(1)
		}
	case "settings check <file>":
		if err := checkSettings(os.Stdout, CLI.Settings.Check.File); err != nil {
			slog.Error("Failed to check settings", "error", err)
			os.Exit(1)
		}
	}
}

func loadBoard() (config.Config, error) {
	cfg := config.Default()
	if CLI.Config != "" {
		var err error
		cfg, err = config.Load(CLI.Config)
		if err != nil {
			return config.Config{}, err
		}
	}
	if CLI.Root != "" {
		cfg.Storage.Root = CLI.Root
	}
	return cfg, nil
}

func run() int {
	initial := settings.Default().DebugMessage
	if CLI.Verbose {
		initial = settings.VerbosityInfo
	}
	logger := logging.New(os.Stderr, initial)
	slog.SetDefault(logger.Logger)

	cfg, err := loadBoard()
	if err != nil {
		// Always visible, whatever the verbosity.
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		return 1
	}
	mode, err := status.ParseMode(cfg.LEDs.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "led mode: %v\n", err)
		return 1
	}

	var indicator status.Indicator = status.NopIndicator{}
	if cfg.LEDs.Enable {
		leds, err := status.OpenLEDs([3]int{cfg.LEDs.Pins[0], cfg.LEDs.Pins[1], cfg.LEDs.Pins[2]}, "gnss-tracker")
		if err != nil {
			fmt.Fprintf(os.Stderr, "status leds init failed: %v\n", err)
			return 1
		}
		defer func() { _ = leds.Close() }()
		indicator = leds
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	reg := prom.NewRegistry()
	rec := metrics.NewRecorder(reg)
	if cfg.Metrics.Listen != "" {
		stop := serveMetrics(cfg.Metrics.Listen, reg, logger.Logger)
		defer stop()
	}

	c := tracker.New(cfg, tracker.Options{
		Logger:    logger,
		Indicator: indicator,
		Mode:      mode,
		Metrics:   rec,
		Console:   os.Stdout,
	})
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("tracker close failed", "error", err)
		}
	}()

	err = c.Setup(ctx)
	if err == nil {
		err = c.Run(ctx)
	}
	return exitCode(ctx, err, CLI.Run.ExitOnHalt, logger.Logger)
}

// exitCode maps the tracker result to a process status. A halted device keeps
// its LEDs until the process is told to stop.
func exitCode(ctx context.Context, err error, exitOnHalt bool, logger *slog.Logger) int {
	if err == nil {
		return 0
	}
	var herr *status.HaltError
	if !errors.As(err, &herr) {
		logger.Error("tracker failed", "error", err)
		return 1
	}
	fmt.Fprintf(os.Stderr, "%v (leds %s)\n", herr, herr.Pattern)
	if !exitOnHalt {
		<-ctx.Done()
	}
	return 2
}

func serveMetrics(addr string, reg *prom.Registry, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	logger.Info("metrics listening", "addr", addr)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// printSettings shows what the tracker would load from the volume without
// writing anything back.
func printSettings(w io.Writer, cfg config.Config) error {
	vol, err := storage.Open(cfg.Storage.Root)
	if err != nil {
		return err
	}
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := settings.NewStore(vol, cfg.Storage.SettingsFile, cfg.Storage.MaxBytes, quiet)
	rec, outcome, err := store.LoadOrInitialize()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "; %s %s\n%s\n", store.Name(), outcome, settings.Serialize(rec))
	return err
}

func checkSettings(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, settings.DefaultMaxBytes))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", settings.Serialize(settings.Parse(data, settings.Default())))
	return err
}
