package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bibnote/bibnote/internal/commands"
	"github.com/bibnote/bibnote/internal/config"
	"github.com/bibnote/bibnote/internal/doctor"
	"github.com/bibnote/bibnote/internal/events"
	"github.com/bibnote/bibnote/internal/logging"
	"github.com/bibnote/bibnote/internal/prompt"
	"github.com/bibnote/bibnote/internal/records"
	"github.com/bibnote/bibnote/internal/telemetry"
	"github.com/bibnote/bibnote/internal/tracing"
	"github.com/bibnote/bibnote/internal/tui"
	"github.com/bibnote/bibnote/internal/tui/components"
	"github.com/bibnote/bibnote/internal/tui/views"
	"github.com/bibnote/bibnote/internal/workflow"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

const (
	listWidth = 100
	noteWidth = 80
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:])
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	runID := uuid.NewString()
	logger, err := logging.New(ctx,
		logging.WithDir(cfg.LogDir),
		logging.WithLevel(cfg.LogLevel),
		logging.WithRunID(runID),
	)
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	defer func() {
		if closeErr := logger.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "failed to close logger: %v\n", closeErr)
		}
	}()

	a := newApp(cfg, logger.Logger)
	a.args = args
	a.bindLogger = func(ctx context.Context) *log.Logger {
		return logger.BindSpan(ctx).Logger
	}
	defer a.close()

	cmd := newRootCommand(a)
	cmd.SetArgs(args)
	err = cmd.ExecuteContext(ctx)
	a.finishCommand(err)
	return err
}

// app carries the wiring shared by every subcommand.
type app struct {
	cfg      *config.Config
	logger   *log.Logger
	bus      *events.InMemoryBus
	registry *commands.Registry
	hosts    *hostSwitch

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	interactive      func() bool
	stopTelemetry    func()
	endpointOverride string
	registered       bool

	args          []string
	bindLogger    func(context.Context) *log.Logger
	finishCommand func(error)
}

func newApp(cfg *config.Config, logger *log.Logger) *app {
	if logger == nil {
		logger = logging.Discard().Logger
	}
	bus := events.New(events.WithLogger(logger.StandardLog()))
	events.LogTo(bus, logger)

	a := &app{
		cfg:           cfg,
		logger:        logger,
		bus:           bus,
		registry:      commands.NewRegistry(bus),
		hosts:         &hostSwitch{},
		stdin:         os.Stdin,
		stdout:        os.Stdout,
		stderr:        os.Stderr,
		stopTelemetry: func() {},
		finishCommand: func(error) {},
	}
	a.interactive = func() bool { return isTerminal(a.stdin) && isTerminal(a.stdout) }
	return a
}

// close flushes queued events into the log and stops telemetry.
func (a *app) close() {
	a.bus.Close()
	if a.stopTelemetry != nil {
		a.stopTelemetry()
	}
}

func (a *app) store() *records.Store {
	return records.NewStore(a.cfg.RecordDir(), records.WithPublisher(a.bus))
}

// registerCommands fills the palette. It runs after flags are applied so the
// workflow sees the final record folder.
func (a *app) registerCommands() error {
	if a.registered {
		return nil
	}
	flow, err := workflow.New(a.hosts, a.store(), a.logger, workflow.WithPromptOptions(prompt.WithPublisher(a.bus)))
	if err != nil {
		return err
	}
	if err := flow.Register(a.registry); err != nil {
		return err
	}
	a.registered = true
	return nil
}

func newRootCommand(a *app) *cobra.Command {
	var (
		vault  string
		folder string
		host   string
	)

	root := &cobra.Command{
		Use:           "bibnote",
		Short:         "Record bibliographic entries as notes in a markdown vault",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}
	root.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&vault, "vault", "", "vault directory (default from config, else the working directory)")
	flags.StringVar(&folder, "folder", "", "record folder inside the vault")
	flags.StringVar(&host, "host", "", "dialog host: auto, tui or stdio")
	flags.StringVar(&a.endpointOverride, "otel-endpoint", "", "export traces to this OTLP HTTP endpoint")

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		if a.cfg == nil {
			return errors.New("config is required")
		}
		if err := applyFlagOverrides(a.cfg, vault, folder, host); err != nil {
			return err
		}
		if err := a.startTelemetry(cmd.Context()); err != nil {
			return err
		}
		ctx, finish := tracing.StartCommand(cmd.Context(), a.args)
		a.finishCommand = finish
		cmd.SetContext(ctx)
		if a.bindLogger != nil {
			a.logger = a.bindLogger(ctx)
		}
		a.logger.With("command", cmd.Name(), "vault", a.cfg.VaultDir, "host", a.cfg.Host).Debug("command invocation")
		return nil
	}

	root.AddCommand(
		newInteractiveCommand(a, workflow.AddEntryID, workflow.AddEntryName, "add"),
		newCommandsCommand(a),
		newListCommand(a),
		newShowCommand(a),
		newBrowseCommand(a),
		newDoctorCommand(a),
		newBugreportCommand(a),
	)
	return root
}

func applyFlagOverrides(cfg *config.Config, vault, folder, host string) error {
	if vault = strings.TrimSpace(vault); vault != "" {
		cfg.VaultDir = vault
	}
	if folder = strings.TrimSpace(folder); folder != "" {
		cfg.RecordFolder = folder
	}
	if host = strings.ToLower(strings.TrimSpace(host)); host != "" {
		cfg.Host = host
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

func (a *app) startTelemetry(ctx context.Context) error {
	if endpoint := strings.TrimSpace(a.endpointOverride); endpoint != "" {
		telemetry.SetEndpointOverride(endpoint)
	}
	shutdown, err := telemetry.Init(ctx, telemetry.Settings{
		Enabled:     a.cfg.Telemetry.Enabled,
		Endpoint:    a.cfg.Telemetry.Endpoint,
		ServiceName: a.cfg.Telemetry.ServiceName,
		Fallback:    a.logger.StandardLog().Writer(),
	})
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	a.stopTelemetry = shutdown
	return nil
}

// newInteractiveCommand exposes a palette entry as a subcommand named by its ID.
func newInteractiveCommand(a *app, id, name string, aliases ...string) *cobra.Command {
	return &cobra.Command{
		Use:     id,
		Aliases: aliases,
		Short:   name,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.registerCommands(); err != nil {
				return err
			}
			err := a.runDialogs(cmd.Context(), func(ctx context.Context) error {
				return a.registry.Invoke(ctx, id)
			})
			if isCancellation(err) {
				a.logger.With("command", id).Info("command cancelled")
				fmt.Fprintln(cmd.ErrOrStderr(), components.RenderStatusBadge("cancelled")+" nothing was saved")
				return nil
			}
			return err
		},
	}
}

func newCommandsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List the command palette",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.registerCommands(); err != nil {
				return err
			}
			for _, command := range a.registry.List() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-28s %s\n", command.ID, command.Name)
			}
			return nil
		},
	}
}

func newListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show recorded entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := a.store().List()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), views.RenderRecordTable(entries, listWidth))
			return nil
		},
	}
}

func newBrowseCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse entries in a full-screen view",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.interactive() {
				return errors.New("browse needs an interactive terminal; use list or show instead")
			}
			entries, err := a.store().List()
			if err != nil {
				return err
			}
			return tui.RunBrowser(cmd.Context(), entries, a.stdin, a.stdout)
		},
	}
}

func newShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <title>",
		Short: "Render one entry",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.Join(args, " ")
			record, err := a.store().Load(title)
			if errors.Is(err, records.ErrNotFound) {
				return fmt.Errorf("no record named %q in %s", title, a.cfg.RecordDir())
			}
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), views.RenderNote(views.RecordMarkdown(record), noteWidth))
			return nil
		},
	}
}

func newDoctorCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the vault, record folder and dialog host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := a.doctorReport(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), views.RenderHealthReport(report))
			if !report.Healthy() {
				return errors.New("doctor found problems")
			}
			return nil
		},
	}
}

func (a *app) doctorReport(ctx context.Context) (doctor.HealthReport, error) {
	manager, err := doctor.NewManager(a.cfg, a.interactive(), a.bus)
	if err != nil {
		return doctor.HealthReport{}, err
	}
	return manager.RunOnce(ctx)
}
