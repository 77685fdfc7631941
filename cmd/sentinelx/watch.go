package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"sentinelx/internal/admin"
	"sentinelx/internal/capture"
	"sentinelx/internal/config"
	"sentinelx/internal/logging"
	"sentinelx/internal/plc"
	"sentinelx/internal/proc"
	"sentinelx/internal/sentinel"
	"sentinelx/internal/state"
	"sentinelx/internal/tui"
	"sentinelx/internal/vision"
)

var (
	watchConfigPath string
	watchSchemaPath string
	watchHeadless   bool
	watchLaunchPLC  bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the sentinel monitor loops",
	Long:  "watch starts the link poller, host sampler and visual inference loop, renders the live dashboard, and arms the one-way kill-switch.",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Best-effort; a missing .env just means the credential comes from
		// the real environment.
		_ = godotenv.Load()

		cfg, err := config.Load(watchConfigPath, watchSchemaPath)
		if err != nil {
			return err
		}

		logger := logging.New(os.Stderr)
		slog.SetDefault(logger)
		log.SetOutput(os.Stderr)

		// Earlier runs may have left orphaned controllers behind.
		if n := proc.Scavenge(cfg.PLC.ProcessMatch); n > 0 {
			logger.Info("reaped stale controller processes", "count", n)
		}

		st := state.New()
		deps := sentinel.Deps{
			Link:    plc.NewClient(cfg.PLC.Address, cfg.PLC.Port, byte(cfg.PLC.UnitID), cfg.PLC.RequestTimeout.Std()),
			Reaper:  proc.Reaper{},
			Sampler: sentinel.GopsutilSampler{},
		}
		if key := os.Getenv(cfg.Vision.APIKeyEnv); key != "" {
			deps.Classifier = vision.NewOpenAIClassifier(key, cfg.Vision.BaseURL)
		}
		if src, err := capture.OpenDevice(cfg.Vision.DeviceIndex); err != nil {
			logger.Warn("sensing device unavailable", "index", cfg.Vision.DeviceIndex, "err", err)
		} else {
			deps.Frames = src
		}

		engine := sentinel.New(cfg, st, deps)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if watchLaunchPLC {
			pid, err := launchController(ctx, cfg)
			if err != nil {
				return err
			}
			logger.Info("launched controller", "pid", pid)
			engine.SetControllerPID(pid)
		}

		if cfg.Admin.Addr != "" {
			adminLog := logging.Component(logger, "admin")
			go func() {
				srv := admin.NewServer(engine)
				log.Printf("[Main] Status endpoint listening on %s", cfg.Admin.Addr)
				if err := srv.Start(ctx, cfg.Admin.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					adminLog.Error("status server failed", "err", err)
				}
			}()
		}

		go engine.Run(ctx)

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigs
			cancel()
		}()

		target := fmt.Sprintf("%s:%d", cfg.PLC.Address, cfg.PLC.Port)
		if !watchHeadless && term.IsTerminal(int(os.Stdout.Fd())) {
			if err := tui.Run(st, target); err != nil {
				return err
			}
		} else {
			sentinel.NewStatusWriter(st, cfg.PLC.PollInterval.Std()).Run(ctx)
		}

		cancel()
		log.Println("[Main] Sentinel stopped.")
		return nil
	},
}

// launchController starts the bundled controller binary as a child so demos
// run self-contained. The child's PID pre-seeds the kill-switch.
func launchController(ctx context.Context, cfg *config.Config) (int32, error) {
	addr := fmt.Sprintf("%s:%d", cfg.PLC.Address, cfg.PLC.Port)
	child := exec.CommandContext(ctx, "sentinel-plc", "--addr", addr)
	child.Stdout = os.Stderr
	child.Stderr = os.Stderr
	if err := child.Start(); err != nil {
		return 0, fmt.Errorf("launch controller: %w", err)
	}
	go func() { _ = child.Wait() }()
	return int32(child.Process.Pid), nil
}

func init() {
	watchCmd.Flags().StringVar(&watchConfigPath, "config", "config/sentinel.yaml", "Path to sentinel configuration YAML")
	watchCmd.Flags().StringVar(&watchSchemaPath, "schema", "schemas/sentinel.cue", "Path to CUE schema file")
	watchCmd.Flags().BoolVar(&watchHeadless, "headless", false, "Emit JSON status lines instead of the dashboard")
	watchCmd.Flags().BoolVar(&watchLaunchPLC, "launch-plc", false, "Launch the bundled controller binary as a child process")
}
