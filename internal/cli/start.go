package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/relaycore/agentd/internal/config"
	"github.com/relaycore/agentd/internal/daemon"
	"github.com/relaycore/agentd/internal/logger"
	"github.com/spf13/cobra"
)

var foreground bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Ranya daemon service",
	Long: `Start the Ranya daemon service in the background.
The daemon will process messages from Telegram and other channels.`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVar(&foreground, "foreground", false, "run in the foreground instead of daemonizing")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	pidFile := getPIDFilePath()
	if isRunning(pidFile) {
		return fmt.Errorf("daemon is already running (PID file: %s)", pidFile)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Dir(pidFile)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = logLevel
	logCfg.Console = foreground
	log, err := logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Close()

	d, err := daemon.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	if err := d.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	fmt.Println("Ranya daemon started.")

	if !foreground {
		return nil
	}

	d.Wait()
	return nil
}

func getPIDFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/ranya.pid"
	}
	return filepath.Join(home, ".ranya", "ranya.pid")
}

func isRunning(pidFile string) bool {
	if _, err := os.Stat(pidFile); os.IsNotExist(err) {
		return false
	}

	// Read PID and check if process exists
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return false
	}

	var pid int
	_, err = fmt.Sscanf(string(data), "%d", &pid)
	if err != nil {
		return false
	}

	// Check if process exists
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// On Unix, FindProcess always succeeds, so we need to send signal 0
	err = process.Signal(os.Signal(nil))
	return err == nil
}
