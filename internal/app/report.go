package app

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/logkeep/internal/recovery"
)

var (
	reportCommand string
	reportExit    int
	reportOrigin  string
	reportRetry   bool

	reportCmd = &cobra.Command{
		Use:   "report",
		Short: "Record a failed command and capture diagnostics",
		Long: `Intercepts one failure declared by a collaborator script. The failure is
written to the error log with a unique error ID, a stack-trace bundle and
a system-state bundle are captured, recovery rules get one attempt, and an
alert goes out when thresholds or severity demand it.

The command exits with the reported exit code, so it can stand in for the
failing command in a pipeline without masking the failure:

  some-command || logkeep report --cmd "some-command" --exit $?`,
		Example: `  # Record a failed package install
  logkeep report --cmd "pkg install nginx" --exit 100

  # Record with an origin marker and retry the command once
  logkeep report --cmd "backup.sh" --exit 2 --origin nightly --retry`,
		RunE: runReport,
	}
)

func init() {
	reportCmd.Flags().StringVar(&reportCommand, "cmd", "", "failed command line (required)")
	reportCmd.Flags().IntVar(&reportExit, "exit", 1, "exit code the command failed with")
	reportCmd.Flags().StringVar(&reportOrigin, "origin", "", "origin marker (script name, job name)")
	reportCmd.Flags().BoolVar(&reportRetry, "retry", false, "re-run the command once as a recovery attempt")
	reportCmd.MarkFlagRequired("cmd")

	RootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := ensureDataDirs(cfg); err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	dispatcher := recovery.NewDispatcher()
	if reportRetry {
		if err := dispatcher.Register(recovery.Rule{
			Name:  "retry-once",
			Match: func(command string) bool { return true },
			Action: func() error {
				return exec.Command("sh", "-c", reportCommand).Run()
			},
		}); err != nil {
			return fmt.Errorf("failed to register retry rule: %w", err)
		}
	}

	ic, errLog, err := newInterceptor(cfg, st, dispatcher)
	if err != nil {
		return err
	}
	defer errLog.Close()

	ev := ic.Capture(reportCommand, reportExit, reportOrigin)

	fmt.Printf("Error ID: %s\n", ev.ID)
	fmt.Printf("Severity: %s\n", ev.Severity)
	fmt.Printf("Recovery: %s\n", ev.Recovery)
	if ev.TracePath != "" {
		fmt.Printf("Trace:    %s\n", ev.TracePath)
	}
	if ev.StatePath != "" {
		fmt.Printf("State:    %s\n", ev.StatePath)
	}
	if ev.Notified {
		fmt.Println("Alert sent.")
	}

	// Propagate the reported code so this command can replace the failing
	// one in a pipeline. Recovery success does not mask the failure.
	if reportExit != 0 {
		st.Close()
		errLog.Close()
		os.Exit(reportExit)
	}
	return nil
}
