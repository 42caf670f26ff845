package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/logkeep/internal/output"
)

var (
	eventsLimit     int
	eventsID        string
	eventsRotations bool

	eventsCmd = &cobra.Command{
		Use:   "events",
		Short: "List intercepted errors and rotation history",
		Long: `Lists intercepted error events from the audit database, newest first.
Use --id for the full record of one event, or --rotations for the
rotation history instead.`,
		Example: `  # Most recent intercepted errors
  logkeep events

  # Full record of one error
  logkeep events --id 3f2a9b1c

  # Rotation history
  logkeep events --rotations`,
		RunE: runEvents,
	}
)

func init() {
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 20, "maximum rows to show")
	eventsCmd.Flags().StringVar(&eventsID, "id", "", "show the full record for one error ID")
	eventsCmd.Flags().BoolVar(&eventsRotations, "rotations", false, "show rotation history instead of errors")

	RootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfg.DBPath()); os.IsNotExist(err) {
		fmt.Println("No audit database yet. Run 'logkeep report' or 'logkeep rotate' first.")
		return nil
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if eventsID != "" {
		ev, err := st.GetErrorEvent(eventsID)
		if err != nil {
			return err
		}
		fmt.Print(output.RenderEventDetail(ev))
		return nil
	}

	if eventsRotations {
		rotations, err := st.ListRotations(eventsLimit)
		if err != nil {
			return err
		}
		fmt.Print(output.RenderRotationTable(rotations))
		return nil
	}

	events, err := st.ListErrorEvents(eventsLimit)
	if err != nil {
		return err
	}
	fmt.Print(output.RenderEventTable(events))
	return nil
}
