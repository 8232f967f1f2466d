package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "fire-reminders",
		Short: "Run one reminder scheduler tick",
		Run:   runFireReminders,
	})
	RootCmd.AddCommand(&cobra.Command{
		Use:   "process-deferred",
		Short: "Deliver due scheduled notifications",
		Run:   runProcessDeferred,
	})
	RootCmd.AddCommand(&cobra.Command{
		Use:   "sweep-audit",
		Short: "Archive and delete one batch of expired audit records",
		Run:   runSweepAudit,
	})
}

func runFireReminders(cmd *cobra.Command, args []string) {
	svcs := buildServices(cmd)
	report, err := svcs.Reminders.FireDueReminders(cmd.Context(), time.Now())
	if err != nil {
		exitErr("fire reminders", err)
	}
	printJSON(report)
}

func runProcessDeferred(cmd *cobra.Command, args []string) {
	svcs := buildServices(cmd)
	report, err := svcs.Dispatch.ProcessDeferred(cmd.Context(), time.Now())
	if err != nil {
		exitErr("process deferred", err)
	}
	printJSON(report)
}

func runSweepAudit(cmd *cobra.Command, args []string) {
	svcs := buildServices(cmd)
	deleted, err := svcs.Audit.SweepRetention(cmd.Context(), time.Now())
	if err != nil {
		exitErr("sweep audit", err)
	}
	printJSON(map[string]int{"deleted": deleted})
}

func printJSON(v interface{}) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}
