package cli

import (
	"github.com/carelink-api/internal/domain"
	"github.com/carelink-api/internal/pkg/validate"
	"github.com/spf13/cobra"
)

var raiseAlertFlags struct {
	subjectID   string
	category    string
	severity    string
	location    string
	description string
	actorID     string
}

func init() {
	cmd := &cobra.Command{
		Use:   "raise-alert",
		Short: "Raise an emergency alert for a subject",
		Run:   runRaiseAlert,
	}
	cmd.Flags().StringVar(&raiseAlertFlags.subjectID, "subject", "", "Subject user id (required)")
	cmd.Flags().StringVar(&raiseAlertFlags.category, "category", "other", "Alert category: medical|fall|panic|other")
	cmd.Flags().StringVar(&raiseAlertFlags.severity, "severity", "medium", "Alert severity: low|medium|high|critical")
	cmd.Flags().StringVar(&raiseAlertFlags.location, "location", "", "Where the event happened")
	cmd.Flags().StringVar(&raiseAlertFlags.description, "description", "", "Free-text description")
	cmd.Flags().StringVar(&raiseAlertFlags.actorID, "actor", "", "Acting user id (defaults to the subject)")
	_ = cmd.MarkFlagRequired("subject")

	RootCmd.AddCommand(cmd)
}

func runRaiseAlert(cmd *cobra.Command, args []string) {
	req := domain.RaiseAlertRequest{
		SubjectID: raiseAlertFlags.subjectID,
		Category:  raiseAlertFlags.category,
		Severity:  raiseAlertFlags.severity,
	}
	if raiseAlertFlags.location != "" {
		req.Location = &raiseAlertFlags.location
	}
	if raiseAlertFlags.description != "" {
		req.Description = &raiseAlertFlags.description
	}
	if err := validate.Struct(req); err != nil {
		exitErr("invalid alert request", err)
	}

	actorID := raiseAlertFlags.actorID
	if actorID == "" {
		actorID = req.SubjectID
	}

	svcs := buildServices(cmd)
	res, err := svcs.Alerts.Raise(cmd.Context(), req, actorID)
	if err != nil {
		exitErr("raise alert", err)
	}
	printJSON(res)
}
