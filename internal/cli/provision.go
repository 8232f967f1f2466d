package cli

import (
	"time"

	"github.com/carelink-api/internal/domain"
	"github.com/spf13/cobra"
)

var addProfileFlags struct {
	userID       string
	displayName  string
	role         string
	phone        string
	pushToken    string
	contactName  string
	contactPhone string
}

var careTeamFlags struct {
	subjectID string
	memberID  string
	relation  string
	remove    bool
}

func init() {
	profileCmd := &cobra.Command{
		Use:   "add-profile",
		Short: "Create or overwrite a profile record",
		Run:   runAddProfile,
	}
	profileCmd.Flags().StringVar(&addProfileFlags.userID, "id", "", "User id (required)")
	profileCmd.Flags().StringVar(&addProfileFlags.displayName, "name", "", "Display name (required)")
	profileCmd.Flags().StringVar(&addProfileFlags.role, "role", domain.RoleSubject, "Role: subject|caregiver|provider|admin")
	profileCmd.Flags().StringVar(&addProfileFlags.phone, "phone", "", "Phone number for SMS")
	profileCmd.Flags().StringVar(&addProfileFlags.pushToken, "push-token", "", "Push endpoint ARN")
	profileCmd.Flags().StringVar(&addProfileFlags.contactName, "contact-name", "", "Emergency contact name")
	profileCmd.Flags().StringVar(&addProfileFlags.contactPhone, "contact-phone", "", "Emergency contact phone")
	_ = profileCmd.MarkFlagRequired("id")
	_ = profileCmd.MarkFlagRequired("name")
	RootCmd.AddCommand(profileCmd)

	teamCmd := &cobra.Command{
		Use:   "link-care-team",
		Short: "Link (or unlink) a caregiver or provider to a subject",
		Run:   runLinkCareTeam,
	}
	teamCmd.Flags().StringVar(&careTeamFlags.subjectID, "subject", "", "Subject user id (required)")
	teamCmd.Flags().StringVar(&careTeamFlags.memberID, "member", "", "Member user id (required)")
	teamCmd.Flags().StringVar(&careTeamFlags.relation, "relation", domain.RelationCaregiver, "Relation: caregiver|provider")
	teamCmd.Flags().BoolVar(&careTeamFlags.remove, "remove", false, "Remove the link instead of creating it")
	_ = teamCmd.MarkFlagRequired("subject")
	_ = teamCmd.MarkFlagRequired("member")
	RootCmd.AddCommand(teamCmd)
}

func runAddProfile(cmd *cobra.Command, args []string) {
	_, deps := buildDeps(cmd)

	now := time.Now().UTC().Truncate(time.Second)
	p := &domain.Profile{
		UserID:      addProfileFlags.userID,
		DisplayName: addProfileFlags.displayName,
		Role:        addProfileFlags.role,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if addProfileFlags.phone != "" {
		p.Phone = &addProfileFlags.phone
	}
	if addProfileFlags.pushToken != "" {
		p.PushToken = &addProfileFlags.pushToken
	}
	if addProfileFlags.contactName != "" && addProfileFlags.contactPhone != "" {
		p.EmergencyContact = &domain.EmergencyContact{
			Name:  addProfileFlags.contactName,
			Phone: addProfileFlags.contactPhone,
		}
	}

	if err := deps.ProfileRepo.Put(cmd.Context(), p); err != nil {
		exitErr("put profile", err)
	}
	printJSON(p)
}

func runLinkCareTeam(cmd *cobra.Command, args []string) {
	_, deps := buildDeps(cmd)

	if careTeamFlags.remove {
		if err := deps.CareTeamRepo.Delete(cmd.Context(), careTeamFlags.subjectID, careTeamFlags.memberID); err != nil {
			exitErr("unlink care team member", err)
		}
		printJSON(map[string]string{"removed": careTeamFlags.memberID})
		return
	}

	m := &domain.CareTeamMember{
		SubjectID: careTeamFlags.subjectID,
		MemberID:  careTeamFlags.memberID,
		Relation:  careTeamFlags.relation,
		AddedAt:   time.Now().UTC().Truncate(time.Second),
	}
	if err := deps.CareTeamRepo.Put(cmd.Context(), m); err != nil {
		exitErr("link care team member", err)
	}
	printJSON(m)
}
