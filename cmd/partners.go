package cmd

import (
	"context"

	"example.com/backstage/services/erpgateway/internal/models"
	"example.com/backstage/services/erpgateway/internal/session"

	"github.com/spf13/cobra"
)

var partnersCmd = &cobra.Command{
	Use:   "partners",
	Short: "Read business partners",
}

var partnersGetCmd = &cobra.Command{
	Use:   "get <card-code>",
	Short: "Show one business partner",
	Args:  cobra.ExactArgs(1),
	RunE:  runPartnersGet,
}

var partnersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List one page of business partners",
	RunE:  runPartnersList,
}

func init() {
	addPageFlags(partnersListCmd, true)

	partnersCmd.AddCommand(partnersGetCmd, partnersListCmd)
	rootCmd.AddCommand(partnersCmd)
}

func runPartnersGet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	svc := a.catalog()
	var out *models.BusinessPartner
	err = a.run(cmd.Context(), "partners-get", func(ctx context.Context, s *session.Session) error {
		var err error
		out, err = svc.GetPartner(ctx, s, args[0])
		return err
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func runPartnersList(cmd *cobra.Command, args []string) error {
	q, err := pageQuery()
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	svc := a.catalog()
	var out []models.BusinessPartner
	err = a.run(cmd.Context(), "partners-list", func(ctx context.Context, s *session.Session) error {
		var err error
		out, err = svc.ListPartners(ctx, s, q)
		return err
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}
