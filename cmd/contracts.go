package cmd

import (
	"context"
	"time"

	"example.com/backstage/services/erpgateway/internal/contracts"
	"example.com/backstage/services/erpgateway/internal/session"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var contractsCmd = &cobra.Command{
	Use:   "contracts",
	Short: "List and write blanket agreements as per item group contracts",
}

var contractsListFlags struct {
	startDate string
	bpCode    string
	status    string
}

var contractsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List contracts spread by item group",
	RunE:  runContractsList,
}

var contractsUpsertFile string

var contractsUpsertCmd = &cobra.Command{
	Use:   "upsert",
	Short: "Create or extend the approved contract of a partner for an item group",
	Long: `Reads a contract request as JSON, for example

  {"bpCode": "C1", "itemGroupCode": 100, "startDate": "2024-01-01"}

and makes sure the partner's approved contract covers every item of the group.`,
	RunE: runContractsUpsert,
}

func init() {
	contractsListCmd.Flags().StringVar(&contractsListFlags.startDate, "start-date", "", "only contracts starting on or after this date (YYYY-MM-DD)")
	contractsListCmd.Flags().StringVar(&contractsListFlags.bpCode, "bp-code", "", "only contracts of this business partner")
	contractsListCmd.Flags().StringVar(&contractsListFlags.status, "status", "", "only contracts in this status (draft, approved, on_hold, terminated)")
	contractsUpsertCmd.Flags().StringVarP(&contractsUpsertFile, "file", "f", "", "request file, - for stdin")

	contractsCmd.AddCommand(contractsListCmd, contractsUpsertCmd)
	rootCmd.AddCommand(contractsCmd)
}

func listFilter() (contracts.ListFilter, error) {
	var filter contracts.ListFilter
	if contractsListFlags.startDate != "" {
		start, err := time.Parse("2006-01-02", contractsListFlags.startDate)
		if err != nil {
			return filter, errors.Wrap(err, "invalid --start-date")
		}
		filter.StartDate = &start
	}
	if contractsListFlags.status != "" {
		status, err := contracts.ParseStatus(contractsListFlags.status)
		if err != nil {
			return filter, err
		}
		filter.Status = status
	}
	filter.BPCode = contractsListFlags.bpCode
	return filter, nil
}

func runContractsList(cmd *cobra.Command, args []string) error {
	filter, err := listFilter()
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

	svc := a.contracts()
	var out []contracts.SpreadContract
	err = a.run(cmd.Context(), "contracts-list", func(ctx context.Context, s *session.Session) error {
		var err error
		out, err = svc.ListContracts(ctx, s, filter)
		return err
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func runContractsUpsert(cmd *cobra.Command, args []string) error {
	var req contracts.ContractRequest
	if err := readJSON(cmd, contractsUpsertFile, &req); err != nil {
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

	svc := a.contracts()
	var out *contracts.SpreadContract
	err = a.run(cmd.Context(), "contracts-upsert", func(ctx context.Context, s *session.Session) error {
		var err error
		out, err = svc.CreateOrUpdateContract(ctx, s, req)
		return err
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}
