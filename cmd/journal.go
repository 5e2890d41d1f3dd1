package cmd

import (
	"example.com/backstage/services/erpgateway/internal/repositories"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var journalLimit int

var journalCmd = &cobra.Command{
	Use:   "journal <entity>",
	Short: "Show the newest journaled writes to an ERP entity",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournal,
}

func init() {
	journalCmd.Flags().IntVar(&journalLimit, "limit", 20, "number of rows")
	rootCmd.AddCommand(journalCmd)
}

func runJournal(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if a.db == nil {
		return errors.New("journal is disabled, set database.dsn")
	}
	rows, err := repositories.NewJournalRepository(a.db).Recent(cmd.Context(), args[0], journalLimit)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), rows)
}
