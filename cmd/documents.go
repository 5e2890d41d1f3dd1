package cmd

import (
	"context"

	"example.com/backstage/services/erpgateway/internal/catalog"
	"example.com/backstage/services/erpgateway/internal/models"
	"example.com/backstage/services/erpgateway/internal/session"

	"github.com/spf13/cobra"
)

var documentFile string

var stockTransfersCmd = &cobra.Command{
	Use:   "stock-transfers",
	Short: "Write stock transfers",
}

var stockTransfersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Move items between warehouses",
	RunE:  runStockTransferCreate,
}

var deliveryNotesCmd = &cobra.Command{
	Use:   "delivery-notes",
	Short: "Write purchase delivery notes",
}

var deliveryNotesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Receive purchased goods",
	RunE:  runDeliveryNoteCreate,
}

func init() {
	for _, c := range []*cobra.Command{stockTransfersCreateCmd, deliveryNotesCreateCmd} {
		c.Flags().StringVarP(&documentFile, "file", "f", "", "request file, - for stdin")
	}

	stockTransfersCmd.AddCommand(stockTransfersCreateCmd)
	deliveryNotesCmd.AddCommand(deliveryNotesCreateCmd)
	rootCmd.AddCommand(stockTransfersCmd, deliveryNotesCmd)
}

func runStockTransferCreate(cmd *cobra.Command, args []string) error {
	var req catalog.StockTransferRequest
	if err := readJSON(cmd, documentFile, &req); err != nil {
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
	var out *models.StockTransfer
	err = a.run(cmd.Context(), "stock-transfers-create", func(ctx context.Context, s *session.Session) error {
		var err error
		out, err = svc.CreateStockTransfer(ctx, s, req)
		return err
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func runDeliveryNoteCreate(cmd *cobra.Command, args []string) error {
	var req catalog.DeliveryNoteRequest
	if err := readJSON(cmd, documentFile, &req); err != nil {
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
	var out *models.PurchaseDeliveryNote
	err = a.run(cmd.Context(), "delivery-notes-create", func(ctx context.Context, s *session.Session) error {
		var err error
		out, err = svc.CreateDeliveryNote(ctx, s, req)
		return err
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}
