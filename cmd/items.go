package cmd

import (
	"context"
	"time"

	"example.com/backstage/services/erpgateway/internal/catalog"
	"example.com/backstage/services/erpgateway/internal/models"
	"example.com/backstage/services/erpgateway/internal/session"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var pageFlags struct {
	updatedAfter string
	skip         int
	top          int
}

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "Read items with their item groups",
}

var itemsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List one page of items",
	RunE:  runItemsList,
}

var itemsCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Count items",
	RunE:  runItemsCount,
}

var searchSize int

var itemsSearchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Search the item index",
	Args:  cobra.ExactArgs(1),
	RunE:  runItemsSearch,
}

func addPageFlags(cmd *cobra.Command, paging bool) {
	cmd.Flags().StringVar(&pageFlags.updatedAfter, "updated-after", "", "only records modified after this RFC3339 time")
	if paging {
		cmd.Flags().IntVar(&pageFlags.skip, "skip", 0, "records to skip")
		cmd.Flags().IntVar(&pageFlags.top, "top", 0, "page size (default erp.page_size)")
	}
}

func init() {
	addPageFlags(itemsListCmd, true)
	addPageFlags(itemsCountCmd, false)
	itemsSearchCmd.Flags().IntVar(&searchSize, "size", 20, "maximum number of hits")

	itemsCmd.AddCommand(itemsListCmd, itemsCountCmd, itemsSearchCmd)
	rootCmd.AddCommand(itemsCmd)
}

func updatedAfter() (*time.Time, error) {
	if pageFlags.updatedAfter == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, pageFlags.updatedAfter)
	if err != nil {
		return nil, errors.Wrap(err, "invalid --updated-after")
	}
	return &t, nil
}

func pageQuery() (catalog.PageQuery, error) {
	after, err := updatedAfter()
	if err != nil {
		return catalog.PageQuery{}, err
	}
	return catalog.PageQuery{UpdatedAfter: after, Skip: pageFlags.skip, Top: pageFlags.top}, nil
}

func runItemsList(cmd *cobra.Command, args []string) error {
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
	var out []models.ClassifiedItem
	err = a.run(cmd.Context(), "items-list", func(ctx context.Context, s *session.Session) error {
		var err error
		out, err = svc.ListItems(ctx, s, q)
		return err
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func runItemsCount(cmd *cobra.Command, args []string) error {
	after, err := updatedAfter()
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
	var (
		n  int
		ok bool
	)
	err = a.run(cmd.Context(), "items-count", func(ctx context.Context, s *session.Session) error {
		var err error
		n, ok, err = svc.CountItems(ctx, s, after)
		return err
	})
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("the ERP refused to count items")
	}
	return printJSON(cmd.OutOrStdout(), map[string]int{"count": n})
}

func runItemsSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if a.elastic == nil {
		return errors.New("search is disabled, set elastic.enabled")
	}
	docs, err := a.elastic.SearchItems(cmd.Context(), args[0], searchSize)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), docs)
}
