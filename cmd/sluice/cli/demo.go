package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/faucetdb/sluice/internal/connector"
	"github.com/faucetdb/sluice/internal/example"
	"github.com/faucetdb/sluice/internal/model"
	"github.com/faucetdb/sluice/internal/provider"
	"github.com/faucetdb/sluice/internal/schema"
	"github.com/faucetdb/sluice/internal/session"
)

func newDemoCmd(a *app) *cobra.Command {
	var keep bool

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Save, query and delete an order of the shop domain",
		Long: `Run the shop domain end to end: create its tables, save an order with its
customer, lines and tags in one cascading batch, read it back with paging and
eager loading, then delete it again. Without --source the demo runs against an
in-memory SQLite database.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			src := model.SourceConfig{Name: "demo", Driver: "sqlite", DSN: ":memory:"}
			if a.v.GetString("source") != "" {
				store, err := a.openStore()
				if err != nil {
					return err
				}
				src, err = a.resolveSource(ctx, store, "")
				store.Close()
				if err != nil {
					return err
				}
			}

			registry := newRegistry()
			defer registry.CloseAll()
			conn, err := connect(registry, src)
			if err != nil {
				return err
			}
			return a.runDemo(ctx, cmd.OutOrStdout(), conn, keep)
		},
	}

	cmd.Flags().BoolVar(&keep, "keep", false, "Keep the demo order instead of deleting it")

	return cmd
}

func (a *app) runDemo(ctx context.Context, out io.Writer, conn connector.Connector, keep bool) error {
	mappings, src, err := example.Setup(schema.NewContext())
	if err != nil {
		return err
	}
	created, err := connector.EnsureSchema(ctx, conn, src)
	if err != nil {
		return err
	}
	if len(created) > 0 {
		printOK(out, "Created %d tables", len(created))
	}

	s := session.New(conn, mappings,
		session.WithLogger(a.logger),
		session.WithTransactions(a.settings.Batch.Transactions),
	)

	tea := &example.Product{SKU: "TEA-01", Title: "Green tea", Price: 4.5}
	cup := &example.Product{SKU: "CUP-02", Title: "Stoneware cup", Price: 12}
	for _, p := range []*example.Product{tea, cup} {
		if err := session.Save(ctx, s, p); err != nil {
			return fmt.Errorf("save product %s: %w", p.SKU, err)
		}
	}
	printOK(out, "Saved products %s and %s", cyan.Sprint(tea.SKU), cyan.Sprint(cup.SKU))

	gift, err := session.Any[example.Tag](ctx, s, provider.Where("Label", "gift"))
	if errors.Is(err, session.ErrNotFound) {
		gift, err = &example.Tag{Label: "gift"}, nil
	}
	if err != nil {
		return err
	}

	order := &example.Order{
		Placed:   time.Now().UTC().Truncate(time.Second),
		Customer: &example.Customer{Name: "Ada Lovelace"},
		Lines: []*example.OrderLine{
			{Product: tea, Quantity: 3},
			{Product: cup, Quantity: 2},
		},
		Tags: []*example.Tag{gift},
	}
	b, err := session.SaveBatch(ctx, s, order)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Saving order as one batch of %d commands\n", b.Len())
	if _, err := s.Execute(ctx, b); err != nil {
		return fmt.Errorf("save order: %w", err)
	}
	printOK(out, "Saved order %d for customer %d with %d lines", order.ID, order.Customer.ID, len(order.Lines))

	loaded, err := session.Any[example.Order](ctx, s, provider.Where("Id", order.ID))
	if err != nil {
		return err
	}
	if err := session.LoadProperty(ctx, s, loaded, "Tags"); err != nil {
		return err
	}
	fmt.Fprintf(out, "Order %d placed %s by %s\n", loaded.ID, loaded.Placed.Format(time.RFC3339), loaded.Customer.Name)
	for _, l := range loaded.Lines {
		fmt.Fprintf(out, "  line %d: %d x %s\n", l.ID, l.Quantity, l.Product.SKU)
	}
	for _, t := range loaded.Tags {
		fmt.Fprintf(out, "  tag %s (%s)\n", t.Label, t.ID)
	}

	const pageSize = 10
	pages, err := session.PageCount[example.Order](ctx, s, pageSize)
	if err != nil {
		return err
	}
	last, err := session.Paged[example.Order](ctx, s, pageSize, max(pages-1, 0))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d page(s) of orders, %d on the last page\n", pages, len(last))

	if keep {
		return nil
	}
	if err := session.Delete(ctx, s, loaded); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	printOK(out, "Deleted order %d with its lines; customer and tags remain", loaded.ID)
	return nil
}
