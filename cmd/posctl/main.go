package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"kasirpos/backend/internal/app"
	"kasirpos/backend/internal/config"
	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/money"
	"kasirpos/backend/internal/pricing"
)

func main() {
	if err := newApp(os.Stdout).Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "posctl",
		Usage: "Operator tooling for the POS terminal",
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "Apply the invoice and catalog schema to DATABASE_URL",
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg := config.Load()
					if cfg.DatabaseURL == "" {
						return fmt.Errorf("DATABASE_URL is not set")
					}
					return withResources(ctx, cfg, false, func(res *app.Resources) error {
						if err := res.Postgres.Migrate(ctx); err != nil {
							return err
						}
						fmt.Fprintln(out, "migration complete")
						return nil
					})
				},
			},
			{
				Name:  "draft",
				Usage: "Inspect or discard the saved cart draft",
				Commands: []*cli.Command{
					{
						Name:  "show",
						Usage: "Print the stored draft and whether it would be offered",
						Action: func(ctx context.Context, c *cli.Command) error {
							cfg := config.Load()
							return withResources(ctx, cfg, true, func(res *app.Resources) error {
								return showDraft(ctx, out, cfg, res)
							})
						},
					},
					{
						Name:  "clear",
						Usage: "Delete the stored draft",
						Action: func(ctx context.Context, c *cli.Command) error {
							cfg := config.Load()
							return withResources(ctx, cfg, true, func(res *app.Resources) error {
								if err := app.NewKeeper(cfg, res.Slot, zap.NewNop()).Invalidate(ctx); err != nil {
									return err
								}
								fmt.Fprintln(out, "draft cleared")
								return nil
							})
						},
					},
				},
			},
			{
				Name:  "invoice",
				Usage: "Read invoices",
				Commands: []*cli.Command{
					{
						Name:      "show",
						Usage:     "Print an invoice with its lines",
						ArgsUsage: "<invoice-id>",
						Action: func(ctx context.Context, c *cli.Command) error {
							id := c.Args().First()
							if id == "" {
								return fmt.Errorf("invoice id is required")
							}
							cfg := config.Load()
							return withResources(ctx, cfg, false, func(res *app.Resources) error {
								invoice, err := res.Repo.GetInvoice(ctx, id)
								if err != nil {
									return fmt.Errorf("invoice %s: %w", id, err)
								}
								printInvoice(out, formatterFor(cfg), invoice)
								return nil
							})
						},
					},
				},
			},
			{
				Name:  "catalog",
				Usage: "Read the product catalog",
				Commands: []*cli.Command{
					{
						Name:  "list",
						Usage: "Print catalog products with their effective price",
						Action: func(ctx context.Context, c *cli.Command) error {
							cfg := config.Load()
							return withResources(ctx, cfg, false, func(res *app.Resources) error {
								products, err := res.Repo.ListProducts(ctx)
								if err != nil {
									return err
								}
								printCatalog(out, formatterFor(cfg), products)
								return nil
							})
						},
					},
				},
			},
		},
	}
}

func withResources(ctx context.Context, cfg config.Config, draftSlot bool, fn func(*app.Resources) error) error {
	logger := zap.NewNop()
	res := &app.Resources{}
	defer res.Close(logger)

	if draftSlot {
		if err := app.OpenDraftSlot(ctx, cfg, logger, res); err != nil {
			return err
		}
	} else if err := app.OpenRepository(ctx, cfg, logger, res); err != nil {
		return err
	}
	return fn(res)
}

func formatterFor(cfg config.Config) *money.Formatter {
	return money.NewFormatter(cfg.CurrencySymbol, money.DefaultPrecision)
}

func showDraft(ctx context.Context, out io.Writer, cfg config.Config, res *app.Resources) error {
	keeper := app.NewKeeper(cfg, res.Slot, zap.NewNop())
	record, ok, err := keeper.Peek(ctx)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(out, "no draft stored")
		return nil
	}

	offered := "no"
	if keeper.Restorable(record) {
		offered = "yes"
	}
	summary := pricing.Summarize(record.Snapshot())
	format := formatterFor(cfg)

	fmt.Fprintf(out, "key:      %s\n", keeper.Key())
	fmt.Fprintf(out, "saved at: %s (%s ago)\n", record.SavedAt.Format(time.RFC3339), time.Since(record.SavedAt).Round(time.Second))
	fmt.Fprintf(out, "offered:  %s\n", offered)
	fmt.Fprintf(out, "customer: %s %s\n", record.CustomerName, record.CustomerPhone)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tQTY\tGIFT\tUNIT\tTOTAL")
	for _, line := range record.Lines {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", line.Product.Name, line.OrderedQuantity, line.GiftQuantity,
			format.Format(line.UnitPrice), format.Format(pricing.LineTotal(line)))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "subtotal: %s  discount: %s  total: %s\n",
		format.Format(summary.Subtotal), format.Format(summary.DiscountAmount), format.Format(summary.TotalAmount))
	return nil
}

func printInvoice(out io.Writer, format *money.Formatter, invoice *domain.Invoice) {
	fmt.Fprintf(out, "invoice %s  %s\n", invoice.ID, invoice.CreatedAt.Format(time.RFC3339))
	if invoice.CustomerName != nil {
		fmt.Fprintf(out, "customer: %s\n", *invoice.CustomerName)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tQTY\tPRICE\tTOTAL\tGIFT")
	for _, line := range invoice.Items {
		gift := ""
		if line.GiftReason != nil {
			gift = *line.GiftReason
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", line.ProductName, line.Quantity, format.Format(line.Price), format.Format(line.Total), gift)
	}
	_ = tw.Flush()
	fmt.Fprintf(out, "discount (%s): %s\ntotal: %s\n", invoice.DiscountType, format.Format(invoice.DiscountAmount), format.Format(invoice.TotalAmount))
}

func printCatalog(out io.Writer, format *money.Formatter, products []domain.Product) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE\tSTOCK")
	for _, p := range products {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", p.ID, p.Name, p.Category, format.Format(p.EffectivePrice()), p.Stock)
	}
	_ = tw.Flush()
}
