package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"storefront/internal/client"
	"storefront/internal/models"
)

func NewOrdersCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "orders [id]",
		Short: "List your orders, or show one order",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(s *session) error {
				if err := s.requireLogin(); err != nil {
					return err
				}
				if len(args) == 1 {
					order, err := s.app.API.GetOrder(s.ctx, args[0])
					if err != nil {
						if client.IsNotFound(err) {
							return NewExitError(ExitFailure, fmt.Sprintf("order %s not found", args[0]))
						}
						return WrapExitError(ExitFailure, "fetch order", err)
					}
					return s.out.Emit(order, func(w io.Writer) { printOrder(w, order) })
				}

				orders, err := s.app.API.ListOrders(s.ctx)
				if err != nil {
					return WrapExitError(ExitFailure, "list orders", err)
				}
				return s.out.Emit(orders, func(w io.Writer) {
					if len(orders) == 0 {
						fmt.Fprintln(w, "No orders yet")
						return
					}
					rows := make([][]string, 0, len(orders))
					for _, o := range orders {
						rows = append(rows, []string{o.InvoiceID, string(o.Status), money(o.Total), o.CreatedAt.Format("2006-01-02 15:04"), o.ID})
					}
					s.out.Table([]string{"INVOICE", "STATUS", "TOTAL", "PLACED", "ID"}, rows)
				})
			})
		},
	}
}

func printOrder(w io.Writer, o *models.Order) {
	fmt.Fprintf(w, "Order %s (%s)\n", o.InvoiceID, o.Status)
	for _, it := range o.Items {
		title := it.Product.Title
		if title == "" {
			title = "#" + strconv.Itoa(it.ProductID)
		}
		fmt.Fprintf(w, "  %d x %s @ %s\n", it.Quantity, title, money(it.Price))
	}
	fmt.Fprintf(w, "Subtotal %s\n", money(o.Subtotal))
	if o.DiscountCode != "" {
		fmt.Fprintf(w, "Discount %s (%.0f%%)\n", o.DiscountCode, o.DiscountRate*100)
	}
	fmt.Fprintf(w, "Total    %s\n", money(o.Total))
}

func NewDiscountsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discounts",
		Short: "List active discount codes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(s *session) error {
				discounts, err := s.app.API.ListDiscounts(s.ctx)
				if err != nil {
					return WrapExitError(ExitFailure, "list discounts", err)
				}
				return s.out.Emit(discounts, func(w io.Writer) {
					rows := make([][]string, 0, len(discounts))
					for _, d := range discounts {
						minimum, expires := "-", "-"
						if d.MinPurchase != nil {
							minimum = money(*d.MinPurchase)
						}
						if d.ExpiryDate != nil {
							expires = d.ExpiryDate.Format("2006-01-02")
						}
						rows = append(rows, []string{d.Code, fmt.Sprintf("%.0f%%", d.Rate*100), minimum, expires, d.Description})
					}
					s.out.Table([]string{"CODE", "RATE", "MIN", "EXPIRES", "DESCRIPTION"}, rows)
				})
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "verify <code> <subtotal>",
		Short: "Check whether a code applies to a subtotal",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			subtotal, err := strconv.ParseFloat(args[1], 64)
			if err != nil || subtotal < 0 {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid subtotal %q", args[1]))
			}
			return rootOpts.run(cmd, func(s *session) error {
				resp, err := s.app.API.VerifyDiscount(s.ctx, args[0], subtotal)
				if err != nil {
					if client.IsNotFound(err) || client.IsValidation(err) {
						return WrapExitError(ExitFailure, "discount not applicable", err)
					}
					return WrapExitError(ExitFailure, "verify discount", err)
				}
				return s.out.Emit(resp, func(w io.Writer) {
					fmt.Fprintf(w, "%s takes %.0f%% off: %s\n", resp.Code, resp.Rate*100, resp.Description)
				})
			})
		},
	})

	return cmd
}
