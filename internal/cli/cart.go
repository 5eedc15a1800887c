package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"storefront/internal/models"
)

// cartView is the JSON shape of the cart commands.
type cartView struct {
	Items    []models.CartItem `json:"items"`
	Count    int               `json:"count"`
	Subtotal float64           `json:"subtotal"`
}

func NewCartCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show or change the cart",
		Long: `Show or change the cart.

Without a session the cart is kept locally and merged into your
account's cart on the next login.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(s *session) error {
				s.app.Cart.FetchCart(s.ctx)
				return printCart(s)
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <product-id>",
		Short: "Add one unit of a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(s *session) error {
				p, err := lookupProduct(s, args[0])
				if err != nil {
					return err
				}
				s.app.Cart.AddToCart(s.ctx, *p)
				return printCart(s)
			})
		},
	})
	cmd.AddCommand(cartItemCommand(rootOpts, "remove <product-id>", "Remove a product entirely", func(s *session, id int) {
		s.app.Cart.RemoveFromCart(s.ctx, id)
	}))
	cmd.AddCommand(cartItemCommand(rootOpts, "inc <product-id>", "Increase a quantity by one", func(s *session, id int) {
		s.app.Cart.UpdateQty(s.ctx, models.CartIncrement, id)
	}))
	cmd.AddCommand(cartItemCommand(rootOpts, "dec <product-id>", "Decrease a quantity by one, removing the item at zero", func(s *session, id int) {
		s.app.Cart.UpdateQty(s.ctx, models.CartDecrement, id)
	}))
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(s *session) error {
				s.app.Cart.ClearCart(s.ctx)
				return printCart(s)
			})
		},
	})

	return cmd
}

func cartItemCommand(rootOpts *RootOptions, use, short string, apply func(s *session, id int)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := productID(args[0])
			if err != nil {
				return err
			}
			return rootOpts.run(cmd, func(s *session) error {
				s.app.Cart.FetchCart(s.ctx)
				apply(s, id)
				return printCart(s)
			})
		},
	}
}

func printCart(s *session) error {
	view := cartView{
		Items:    s.app.Cart.Items(),
		Count:    s.app.Cart.Count(),
		Subtotal: s.app.Cart.Subtotal(),
	}
	return s.out.Emit(view, func(w io.Writer) {
		if len(view.Items) == 0 {
			fmt.Fprintln(w, "Cart is empty")
			return
		}
		rows := make([][]string, 0, len(view.Items))
		for _, it := range view.Items {
			rows = append(rows, []string{strconv.Itoa(it.ID), it.Title, strconv.Itoa(it.Quantity), money(it.Price)})
		}
		s.out.Table([]string{"ID", "TITLE", "QTY", "PRICE"}, rows)
		fmt.Fprintf(w, "%d item(s), subtotal %s\n", view.Count, money(view.Subtotal))
	})
}

type CheckoutOptions struct {
	*RootOptions
	Email    string
	Discount string
	Address  models.Address
}

func NewCheckoutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckoutOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for the cart",
		Long: `Place an order for everything in your cart.

Example:
  shopctl checkout --email me@example.com --street "1 Main St" --city Springfield \
    --state-province IL --zip 62701 --country US --discount MARET10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(s *session) error {
				if err := s.requireLogin(); err != nil {
					return err
				}
				order, ok := s.app.Cart.Checkout(s.ctx, models.CreateOrderRequest{
					Address:      opts.Address,
					Email:        opts.Email,
					DiscountCode: opts.Discount,
				})
				if !ok {
					return NewExitError(ExitFailure, "checkout failed")
				}
				return s.out.Emit(order, func(w io.Writer) { printOrder(w, order) })
			})
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "email for the receipt")
	cmd.Flags().StringVar(&opts.Discount, "discount", "", "discount code")
	cmd.Flags().StringVar(&opts.Address.Street, "street", "", "shipping street")
	cmd.Flags().StringVar(&opts.Address.City, "city", "", "shipping city")
	cmd.Flags().StringVar(&opts.Address.State, "state-province", "", "shipping state or province")
	cmd.Flags().StringVar(&opts.Address.Zip, "zip", "", "shipping postal code")
	cmd.Flags().StringVar(&opts.Address.Country, "country", "", "shipping country")
	for _, f := range []string{"email", "street", "city", "state-province", "zip", "country"} {
		cmd.MarkFlagRequired(f)
	}

	return cmd
}
