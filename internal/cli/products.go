package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"storefront/internal/client"
	"storefront/internal/models"
)

type ProductsOptions struct {
	*RootOptions
	Search   string
	Category string
	Page     int
	Limit    int
}

func NewProductsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProductsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "products [id]",
		Short: "List products, or show one product",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(s *session) error {
				if len(args) == 1 {
					return showProduct(s, args[0])
				}
				return listProducts(s, opts)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Search, "search", "s", "", "search title and description")
	cmd.Flags().StringVarP(&opts.Category, "category", "c", "", "filter by category")
	cmd.Flags().IntVar(&opts.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "products per page")

	return cmd
}

func listProducts(s *session, opts *ProductsOptions) error {
	page, err := s.app.API.ListProducts(s.ctx, client.ProductQuery{
		Query:    opts.Search,
		Category: opts.Category,
		Page:     opts.Page,
		Limit:    opts.Limit,
	})
	if err != nil {
		return WrapExitError(ExitFailure, "list products", err)
	}
	return s.out.Emit(page, func(w io.Writer) {
		rows := make([][]string, 0, len(page.Data))
		for _, p := range page.Data {
			rows = append(rows, []string{strconv.Itoa(p.ID), p.Title, p.Category, money(p.Price), strconv.Itoa(p.Stock)})
		}
		s.out.Table([]string{"ID", "TITLE", "CATEGORY", "PRICE", "STOCK"}, rows)
		fmt.Fprintf(w, "page %d of %d (%d products)\n", page.Meta.Page, page.Meta.TotalPages, page.Meta.Total)
	})
}

func showProduct(s *session, arg string) error {
	p, err := lookupProduct(s, arg)
	if err != nil {
		return err
	}
	return s.out.Emit(p, func(w io.Writer) {
		fmt.Fprintf(w, "%s (#%d)\n", p.Title, p.ID)
		fmt.Fprintf(w, "  %s\n", p.Description)
		fmt.Fprintf(w, "  category %s, %s, %d in stock, rated %.1f (%d)\n",
			p.Category, money(p.Price), p.Stock, p.Rating.Rate, p.Rating.Count)
	})
}

func lookupProduct(s *session, arg string) (*models.Product, error) {
	id, err := productID(arg)
	if err != nil {
		return nil, err
	}
	p, err := s.app.API.GetProduct(s.ctx, id)
	if err != nil {
		if client.IsNotFound(err) {
			return nil, NewExitError(ExitFailure, fmt.Sprintf("product %d not found", id))
		}
		return nil, WrapExitError(ExitFailure, "fetch product", err)
	}
	return p, nil
}

func productID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid product id %q", arg))
	}
	return id, nil
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
