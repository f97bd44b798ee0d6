package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/stepimport/internal/store"
)

func newCouponsCmd() *cobra.Command {
	var f store.CouponFilter

	cmd := &cobra.Command{
		Use:   "coupons",
		Short: "List stored coupons",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := openDeps(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()

			q := store.New(d.db)
			coupons, err := q.ListCoupons(cmd.Context(), f)
			if err != nil {
				return err
			}
			total, err := q.CountCoupons(cmd.Context(), f)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCODE\tAFFILIATE\tINTEGRATION\tSTATUS\tEXPIRES")
			for _, c := range coupons {
				expires := "-"
				if c.ExpirationDate.Valid {
					expires = c.ExpirationDate.Time.Format("2006-01-02")
				}
				fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\n",
					c.CouponID, c.CouponCode, c.AffiliateID, c.Integration, c.Status, expires)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d coupons\n", len(coupons), total)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.Int64SliceVar(&f.AffiliateIDs, "affiliate", nil, "Only coupons of these affiliate ids")
	flags.Int64SliceVar(&f.Owners, "owner", nil, "Only coupons owned by these user ids")
	flags.StringVar(&f.Integration, "integration", "", "Only coupons of this integration")
	flags.StringVar(&f.Status, "status", "", "Only active or inactive coupons")
	flags.StringVar(&f.OrderBy, "order-by", "coupon_id", "Column to sort by")
	flags.BoolVar(&f.Desc, "desc", false, "Sort in descending order")
	flags.IntVar(&f.Limit, "limit", 20, "Maximum coupons to list, 0 for all")
	flags.IntVar(&f.Offset, "offset", 0, "Coupons to skip")
	return cmd
}
