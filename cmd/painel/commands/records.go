package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Juauvitorsm/painel-empresas/pkg/insights"
	"github.com/Juauvitorsm/painel-empresas/pkg/resource"
)

func resourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resources",
		Short: "List the managed resources and their fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RESOURCE\tFIELD\tTYPE\tREQUIRED")
			for _, res := range resource.All() {
				for _, f := range res.Fields {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", res.Name, f.Name, f.Kind, f.Required)
				}
			}
			return tw.Flush()
		},
	}
}

func listCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "list <resource>",
		Short:     "Print every record of a resource",
		Args:      cobra.ExactArgs(1),
		ValidArgs: resource.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := resource.Lookup(args[0])
			if err != nil {
				return err
			}
			sess, err := a.requireSession(cmd.Context())
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			listing, err := a.views.Listing(ctx, sess, res)
			if err != nil {
				return noticeError(cmd, insights.ListingNotice(res, err))
			}
			if listing.Empty() {
				fmt.Fprintln(cmd.OutOrStdout(), listing.EmptyNotice().Message)
				return nil
			}
			return writeTable(cmd.OutOrStdout(), listing.Table)
		},
	}
}

func writeTable(w io.Writer, t insights.Table) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Columns, "\t"))
	for i := range t.Rows {
		cells := make([]string, len(t.Columns))
		for j, col := range t.Columns {
			cells[j] = strings.ReplaceAll(t.Cell(i, col), "\t", " ")
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func addCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <resource> field=value...",
		Short: "Create a record",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := resource.Lookup(args[0])
			if err != nil {
				return err
			}
			values, err := parseAssignments(res, args[1:])
			if err != nil {
				return err
			}
			sess, err := a.requireSession(cmd.Context())
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			_, err = a.records.Add(ctx, sess, res, values)
			return noticeError(cmd, resource.NoticeFor(resource.OpAdd, res, 0, err))
		},
	}
}

func updateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update <resource> <id> field=value...",
		Short: "Change the given fields of a record",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := resource.Lookup(args[0])
			if err != nil {
				return err
			}
			id, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid id %q", args[1])
			}
			values, err := parseAssignments(res, args[2:])
			if err != nil {
				return err
			}
			sess, err := a.requireSession(cmd.Context())
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			_, err = a.records.Update(ctx, sess, res, id, values)
			return noticeError(cmd, resource.NoticeFor(resource.OpUpdate, res, id, err))
		},
	}
}

// parseAssignments reads field=value pairs, rejecting fields res does not have.
func parseAssignments(res resource.Resource, args []string) (resource.Values, error) {
	values := make(resource.Values, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("expected field=value, got %q", arg)
		}
		name = strings.TrimSpace(name)
		if _, known := res.Field(name); !known {
			return nil, fmt.Errorf("%s has no field %q", res.Name, name)
		}
		values[name] = value
	}
	return values, nil
}
