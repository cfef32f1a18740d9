package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Juauvitorsm/painel-empresas/pkg/insights"
)

const barWidth = 30

func insightsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "insights",
		Short: "Show the business insights",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.requireSession(cmd.Context())
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			dash, err := a.views.Dashboard(ctx, sess)
			if err != nil {
				return noticeError(cmd, insights.DashboardNotice(err))
			}
			return writeDashboard(cmd.OutOrStdout(), dash)
		},
	}
}

func writeDashboard(w io.Writer, d insights.Dashboard) error {
	if d.NoInsights != "" {
		fmt.Fprintln(w, d.NoInsights)
	}
	for _, m := range d.Metrics {
		if m.Delta != "" {
			fmt.Fprintf(w, "%s: %s (%s)\n", m.Label, m.Value, m.Delta)
			continue
		}
		fmt.Fprintf(w, "%s: %s\n", m.Label, m.Value)
	}
	for _, c := range d.Charts {
		fmt.Fprintf(w, "\n%s\n", c.Title)
		if len(c.Bars) == 0 {
			fmt.Fprintf(w, "  %s\n", c.Empty)
			continue
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, b := range c.Bars {
			label := b.Label
			if b.Tooltip != "" {
				label += " (" + b.Tooltip + ")"
			}
			n := int(b.Percent / 100 * barWidth)
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", label, strings.Repeat("█", n), b.Display)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}
