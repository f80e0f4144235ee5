package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/pkg/server"

	"github.com/spf13/cobra"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List stored agents",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := server.OpenStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		agents, err := st.ListAgents(cmd.Context())
		if err != nil {
			return fmt.Errorf("list agents: %w", err)
		}
		if len(agents) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No agents yet.")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tSCHEDULE\tTIME\tSTATE\tFILE")
		for _, a := range agents {
			state := "active"
			if !a.IsActive {
				state = "disabled"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", a.Name, a.Schedule, a.ScheduleTime, state, a.FilePath)
		}
		return tw.Flush()
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List event handlers",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := server.OpenStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		handlers, err := st.ListEventHandlers(cmd.Context())
		if err != nil {
			return fmt.Errorf("list event handlers: %w", err)
		}
		if len(handlers) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No event handlers yet.")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tTYPE\tEVERY\tACTIVE\tLAST CHECK")
		for _, h := range handlers {
			last := "never"
			if h.LastCheck != nil {
				last = h.LastCheck.Local().Format(time.DateTime)
			}
			every := time.Duration(h.IntervalSeconds) * time.Second
			fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", h.Name, h.EventType, every, h.IsActive, last)
		}
		return tw.Flush()
	},
}
