package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/omatztw/timetracker/internal/config"
	"github.com/omatztw/timetracker/internal/integrations"
	"github.com/omatztw/timetracker/internal/storage"
)

func dateFlag(cmd *cobra.Command) string {
	date, _ := cmd.Flags().GetString("date")
	if date == "" {
		date = time.Now().Format(storage.DateLayout)
	}
	return date
}

// --- track ---

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Control focus tracking",
}

var trackOnCmd = &cobra.Command{
	Use:   "on",
	Short: "Resume focus tracking",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setTracking(cmd, true)
	},
}

var trackOffCmd = &cobra.Command{
	Use:   "off",
	Short: "Pause focus tracking",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setTracking(cmd, false)
	},
}

var trackStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether tracking is active",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := loadClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/tracking")
		if err != nil {
			return err
		}
		var body map[string]bool
		if err := decodeJSON(resp, &body); err != nil {
			return err
		}
		if body["tracking"] {
			fmt.Println("tracking")
		} else {
			fmt.Println("paused")
		}
		return nil
	},
}

func setTracking(cmd *cobra.Command, on bool) error {
	client, err := loadClient()
	if err != nil {
		return err
	}
	path := "/tracking/stop"
	if on {
		path = "/tracking/start"
	}
	resp, err := client.post(cmd.Context(), path, nil)
	if err != nil {
		return err
	}
	var body map[string]bool
	if err := decodeJSON(resp, &body); err != nil {
		return err
	}
	if on {
		printSuccess("Tracking resumed")
	} else {
		printSuccess("Tracking paused")
	}
	return nil
}

// --- activities ---

var activitiesCmd = &cobra.Command{
	Use:   "activities",
	Short: "List recorded activities for a day",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := loadClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/activities?date="+dateFlag(cmd))
		if err != nil {
			return err
		}
		var activities []storage.Activity
		if err := decodeJSON(resp, &activities); err != nil {
			return err
		}
		if len(activities) == 0 {
			fmt.Println("no activities recorded")
			return nil
		}
		for _, a := range activities {
			domain := ""
			if a.Domain != "" {
				domain = " [" + a.Domain + "]"
			}
			fmt.Printf("%6d  %s  %-9s %s — %s%s\n",
				a.ID,
				a.StartTime[11:], // HH:MM:SS
				formatDuration(a.DurationSeconds),
				a.ProcessName, a.WindowTitle, domain)
		}
		return nil
	},
}

// --- summary ---

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show aggregated focus time for a day",
}

var summaryAppsCmd = &cobra.Command{
	Use:   "apps",
	Short: "Totals per application",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := loadClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/summary/apps?date="+dateFlag(cmd))
		if err != nil {
			return err
		}
		var rows []storage.AppSummary
		if err := decodeJSON(resp, &rows); err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Println("no activities recorded")
			return nil
		}
		for _, r := range rows {
			fmt.Printf("%5.1f%%  %-9s %s\n", r.Percentage, formatDuration(r.TotalSeconds), r.ProcessName)
		}
		return nil
	},
}

var summaryDomainsCmd = &cobra.Command{
	Use:   "domains",
	Short: "Totals per browsed domain",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := loadClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/summary/domains?date="+dateFlag(cmd))
		if err != nil {
			return err
		}
		var rows []storage.DomainSummary
		if err := decodeJSON(resp, &rows); err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Println("no browser activity recorded")
			return nil
		}
		for _, r := range rows {
			fmt.Printf("%5.1f%%  %-9s %s\n", r.Percentage, formatDuration(r.TotalSeconds), r.Domain)
		}
		return nil
	},
}

// --- plugins ---

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "Manage external integrations",
}

var pluginsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active integrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := loadClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/plugins")
		if err != nil {
			return err
		}
		var body map[string][]string
		if err := decodeJSON(resp, &body); err != nil {
			return err
		}
		names := body["plugins"]
		if len(names) == 0 {
			fmt.Println("no integrations active")
			return nil
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}

var pluginsReloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Reload integrations from the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := loadClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/plugins/reload", nil)
		if err != nil {
			return err
		}
		var report integrations.LoadReport
		if err := decodeJSON(resp, &report); err != nil {
			return err
		}
		printSuccess("Loaded %d integration(s)", len(report.Loaded))
		if report.ConfigError != "" {
			printWarning("config error: %s", report.ConfigError)
		}
		for _, f := range report.Failed {
			printWarning("%s: %s", f.Name, f.Error)
		}
		return nil
	},
}

var pluginsTestCmd = &cobra.Command{
	Use:   "test <name>",
	Short: "Test an integration's connection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := loadClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/plugins/"+args[0]+"/test", nil)
		if err != nil {
			return err
		}
		var body map[string]bool
		if err := decodeJSON(resp, &body); err != nil {
			return err
		}
		if body["connected"] {
			printSuccess("%s: connection ok", args[0])
		} else {
			printError("%s: connection failed", args[0])
		}
		return nil
	},
}

// --- tickets / sync ---

var ticketsCmd = &cobra.Command{
	Use:   "tickets <activity-id>",
	Short: "Extract ticket ids from an activity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
			return fmt.Errorf("invalid activity id %q", args[0])
		}
		client, err := loadClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/activities/"+args[0]+"/tickets")
		if err != nil {
			return err
		}
		var body map[string][]integrations.TicketMatch
		if err := decodeJSON(resp, &body); err != nil {
			return err
		}
		matches := body["tickets"]
		if len(matches) == 0 {
			fmt.Println("no ticket found")
			return nil
		}
		for _, m := range matches {
			fmt.Printf("%s\t%s\n", m.Plugin, m.TicketID)
		}
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync <plugin> <activity-id> <ticket-id>",
	Short: "Sync an activity's time to a ticket",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		activityID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid activity id %q", args[1])
		}

		client, err := loadClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/plugins/"+args[0]+"/sync", map[string]any{
			"activity_id": activityID,
			"ticket_id":   args[2],
		})
		if err != nil {
			return err
		}
		var result integrations.SyncResult
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		if result.Success {
			printSuccess("%s", result.Message)
		} else {
			printError("%s", result.Message)
		}
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample integrations.toml",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			printWarning("config problem, using defaults: %v", err)
		}

		path := integrations.ConfigPath(cfg.Storage.DataDir)
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists, refusing to overwrite", path)
		}

		if err := integrations.SaveConfig(path, integrations.SampleConfig()); err != nil {
			return err
		}
		printSuccess("Wrote sample configuration to %s", path)
		return nil
	},
}

func init() {
	trackCmd.AddCommand(trackOnCmd, trackOffCmd, trackStatusCmd)

	activitiesCmd.Flags().String("date", "", "day to list (YYYY-MM-DD, default today)")
	summaryAppsCmd.Flags().String("date", "", "day to summarize (YYYY-MM-DD, default today)")
	summaryDomainsCmd.Flags().String("date", "", "day to summarize (YYYY-MM-DD, default today)")
	summaryCmd.AddCommand(summaryAppsCmd, summaryDomainsCmd)

	pluginsCmd.AddCommand(pluginsListCmd, pluginsReloadCmd, pluginsTestCmd)
	configCmd.AddCommand(configInitCmd)
}
