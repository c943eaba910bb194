package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kalambet/wrench/internal/api"
	"github.com/kalambet/wrench/internal/config"
	"github.com/kalambet/wrench/internal/vehicle"
)

// --- lookup ---

// lookupFlags maps CLI flags to vehicle fields, in help order.
var lookupFlags = []struct {
	flag, field, usage string
}{
	{"year", vehicle.FieldYear, "model year (required)"},
	{"make", vehicle.FieldMake, "manufacturer (required)"},
	{"model", vehicle.FieldModel, "model (required)"},
	{"service", vehicle.FieldServiceType, "service to perform (required)"},
	{"engine", vehicle.FieldEngine, "engine, e.g. 2.5L I4"},
	{"drivetrain", vehicle.FieldDrivetrain, "FWD, RWD, AWD or 4WD"},
}

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Look up parts, specs and guides for a vehicle service",
	Long: `Look up parts, specifications and how-to guides for a vehicle service.

Examples:
  wrench lookup --year 2020 --make Toyota --model Camry --service "Oil Change"
  wrench lookup --year 2018 --make Ford --model F-150 --engine 5.0L --drivetrain 4wd --service "Brake Pads" --save`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fields := make(map[string]string)
		for _, f := range lookupFlags {
			if v, _ := cmd.Flags().GetString(f.flag); v != "" {
				fields[f.field] = v
			}
		}
		sessionID, _ := cmd.Flags().GetString("session")
		save, _ := cmd.Flags().GetBool("save")
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Looking up %s %s %s...", fields[vehicle.FieldYear], fields[vehicle.FieldMake], fields[vehicle.FieldModel])
		st, err := runLookup(cmd.Context(), client, sessionID, fields)
		if err != nil {
			return err
		}

		if asJSON {
			if err := writeJSON(os.Stdout, st); err != nil {
				return err
			}
		} else {
			renderState(os.Stdout, st)
		}

		if save {
			rec, err := saveLookup(cmd.Context(), client, st.SessionID)
			if err != nil {
				return err
			}
			printSuccess("Saved lookup %s", rec.ID)
			return nil
		}
		printStatus("Session", "%s", st.SessionID)
		printStep("Save it with: wrench save %s", st.SessionID)
		return nil
	},
}

func init() {
	for _, f := range lookupFlags {
		lookupCmd.Flags().String(f.flag, "", f.usage)
	}
	lookupCmd.Flags().String("session", "", "reuse an existing session")
	lookupCmd.Flags().Bool("save", false, "save the result to history")
	lookupCmd.Flags().Bool("json", false, "print the raw JSON state")
}

// runLookup submits fields in sessionID, creating a session when it is empty,
// and waits for the terminal state.
func runLookup(ctx context.Context, c *apiClient, sessionID string, fields map[string]string) (api.StateView, error) {
	if sessionID == "" {
		resp, err := c.post(ctx, "/sessions", nil)
		if err != nil {
			return api.StateView{}, err
		}
		var created struct {
			ID string `json:"id"`
		}
		if err := decodeJSON(resp, &created); err != nil {
			return api.StateView{}, fmt.Errorf("creating session: %w", err)
		}
		sessionID = created.ID
	}

	resp, err := c.post(ctx, "/sessions/"+url.PathEscape(sessionID)+"/lookups", fields)
	if err != nil {
		return api.StateView{}, err
	}
	var st api.StateView
	if err := decodeJSON(resp, &st); err != nil {
		return api.StateView{}, err
	}
	return st, nil
}

// --- save ---

var saveCmd = &cobra.Command{
	Use:   "save <session-id>",
	Short: "Save a session's last lookup to history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		rec, err := saveLookup(cmd.Context(), client, args[0])
		if err != nil {
			return err
		}
		printSuccess("Saved lookup %s", rec.ID)
		return nil
	},
}

func saveLookup(ctx context.Context, c *apiClient, sessionID string) (api.RecordView, error) {
	resp, err := c.post(ctx, "/sessions/"+url.PathEscape(sessionID)+"/save", nil)
	if err != nil {
		return api.RecordView{}, err
	}
	var rec api.RecordView
	if err := decodeJSON(resp, &rec); err != nil {
		return api.RecordView{}, err
	}
	return rec, nil
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse saved lookups",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved lookups, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		records, err := listHistory(cmd.Context(), client, limit, offset)
		if err != nil {
			return err
		}

		if asJSON {
			return writeJSON(os.Stdout, records)
		}
		renderHistory(os.Stdout, records)
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a saved lookup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/history/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		var rec api.RecordView
		if err := decodeJSON(resp, &rec); err != nil {
			return err
		}

		if asJSON {
			return writeJSON(os.Stdout, rec)
		}
		fmt.Printf("%s  %s\n", colorize(colorBold, rec.Vehicle), rec.Query.ServiceType)
		fmt.Printf("Saved %s\n\n", rec.CreatedAt.Local().Format("2006-01-02 15:04"))
		renderResult(os.Stdout, &rec.Result)
		return nil
	},
}

func init() {
	historyListCmd.Flags().Int("limit", 0, "maximum number of lookups to list (default: server setting)")
	historyListCmd.Flags().Int("offset", 0, "skip this many of the newest lookups")
	historyListCmd.Flags().Bool("json", false, "print JSON")
	historyShowCmd.Flags().Bool("json", false, "print JSON")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
}

func listHistory(ctx context.Context, c *apiClient, limit, offset int) ([]api.RecordView, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	path := "/history"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	resp, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	var records []api.RecordView
	if err := decodeJSON(resp, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return config.ValidKeys(), cobra.ShellCompDirectiveNoFileComp
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Reset a configuration value to its default",
	Args:  cobra.ExactArgs(1),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return config.ValidKeys(), cobra.ShellCompDirectiveNoFileComp
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}
		printSuccess("Unset %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
}
