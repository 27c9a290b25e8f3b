package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/clearstack/clearflow/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Get and set configuration values",
}

// configKeys maps settable key names to accessors over the loaded config.
var configKeys = map[string]struct {
	get func(*config.Config) string
	set func(*config.Config, string) error
}{
	"db": {
		get: func(c *config.Config) string { return c.DB },
		set: func(c *config.Config, v string) error { c.DB = v; return nil },
	},
	"actor": {
		get: func(c *config.Config) string { return c.Actor },
		set: func(c *config.Config, v string) error { c.Actor = v; return nil },
	},
	"role": {
		get: func(c *config.Config) string { return c.Role },
		set: func(c *config.Config, v string) error { c.Role = v; return nil },
	},
	"escalation_days": {
		get: func(c *config.Config) string { return strconv.Itoa(c.EscalationDays) },
		set: func(c *config.Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return fmt.Errorf("escalation_days must be a positive integer, got %q", v)
			}
			c.EscalationDays = n
			return nil
		},
	},
	"sweep_workers": {
		get: func(c *config.Config) string { return strconv.Itoa(c.SweepWorkers) },
		set: func(c *config.Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return fmt.Errorf("sweep_workers must be a positive integer, got %q", v)
			}
			c.SweepWorkers = n
			return nil
		},
	},
	"notify_webhook": {
		get: func(c *config.Config) string { return c.NotifyWebhook },
		set: func(c *config.Config, v string) error { c.NotifyWebhook = v; return nil },
	},
	"certificate_webhook": {
		get: func(c *config.Config) string { return c.CertificateWebhook },
		set: func(c *config.Config, v string) error { c.CertificateWebhook = v; return nil },
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, ok := configKeys[args[0]]
		if !ok {
			return fmt.Errorf("unknown config key %q", args[0])
		}
		fmt.Println(key.get(cfg))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value and write it back to config.yaml",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, ok := configKeys[args[0]]
		if !ok {
			return fmt.Errorf("unknown config key %q", args[0])
		}
		// Edit the file as written so a CFL_* variable in this shell does
		// not get baked into it.
		fileCfg, err := config.LoadFile("")
		if err != nil {
			return err
		}
		if err := key.set(fileCfg, args[1]); err != nil {
			return err
		}
		if err := config.Save("", fileCfg); err != nil {
			return err
		}
		if !quietFlag {
			fmt.Printf("%s = %s\n", args[0], key.get(fileCfg))
		}
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput {
			values := make(map[string]string, len(configKeys))
			for name, key := range configKeys {
				values[name] = key.get(cfg)
			}
			return outputJSON(values)
		}
		names := make([]string, 0, len(configKeys))
		for name := range configKeys {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("%-20s %s\n", name, configKeys[name].get(cfg))
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configGetCmd, configSetCmd, configListCmd)
	rootCmd.AddCommand(configCmd)
}
