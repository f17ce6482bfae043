package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"convertmcp/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write convertmcp.toml with defaults",
	RunE:  runConfigInit,
}

var configPrintCmd = &cobra.Command{
	Use:   "print",
	Short: "Print effective config with its sources (API key masked)",
	RunE:  runConfigPrint,
}

var configInitForce bool

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPrintCmd)
}

func configFilePath() string {
	path := globalFlags.ConfigPath
	if path == "" {
		path = config.DefaultConfigFile
	}
	if !filepath.IsAbs(path) && globalFlags.Dir != "" {
		path = filepath.Join(globalFlags.Dir, path)
	}
	return path
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path := configFilePath()
	if err := writeDefaultConfig(path, configInitForce); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Wrote", path)
	fmt.Fprintln(cmd.OutOrStdout(), "Set "+config.EnvAPIKey+" in your environment or .env file.")
	return nil
}

func writeDefaultConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists; pass --force to overwrite", path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(config.DefaultTOML), 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func runConfigPrint(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(nil, true)
	if err != nil {
		return err
	}
	writeConfig(cmd.OutOrStdout(), newStyles(cmd.OutOrStdout(), globalFlags.JSON), cfg, globalFlags.JSON)
	return nil
}

func writeConfig(w io.Writer, st styles, cfg *config.Config, jsonMode bool) {
	fields := cfg.Fields()
	if jsonMode {
		enc := json.NewEncoder(w)
		for _, f := range fields {
			_ = enc.Encode(map[string]string{"key": f.Key, "value": f.Value, "source": string(f.Source)})
		}
		return
	}
	for _, f := range fields {
		fmt.Fprintln(w, st.kv(f.Key, f.Value+"  "+st.dim("("+string(f.Source)+")")))
	}
	for _, warning := range cfg.Warnings {
		fmt.Fprintln(w, st.warnPrefix(), warning)
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintln(w, st.errPrefix(), err.Error())
	}
}
