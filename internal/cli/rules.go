package cli

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/xtrntr/farmduel/internal/config"
)

func newRulesCommand() *cobra.Command {
	var rulesPath string

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Print the effective rules table as YAML",
		Long: `Print the rules table a competition would use, after applying the
rules file over the defaults. The output is itself a valid rules file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			r, err := loadRules(cfg, rulesPath)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(r)
		},
	}

	cmd.Flags().StringVar(&rulesPath, "rules", "", "Rules file (overrides simulation.rules_path)")
	return cmd
}
