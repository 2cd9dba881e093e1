package main

import (
	"github.com/spf13/cobra"

	"github.com/nonfou/mpayctl/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration after all overrides",
		RunE:  runConfigShow,
	}
}

// configShowOutput is the JSON schema for `config show --json`.
type configShowOutput struct {
	Path   string         `json:"path"`
	Config *config.Config `json:"config"`
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	if cc.Flags.JSON {
		return printJSON(cc.Out, configShowOutput{Path: cc.Cfg.Path, Config: &cc.Cfg.Config})
	}

	return config.RenderEffective(cc.Cfg, cc.Out)
}
