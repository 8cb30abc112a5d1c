package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate a printer configuration",
	Long: `Check parses the configuration, prints the effective idle protection
settings as an M86 line and lists options that nothing reads.

Example:
  idleguard check --config printer.cfg`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	addConfigFlag(checkCmd)
	checkCmd.MarkFlagRequired("config")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	pc, raw, err := loadConfig()
	if err != nil {
		return err
	}
	if err := pc.Idle.Validate(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: ok\n", configFile)
	fmt.Fprintf(out, "  %s\n", pc.Idle.Command(pc.HeaterBed != nil))
	fmt.Fprintf(out, "  board: %s", pc.Board.Name)
	if pc.Board.Variant != "" {
		fmt.Fprintf(out, "/%s", pc.Board.Variant)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  tool head: %s id %d\n", pc.ToolHead.Family, pc.ToolHead.ID)

	if raw != nil {
		for _, name := range raw.Unused() {
			fmt.Fprintf(out, "  unused: %s\n", name)
		}
	}
	return nil
}
