package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"idleguard/pkg/pattern"
)

var (
	patternOut    string
	patternParams = pattern.DefaultParams()
)

var patternCmd = &cobra.Command{
	Use:   "pattern <kind>",
	Short: "Generate an input shaping test print",
	Long: `Pattern writes G-code for a ringing test print used to choose M593 values.

The freq patterns draw one zig-zag scan from 0Hz to --top-freq with shaping
off. Measure from the start of the line to the widest oscillation and divide
by --wavelength to get the frequency. Vertical lines oscillate in X, so read
X frequencies off them.

The zeta patterns draw twenty scans with the damping ratio rising by 0.05
per line. Pick the line with the most even oscillation.

Kinds: ` + kindList() + `

Example:
  idleguard pattern freq_y -o freq_y.gcode`,
	Args: cobra.ExactArgs(1),
	RunE: runPattern,
}

func kindList() string {
	names := make([]string, len(pattern.Kinds))
	for i, k := range pattern.Kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

func init() {
	f := patternCmd.Flags()
	p := &patternParams
	f.StringVarP(&patternOut, "output", "o", "", "write to this file instead of stdout")
	f.Float64Var(&p.LayerHeight, "layer-height", p.LayerHeight, "layer height (mm)")
	f.Float64Var(&p.LineWidth, "line-width", p.LineWidth, "extrusion width (mm)")
	f.Float64Var(&p.FilamentDia, "filament-dia", p.FilamentDia, "filament diameter (mm)")
	f.IntVar(&p.NozzleTemp, "nozzle-temp", p.NozzleTemp, "nozzle temperature")
	f.IntVar(&p.BedTemp, "bed-temp", p.BedTemp, "bed temperature")
	f.Float64Var(&p.Wavelength, "wavelength", p.Wavelength, "width of one zig-zag (mm)")
	f.Float64Var(&p.Amplitude, "amplitude", p.Amplitude, "peak to peak zig-zag size (mm)")
	f.IntVar(&p.TopFreq, "top-freq", p.TopFreq, "highest scanned frequency (Hz)")
	f.Float64Var(&p.Decel, "decel", p.Decel, "deceleration after a scan (mm/s^2)")
	rootCmd.AddCommand(patternCmd)
}

func runPattern(cmd *cobra.Command, args []string) error {
	kind, err := pattern.ParseKind(args[0])
	if err != nil {
		return err
	}
	params := patternParams
	params.Kind = kind

	if patternOut == "" {
		return pattern.Generate(cmd.OutOrStdout(), params)
	}
	f, err := os.Create(patternOut)
	if err != nil {
		return err
	}
	if err := pattern.Generate(f, params); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
