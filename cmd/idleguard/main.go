// idleguard runs the hot end idle protection monitor on a simulated printer
// and serves its status, settings and event journal over HTTP.
//
// Usage:
//
//	idleguard run --config printer.cfg [--listen :7125] [--logfile idleguard.log]
//	idleguard check --config printer.cfg
//	idleguard history --db idleguard.db --limit 20
//	idleguard pattern zeta_x -o zeta_x.gcode
package main

import (
	"os"

	"idleguard/cmd/idleguard/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
