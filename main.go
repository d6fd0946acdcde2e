// =============================================================================
// folio - Main Entry Point
// =============================================================================
//
// USAGE:
//   folio import FILE|DIR    - Import broker transaction exports
//   folio statements FILE    - Apply broker-reported settlement dates
//   folio validate           - Validate the configuration file
//   folio version            - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : import stages, store, calendars and reports
//   - pkg/       : shared file utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/folio/cmd"
)

func main() {
	cmd.Execute()
}
