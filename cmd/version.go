// =============================================================================
// CFDI to CSV Converter - Version Command
// =============================================================================
//
// COMMAND USAGE:
//   cfdi2csv version
//
// Version and BuildDate are set at build time:
//   go build -ldflags "-X 'github.com/ginjaninja78/cfdi-xml-to-csv/cmd.Version=1.2.0' \
//                      -X 'github.com/ginjaninja78/cfdi-xml-to-csv/cmd.BuildDate=2024-06-01'"
//
// =============================================================================

package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/cfdi-xml-to-csv/internal/flatten"
)

// Version is the application version.
var Version = "dev"

// BuildDate is the date the application was built.
var BuildDate = "unknown"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the application version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("CFDI to CSV Converter")
		fmt.Printf("Version:      %s\n", Version)
		fmt.Printf("Build Date:   %s\n", BuildDate)
		fmt.Printf("Go Version:   %s\n", runtime.Version())
		fmt.Printf("Columns:      %d\n", flatten.DefaultLayout().Len())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
