package cmd

import (
	"github.com/spf13/cobra"
)

const AppName = "discproc"

func Execute() error {
	rootCmd := &cobra.Command{
		Use:   AppName,
		Short: AppName + " - device identification and dump tool",
	}

	rootCmd.AddCommand(DefineIdentifyCommand())
	rootCmd.AddCommand(DefineDumpCommand())
	rootCmd.AddCommand(DefineMountCommand())

	return rootCmd.Execute()
}
