package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/haierkeys/fast-content-service/internal/upgrade"

	"github.com/spf13/cobra"
)

var upgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Apply pending history schema migrations",
	Long: `Apply pending history schema migrations.

It is safe to run this command multiple times - already applied migrations will be skipped.`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")

		appContainer, err := openApp(configPath)
		if err != nil {
			fmt.Printf("Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer appContainer.Shutdown(context.Background())

		fmt.Println("Starting database upgrade...")

		if err := upgrade.Execute(cmd.Context(), appContainer); err != nil {
			fmt.Printf("Upgrade failed: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("Database upgrade completed successfully!")
	},
}

func init() {
	rootCmd.AddCommand(upgradeCmd)
	upgradeCmd.Flags().StringP("config", "c", "", "config file path")
}
