package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/emdx-dev/emdx/internal/backup"
	"github.com/emdx-dev/emdx/internal/config"
)

var backupCmd = &cobra.Command{
	Use:     "backup",
	GroupID: "maintain",
	Short:   "Run the daily backup pass with logarithmic retention",
	RunE: func(cmd *cobra.Command, args []string) error {
		configDir, err := config.ConfigDir()
		if err != nil {
			return fail(cmd, err)
		}
		dir := filepath.Join(configDir, "backups")
		mgr, err := backup.NewManager(app.Store, dir, app.Logger)
		if err != nil {
			return fail(cmd, err)
		}
		path, err := mgr.RunDaily(cmd.Context(), time.Now())
		if err != nil {
			return fail(cmd, err)
		}
		if emitJSON(cmd.OutOrStdout(), map[string]string{"backup_file": path}) {
			return nil
		}
		fmt.Printf("Backed up to %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(backupCmd)
}
