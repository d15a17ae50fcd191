package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rapturt9/interactive-worlds-sub000/internal/session"
)

var rollbackTurn int

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots <session-id>",
	Short: "List a session's snapshots, or roll back to one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openStore(cfg)
		if err != nil {
			return err
		}
		snaps := session.NewSnapshots(db)
		sessionID := args[0]

		if rollbackTurn >= 0 {
			if err = snaps.Rollback(cmd.Context(), sessionID, rollbackTurn); err != nil {
				return err
			}
			fmt.Printf("rolled back to turn %d\n", rollbackTurn)
			return nil
		}

		list, err := snaps.List(cmd.Context(), sessionID)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("no snapshots")
			return nil
		}
		for _, s := range list {
			fmt.Printf("turn %3d  %s  bible=%dB character=%dB\n",
				s.TurnNumber, s.CreatedAt.Format("2006-01-02 15:04:05"), len(s.Bible), len(s.Character))
		}
		return nil
	},
}

func init() {
	snapshotsCmd.Flags().IntVar(&rollbackTurn, "rollback", -1, "roll canonical state back to this turn")
	rootCmd.AddCommand(snapshotsCmd)
}
