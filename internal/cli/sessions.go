package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rapturt9/interactive-worlds-sub000/internal/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List stored sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openStore(cfg)
		if err != nil {
			return err
		}

		sessions, err := session.NewStore(db).ListSessions(cmd.Context())
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Println("no sessions")
			return nil
		}
		for _, s := range sessions {
			fmt.Printf("%s  %-30s  phase=%s turn=%d\n", s.ID, s.Title, s.CurrentPhase, s.CurrentTurn)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}
