package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rapturt9/interactive-worlds-sub000/internal/ai"
	"github.com/rapturt9/interactive-worlds-sub000/internal/chat"
	"github.com/rapturt9/interactive-worlds-sub000/internal/core"
	"github.com/rapturt9/interactive-worlds-sub000/internal/session"
	"github.com/rapturt9/interactive-worlds-sub000/internal/tools"
	"github.com/rapturt9/interactive-worlds-sub000/internal/view"
)

var (
	resumeID  string
	debugView bool
)

var playCmd = &cobra.Command{
	Use:   "play [seed prompt]",
	Short: "Start or resume an adventure",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openStore(cfg)
		if err != nil {
			return err
		}
		vendor, err := buildVendor(cfg)
		if err != nil {
			return err
		}

		store := session.NewStore(db)
		snaps := session.NewSnapshots(db)
		ctrl := core.NewController(store, session.NewTransition(store), snaps, core.Config{
			Vendor: vendor,
			Tools:  tools.Default(),
			Options: ai.Options{
				Model:       cfg.Model,
				Temperature: cfg.Temperature,
				MaxTokens:   cfg.MaxTokens,
			},
			Manual:  cfg.Manual,
			OnToken: func(_, token string) { fmt.Print(token) },
			OnAdvanceReady: func(_, next string) {
				fmt.Printf("\n[ready to advance to %s; press enter]\n", next)
			},
		})

		ctx := cmd.Context()
		sessionID := resumeID
		if sessionID == "" {
			seed := "Surprise me."
			if len(args) > 0 {
				seed = strings.Join(args, " ")
			}
			rec, err := store.CreateSession(ctx, session.Seed{Title: "untitled", ModelTier: cfg.Model})
			if err != nil {
				return err
			}
			sessionID = rec.ID
			fmt.Printf("session %s\n\n", sessionID)
			if err = ctrl.Start(ctx, sessionID, chat.PhaseWorld, seed); err != nil {
				return err
			}
			fmt.Println()
		}

		return gameplayLoop(ctx, ctrl, store, sessionID)
	},
}

func gameplayLoop(ctx context.Context, ctrl *core.Controller, store *session.Store, sessionID string) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/quit" {
			return nil
		}
		if input == "/history" {
			if err := printHistory(ctx, store, sessionID); err != nil {
				return err
			}
			continue
		}

		sess, err := store.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		phase := sess.CurrentPhase
		if !chat.ValidPhase(phase) {
			phase = chat.PhaseChat0
		}
		if err = ctrl.Start(ctx, sessionID, phase, input); err != nil {
			fmt.Fprintf(os.Stderr, "\n%v\n", err)
			continue
		}
		fmt.Println()
	}
}

func printHistory(ctx context.Context, store *session.Store, sessionID string) error {
	sess, err := store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	msgs, err := store.ListMessages(ctx, sessionID)
	if err != nil {
		return err
	}

	mode := view.Production
	if debugView {
		mode = view.Debug
	}
	for _, m := range view.Assemble(msgs, sess.CurrentPhase, mode, sess.BibleContent, sess.CharacterContent) {
		fmt.Printf("[%s/%s] %s\n", m.Phase, m.Role, m.Content)
	}
	return nil
}

func init() {
	playCmd.Flags().StringVar(&resumeID, "resume", "", "resume an existing session by id")
	playCmd.Flags().BoolVar(&debugView, "debug-view", false, "show every phase in /history, annotated")
	rootCmd.AddCommand(playCmd)
}
