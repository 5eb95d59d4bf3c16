// Package cli implements the companion CLI commands.
package cli

import (
	"context"
	"fmt"
	"math/rand"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rcliao/companion/internal/companion"
	"github.com/rcliao/companion/internal/config"
	"github.com/rcliao/companion/internal/gateway"
	"github.com/rcliao/companion/internal/logging"
	"github.com/rcliao/companion/internal/mood"
	"github.com/rcliao/companion/internal/persona"
	"github.com/rcliao/companion/internal/scheduler"
	"github.com/rcliao/companion/internal/store"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  = zap.NewNop()
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "companion",
	Short: "A moody AI companion in your terminal",
	Long: "Chat with a persona whose mood rises and falls with how you talk to her. " +
		"Conversation, memories and pictures are kept in a local SQLite file.",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default: ~/.companion/config.yaml if present)")
	RootCmd.PersistentFlags().StringP("db", "d", "", "Database path (default: $COMPANION_DB_PATH or ~/.companion/companion.db)")
	RootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	v := config.New()
	flags := cmd.Root().PersistentFlags()
	if err := v.BindPFlag("db_path", flags.Lookup("db")); err != nil {
		return err
	}
	if err := v.BindPFlag("log.level", flags.Lookup("log-level")); err != nil {
		return err
	}

	c, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	l, err := logging.New(logging.Options{Level: c.Log.Level, Development: c.Log.Development})
	if err != nil {
		return err
	}
	cfg, logger = c, l
	return nil
}

func openStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(cfg.DBPath)
}

func newGateway() *gateway.OpenAI {
	return gateway.NewOpenAI(gateway.Options{
		BaseURL:     cfg.Gateway.BaseURL,
		APIKey:      cfg.Gateway.APIKey,
		TextModel:   cfg.Gateway.TextModel,
		ImageModel:  cfg.Gateway.ImageModel,
		AudioModel:  cfg.Gateway.AudioModel,
		Voice:       cfg.Gateway.Voice,
		MaxTokens:   cfg.Gateway.MaxTokens,
		Temperature: cfg.Gateway.Temperature,
		ImageSize:   cfg.Gateway.ImageSize,
		Timeout:     cfg.Gateway.Timeout,
		Logger:      logger.Named("gateway"),
	})
}

// openSession wires the store, gateway, scheduler, persona and mood tracker into a session.
// The caller must Close it.
func openSession(ctx context.Context) (*companion.Session, error) {
	pack, err := persona.LoadPack(cfg.PersonaPack)
	if err != nil {
		return nil, err
	}
	var src rand.Source
	if cfg.RandomSeed != 0 {
		src = rand.NewSource(cfg.RandomSeed)
	}
	responder, err := persona.NewResponder(pack, src)
	if err != nil {
		return nil, err
	}
	tiers, err := mood.TableFor(cfg.Mood.Tiers)
	if err != nil {
		return nil, err
	}

	s, err := openStore()
	if err != nil {
		return nil, err
	}
	sched := scheduler.New(scheduler.Options{
		PreDelay:  cfg.Scheduler.PreDelay,
		PostDelay: cfg.Scheduler.PostDelay,
		Logger:    logger.Named("scheduler"),
	})

	session, err := companion.Open(ctx, companion.Deps{
		Store:     s,
		Gateway:   newGateway(),
		Scheduler: sched,
		Responder: responder,
		Tracker:   mood.NewTracker(mood.NewEngine(tiers), nil),
		Logger:    logger.Named("companion"),
		Options: companion.Options{
			HistoryLimit:     cfg.Memory.HistoryLimit,
			MemoryBudget:     cfg.Memory.Budget,
			ImageSeed:        cfg.Gateway.ImageSeed,
			SpeechMaxSegment: cfg.Speech.MaxSegment,
			Voice:            cfg.Gateway.Voice,
		},
	})
	if err != nil {
		sched.Close()
		s.Close()
		return nil, err
	}
	return session, nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
