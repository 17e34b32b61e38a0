package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tendant/editor-bridge/pkg/editorbridge/config"
	"github.com/tendant/editor-bridge/pkg/editorbridge/fixtures"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	databaseURL string
	storageURL  string
	seedFile    string
	principal   string
	docType     string
	verbose     bool
}

// NewRootCommand builds the bridgectl command tree.
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "bridgectl",
		Short: "Editor bridge admin CLI",
		Long: `Administration tool for the editor bridge repository.

Runs the bridge service in-process against DATABASE_URL and STORAGE_URL.
With the default in-memory repository, pass --seed to load a fixture first;
arguments that start with "/" are then resolved as seeded paths.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.databaseURL, "database-url", getEnv("DATABASE_URL", "memory"), "repository database URL")
	rootCmd.PersistentFlags().StringVar(&flags.storageURL, "storage-url", getEnv("STORAGE_URL", "memory://"), "blob storage URL")
	rootCmd.PersistentFlags().StringVar(&flags.seedFile, "seed", "", "YAML fixture loaded before the command runs")
	rootCmd.PersistentFlags().StringVarP(&flags.principal, "principal", "p", "admin", "user the command runs as")
	rootCmd.PersistentFlags().StringVar(&flags.docType, "document-type", getEnv("CREATION_DOCUMENT_TYPE", ""), "document type registered as a file kind")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(NewSeedCommand(flags))
	rootCmd.AddCommand(NewBrowseCommand(flags))
	rootCmd.AddCommand(NewGetCommand(flags))
	rootCmd.AddCommand(NewLockCommand(flags, true))
	rootCmd.AddCommand(NewLockCommand(flags, false))
	rootCmd.AddCommand(NewResolveCommand(flags))
	rootCmd.AddCommand(NewScanCommand(flags))

	return rootCmd
}

// session is the in-process bridge a command runs against.
type session struct {
	*config.Runtime
	cfg    *config.ServerConfig
	logger *slog.Logger
	ids    map[string]string
}

// ref maps a seeded path to its id; other values pass through.
func (s *session) ref(arg string) string {
	if strings.HasPrefix(arg, "/") {
		if id, ok := s.ids[arg]; ok {
			return id
		}
	}
	return arg
}

func openSession(ctx context.Context, cmd *cobra.Command, flags *globalFlags) (*session, error) {
	level := slog.LevelWarn
	if flags.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(
		config.WithDatabaseURL(flags.databaseURL),
		config.WithStorageURL(flags.storageURL),
		config.WithCreation("", flags.docType),
		config.WithEventBus("none", 0),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	rt, err := cfg.BuildService(ctx, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build service: %w", err)
	}

	s := &session{Runtime: rt, cfg: cfg, logger: logger, ids: map[string]string{}}
	if flags.seedFile != "" {
		ids, err := fixtures.SeedFile(ctx, rt.Repository, flags.seedFile, logger)
		if err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("seed %s: %w", flags.seedFile, err)
		}
		s.ids = ids
	}
	return s, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func printf(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format, args...)
}
