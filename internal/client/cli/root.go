package cli

import (
	"github.com/spf13/cobra"

	"github.com/iudanet/agrisync/internal/client/iocli"
)

// RootOptions глобальные флаги клиента
type RootOptions struct {
	ConfigPath string
	DBPath     string
	ServerURL  string
	LogLevel   string
}

// BuildInfo сведения о сборке, задаются через ldflags
type BuildInfo struct {
	Version   string
	BuildDate string
	GitCommit string
}

// annotationNoStack помечает команды, которым не нужен локальный стек
const annotationNoStack = "agrisync/no-stack"

// NewRootCommand создает корневую команду клиента
func NewRootCommand(io iocli.IO, build BuildInfo) *cobra.Command {
	opts := &RootOptions{}
	c := &Cli{io: io}

	cmd := &cobra.Command{
		Use:   "agrisync",
		Short: "AgriSync offline-first client",
		Long: `AgriSync keeps farm data on the device and synchronizes it with the
server whenever connectivity allows. Every change is queued locally first.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[annotationNoStack] != "" {
				return nil
			}
			return c.open(cmd.Context(), opts)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return c.Close()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "path to local database")
	cmd.PersistentFlags().StringVar(&opts.ServerURL, "server", "", "server URL")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")

	cmd.AddCommand(
		c.newRegisterCommand(),
		c.newEnqueueCommand(),
		c.newSyncCommand(),
		c.newStatusCommand(),
		c.newWatchCommand(),
		c.newCacheCommand(),
		c.newRejectedCommand(),
		newVersionCommand(io, build),
	)

	return cmd
}

func newVersionCommand(io iocli.IO, build BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Show version information",
		Annotations: map[string]string{annotationNoStack: "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			io.Printf("AgriSync Client\n")
			io.Printf("Version:    %s\n", build.Version)
			io.Printf("Build Date: %s\n", build.BuildDate)
			io.Printf("Git Commit: %s\n", build.GitCommit)
			return nil
		},
	}
}
