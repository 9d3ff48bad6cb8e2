package main

import (
	"fmt"
	"io"

	"github.com/aretw0/pageflow/internal/cli"
	"github.com/aretw0/pageflow/internal/config"
	"github.com/aretw0/pageflow/pkg/adapters/file"
	"github.com/aretw0/pageflow/pkg/adapters/redis"
	"github.com/aretw0/pageflow/pkg/adapters/sqlite"
	"github.com/aretw0/pageflow/pkg/domain"
	"github.com/aretw0/pageflow/pkg/persistence/middleware"
	"github.com/aretw0/pageflow/pkg/ports"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [flow-id]",
	Short: "Describe a flow and the conversations of a session",
	Long: `Prints a flow as markdown (rendered when stdout is a terminal). With
--session, the conversations stored for that session (file, sqlite or redis)
are listed with their state, attributes and path through the flow.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("store") || cfg.Store.Driver == "memory" {
			cfg.Store.Driver, _ = cmd.Flags().GetString("store")
		}
		if cmd.Flags().Changed("file-dir") {
			cfg.Store.File.Dir, _ = cmd.Flags().GetString("file-dir")
		}
		if cmd.Flags().Changed("sqlite-path") {
			cfg.Store.SQLite.Path, _ = cmd.Flags().GetString("sqlite-path")
		}
		if cmd.Flags().Changed("redis-addr") {
			cfg.Store.Redis.Addr, _ = cmd.Flags().GetString("redis-addr")
		}

		graphs, err := cli.LoadFlows(cfg.Flows)
		if err != nil {
			return err
		}

		id := ""
		if len(args) > 0 {
			id = args[0]
		}
		g, err := cli.FindFlow(graphs, id)
		if err != nil {
			return err
		}

		var records []domain.Record
		if sessionID, _ := cmd.Flags().GetString("session"); sessionID != "" {
			store, closer, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			if records, err = cli.SessionRecords(cmd.Context(), store, sessionID); err != nil {
				return err
			}
		}

		return cli.WriteInspection(cmd.OutOrStdout(), g, records)
	},
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openStore opens the persistent store named by cfg for reading.
func openStore(cfg config.Config) (ports.ConversationStore, io.Closer, error) {
	var (
		store  ports.ConversationStore
		closer io.Closer = nopCloser{}
	)
	switch cfg.Store.Driver {
	case "file":
		store = file.New(cfg.Store.File.Dir)
	case "sqlite":
		ss, err := sqlite.Open(cfg.Store.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		store, closer = ss, ss
	case "redis":
		rc := cfg.Store.Redis
		rs := redis.New(rc.Addr, rc.Password, rc.DB, redis.WithPrefix(rc.Prefix))
		store, closer = rs, rs
	default:
		return nil, nil, fmt.Errorf("store %q keeps no conversations between runs: use file, sqlite or redis", cfg.Store.Driver)
	}

	if enc := cfg.Store.Encryption; enc.Enabled() {
		active, fallback, err := enc.Keys()
		if err != nil {
			closer.Close()
			return nil, nil, err
		}
		store = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
		})(store)
	}
	return store, closer, nil
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().String("session", "", "Session id whose conversations to list")
	inspectCmd.Flags().String("store", "redis", "Store holding the session: file, sqlite or redis")
	inspectCmd.Flags().String("file-dir", ".pageflow/sessions", "Directory of the file store")
	inspectCmd.Flags().String("sqlite-path", "pageflow.db", "Database file of the sqlite store")
	inspectCmd.Flags().String("redis-addr", "localhost:6379", "Redis address")
}
