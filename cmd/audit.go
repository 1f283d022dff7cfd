package cmd

import (
	"encoding/json"
	"os"
	"time"

	"github.com/frahmantamala/invoice-admin/internal/audit"
	"github.com/frahmantamala/invoice-admin/pkg/logger"
	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit log",
}

var (
	tailActor  int64
	tailAction string
	tailSince  time.Duration
	tailLimit  int
)

var auditTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print the newest audit entries as JSON lines",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)

		db, err := initDB(cfg.Database, logger.LoggerWrapper())
		if err != nil {
			return err
		}
		defer db.Close()

		store, err := audit.NewStore(db.SQL)
		if err != nil {
			return err
		}

		filter := audit.Filter{ActorID: tailActor, Action: tailAction, Limit: tailLimit}
		if tailSince > 0 {
			filter.Since = time.Now().Add(-tailSince)
		}
		entries, err := store.Recent(cmd.Context(), filter)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		for _, e := range entries {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	auditTailCmd.Flags().Int64Var(&tailActor, "actor", 0, "only entries by this user id")
	auditTailCmd.Flags().StringVar(&tailAction, "action", "", "only entries with this action, e.g. authz.access_denied")
	auditTailCmd.Flags().DurationVar(&tailSince, "since", 0, "only entries newer than this, e.g. 24h")
	auditTailCmd.Flags().IntVarP(&tailLimit, "limit", "n", 50, "maximum number of entries")

	auditCmd.AddCommand(auditTailCmd)
}
