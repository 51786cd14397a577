package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/room4-2/livetranslate/wirelog"
)

var (
	logsLimit int64
	logsClear bool
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Inspect the wire log kept in redis",
}

var logsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print recent wire log entries, oldest first",
	Args:  cobra.NoArgs,
	RunE:  runLogsExport,
}

func init() {
	logsExportCmd.Flags().Int64Var(&logsLimit, "limit", 200, "number of most recent entries to print")
	logsExportCmd.Flags().BoolVar(&logsClear, "clear", false, "delete the exported entries afterwards")
	logsCmd.AddCommand(logsExportCmd)
	rootCmd.AddCommand(logsCmd)
}

func runLogsExport(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadEnvironment()
	if err != nil {
		return err
	}

	rdb := cfg.ConnectRedis(cmd.Context())
	if rdb == nil {
		return errors.New("wire log export needs a reachable redis (REDIS_URL)")
	}
	defer rdb.Close()

	sink := wirelog.NewRedis(rdb, wireLogKey, wireLogMaxLen, logger)
	entries, err := sink.Recent(cmd.Context(), logsLimit)
	if err != nil {
		return err
	}
	if err := wirelog.Export(cmd.OutOrStdout(), entries); err != nil {
		return err
	}
	if logsClear {
		return sink.Clear(cmd.Context())
	}
	return nil
}
