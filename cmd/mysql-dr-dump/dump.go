package main

import (
	"fmt"
	"os"

	"github.com/fgeck/mysql-dr-dump/internal/handlers"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var dumpSpec specFlags

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump databases and upload the archive",
	Long: `Run the dump pipeline against one MySQL server:
1. Check the work directory's disk
2. Check the mysqldump version
3. Check that the requested databases exist
4. Dump to a local file
5. Compress to tar.gz
6. Upload to the bucket named by the bucket parameter
7. Send Telegram notification and push metrics (if configured)`,
	RunE: runDump,
}

func init() {
	dumpSpec.register(dumpCmd)
}

func runDump(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	spec, err := dumpSpec.resolve(cmd, os.Getenv)
	if err != nil {
		return err
	}

	log.Info().
		Str("host", spec.Host).
		Strs("databases", spec.Databases).
		Str("work_dir", cfg.Dump.WorkDir).
		Msg("configuration loaded")

	ctx, cancel := signalContext()
	defer cancel()

	name, err := handlers.New(log.Logger, *cfg).DumpDatabase(ctx, spec)
	if err != nil {
		log.Error().Err(err).Msg("dump failed")
		return err
	}

	log.Info().Str("artifact", name).Msg("dump completed successfully")
	fmt.Println(name)
	return nil
}
