package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	importProject string
	importReplace bool
)

var importCmd = &cobra.Command{
	Use:   "import <file.jsonl>",
	Short: "Bulk import entities from a JSON Lines file",
	Long:  "Reads one entity per line from the file, or stdin when the file is -. Entities without a project get --project. With --replace, existing entities with the same id are overwritten.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		importFile := args[0]

		var r io.Reader = cmd.InOrStdin()
		if importFile != "-" {
			f, err := os.Open(importFile)
			if err != nil {
				return eris.Wrap(err, "open import file")
			}
			defer f.Close() //nolint:errcheck
			r = f
		}

		env, err := initEnv(ctx, "import")
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Ingest.ImportEntities(ctx, r, importProject, importReplace)
		if err != nil {
			return eris.Wrap(err, "import entities")
		}

		zap.L().Info("import complete",
			zap.Int64("entities", n),
			zap.String("file", importFile),
			zap.Bool("replace", importReplace),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importProject, "project", "", "project for entities that do not name one")
	importCmd.Flags().BoolVar(&importReplace, "replace", false, "overwrite existing entities with the same id")
	rootCmd.AddCommand(importCmd)
}
