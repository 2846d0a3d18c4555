package main

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/ingest"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/model"
)

var orphanCmd = &cobra.Command{
	Use:   "orphan",
	Short: "Manage identifiers not yet attached to an entity",
}

var (
	orphanProject    string
	orphanKind       string
	orphanValue      string
	orphanRegion     string
	orphanFile       string
	orphanSourceType string
	orphanSourceURL  string
	orphanCapturedBy string
	orphanLinked     string
)

var orphanAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record an orphan identifier",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		in, err := orphanInputFromFlags()
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		o, err := env.Ingest.CreateOrphan(ctx, in)
		if err != nil {
			return eris.Wrap(err, "create orphan")
		}
		zap.L().Info("orphan created", zap.String("id", o.ID), zap.String("kind", string(o.Identifier.Kind)))
		return printJSON(cmd.OutOrStdout(), o)
	},
}

func orphanInputFromFlags() (ingest.OrphanInput, error) {
	kind, err := model.ParseKind(orphanKind)
	if err != nil {
		return ingest.OrphanInput{}, err
	}
	ident := model.Identifier{Kind: kind, Value: orphanValue, Region: orphanRegion}
	if orphanFile != "" {
		content, err := os.ReadFile(orphanFile)
		if err != nil {
			return ingest.OrphanInput{}, eris.Wrap(err, "read orphan file")
		}
		ident.Content = content
		if ident.Value == "" {
			ident.Value = orphanFile
		}
	}
	return ingest.OrphanInput{
		Project:    orphanProject,
		Identifier: ident,
		Provenance: model.Provenance{
			SourceType: model.SourceType(orphanSourceType),
			SourceURL:  orphanSourceURL,
			CapturedAt: time.Now().UTC(),
			CapturedBy: orphanCapturedBy,
		},
	}, nil
}

var orphanListCmd = &cobra.Command{
	Use:   "list",
	Short: "List orphans in a project",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		var linked *bool
		switch orphanLinked {
		case "", "all":
		case "yes", "true":
			v := true
			linked = &v
		case "no", "false":
			v := false
			linked = &v
		default:
			return eris.Errorf("--linked must be all, yes or no, got %q", orphanLinked)
		}

		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		orphans, err := env.Store.ListOrphans(ctx, orphanProject, linked)
		if err != nil {
			return eris.Wrap(err, "list orphans")
		}
		return printJSON(cmd.OutOrStdout(), orphans)
	},
}

func init() {
	orphanAddCmd.Flags().StringVar(&orphanProject, "project", "", "project the orphan belongs to (required)")
	orphanAddCmd.Flags().StringVar(&orphanKind, "kind", "", "identifier kind: email, phone, address, name, hash, username, crypto_address, other (required)")
	orphanAddCmd.Flags().StringVar(&orphanValue, "value", "", "identifier value")
	orphanAddCmd.Flags().StringVar(&orphanRegion, "region", "", "region hint for phone numbers, e.g. US")
	orphanAddCmd.Flags().StringVar(&orphanFile, "file", "", "file whose sha256 digest is the identifier (kind hash)")
	orphanAddCmd.Flags().StringVar(&orphanSourceType, "source-type", string(model.SourceHumanEntry), "human_entry, website, import or api")
	orphanAddCmd.Flags().StringVar(&orphanSourceURL, "source-url", "", "where the identifier was seen (required for website)")
	orphanAddCmd.Flags().StringVar(&orphanCapturedBy, "captured-by", "", "analyst or tool that captured it")
	_ = orphanAddCmd.MarkFlagRequired("project")
	_ = orphanAddCmd.MarkFlagRequired("kind")

	orphanListCmd.Flags().StringVar(&orphanProject, "project", "", "project to list (required)")
	orphanListCmd.Flags().StringVar(&orphanLinked, "linked", "all", "filter by link state: all, yes or no")
	_ = orphanListCmd.MarkFlagRequired("project")

	orphanCmd.AddCommand(orphanAddCmd, orphanListCmd)
	rootCmd.AddCommand(orphanCmd)
}
