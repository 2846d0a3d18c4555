package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/model"
)

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Link data items, merge entities or attach orphans directly",
}

var (
	linkKeep   string
	linkReason string
)

var linkMergeCmd = &cobra.Command{
	Use:   "merge <entity-a> <entity-b>",
	Short: "Merge two entities into the one named by --keep",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		keep := linkKeep
		if keep == "" {
			keep = args[0]
		}

		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		e, err := env.Linker.MergeEntities(ctx, args[0], args[1], keep, linkReason)
		if err != nil {
			return eris.Wrap(err, "merge entities")
		}
		return printJSON(cmd.OutOrStdout(), e)
	},
}

var linkItemsCmd = &cobra.Command{
	Use:   "items <ref-a> <ref-b>",
	Short: "Link two data items, given as entity:<id>#<field> or orphan:<id>",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := model.ParseDataRef(args[0])
		if err != nil {
			return err
		}
		b, err := model.ParseDataRef(args[1])
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		l, err := env.Linker.LinkDataItems(ctx, a, b, linkReason)
		if err != nil {
			return eris.Wrap(err, "link data items")
		}
		return printJSON(cmd.OutOrStdout(), l)
	},
}

var linkOrphanCmd = &cobra.Command{
	Use:   "orphan <orphan-id> <entity-id>",
	Short: "Attach an orphan's identifier to an entity",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		e, err := env.Linker.LinkOrphanToEntity(ctx, args[0], args[1], linkReason)
		if err != nil {
			return eris.Wrap(err, "link orphan")
		}
		return printJSON(cmd.OutOrStdout(), e)
	},
}

func init() {
	linkCmd.PersistentFlags().StringVar(&linkReason, "reason", "", "why the items belong together (required)")
	_ = linkCmd.MarkPersistentFlagRequired("reason")
	linkMergeCmd.Flags().StringVar(&linkKeep, "keep", "", "surviving entity id (default: the first)")

	linkCmd.AddCommand(linkMergeCmd, linkItemsCmd, linkOrphanCmd)
	rootCmd.AddCommand(linkCmd)
}
