package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/model"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/suggest"
)

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Review match suggestions for an entity or orphan",
}

var (
	suggestOrphan bool
	suggestAction string
	suggestKeep   string
	suggestReason string
)

var suggestListCmd = &cobra.Command{
	Use:   "list <subject-id>",
	Short: "List pending suggestions by confidence tier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		var set *model.SuggestionSet
		if suggestOrphan {
			set, err = env.Suggest.GetOrphanSuggestions(ctx, args[0])
		} else {
			set, err = env.Suggest.GetSuggestions(ctx, args[0])
		}
		if set != nil {
			if perr := printJSON(cmd.OutOrStdout(), set); perr != nil {
				return perr
			}
		}
		return err
	},
}

var suggestAcceptCmd = &cobra.Command{
	Use:   "accept <subject-id> <suggestion-id>",
	Short: "Accept a suggestion and apply it as a link or merge",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		var res *suggest.AcceptResult
		if suggestOrphan {
			res, err = env.Suggest.AcceptOrphan(ctx, args[0], args[1], suggestReason)
		} else {
			res, err = env.Suggest.Accept(ctx, args[0], args[1], suggest.AcceptRequest{
				Action: suggestAction,
				Keep:   suggestKeep,
				Reason: suggestReason,
			})
		}
		if err != nil {
			return eris.Wrap(err, "accept suggestion")
		}
		zap.L().Info("suggestion accepted", zap.String("subject_id", args[0]), zap.String("suggestion_id", args[1]))
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var suggestDismissCmd = &cobra.Command{
	Use:   "dismiss <subject-id> <suggestion-id>",
	Short: "Dismiss a suggestion until the matched values change",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		var sg *model.Suggestion
		if suggestOrphan {
			sg, err = env.Suggest.DismissOrphan(ctx, args[0], args[1], suggestReason)
		} else {
			sg, err = env.Suggest.Dismiss(ctx, args[0], args[1], suggestReason)
		}
		if err != nil {
			return eris.Wrap(err, "dismiss suggestion")
		}
		return printJSON(cmd.OutOrStdout(), sg)
	},
}

func init() {
	suggestCmd.PersistentFlags().BoolVar(&suggestOrphan, "orphan", false, "the subject is an orphan rather than an entity")

	suggestAcceptCmd.Flags().StringVar(&suggestAction, "action", suggest.ActionLink, "link or merge")
	suggestAcceptCmd.Flags().StringVar(&suggestKeep, "keep", suggest.KeepSubject, "merge survivor: subject or candidate")
	suggestAcceptCmd.Flags().StringVar(&suggestReason, "reason", "", "why the suggestion is accepted (required)")
	_ = suggestAcceptCmd.MarkFlagRequired("reason")

	suggestDismissCmd.Flags().StringVar(&suggestReason, "reason", "", "why the suggestion is dismissed (required)")
	_ = suggestDismissCmd.MarkFlagRequired("reason")

	suggestCmd.AddCommand(suggestListCmd, suggestAcceptCmd, suggestDismissCmd)
	rootCmd.AddCommand(suggestCmd)
}
