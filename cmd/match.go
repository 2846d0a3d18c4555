package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/match"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/model"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/similarity"
)

var (
	matchProject string
	matchKind    string
	matchValue   string
	matchRegion  string
	matchLimit   int
)

// rankedMatch is one line of ad hoc match output.
type rankedMatch struct {
	model.MatchResult
	Tier model.Tier `json:"tier"`
}

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Find entities an identifier may belong to, without recording anything",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		kind, err := model.ParseKind(matchKind)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		pool, err := env.Store.ListEntities(ctx, matchProject, nil)
		if err != nil {
			return eris.Wrap(err, "list candidates")
		}

		opts := env.Options
		if matchLimit > 0 {
			opts.MaxResults = matchLimit
		}
		subject := match.ForIdentifier("", model.Identifier{Kind: kind, Value: matchValue, Region: matchRegion})
		results, err := env.Engine.FindMatches(ctx, subject, pool, opts)

		out := make([]rankedMatch, 0, len(results))
		for _, r := range results {
			tier, ok := similarity.TierFor(r.Confidence)
			if !ok {
				continue
			}
			out = append(out, rankedMatch{MatchResult: r, Tier: tier})
		}
		if perr := printJSON(cmd.OutOrStdout(), out); perr != nil {
			return perr
		}
		return err
	},
}

func init() {
	matchCmd.Flags().StringVar(&matchProject, "project", "", "project whose entities are candidates (required)")
	matchCmd.Flags().StringVar(&matchKind, "kind", "", "identifier kind (required)")
	matchCmd.Flags().StringVar(&matchValue, "value", "", "identifier value (required)")
	matchCmd.Flags().StringVar(&matchRegion, "region", "", "region hint for phone numbers")
	matchCmd.Flags().IntVar(&matchLimit, "limit", 0, "maximum results (default from config)")
	_ = matchCmd.MarkFlagRequired("project")
	_ = matchCmd.MarkFlagRequired("kind")
	_ = matchCmd.MarkFlagRequired("value")
	rootCmd.AddCommand(matchCmd)
}
