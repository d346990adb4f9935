// Copyright 2023-2025
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/olekukonko/tablewriter"
	"github.com/quant-vault/qv-api/common"
	"github.com/quant-vault/qv-api/factors"
	"github.com/rs/zerolog/log"

	"github.com/spf13/cobra"
)

var (
	combineBegin     string
	combineEnd       string
	combineAssets    string
	combineScheme    string
	combineRollback  int
	combineHolding   int
	combineHorizon   int
	combineStd       string
	combineOrtho     string
	combineJSONOut   string
	combineShowTable bool
	combineTopN      int
)

func init() {
	rootCmd.AddCommand(combineCmd)

	combineCmd.Flags().StringVar(&combineBegin, "begin", "", "First trade date (YYYY-MM-DD)")
	combineCmd.Flags().StringVar(&combineEnd, "end", "", "Last trade date (YYYY-MM-DD)")
	combineCmd.Flags().StringVar(&combineAssets, "assets", "", "Comma separated asset identifiers")
	combineCmd.Flags().StringVar(&combineScheme, "scheme", "equal", "Weighting scheme: equal, ic_weight, ir_weight, max_IC, max_IR")
	combineCmd.Flags().IntVar(&combineRollback, "rollback", 12, "Number of past evaluation dates used to estimate weights")
	combineCmd.Flags().IntVar(&combineHolding, "holding", 1, "Holding period in trade dates between weight estimation and application")
	combineCmd.Flags().IntVar(&combineHorizon, "horizon", 1, "Forward return horizon in trade dates")
	combineCmd.Flags().StringVar(&combineStd, "standardization", "zscore", "Factor standardization before combination: zscore or rank")
	combineCmd.Flags().StringVar(&combineOrtho, "orthogonalize", "none", "Orthogonalization: none, symmetric, gram-schmidt")
	combineCmd.Flags().StringVar(&combineJSONOut, "out", "", "Write the composite factor to the named JSON file")
	combineCmd.Flags().BoolVar(&combineShowTable, "table", true, "Print the composite factor table")
	combineCmd.Flags().IntVar(&combineTopN, "top", 0, "Print the top N assets on the final composite cross-section")

	combineCmd.MarkFlagRequired("begin")
	combineCmd.MarkFlagRequired("end")
	combineCmd.MarkFlagRequired("assets")
}

var combineCmd = &cobra.Command{
	Use:        "combine [flags] metric1,metric2,...",
	Short:      "Combine fundamental factors into a composite signal",
	Long:       `Reconstruct TTM fundamentals, clean and neutralize each factor, then combine them into a single composite using the requested weighting scheme.`,
	Args:       cobra.ExactArgs(1),
	ArgAliases: []string{"Metrics"},
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		metrics, err := parseMetrics(args[0])
		if err != nil {
			log.Fatal().Err(err).Msg("invalid factor list")
		}
		scheme, err := parseScheme(combineScheme)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid weighting scheme")
		}
		std, err := parseStandardization(combineStd)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid standardization")
		}
		ortho, err := parseOrthogonalization(combineOrtho)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid orthogonalization")
		}

		assets := strings.Split(combineAssets, ",")
		env, err := setupPipeline(ctx, combineBegin, combineEnd, assets, combineHorizon)
		if err != nil {
			log.Fatal().Err(err).Msg("could not initialize factor pipeline")
		}
		defer env.Close(ctx)

		inputs := make([]factors.Input, 0, len(metrics))
		for _, metric := range metrics {
			factor, err := env.buildFactor(ctx, metric)
			if err != nil {
				log.Fatal().Err(err).Str("Metric", string(metric)).Msg("could not build factor")
			}
			inputs = append(inputs, factors.Input{Name: string(metric), Factor: factor})
		}

		composite, weights, err := factors.Combine(inputs, env.Forward, factors.CombineOptions{
			Scheme:            scheme,
			RollbackPeriod:    combineRollback,
			HoldingPeriod:     combineHolding,
			Standardization:   std,
			Orthogonalization: ortho,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("could not combine factors")
		}

		if combineShowTable {
			fmt.Println(composite.Table())
			printWeights(weights)
		}

		if combineTopN > 0 && composite.Len() > 0 {
			last := composite.Dates[composite.Len()-1]
			ranked := common.TopN(composite.AsMap(composite.Len()-1), combineTopN)
			fmt.Printf("Top %d assets on %s: %s\n", len(ranked), last.Format("2006-01-02"), strings.Join(ranked, ", "))
		}

		if combineJSONOut != "" {
			raw, err := json.Marshal(composite)
			if err != nil {
				log.Fatal().Err(err).Msg("could not serialize composite factor")
			}
			if err := os.WriteFile(combineJSONOut, raw, 0600); err != nil {
				log.Fatal().Err(err).Str("FileName", combineJSONOut).Msg("could not write composite factor")
			}
		}
	},
}

func printWeights(weights *factors.WeightMatrix) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(append([]string{"Date"}, weights.Factors...))
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")

	for rowIdx, date := range weights.Dates {
		row := make([]string, 0, len(weights.Factors)+1)
		row = append(row, date.Format("2006-01-02"))
		for colIdx := range weights.Factors {
			row = append(row, fmt.Sprintf("%.4f", weights.Weights[rowIdx][colIdx]))
		}
		table.Append(row)
	}

	table.Render()
}
