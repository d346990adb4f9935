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

	"github.com/olekukonko/tablewriter"
	"github.com/quant-vault/qv-api/factors"
	"github.com/rs/zerolog/log"

	"github.com/spf13/cobra"
)

var (
	icBegin    string
	icEnd      string
	icAssets   string
	icHorizon  int
	icShowDays bool
)

func init() {
	rootCmd.AddCommand(icCmd)

	icCmd.Flags().StringVar(&icBegin, "begin", "", "First trade date (YYYY-MM-DD)")
	icCmd.Flags().StringVar(&icEnd, "end", "", "Last trade date (YYYY-MM-DD)")
	icCmd.Flags().StringVar(&icAssets, "assets", "", "Comma separated asset identifiers")
	icCmd.Flags().IntVar(&icHorizon, "horizon", 1, "Forward return horizon in trade dates")
	icCmd.Flags().BoolVar(&icShowDays, "daily", false, "Also print the per-date IC series")

	icCmd.MarkFlagRequired("begin")
	icCmd.MarkFlagRequired("end")
	icCmd.MarkFlagRequired("assets")
}

var icCmd = &cobra.Command{
	Use:        "ic [flags] metric1,metric2,...",
	Short:      "Evaluate factor information coefficients",
	Long:       `Reconstruct, clean and neutralize each named fundamental factor, then report its rank IC statistics and univariate factor-return regression against forward returns.`,
	Args:       cobra.ExactArgs(1),
	ArgAliases: []string{"Metrics"},
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		metrics, err := parseMetrics(args[0])
		if err != nil {
			log.Fatal().Err(err).Msg("invalid factor list")
		}

		assets := strings.Split(icAssets, ",")
		env, err := setupPipeline(ctx, icBegin, icEnd, assets, icHorizon)
		if err != nil {
			log.Fatal().Err(err).Msg("could not initialize factor pipeline")
		}
		defer env.Close(ctx)

		summary := tablewriter.NewWriter(os.Stdout)
		summary.SetHeader([]string{"Factor", "IC Mean", "IC Std", "IR", "t-Stat", "Hit Rate", "Ret Mean", "Ret t-Stat", "N"})
		summary.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
		summary.SetCenterSeparator("|")

		for _, metric := range metrics {
			factor, err := env.buildFactor(ctx, metric)
			if err != nil {
				log.Fatal().Err(err).Str("Metric", string(metric)).Msg("could not build factor")
			}

			ics, err := factors.ComputeIC(factor, env.Forward)
			if err != nil {
				log.Fatal().Err(err).Str("Metric", string(metric)).Msg("could not compute IC series")
			}

			frs, err := factors.FactorReturns(factor, env.Forward)
			if err != nil {
				log.Fatal().Err(err).Str("Metric", string(metric)).Msg("could not compute factor return series")
			}

			stats := ics.Summary()
			retStats := frs.Summary()
			summary.Append([]string{
				string(metric),
				fmt.Sprintf("%.4f", stats.Mean),
				fmt.Sprintf("%.4f", stats.Std),
				fmt.Sprintf("%.4f", stats.IR),
				fmt.Sprintf("%.2f", stats.TStat),
				fmt.Sprintf("%.2f%%", stats.HitRate*100),
				fmt.Sprintf("%.4f", retStats.Mean),
				fmt.Sprintf("%.2f", retStats.TStat),
				fmt.Sprintf("%d", stats.N),
			})

			if icShowDays {
				printDailyIC(string(metric), ics)
			}
		}

		summary.Render()
	},
}

func printDailyIC(name string, ics *factors.ICSeries) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Date", name + " IC", "p-Value"})
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")

	for idx, date := range ics.Dates {
		table.Append([]string{
			date.Format("2006-01-02"),
			fmt.Sprintf("%.4f", ics.IC[idx]),
			fmt.Sprintf("%.4f", ics.PValue[idx]),
		})
	}

	table.Render()
}
