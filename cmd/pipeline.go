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
	"strings"
	"time"

	"github.com/quant-vault/qv-api/common"
	"github.com/quant-vault/qv-api/data"
	"github.com/quant-vault/qv-api/data/database"
	"github.com/quant-vault/qv-api/dataframe"
	"github.com/quant-vault/qv-api/factors"
	"github.com/quant-vault/qv-api/fundamentals"
	"github.com/quant-vault/qv-api/observability/opentelemetry"
	"github.com/rs/zerolog/log"
)

// pipelineEnv bundles the shared market data every factor command needs
type pipelineEnv struct {
	Manager  *data.Manager
	Calendar *data.Calendar
	Assets   []string
	Industry *dataframe.CategoryFrame
	MktCap   *dataframe.DataFrame
	Forward  *dataframe.DataFrame
	shutdown func(context.Context) error
}

// setupPipeline initializes logging, cache, tracing and the database
// connection, then loads the calendar, industry membership, market cap and
// forward return panels shared by every factor command
func setupPipeline(ctx context.Context, beginStr, endStr string, assets []string, horizon int) (*pipelineEnv, error) {
	common.SetupLogging()
	common.SetupCache()

	shutdown, err := opentelemetry.Setup()
	if err != nil {
		log.Error().Err(err).Msg("could not initialize tracing")
		return nil, err
	}

	if err := database.Connect(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("could not connect to database")
		return nil, err
	}

	tz := common.GetTimezone()
	begin, err := time.ParseInLocation("2006-01-02", beginStr, tz)
	if err != nil {
		return nil, fmt.Errorf("could not parse begin date %q: %w", beginStr, err)
	}
	end, err := time.ParseInLocation("2006-01-02", endStr, tz)
	if err != nil {
		return nil, fmt.Errorf("could not parse end date %q: %w", endStr, err)
	}

	mgr := data.NewManager(begin, end)

	cal, err := mgr.TradingCalendar(ctx)
	if err != nil {
		return nil, err
	}

	industry, err := mgr.IndustryMembership(ctx, assets, cal)
	if err != nil {
		return nil, err
	}

	mktCap, err := mgr.MarketCap(ctx, assets)
	if err != nil {
		return nil, err
	}

	prices, err := mgr.ClosePrices(ctx, assets)
	if err != nil {
		return nil, err
	}

	return &pipelineEnv{
		Manager:  mgr,
		Calendar: cal,
		Assets:   assets,
		Industry: industry,
		MktCap:   mktCap,
		Forward:  dataframe.ForwardReturns(prices.ForwardFill(), horizon),
		shutdown: shutdown,
	}, nil
}

func (env *pipelineEnv) Close(ctx context.Context) {
	if env.shutdown == nil {
		return
	}
	if err := env.shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("could not shut down trace exporter")
	}
}

// buildFactor reconstructs the TTM fundamental panel for one metric and runs
// it through the full cleaning chain: fill, winsorize, standardize, then
// industry and size neutralization
func (env *pipelineEnv) buildFactor(ctx context.Context, metric data.FundamentalMetric) (*dataframe.DataFrame, error) {
	records, err := env.Manager.FinancialStatements(ctx, env.Assets, metric)
	if err != nil {
		return nil, err
	}

	raw, err := fundamentals.ReconstructTTM(records, env.Calendar, string(metric))
	if err != nil {
		return nil, err
	}

	clean := factors.Preprocess(raw)
	return factors.Neutralize(clean, env.Industry, env.MktCap, factors.DropDate), nil
}

// parseMetrics validates a comma separated factor list against the known
// fundamental metrics
func parseMetrics(arg string) ([]data.FundamentalMetric, error) {
	known := map[string]data.FundamentalMetric{
		string(data.MetricNetProfit):        data.MetricNetProfit,
		string(data.MetricRevenue):          data.MetricRevenue,
		string(data.MetricOperatingCash):    data.MetricOperatingCash,
		string(data.MetricReturnOnEquity):   data.MetricReturnOnEquity,
		string(data.MetricGrossProfitRatio): data.MetricGrossProfitRatio,
	}

	schema := data.NewFactorSchema(strings.Split(arg, ",")...)
	metrics := make([]data.FundamentalMetric, 0, len(schema.Names))
	for _, name := range schema.Names {
		metric, ok := known[strings.TrimSpace(name)]
		if !ok {
			return nil, fmt.Errorf("unknown factor metric %q", name)
		}
		metrics = append(metrics, metric)
	}

	if len(metrics) == 0 {
		return nil, fmt.Errorf("no factor metrics given")
	}

	return metrics, nil
}

func parseScheme(arg string) (factors.WeightScheme, error) {
	switch factors.WeightScheme(arg) {
	case factors.SchemeEqual, factors.SchemeIC, factors.SchemeIR, factors.SchemeMaxIC, factors.SchemeMaxIR:
		return factors.WeightScheme(arg), nil
	}
	return "", fmt.Errorf("unknown weighting scheme %q", arg)
}

func parseStandardization(arg string) (factors.Standardization, error) {
	switch arg {
	case "zscore":
		return factors.ZScore, nil
	case "rank":
		return factors.Rank, nil
	}
	return factors.ZScore, fmt.Errorf("unknown standardization %q", arg)
}

func parseOrthogonalization(arg string) (factors.OrthoMethod, error) {
	switch arg {
	case "none":
		return factors.OrthoNone, nil
	case "symmetric":
		return factors.OrthoSymmetric, nil
	case "gram-schmidt":
		return factors.OrthoGramSchmidt, nil
	}
	return factors.OrthoNone, fmt.Errorf("unknown orthogonalization %q", arg)
}
