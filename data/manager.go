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

package data

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/quant-vault/qv-api/common"
	"github.com/quant-vault/qv-api/data/database"
	"github.com/quant-vault/qv-api/dataframe"
	"github.com/quant-vault/qv-api/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// Manager loads raw point-in-time tables from the database and normalizes
// them into the canonical in-memory types the pipeline consumes
type Manager struct {
	Begin time.Time
	End   time.Time
}

func NewManager(begin, end time.Time) *Manager {
	return &Manager{Begin: begin, End: end}
}

// TradingCalendar loads the exchange calendar for the manager's date range
func (m *Manager) TradingCalendar(ctx context.Context) (*Calendar, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "TradingCalendar")
	defer span.End()

	trx, err := database.Trx(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not get database transaction")
		log.Error().Stack().Err(err).Msg("could not get database transaction")
		return nil, err
	}
	defer rollback(ctx, trx)

	rows, err := trx.Query(ctx, "SELECT trade_date FROM trading_calendar WHERE trade_date BETWEEN $1 AND $2 ORDER BY trade_date", m.Begin, m.End)
	if err != nil {
		span.RecordError(err)
		log.Error().Stack().Err(err).Msg("trading calendar query failed")
		return nil, err
	}

	days := make([]time.Time, 0, 252)
	for rows.Next() {
		var dt time.Time
		if err := rows.Scan(&dt); err != nil {
			log.Error().Stack().Err(err).Msg("error scanning trading calendar row")
			return nil, err
		}
		days = append(days, dt)
	}

	return NewCalendar(days)
}

// ClosePrices loads the daily close-price panel for the requested assets.
// Results are cached
func (m *Manager) ClosePrices(ctx context.Context, assets []string) (*dataframe.DataFrame, error) {
	return m.loadPanel(ctx, "ClosePrices", "close", assets)
}

// MarketCap loads the daily total market capitalization panel for the
// requested assets. Results are cached
func (m *Manager) MarketCap(ctx context.Context, assets []string) (*dataframe.DataFrame, error) {
	return m.loadPanel(ctx, "MarketCap", "total_mv", assets)
}

// FinancialStatements loads every announced statement line item for the
// requested metric with an announcement date on or before the manager's end
// date. No announcement-date lower bound is applied: prior-year records are
// required to telescope TTM values at the start of the range
func (m *Manager) FinancialStatements(ctx context.Context, assets []string, metric FundamentalMetric) ([]FinancialStatementRecord, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "FinancialStatements")
	defer span.End()

	trx, err := database.Trx(ctx)
	if err != nil {
		span.RecordError(err)
		log.Error().Stack().Err(err).Msg("could not get database transaction")
		return nil, err
	}
	defer rollback(ctx, trx)

	sql := "SELECT asset_id, ann_date, end_date, value FROM financial_statements WHERE metric = $1 AND ann_date <= $2 AND asset_id = ANY($3) ORDER BY asset_id, ann_date"
	rows, err := trx.Query(ctx, sql, string(metric), m.End, assets)
	if err != nil {
		span.RecordError(err)
		log.Error().Stack().Err(err).Str("Metric", string(metric)).Msg("financial statement query failed")
		return nil, err
	}

	records := make([]FinancialStatementRecord, 0, len(assets)*8)
	for rows.Next() {
		rec := FinancialStatementRecord{Metric: string(metric)}
		if err := rows.Scan(&rec.Asset, &rec.AnnounceDate, &rec.PeriodEnd, &rec.Value); err != nil {
			log.Error().Stack().Err(err).Msg("error scanning financial statement row")
			return nil, err
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, ErrNoFinancials
	}

	return records, nil
}

// IndustryMembership loads the industry classification table and expands it
// onto the calendar. Classification upstream is already mapped to a fixed
// taxonomy
func (m *Manager) IndustryMembership(ctx context.Context, assets []string, cal *Calendar) (*dataframe.CategoryFrame, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "IndustryMembership")
	defer span.End()

	trx, err := database.Trx(ctx)
	if err != nil {
		span.RecordError(err)
		log.Error().Stack().Err(err).Msg("could not get database transaction")
		return nil, err
	}
	defer rollback(ctx, trx)

	rows, err := trx.Query(ctx, "SELECT asset_id, industry_code FROM industry_membership WHERE asset_id = ANY($1)", assets)
	if err != nil {
		span.RecordError(err)
		log.Error().Stack().Err(err).Msg("industry membership query failed")
		return nil, err
	}

	cf := dataframe.NewCategoryFrame(cal.Days, assets)
	for rows.Next() {
		var asset, code string
		if err := rows.Scan(&asset, &code); err != nil {
			log.Error().Stack().Err(err).Msg("error scanning industry membership row")
			return nil, err
		}
		cf.Fill(asset, code)
	}

	return cf, nil
}

// loadPanel loads a (date, asset) panel for one column of the eod_prices
// table, consulting the cache first
func (m *Manager) loadPanel(ctx context.Context, span0 string, column string, assets []string) (*dataframe.DataFrame, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, span0)
	defer span.End()

	key := m.cacheKey(column, assets)
	if raw, err := common.CacheGet(key); err == nil {
		df := &dataframe.DataFrame{}
		if err := json.Unmarshal(raw, df); err == nil {
			return df, nil
		}
		log.Warn().Str("Key", key).Msg("could not deserialize cached panel; reloading")
	}

	trx, err := database.Trx(ctx)
	if err != nil {
		span.RecordError(err)
		log.Error().Stack().Err(err).Msg("could not get database transaction")
		return nil, err
	}
	defer rollback(ctx, trx)

	sql := fmt.Sprintf("SELECT trade_date, asset_id, %s FROM eod_prices WHERE trade_date BETWEEN $1 AND $2 AND asset_id = ANY($3) ORDER BY trade_date", column)
	rows, err := trx.Query(ctx, sql, m.Begin, m.End, assets)
	if err != nil {
		span.RecordError(err)
		log.Error().Stack().Err(err).Str("Column", column).Msg("eod panel query failed")
		return nil, err
	}

	type cell struct {
		date  time.Time
		asset string
		val   float64
	}

	cells := make([]cell, 0, len(assets)*252)
	dateSet := make(map[int64]time.Time)
	for rows.Next() {
		var c cell
		if err := rows.Scan(&c.date, &c.asset, &c.val); err != nil {
			log.Error().Stack().Err(err).Msg("error scanning eod panel row")
			return nil, err
		}
		cells = append(cells, c)
		dateSet[c.date.Unix()] = c.date
	}

	dates := make([]time.Time, 0, len(dateSet))
	for _, dt := range dateSet {
		dates = append(dates, dt)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	df := dataframe.New(dates, assets)
	for _, c := range cells {
		colIdx := df.AssetIndex(c.asset)
		rowIdx := df.DateIndex(c.date)
		if colIdx != -1 && rowIdx != -1 {
			df.Vals[colIdx][rowIdx] = c.val
		}
	}

	if raw, err := json.Marshal(df); err != nil {
		log.Warn().Err(err).Str("Key", key).Msg("could not serialize panel for caching")
	} else if err := common.CacheSet(key, raw); err != nil {
		log.Warn().Err(err).Str("Key", key).Msg("could not cache panel")
	}

	return df, nil
}

func (m *Manager) cacheKey(column string, assets []string) string {
	return fmt.Sprintf("panel:%s:%s:%s:%s", column, m.Begin.Format("2006-01-02"), m.End.Format("2006-01-02"), strings.Join(assets, ","))
}

func rollback(ctx context.Context, trx interface {
	Rollback(context.Context) error
}) {
	if err := trx.Rollback(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("could not rollback transaction")
	}
}
