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

package dataframe

import (
	"errors"
	"time"
)

// DataFrame stores a panel of factor values organized by date and asset.
// The vals array is column major with one column per asset - e.g.,
// 600000.SH  000001.SZ
// 1          4
// 2          5
// 3          6
//
// Vals[0][0] = 1
// Vals[0][1] = 2
//
// Every pipeline stage returns a new DataFrame; a frame is never modified
// once it has been handed to a caller.
type DataFrame struct {
	Dates  []time.Time
	Assets []string
	Vals   [][]float64
}

// CategoryFrame stores a panel of categorical codes (e.g. industry
// membership) organized by date and asset. The empty string marks a
// missing code.
type CategoryFrame struct {
	Dates  []time.Time
	Assets []string
	Codes  [][]string
}

var ErrNoOverlap = errors.New("dataframes do not overlap")
