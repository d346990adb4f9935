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
	"math"
	"time"

	json "github.com/goccy/go-json"
)

// frameJSON is the wire form of a DataFrame. Missing cells are encoded as
// null; JSON has no NaN literal and the encoder rejects the value outright
type frameJSON struct {
	Dates  []time.Time  `json:"dates"`
	Assets []string     `json:"assets"`
	Vals   [][]*float64 `json:"vals"`
}

func (df *DataFrame) MarshalJSON() ([]byte, error) {
	enc := frameJSON{
		Dates:  df.Dates,
		Assets: df.Assets,
		Vals:   make([][]*float64, len(df.Vals)),
	}

	for colIdx, col := range df.Vals {
		cells := make([]*float64, len(col))
		for rowIdx, v := range col {
			if !math.IsNaN(v) {
				v := v
				cells[rowIdx] = &v
			}
		}
		enc.Vals[colIdx] = cells
	}

	return json.Marshal(enc)
}

func (df *DataFrame) UnmarshalJSON(raw []byte) error {
	var dec frameJSON
	if err := json.Unmarshal(raw, &dec); err != nil {
		return err
	}

	df.Dates = dec.Dates
	df.Assets = dec.Assets
	df.Vals = make([][]float64, len(dec.Vals))
	for colIdx, col := range dec.Vals {
		cells := make([]float64, len(col))
		for rowIdx, v := range col {
			if v == nil {
				cells[rowIdx] = math.NaN()
			} else {
				cells[rowIdx] = *v
			}
		}
		df.Vals[colIdx] = cells
	}

	return nil
}
