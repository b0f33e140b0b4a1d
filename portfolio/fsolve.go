// Copyright 2021-2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package portfolio

type objectiveFunc func(float64) float64

// bisect searches [lower, upper] for a root of a decreasing function f. It
// stops as soon as |f(x)| < tol. When maxIterations is exhausted the midpoint
// of the last bracket is returned together with ErrDidNotConverge.
func bisect(f objectiveFunc, lower, upper, tol float64, maxIterations int) (float64, error) {
	x := 0.0
	for i := 0; i < maxIterations; i++ {
		x = 0.5 * (lower + upper)
		fx := f(x)
		if fx < tol && fx > -tol {
			return x, nil
		}

		if fx > 0 {
			lower = x
		} else {
			upper = x
		}
	}

	return x, ErrDidNotConverge
}
