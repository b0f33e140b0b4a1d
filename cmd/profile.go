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

package cmd

import (
	"os"
	"runtime/pprof"
	"runtime/trace"

	"github.com/rs/zerolog/log"
)

// startProfiling honors --cpu-profile and --trace. The returned function
// flushes and closes whatever was started.
func startProfiling() func() {
	stops := []func(){}

	if Profile {
		f, err := os.Create("profile.out")
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create profile output file")
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal().Err(err).Msg("failed to start cpu profile")
		}
		stops = append(stops, func() {
			pprof.StopCPUProfile()
			f.Close()
		})
	}

	if Trace {
		f, err := os.Create("trace.out")
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create trace output file")
		}
		if err := trace.Start(f); err != nil {
			log.Fatal().Err(err).Msg("failed to start trace")
		}
		stops = append(stops, func() {
			trace.Stop()
			if err := f.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close trace file")
			}
		})
	}

	return func() {
		for idx := len(stops) - 1; idx >= 0; idx-- {
			stops[idx]()
		}
	}
}
