// Copyright 2025 The pktdump Authors
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
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pktdump/pktdump/common"
)

var (
	version   = common.Version
	gitHash   = "unknown"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   common.App,
	Short: "Dump network traffic through a staged packet pipeline",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(common.ExitErrHost)
	}
}
