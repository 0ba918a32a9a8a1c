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

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/pktdump/pktdump/common"
	"github.com/pktdump/pktdump/confengine"
	"github.com/pktdump/pktdump/controller"
	"github.com/pktdump/pktdump/internal/sigs"
	"github.com/pktdump/pktdump/source"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run pktdump with a configuration file",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := confengine.LoadConfigPath(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(common.ExitErrHost)
		}

		ctr, err := controller.New(cfg, common.BuildInfo{
			Version: version,
			GitHash: gitHash,
			Time:    buildTime,
		})
		if err != nil {
			if errors.Is(err, source.ErrOpen) {
				fmt.Fprintf(os.Stderr, "can not open input source: %v\n", err)
				os.Exit(common.ExitErrOpenFile)
			}
			fmt.Fprintf(os.Stderr, "failed to create controller: %v\n"+
				"Note: live capture may require root privileges (try running with 'sudo')\n", err)
			os.Exit(common.ExitErrHost)
		}

		ctr.Start()
		select {
		case err := <-ctr.Done():
			ctr.Stop()
			if err != nil && !errors.Is(err, source.ErrStopped) {
				fmt.Fprintf(os.Stderr, "dispatch failed: %v\n", err)
				os.Exit(common.ExitErrHost)
			}

		case <-sigs.Terminate():
			ctr.Stop()
			<-ctr.Done()
		}
	},
}

var configPath string

func init() {
	agentCmd.Flags().StringVar(&configPath, "config", "pktdump.yaml", "Configuration file path")
	rootCmd.AddCommand(agentCmd)
}
