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
	"bytes"
	"fmt"
	"os"
	"text/template"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/pktdump/pktdump/common"
	"github.com/pktdump/pktdump/confengine"
	"github.com/pktdump/pktdump/controller"
	"github.com/pktdump/pktdump/internal/sigs"
	"github.com/pktdump/pktdump/source"
)

type dumpCmdConfig struct {
	InputPcap   string
	InputPcapNg string
	Live        string
	BPFFilter   string
	Print       bool
	Verbose     bool
	HexDump     bool
	JSONDump    bool
	Dedup       bool
	OutputPcap  string
	MaxStages   int
	BatchSize   int
	LogLevel    string
}

type stageEntry struct {
	Name string
	KV   map[string]string
}

func (c *dumpCmdConfig) hasInput() bool {
	return c.InputPcap != "" || c.InputPcapNg != "" || c.Live != ""
}

func (c *dumpCmdConfig) hasOutput() bool {
	return c.Print || c.HexDump || c.JSONDump || c.Dedup || c.OutputPcap != ""
}

// decodeStages 按固定顺序装配 stage 过滤类在前 输出类在后
func (c *dumpCmdConfig) decodeStages() []stageEntry {
	var stages []stageEntry
	if c.Dedup {
		stages = append(stages, stageEntry{Name: "dedup"})
	}
	if c.Print {
		stages = append(stages, stageEntry{
			Name: "print",
			KV:   map[string]string{"verbose": fmt.Sprintf("%v", c.Verbose)},
		})
	}
	if c.HexDump {
		stages = append(stages, stageEntry{Name: "hexdumpc"})
	}
	if c.JSONDump {
		stages = append(stages, stageEntry{Name: "jsondump"})
	}
	if c.OutputPcap != "" {
		stages = append(stages, stageEntry{
			Name: "pcapwrite",
			KV:   map[string]string{"path": c.OutputPcap},
		})
	}
	return stages
}

func (c *dumpCmdConfig) Yaml() []byte {
	text := `
logger:
  stderr: true
  level: {{ .LogLevel }}

source:
{{ if .File }}  engine: file
  file: {{ .File }}
{{ else }}  engine: kernel
  iface: {{ .Live }}
  bpfFilter: '{{ .BPFFilter }}'
  batchSize: {{ .BatchSize }}
{{ end }}
pipeline:
  maxStages: {{ .MaxStages }}
  batchSize: {{ .BatchSize }}
  stages:
{{ range .Stages }}    - name: {{ .Name }}
{{ if .KV }}      config:
{{ range $k, $v := .KV }}        {{ $k }}: {{ $v }}
{{ end }}{{ end }}{{ end }}
`
	tpl, err := template.New("Config").Parse(text)
	if err != nil {
		return nil
	}

	file := c.InputPcap
	if file == "" {
		file = c.InputPcapNg
	}

	var buf bytes.Buffer
	err = tpl.Execute(&buf, map[string]any{
		"File":      file,
		"Live":      c.Live,
		"BPFFilter": c.BPFFilter,
		"BatchSize": c.BatchSize,
		"MaxStages": c.MaxStages,
		"LogLevel":  c.LogLevel,
		"Stages":    c.decodeStages(),
	})
	if err != nil {
		return nil
	}
	return buf.Bytes()
}

var dumpConfig dumpCmdConfig

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Replay a capture file or sniff an interface through the pipeline",
	Run: func(cmd *cobra.Command, args []string) {
		if !dumpConfig.hasInput() {
			if dumpConfig.hasOutput() {
				fmt.Fprintln(os.Stderr, "must provide an input source before setting output options")
				os.Exit(common.ExitErrNoInput)
			}
			cmd.Help()
			os.Exit(common.ExitErrHost)
		}

		cfg, err := confengine.LoadContent(dumpConfig.Yaml())
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
			fmt.Fprintf(os.Stderr, "failed to create controller: %v\n", err)
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
		os.Exit(common.ExitSuccess)
	},
	Example: "# pktdump dump --inputpcap traffic.pcap --hexdumpc\n" +
		"# pktdump dump --live eth0 --bpf 'tcp and port 80' --print",
}

func init() {
	dumpCmd.Flags().StringVar(&dumpConfig.InputPcap, "inputpcap", "", "Read packets from a pcap file")
	dumpCmd.Flags().StringVar(&dumpConfig.InputPcapNg, "inputpcapng", "", "Read packets from a pcapng file")
	dumpCmd.Flags().StringVar(&dumpConfig.Live, "live", "", "Capture packets from a network interface, 'any' for all interfaces")
	dumpCmd.Flags().StringVar(&dumpConfig.BPFFilter, "bpf", "", "BPF filter expression for live capture")
	dumpCmd.Flags().BoolVar(&dumpConfig.Print, "print", false, "Attach the packet printing stage")
	dumpCmd.Flags().BoolVar(&dumpConfig.Verbose, "verbose", false, "Print full layer dumps instead of one-line summaries")
	dumpCmd.Flags().BoolVar(&dumpConfig.HexDump, "hexdumpc", false, "Attach the C-array hex dump stage")
	dumpCmd.Flags().BoolVar(&dumpConfig.JSONDump, "jsondump", false, "Attach the JSON summary stage")
	dumpCmd.Flags().BoolVar(&dumpConfig.Dedup, "dedup", false, "Attach the duplicate packet filter stage")
	dumpCmd.Flags().StringVar(&dumpConfig.OutputPcap, "outputpcap", "", "Write traversed packets to a pcap file")
	dumpCmd.Flags().IntVar(&dumpConfig.MaxStages, "max-stages", 0, "Maximum number of pipeline stages (0 means default)")
	dumpCmd.Flags().IntVar(&dumpConfig.BatchSize, "batch-size", 64, "Packets aggregated per batch for live capture")
	dumpCmd.Flags().StringVar(&dumpConfig.LogLevel, "log-level", "info", "Diagnostic log level")
	rootCmd.AddCommand(dumpCmd)
}
