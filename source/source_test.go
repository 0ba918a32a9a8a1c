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

package source

import (
	"testing"

	"github.com/gopacket/gopacket/layers"
	"github.com/stretchr/testify/assert"

	"github.com/pktdump/pktdump/confengine"
	"github.com/pktdump/pktdump/pipeline"
)

type fakeSource struct {
	engine string
	conf   *Config
	pl     *pipeline.Pipeline
}

func (s *fakeSource) Name() string                { return s.engine }
func (s *fakeSource) LinkType() layers.LinkType   { return layers.LinkTypeEthernet }
func (s *fakeSource) Pipeline() *pipeline.Pipeline { return s.pl }
func (s *fakeSource) Run() error                  { return nil }
func (s *fakeSource) Close() error                { return nil }

func register(engines ...string) {
	for _, engine := range engines {
		engine := engine
		Register(func(conf *Config, pl *pipeline.Pipeline) (Source, error) {
			return &fakeSource{engine: engine, conf: conf, pl: pl}, nil
		}, engine)
	}
}

func TestSourceFactory(t *testing.T) {
	register("fake")

	f, err := Get("fake")
	assert.NoError(t, err)
	assert.NotNil(t, f)

	_, err = Get("not-exists")
	assert.Error(t, err)
}

func TestSourceNew(t *testing.T) {
	register("file", "kernel")

	tests := []struct {
		name    string
		content string
		engine  string
	}{
		{
			name: "ExplicitEngine",
			content: `
source:
  engine: kernel
  iface: eth0
`,
			engine: "kernel",
		},
		{
			name: "FileImpliesFileEngine",
			content: `
source:
  file: /tmp/replay.pcap
`,
			engine: "file",
		},
		{
			name: "DefaultsToKernel",
			content: `
source:
  iface: eth0
`,
			engine: "kernel",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf, err := confengine.LoadContent([]byte(tt.content))
			assert.NoError(t, err)

			pl := pipeline.New(pipeline.Options{})
			src, err := New(conf, pl)
			assert.NoError(t, err)
			assert.Equal(t, tt.engine, src.Name())
			assert.Equal(t, pl, src.Pipeline())
		})
	}
}

func TestSourceNewUnpack(t *testing.T) {
	register("kernel")

	content := `
source:
  engine: kernel
  iface: lo
  bpfFilter: udp and port 53
  batchSize: 32
  pollTimeout: 200ms
`
	conf, err := confengine.LoadContent([]byte(content))
	assert.NoError(t, err)

	src, err := New(conf, pipeline.New(pipeline.Options{}))
	assert.NoError(t, err)

	fake := src.(*fakeSource)
	assert.Equal(t, "lo", fake.conf.Iface)
	assert.Equal(t, "udp and port 53", fake.conf.BPFFilter)
	assert.Equal(t, 32, fake.conf.BatchSize)
	assert.Equal(t, "200ms", fake.conf.PollTimeout.String())
}

func TestSourceNewMissingChild(t *testing.T) {
	conf, err := confengine.LoadContent([]byte("logger: {}"))
	assert.NoError(t, err)

	_, err = New(conf, pipeline.New(pipeline.Options{}))
	assert.Error(t, err)
}
