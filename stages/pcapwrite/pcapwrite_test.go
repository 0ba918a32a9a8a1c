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

package pcapwrite

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"

	"github.com/pktdump/pktdump/common"
	"github.com/pktdump/pktdump/pipeline"
)

func TestPcapWriteNew(t *testing.T) {
	_, err := New(common.NewOptions())
	assert.Error(t, err)

	opts := common.NewOptions()
	opts.Merge("path", filepath.Join(t.TempDir(), "out.pcap"))
	stage, err := New(opts)
	assert.NoError(t, err)
	assert.Equal(t, Name, stage.Name())
}

func TestPcapWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pcap")
	opts := common.NewOptions()
	opts.Merge("path", path)

	stage, err := New(opts)
	assert.NoError(t, err)

	pl := pipeline.New(pipeline.Options{BatchSize: 2})
	pl.SetLinkType(layers.LinkTypeEthernet)
	_, err = pl.AddStage(stage)
	assert.NoError(t, err)

	ts := time.Unix(1700000000, 123456789)
	payloads := [][]byte{
		{0x01, 0x02, 0x03, 0x04},
		{0xaa, 0xbb},
	}

	batch := pl.Master()
	batch.Reset(
		pipeline.NewDescriptor(ts, 1500, payloads[0], pl.MaxStages()),
		pipeline.NewDescriptor(ts.Add(time.Millisecond), 2, payloads[1], pl.MaxStages()),
	)
	assert.NoError(t, pl.ProcessBatch(batch))
	assert.NoError(t, pl.Close())

	f, err := os.Open(path)
	assert.NoError(t, err)
	defer f.Close()

	r, err := pcapgo.NewReader(f)
	assert.NoError(t, err)
	assert.Equal(t, layers.LinkTypeEthernet, r.LinkType())

	data, ci, err := r.ReadPacketData()
	assert.NoError(t, err)
	assert.Equal(t, payloads[0], data)
	assert.Equal(t, 1500, ci.Length)
	assert.Equal(t, 4, ci.CaptureLength)
	// 纳秒时间戳不丢精度
	assert.Equal(t, ts.UnixNano(), ci.Timestamp.UnixNano())

	data, _, err = r.ReadPacketData()
	assert.NoError(t, err)
	assert.Equal(t, payloads[1], data)

	_, _, err = r.ReadPacketData()
	assert.ErrorIs(t, err, io.EOF)
}

func TestPcapWriteInitFailure(t *testing.T) {
	opts := common.NewOptions()
	opts.Merge("path", filepath.Join(t.TempDir(), "no-such-dir", "out.pcap"))

	stage, err := New(opts)
	assert.NoError(t, err)

	pl := pipeline.New(pipeline.Options{})
	pl.SetLinkType(layers.LinkTypeEthernet)

	// Init 失败意味着注册被拒绝
	_, err = pl.AddStage(stage)
	assert.Error(t, err)
	assert.Equal(t, 0, pl.StageCount())
}
