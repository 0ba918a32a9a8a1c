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

package pcapfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcapgo"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/pktdump/pktdump/common"
	"github.com/pktdump/pktdump/pipeline"
	"github.com/pktdump/pktdump/source"
	"github.com/pktdump/pktdump/stages/hexdumpc"
)

// writePcap 生成含指定长度数据包的临时 pcap 文件
func writePcap(t *testing.T, sizes ...int) string {
	path := filepath.Join(t.TempDir(), "replay.pcap")
	f, err := os.Create(path)
	assert.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriterNanos(f)
	assert.NoError(t, w.WriteFileHeader(common.MaxCaptureSize, layers.LinkTypeEthernet))

	ts := time.Unix(1700000000, 0)
	for i, size := range sizes {
		data := make([]byte, size)
		for j := range data {
			data[j] = byte(i + j)
		}
		ci := gopacket.CaptureInfo{
			Timestamp:     ts.Add(time.Duration(i) * time.Millisecond),
			CaptureLength: size,
			Length:        size,
		}
		assert.NoError(t, w.WritePacket(ci, data))
	}
	return path
}

func TestFileSourceReplay(t *testing.T) {
	path := writePcap(t, 14, 60, 1500)
	out := filepath.Join(t.TempDir(), "dump.c")

	pl := pipeline.New(pipeline.Options{})

	src, err := New(&source.Config{File: path}, pl)
	assert.NoError(t, err)
	assert.Equal(t, layers.LinkTypeEthernet, src.LinkType())

	factory, err := pipeline.GetFactory(hexdumpc.Name)
	assert.NoError(t, err)

	opts := common.NewOptions()
	opts.Merge("path", out)
	stage, err := factory(opts)
	assert.NoError(t, err)
	_, err = pl.AddStage(stage)
	assert.NoError(t, err)

	// 回放至 EOF 正常结束
	assert.NoError(t, src.Run())
	assert.NoError(t, src.Close())

	b, err := os.ReadFile(out)
	assert.NoError(t, err)
	rendered := string(b)

	// 3 个包产出 3 个块 字节字面量总数等于捕获长度之和
	assert.Equal(t, 3, strings.Count(rendered, "char *packet_"))
	assert.Contains(t, rendered, "char *packet_000 = {")
	assert.Contains(t, rendered, "char *packet_002 = {")
	assert.Equal(t, 14+60+1500, strings.Count(rendered, "0x"))
}

func TestFileSourceStageFailureDoesNotAbortReplay(t *testing.T) {
	path := writePcap(t, 14, 60, 1500)

	pl := pipeline.New(pipeline.Options{})
	src, err := New(&source.Config{File: path}, pl)
	assert.NoError(t, err)

	count := &countingStage{failOn: 2}
	_, err = pl.AddStage(count)
	assert.NoError(t, err)

	// 第 2 个包的 batch 失败 回放仍进行到 EOF
	assert.NoError(t, src.Run())
	assert.Equal(t, 3, count.calls)
	assert.NoError(t, src.Close())
}

func TestFileSourcePcapNg(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replay.pcapng")
	f, err := os.Create(path)
	assert.NoError(t, err)

	w, err := pcapgo.NewNgWriter(f, layers.LinkTypeEthernet)
	assert.NoError(t, err)
	ci := gopacket.CaptureInfo{
		Timestamp:      time.Unix(1700000000, 0),
		CaptureLength:  4,
		Length:         4,
		InterfaceIndex: 0,
	}
	assert.NoError(t, w.WritePacket(ci, []byte{0x01, 0x02, 0x03, 0x04}))
	assert.NoError(t, w.Flush())
	assert.NoError(t, f.Close())

	pl := pipeline.New(pipeline.Options{})
	src, err := New(&source.Config{File: path}, pl)
	assert.NoError(t, err)
	assert.Equal(t, layers.LinkTypeEthernet, src.LinkType())

	count := &countingStage{}
	_, err = pl.AddStage(count)
	assert.NoError(t, err)

	assert.NoError(t, src.Run())
	assert.Equal(t, 1, count.calls)
	assert.NoError(t, src.Close())
}

func TestFileSourceOpenFailure(t *testing.T) {
	t.Run("NotExists", func(t *testing.T) {
		pl := pipeline.New(pipeline.Options{})
		_, err := New(&source.Config{File: "/not/exists.pcap"}, pl)
		assert.ErrorIs(t, err, source.ErrOpen)
	})

	t.Run("Garbage", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "garbage.pcap")
		assert.NoError(t, os.WriteFile(path, []byte("this is not a capture file"), 0o644))

		pl := pipeline.New(pipeline.Options{})
		_, err := New(&source.Config{File: path}, pl)
		assert.ErrorIs(t, err, source.ErrOpen)
	})
}

func TestFileSourceClose(t *testing.T) {
	path := writePcap(t, 14)

	pl := pipeline.New(pipeline.Options{})
	src, err := New(&source.Config{File: path}, pl)
	assert.NoError(t, err)

	assert.NoError(t, src.Close())
	// Close 之后 Run 返回 ErrStopped
	assert.ErrorIs(t, src.Run(), source.ErrStopped)
}

type countingStage struct {
	calls  int
	failOn int
}

func (s *countingStage) Name() string { return "counting" }

func (s *countingStage) Init(*pipeline.Pipeline, *pipeline.Instance) error { return nil }

func (s *countingStage) Process(_ *pipeline.Pipeline, _ *pipeline.Instance, _ *pipeline.Batch) error {
	s.calls++
	if s.failOn > 0 && s.calls == s.failOn {
		return errors.New("stage failed")
	}
	return nil
}
