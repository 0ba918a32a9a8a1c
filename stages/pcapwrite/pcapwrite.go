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
	"os"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/pcapgo"
	"github.com/pkg/errors"

	"github.com/pktdump/pktdump/common"
	"github.com/pktdump/pktdump/pipeline"
)

const (
	Name = "pcapwrite"
)

func init() {
	pipeline.Register(Name, New)
}

// pcapWrite 将流经的数据包写入 pcap 文件
//
// 即 pipeline 的 dumper 输出 写入不改变 batch 对后续 stage 的可见性
// 时间戳以纳秒精度落盘
type pcapWrite struct {
	path string
	f    *os.File
	w    *pcapgo.Writer
}

// New 创建并返回 pcapwrite Stage 实例
//
// 配置项 path 为必填 指定输出的 pcap 文件路径
func New(opts common.Options) (pipeline.Stage, error) {
	path, err := opts.GetString("path")
	if err != nil || path == "" {
		return nil, errors.New("pcapwrite requires a 'path' option")
	}
	return &pcapWrite{path: path}, nil
}

func (s *pcapWrite) Name() string {
	return Name
}

// Init 创建输出文件并写入文件头
//
// 文件头依赖 Source 的链路层类型 因此输入源必须先于本 stage 就绪
func (s *pcapWrite) Init(pl *pipeline.Pipeline, _ *pipeline.Instance) error {
	f, err := os.Create(s.path)
	if err != nil {
		return errors.Wrapf(err, "create pcap file (%s)", s.path)
	}

	w := pcapgo.NewWriterNanos(f)
	if err := w.WriteFileHeader(common.MaxCaptureSize, pl.LinkType()); err != nil {
		f.Close()
		return errors.Wrapf(err, "write pcap header (%s)", s.path)
	}

	s.f = f
	s.w = w
	return nil
}

func (s *pcapWrite) Process(_ *pipeline.Pipeline, _ *pipeline.Instance, batch *pipeline.Batch) error {
	for i := 0; i < batch.Extent(); i++ {
		desc := batch.At(i)
		if desc == nil {
			continue
		}

		ci := gopacket.CaptureInfo{
			Timestamp:     desc.Time(),
			CaptureLength: desc.CapLen(),
			Length:        desc.WireLen(),
		}
		if err := s.w.WritePacket(ci, desc.Data()); err != nil {
			return errors.Wrapf(err, "write pcap file (%s)", s.path)
		}
	}
	return nil
}

// Close 冲刷并关闭输出文件
func (s *pcapWrite) Close() error {
	if s.f == nil {
		return nil
	}
	return s.f.Close()
}
