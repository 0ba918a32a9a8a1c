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

package printer

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gopacket/gopacket"

	"github.com/pktdump/pktdump/common"
	"github.com/pktdump/pktdump/pipeline"
)

const (
	Name = "print"
)

const timeLayout = "15:04:05.000000000"

func init() {
	pipeline.Register(Name, New)
}

// printer 逐包打印单行摘要
//
// 协议解剖委托给 gopacket 的 layer 解码 本 stage 只负责摘要的组装
// 与 hexdumpc 一样是只读 observer 不修改 batch
type printer struct {
	out     io.Writer
	verbose bool
}

// New 创建并返回 print Stage 实例
//
// 配置项 verbose 开启逐层 dump 输出
func New(opts common.Options) (pipeline.Stage, error) {
	s := &printer{
		out: os.Stdout,
	}
	if opts.Has("verbose") {
		verbose, err := opts.GetBool("verbose")
		if err != nil {
			return nil, err
		}
		s.verbose = verbose
	}
	return s, nil
}

func (s *printer) Name() string {
	return Name
}

func (s *printer) Init(_ *pipeline.Pipeline, _ *pipeline.Instance) error {
	return nil
}

func (s *printer) Process(pl *pipeline.Pipeline, _ *pipeline.Instance, batch *pipeline.Batch) error {
	for i := 0; i < batch.Extent(); i++ {
		desc := batch.At(i)
		if desc == nil {
			continue
		}
		if err := s.print(pl, desc); err != nil {
			return err
		}
	}
	return nil
}

func (s *printer) print(pl *pipeline.Pipeline, desc *pipeline.Descriptor) error {
	pkt := gopacket.NewPacket(desc.Data(), pl.LinkType(), gopacket.DecodeOptions{
		Lazy:   true,
		NoCopy: true,
	})

	if s.verbose {
		_, err := fmt.Fprintf(s.out, "%s caplen=%d len=%d\n%s",
			desc.Time().Format(timeLayout), desc.CapLen(), desc.WireLen(), pkt.Dump())
		return err
	}

	_, err := fmt.Fprintf(s.out, "%s caplen=%d len=%d %s\n",
		desc.Time().Format(timeLayout), desc.CapLen(), desc.WireLen(), summarize(pkt))
	return err
}

// summarize 拼接数据包的 layer 链 附带网络层端点信息
func summarize(pkt gopacket.Packet) string {
	var names []string
	for _, lyr := range pkt.Layers() {
		names = append(names, lyr.LayerType().String())
	}

	summary := strings.Join(names, "/")
	if nl := pkt.NetworkLayer(); nl != nil {
		flow := nl.NetworkFlow()
		summary = fmt.Sprintf("%s %s > %s", summary, flow.Src(), flow.Dst())
	}
	return summary
}
