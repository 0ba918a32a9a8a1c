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

package jsondump

import (
	"io"
	"os"

	"github.com/goccy/go-json"

	"github.com/pktdump/pktdump/common"
	"github.com/pktdump/pktdump/pipeline"
)

const (
	Name = "jsondump"
)

func init() {
	pipeline.Register(Name, New)
}

type record struct {
	Index   uint   `json:"index"`
	Time    int64  `json:"ts"` // unix nano
	CapLen  int    `json:"caplen"`
	WireLen int    `json:"len"`
	Link    string `json:"linkType"`
}

// jsonDump 逐包输出一行 JSON 摘要
type jsonDump struct {
	out io.Writer
	num uint
}

// New 创建并返回 jsondump Stage 实例
func New(_ common.Options) (pipeline.Stage, error) {
	return &jsonDump{out: os.Stdout}, nil
}

func (s *jsonDump) Name() string {
	return Name
}

func (s *jsonDump) Init(_ *pipeline.Pipeline, _ *pipeline.Instance) error {
	s.num = 0
	return nil
}

func (s *jsonDump) Process(pl *pipeline.Pipeline, _ *pipeline.Instance, batch *pipeline.Batch) error {
	for i := 0; i < batch.Extent(); i++ {
		desc := batch.At(i)
		if desc == nil {
			continue
		}

		b, err := json.Marshal(record{
			Index:   s.num,
			Time:    desc.Time().UnixNano(),
			CapLen:  desc.CapLen(),
			WireLen: desc.WireLen(),
			Link:    pl.LinkType().String(),
		})
		if err != nil {
			return err
		}
		s.num++

		b = append(b, '\n')
		if _, err := s.out.Write(b); err != nil {
			return err
		}
	}
	return nil
}
