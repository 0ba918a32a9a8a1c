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

package hexdumpc

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/valyala/bytebufferpool"

	"github.com/pktdump/pktdump/common"
	"github.com/pktdump/pktdump/pipeline"
)

const (
	Name = "hexdumpc"
)

const (
	defaultPerLine = 8
	indent         = "        "
)

func init() {
	pipeline.Register(Name, New)
}

// hexDumpC 参考 observer stage 实现
//
// 将每个数据包的捕获字节渲染为 C 源码级别的字节数组初始化块
// 块名携带从 0 开始单调递增的包序号 只读不窃取 也不置空任何条目
type hexDumpC struct {
	out     io.Writer
	f       *os.File
	path    string
	perLine int
	num     uint
}

// New 创建并返回 hexdumpc Stage 实例
//
// 配置项 path 指定输出文件 缺省写向 stdout；perLine 控制每行字节数
func New(opts common.Options) (pipeline.Stage, error) {
	s := &hexDumpC{
		out:     os.Stdout,
		perLine: defaultPerLine,
	}

	if opts.Has("perLine") {
		perLine, err := opts.GetInt("perLine")
		if err != nil {
			return nil, err
		}
		if perLine <= 0 {
			return nil, errors.Errorf("invalid perLine (%d)", perLine)
		}
		s.perLine = perLine
	}

	if opts.Has("path") {
		path, err := opts.GetString("path")
		if err != nil {
			return nil, err
		}
		s.path = path
	}
	return s, nil
}

func (s *hexDumpC) Name() string {
	return Name
}

// Init 准备输出流并复位包计数器
func (s *hexDumpC) Init(_ *pipeline.Pipeline, _ *pipeline.Instance) error {
	s.num = 0
	if s.path == "" {
		return nil
	}

	f, err := os.Create(s.path)
	if err != nil {
		return errors.Wrapf(err, "create output file (%s)", s.path)
	}
	s.f = f
	s.out = f
	return nil
}

// Process 渲染 batch 中所有未退役的条目
func (s *hexDumpC) Process(_ *pipeline.Pipeline, _ *pipeline.Instance, batch *pipeline.Batch) error {
	for i := 0; i < batch.Extent(); i++ {
		desc := batch.At(i)
		if desc == nil {
			continue
		}
		if err := s.render(desc.Data()); err != nil {
			return err
		}
	}
	return nil
}

func (s *hexDumpC) render(data []byte) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	fmt.Fprintf(buf, "char *packet_%03d = {", s.num)
	s.num++

	for i, c := range data {
		if i%s.perLine == 0 {
			buf.WriteString("\n")
			buf.WriteString(indent)
		} else {
			buf.WriteString(" ")
		}
		fmt.Fprintf(buf, "0x%02x,", c)
	}
	buf.WriteString("\n};\n")

	_, err := s.out.Write(buf.Bytes())
	return err
}

// Close 关闭输出文件（如果有）
func (s *hexDumpC) Close() error {
	if s.f == nil {
		return nil
	}
	return s.f.Close()
}
