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
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcapgo"
	"github.com/pkg/errors"

	"github.com/pktdump/pktdump/logger"
	"github.com/pktdump/pktdump/pipeline"
	"github.com/pktdump/pktdump/source"
)

const (
	Name = "file"
)

func init() {
	source.Register(New, Name)
}

// packetReader pcap 与 pcapng 读取器的公共行为
//
// ZeroCopyReadPacketData 返回的切片仅在下一次读取前有效
// 拷贝在 Descriptor 构造时完成 与临时存储的生命周期约定一致
type packetReader interface {
	ZeroCopyReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

type fileSource struct {
	name     string
	pl       *pipeline.Pipeline
	f        *os.File
	reader   packetReader
	stop     chan struct{}
	stopOnce sync.Once
}

// New 创建并返回文件回放 Source 实例
//
// 依据文件魔数自动识别 pcap / pcapng 格式 时间戳保留纳秒精度
// 回放的链路层类型写回 pipeline 供 stage 解析使用
func New(conf *source.Config, pl *pipeline.Pipeline) (source.Source, error) {
	f, err := os.Open(conf.File)
	if err != nil {
		return nil, errors.Wrapf(source.ErrOpen, "pcap file (%s): %v", conf.File, err)
	}

	reader, err := openReader(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(source.ErrOpen, "pcap file (%s): %v", conf.File, err)
	}

	pl.SetLinkType(reader.LinkType())
	logger.Infof("source add pcap file (%s), linkType=%s", conf.File, reader.LinkType())
	return &fileSource{
		name:   fmt.Sprintf("%s: %s", Name, conf.File),
		pl:     pl,
		f:      f,
		reader: reader,
		stop:   make(chan struct{}),
	}, nil
}

func openReader(f *os.File) (packetReader, error) {
	if r, err := pcapgo.NewReader(f); err == nil {
		return r, nil
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	r, err := pcapgo.NewNgReader(f, pcapgo.DefaultNgReaderOptions)
	if err != nil {
		return nil, errors.New("unrecognized capture file format")
	}
	return r, nil
}

func (fs *fileSource) Name() string {
	return fs.name
}

func (fs *fileSource) LinkType() layers.LinkType {
	return fs.reader.LinkType()
}

func (fs *fileSource) Pipeline() *pipeline.Pipeline {
	return fs.pl
}

// Run 执行文件回放的派发循环
//
// 文件源每次只交付一个数据包 因此每轮构造 extent 为 1 的 batch
// stage 或 batch 级别的失败仅记录日志 不中断回放
func (fs *fileSource) Run() error {
	master := fs.pl.Master()

	for {
		select {
		case <-fs.stop:
			return source.ErrStopped
		default:
		}

		data, ci, err := fs.reader.ZeroCopyReadPacketData()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return errors.Wrapf(err, "read pcap file (%s)", fs.f.Name())
		}

		desc := pipeline.NewDescriptor(ci.Timestamp, ci.Length, data, fs.pl.MaxStages())
		master.Reset(desc)
		if err := fs.pl.ProcessBatch(master); err != nil {
			logger.Debugf("source (%s): %v", fs.name, err)
		}
	}
}

func (fs *fileSource) Close() error {
	fs.stopOnce.Do(func() {
		close(fs.stop)
	})
	if err := fs.f.Close(); err != nil {
		return err
	}
	return fs.pl.Close()
}
