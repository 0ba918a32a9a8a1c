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

//go:build linux && cgo

package kernel

import (
	"context"
	"fmt"
	"sync"

	"github.com/gopacket/gopacket/afpacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcap"
	"github.com/pkg/errors"
	"golang.org/x/net/bpf"

	"github.com/pktdump/pktdump/common"
	"github.com/pktdump/pktdump/logger"
	"github.com/pktdump/pktdump/pipeline"
	"github.com/pktdump/pktdump/source"
)

func init() {
	source.Register(New, Name)
}

// kernelSource 基于 TPACKET_v3 ring 的实时捕获源
//
// 与文件回放不同 内核源按 batch 聚合交付 一次遍历处理多个数据包
// ring 记录在此边界完成向 Descriptor 的转换（拷贝与截断）
// pipeline 内部不感知 ring 的二进制布局
type kernelSource struct {
	ctx    context.Context
	cancel context.CancelFunc
	name   string
	pl     *pipeline.Pipeline
	handle *afpacket.TPacket
	conf   *source.Config
	wg     sync.WaitGroup
}

// New 创建并返回内核实时捕获 Source 实例
func New(conf *source.Config, pl *pipeline.Pipeline) (source.Source, error) {
	handle, err := makeTPacket(conf)
	if err != nil {
		return nil, errors.Wrapf(source.ErrOpen, "iface (%s): %v", conf.Iface, err)
	}

	if conf.BPFFilter != "" {
		if err := setBPFFilter(handle, conf.BPFFilter); err != nil {
			handle.Close()
			return nil, errors.Wrapf(err, "set bpf-filter (%s) failed", conf.BPFFilter)
		}
	}

	pl.SetLinkType(layers.LinkTypeEthernet)
	logger.Infof("source add device (%s)", conf.Iface)

	ctx, cancel := context.WithCancel(context.Background())
	return &kernelSource{
		ctx:    ctx,
		cancel: cancel,
		name:   fmt.Sprintf("%s: %s", Name, conf.Iface),
		pl:     pl,
		handle: handle,
		conf:   conf,
	}, nil
}

func makeTPacket(conf *source.Config) (*afpacket.TPacket, error) {
	timeout := conf.PollTimeout
	if timeout <= 0 {
		timeout = defaultPollTimeout
	}

	blockNumOpt := afpacket.OptNumBlocks(defaultBlockNum)
	pollTimeout := afpacket.OptPollTimeout(timeout)

	if conf.Iface == "" || conf.Iface == deviceAny {
		return afpacket.NewTPacket(blockNumOpt, pollTimeout)
	}
	return afpacket.NewTPacket(afpacket.OptInterface(conf.Iface), blockNumOpt, pollTimeout)
}

func setBPFFilter(tp *afpacket.TPacket, filter string) error {
	pcapBPF, err := pcap.CompileBPFFilter(layers.LinkTypeEthernet, common.MaxCaptureSize, filter)
	if err != nil {
		return err
	}
	var bpfIns []bpf.RawInstruction
	for _, ins := range pcapBPF {
		bpfIns = append(bpfIns, bpf.RawInstruction{
			Op: ins.Code,
			Jt: ins.Jt,
			Jf: ins.Jf,
			K:  ins.K,
		})
	}
	return tp.SetBPF(bpfIns)
}

func (ks *kernelSource) Name() string {
	return ks.name
}

func (ks *kernelSource) LinkType() layers.LinkType {
	return layers.LinkTypeEthernet
}

func (ks *kernelSource) Pipeline() *pipeline.Pipeline {
	return ks.pl
}

// Run 执行实时捕获的派发循环
func (ks *kernelSource) Run() error {
	ks.wg.Add(1)
	defer ks.wg.Done()

	d := &dispatcher{
		ctx:       ks.ctx,
		name:      ks.name,
		pl:        ks.pl,
		reader:    ks.handle,
		batchSize: ks.conf.BatchSize,
		isTimeout: func(err error) bool { return errors.Is(err, afpacket.ErrTimeout) },
	}
	return d.run()
}

func (ks *kernelSource) Close() error {
	ks.cancel()
	ks.wg.Wait()
	ks.handle.Close()
	return ks.pl.Close()
}
