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

package kernel

import (
	"context"

	"github.com/gopacket/gopacket"
	"github.com/pkg/errors"

	"github.com/pktdump/pktdump/logger"
	"github.com/pktdump/pktdump/pipeline"
	"github.com/pktdump/pktdump/source"
)

// ringReader 内核 ring 读取器的公共行为
//
// ZeroCopyReadPacketData 返回的切片仅在下一次读取前有效
// 拷贝在 Descriptor 构造时完成
type ringReader interface {
	ZeroCopyReadPacketData() ([]byte, gopacket.CaptureInfo, error)
}

// dispatcher 驱动 ring 读取的聚合派发循环
//
// 与平台相关的 ring 实现解耦 超时语义由 isTimeout 判定
type dispatcher struct {
	ctx       context.Context
	name      string
	pl        *pipeline.Pipeline
	reader    ringReader
	batchSize int
	isTimeout func(error) bool
}

// run 执行派发循环
//
// 聚合至多 batchSize 个数据包后驱动遍历 轮询超时则冲刷未满的 batch
// 避免低流量场景下数据包长时间滞留
func (d *dispatcher) run() error {
	batchSize := d.batchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	master := d.pl.Master()
	capacity := master.Capacity()
	descs := make([]*pipeline.Descriptor, 0, batchSize)

	// 聚合上限与 master batch 容量相互独立 冲刷时按容量分片遍历
	// 已交付的数据包必须全部进入 pipeline 不因两者配置不一致而丢失
	flush := func() {
		for i := 0; i < len(descs); i += capacity {
			j := i + capacity
			if j > len(descs) {
				j = len(descs)
			}
			master.Reset(descs[i:j]...)
			if err := d.pl.ProcessBatch(master); err != nil {
				logger.Debugf("source (%s): %v", d.name, err)
			}
		}
		descs = descs[:0]
	}

	for {
		select {
		case <-d.ctx.Done():
			flush()
			return source.ErrStopped

		default:
			data, ci, err := d.reader.ZeroCopyReadPacketData()
			if err != nil {
				if d.isTimeout(err) {
					flush()
					continue
				}
				flush()
				return errors.Wrapf(err, "read source (%s)", d.name)
			}

			descs = append(descs, pipeline.NewDescriptor(ci.Timestamp, ci.Length, data, d.pl.MaxStages()))
			if len(descs) >= batchSize {
				flush()
			}
		}
	}
}
