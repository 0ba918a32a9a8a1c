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

package pipeline

import (
	"time"

	"github.com/pktdump/pktdump/common"
)

// Status 标识 Descriptor 当前的归属
type Status uint8

const (
	// StatusPipeline Descriptor 归 pipeline 所有 仅在单次 batch 遍历内有效
	StatusPipeline Status = iota

	// StatusStolen 某个 stage 已持有其私有拷贝 原始存储可在遍历结束后回收
	StatusStolen

	// StatusRetired Descriptor 已退役 后续 stage 不再可见
	StatusRetired
)

func (s Status) String() string {
	switch s {
	case StatusPipeline:
		return "pipeline"
	case StatusStolen:
		return "stolen"
	case StatusRetired:
		return "retired"
	}
	return "unknown"
}

// Descriptor 描述单个被捕获的数据包
//
// 字段为纯语义字段 与内核 ring 记录的二进制布局解耦
// 布局转换只发生在 Source 边界（capture-source 侧负责拷贝与截断）
//
// scratch 为每个 stage 预留的私有槽位 以 stage number 索引
// 使得 stage 可以在不引入共享 map 的情况下为单个数据包附着状态
type Descriptor struct {
	ts      time.Time
	wireLen int
	data    []byte
	status  Status
	scratch []any
}

// NewDescriptor 创建并返回 Descriptor 实例
//
// data 会被拷贝一份私有存储 并截断至 common.MaxCaptureSize
// wireLen 始终保留报文在线缆上的原始长度
func NewDescriptor(ts time.Time, wireLen int, data []byte, slots int) *Descriptor {
	if len(data) > common.MaxCaptureSize {
		data = data[:common.MaxCaptureSize]
	}
	b := make([]byte, len(data))
	copy(b, data)
	return &Descriptor{
		ts:      ts,
		wireLen: wireLen,
		data:    b,
		scratch: make([]any, slots),
	}
}

// Time 返回捕获时间戳 纳秒精度
func (d *Descriptor) Time() time.Time {
	return d.ts
}

// CapLen 返回实际捕获的字节数
func (d *Descriptor) CapLen() int {
	return len(d.data)
}

// WireLen 返回报文的原始长度 可能大于 CapLen
func (d *Descriptor) WireLen() int {
	return d.wireLen
}

// Data 返回捕获数据
//
// 调用方不得在本次 Process 调用之外持有该切片 如需保留须通过 Batch.Steal
func (d *Descriptor) Data() []byte {
	return d.data
}

// Status 返回归属状态
func (d *Descriptor) Status() Status {
	return d.status
}

// Scratch 返回 stage num 对应的私有槽位内容
func (d *Descriptor) Scratch(num int) any {
	return d.scratch[num]
}

// SetScratch 设置 stage num 对应的私有槽位内容
func (d *Descriptor) SetScratch(num int, v any) {
	d.scratch[num] = v
}

// Clone 深拷贝 Descriptor
//
// 拷贝后的实例归调用方所有 scratch 槽位不随拷贝携带
func (d *Descriptor) Clone() *Descriptor {
	b := make([]byte, len(d.data))
	copy(b, d.data)
	return &Descriptor{
		ts:      d.ts,
		wireLen: d.wireLen,
		data:    b,
		scratch: make([]any, len(d.scratch)),
	}
}
