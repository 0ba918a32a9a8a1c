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

// Batch 是一次投递的数据包集合 即 stage 之间传递的处理单元
//
// entries 为可空的 Descriptor 指针序列 extent 表示本轮有效的条目数
// extent 在遍历开始前一次性设定 遍历期间只减不增（条目被置空）
// stage 不得访问 extent 之外的条目 也不得调整条目顺序
type Batch struct {
	entries []*Descriptor
	extent  int
}

// NewBatch 创建并返回 Batch 实例 size 为底层条目容量
func NewBatch(size int) *Batch {
	return &Batch{
		entries: make([]*Descriptor, size),
	}
}

// Reset 装载新一轮的 Descriptor 并设定 extent
//
// 超出底层容量的部分会被丢弃 Source 应保证投递量不超过容量
func (b *Batch) Reset(descs ...*Descriptor) {
	if len(descs) > len(b.entries) {
		descs = descs[:len(b.entries)]
	}
	n := copy(b.entries, descs)
	for i := n; i < len(b.entries); i++ {
		b.entries[i] = nil
	}
	b.extent = n
}

// Extent 返回本轮有效条目数
func (b *Batch) Extent() int {
	return b.extent
}

// Capacity 返回底层条目容量 即单轮 Reset 能装载的条目上限
func (b *Batch) Capacity() int {
	return len(b.entries)
}

// At 返回第 i 个条目 条目已退役或越界时返回 nil
func (b *Batch) At(i int) *Descriptor {
	if i < 0 || i >= b.extent {
		return nil
	}
	return b.entries[i]
}

// Retire 将第 i 个条目置空并标记退役
//
// 置空声明该数据包的处理已终结 后续 stage 不再可见
// 底层存储由 pipeline 在遍历结束后统一回收
func (b *Batch) Retire(i int) {
	if i < 0 || i >= b.extent || b.entries[i] == nil {
		return
	}
	b.entries[i].status = StatusRetired
	b.entries[i] = nil
	packetsRetiredTotal.Inc()
}

// Steal 窃取第 i 个条目 返回归调用方私有的深拷贝
//
// 原条目被标记为 stolen 并从 batch 中移除 其临时存储在遍历结束后回收
// 这是 stage 将数据生命周期延长至单次遍历之外的唯一正当途径
func (b *Batch) Steal(i int) *Descriptor {
	if i < 0 || i >= b.extent || b.entries[i] == nil {
		return nil
	}
	d := b.entries[i].Clone()
	d.status = StatusStolen
	b.entries[i].status = StatusStolen
	b.entries[i] = nil
	packetsStolenTotal.Inc()
	return d
}

// Replace 以新的 Descriptor 替换第 i 个条目 原条目标记退役
//
// 用于分片重组等产生全新报文内容的场景
func (b *Batch) Replace(i int, d *Descriptor) {
	if i < 0 || i >= b.extent {
		return
	}
	if b.entries[i] != nil {
		b.entries[i].status = StatusRetired
	}
	b.entries[i] = d
}

// Release 退役所有剩余条目
//
// pipeline 在每轮遍历结束后调用 对应原型中将剩余报文交还系统的语义
func (b *Batch) Release() {
	for i := 0; i < b.extent; i++ {
		b.Retire(i)
	}
	b.extent = 0
}
