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

package dedup

import (
	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"

	"github.com/pktdump/pktdump/common"
	"github.com/pktdump/pktdump/pipeline"
)

const (
	Name = "dedup"
)

const defaultWindow = 1024

func init() {
	pipeline.Register(Name, New)
}

// dedup 过滤滑动窗口内捕获数据完全相同的数据包
//
// 以 payload 的 xxhash 为键 命中即将条目退役 后续 stage 不再可见
// 窗口按到达顺序淘汰 属于 filter 类 stage 的参考实现
type dedup struct {
	window int
	seen   map[uint64]int
	ring   []uint64
	next   int
}

// New 创建并返回 dedup Stage 实例
//
// 配置项 window 控制滑动窗口的包数量 必须为正
func New(opts common.Options) (pipeline.Stage, error) {
	window := defaultWindow
	if opts.Has("window") {
		w, err := opts.GetInt("window")
		if err != nil {
			return nil, err
		}
		if w <= 0 {
			return nil, errors.Errorf("invalid window (%d)", w)
		}
		window = w
	}
	return &dedup{window: window}, nil
}

func (s *dedup) Name() string {
	return Name
}

func (s *dedup) Init(_ *pipeline.Pipeline, _ *pipeline.Instance) error {
	s.seen = make(map[uint64]int, s.window)
	s.ring = make([]uint64, s.window)
	s.next = 0
	return nil
}

func (s *dedup) Process(_ *pipeline.Pipeline, _ *pipeline.Instance, batch *pipeline.Batch) error {
	for i := 0; i < batch.Extent(); i++ {
		desc := batch.At(i)
		if desc == nil {
			continue
		}

		sum := xxhash.Sum64(desc.Data())
		if _, ok := s.seen[sum]; ok {
			batch.Retire(i)
			continue
		}
		s.remember(sum)
	}
	return nil
}

// remember 记录哈希并淘汰窗口外最旧的记录
func (s *dedup) remember(sum uint64) {
	slot := s.next % s.window
	if s.next >= s.window {
		old := s.ring[slot]
		if cnt := s.seen[old]; cnt <= 1 {
			delete(s.seen, old)
		} else {
			s.seen[old] = cnt - 1
		}
	}
	s.ring[slot] = sum
	s.seen[sum]++
	s.next++
}
