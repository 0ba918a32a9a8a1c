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
	"testing"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/pktdump/pktdump/pipeline"
	"github.com/pktdump/pktdump/source"
)

var errFakeTimeout = errors.New("fake poll timeout")

// fakeReader 依次交付预置的数据包 耗尽后转交 drained 回调的返回值
type fakeReader struct {
	packets [][]byte
	next    int
	drained func() error
}

func (r *fakeReader) ZeroCopyReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	if r.next >= len(r.packets) {
		return nil, gopacket.CaptureInfo{}, r.drained()
	}

	data := r.packets[r.next]
	ci := gopacket.CaptureInfo{
		Timestamp:     time.Unix(1700000000, int64(r.next)),
		CaptureLength: len(data),
		Length:        len(data),
	}
	r.next++
	return data, ci, nil
}

// extentStage 记录每轮遍历的 extent 与流经的 Descriptor
type extentStage struct {
	extents []int
	descs   []*pipeline.Descriptor
}

func (s *extentStage) Name() string { return "extent" }

func (s *extentStage) Init(*pipeline.Pipeline, *pipeline.Instance) error { return nil }

func (s *extentStage) Process(_ *pipeline.Pipeline, _ *pipeline.Instance, b *pipeline.Batch) error {
	s.extents = append(s.extents, b.Extent())
	for i := 0; i < b.Extent(); i++ {
		if desc := b.At(i); desc != nil {
			s.descs = append(s.descs, desc)
		}
	}
	return nil
}

func makePackets(n int) [][]byte {
	packets := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		packets = append(packets, []byte{byte(i), byte(i >> 8)})
	}
	return packets
}

func runDispatcher(pl *pipeline.Pipeline, batchSize int, reader *fakeReader) error {
	ctx, cancel := context.WithCancel(context.Background())
	if reader.drained == nil {
		// 预置包交付完毕后请求停止 下一次轮询超时触发冲刷
		reader.drained = func() error {
			cancel()
			return errFakeTimeout
		}
	} else {
		defer cancel()
	}

	d := &dispatcher{
		ctx:       ctx,
		name:      "kernel: fake",
		pl:        pl,
		reader:    reader,
		batchSize: batchSize,
		isTimeout: func(err error) bool { return errors.Is(err, errFakeTimeout) },
	}
	return d.run()
}

func TestDispatchFlushOnBatchSize(t *testing.T) {
	pl := pipeline.New(pipeline.Options{BatchSize: 8})
	stage := &extentStage{}
	_, err := pl.AddStage(stage)
	assert.NoError(t, err)

	reader := &fakeReader{packets: makePackets(5)}
	assert.ErrorIs(t, runDispatcher(pl, 2, reader), source.ErrStopped)

	// 每满 2 个冲刷一次 剩余 1 个在超时冲刷
	assert.Equal(t, []int{2, 2, 1}, stage.extents)
}

func TestDispatchChunksToMasterCapacity(t *testing.T) {
	// master batch 容量取默认值 1 与聚合上限 64 不一致
	pl := pipeline.New(pipeline.Options{})
	stage := &extentStage{}
	_, err := pl.AddStage(stage)
	assert.NoError(t, err)

	reader := &fakeReader{packets: makePackets(64)}
	assert.ErrorIs(t, runDispatcher(pl, 64, reader), source.ErrStopped)

	// 交付的 64 个包全部进入遍历 按容量分片 无一丢弃
	assert.Len(t, stage.descs, 64)
	for i, desc := range stage.descs {
		assert.Equal(t, []byte{byte(i), byte(i >> 8)}, desc.Data())
		assert.Equal(t, pipeline.StatusRetired, desc.Status())
	}
	for _, extent := range stage.extents {
		assert.Equal(t, 1, extent)
	}
}

func TestDispatchTimeoutFlushesPartialBatch(t *testing.T) {
	pl := pipeline.New(pipeline.Options{BatchSize: 8})
	stage := &extentStage{}
	_, err := pl.AddStage(stage)
	assert.NoError(t, err)

	// batchSize 8 但只交付 3 个 依赖超时冲刷
	reader := &fakeReader{packets: makePackets(3)}
	assert.ErrorIs(t, runDispatcher(pl, 8, reader), source.ErrStopped)

	assert.Equal(t, []int{3}, stage.extents)
}

func TestDispatchReadError(t *testing.T) {
	pl := pipeline.New(pipeline.Options{BatchSize: 8})
	stage := &extentStage{}
	_, err := pl.AddStage(stage)
	assert.NoError(t, err)

	errRead := errors.New("ring gone")
	reader := &fakeReader{
		packets: makePackets(2),
		drained: func() error { return errRead },
	}

	// 读取失败前已聚合的包先冲刷 错误再向上传播
	assert.ErrorIs(t, runDispatcher(pl, 8, reader), errRead)
	assert.Equal(t, []int{2}, stage.extents)
}

func TestDispatchStageFailureDoesNotAbortLoop(t *testing.T) {
	pl := pipeline.New(pipeline.Options{BatchSize: 8})
	boom := &failOnceStage{}
	_, err := pl.AddStage(boom)
	assert.NoError(t, err)

	reader := &fakeReader{packets: makePackets(4)}
	assert.ErrorIs(t, runDispatcher(pl, 2, reader), source.ErrStopped)

	// 第一个 batch 失败 后续 batch 照常派发
	assert.Equal(t, 2, boom.calls)
}

type failOnceStage struct {
	calls int
}

func (s *failOnceStage) Name() string { return "fail-once" }

func (s *failOnceStage) Init(*pipeline.Pipeline, *pipeline.Instance) error { return nil }

func (s *failOnceStage) Process(_ *pipeline.Pipeline, _ *pipeline.Instance, _ *pipeline.Batch) error {
	s.calls++
	if s.calls == 1 {
		return errors.New("boom")
	}
	return nil
}
