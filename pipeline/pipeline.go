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
	"io"

	"github.com/gopacket/gopacket/layers"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/pktdump/pktdump/logger"
)

// DefaultMaxStages 默认的 stage 数量上限
//
// 可编入的 stage 种类在构建期已知 这里仅作为未显式配置时的兜底值
const DefaultMaxStages = 8

// ErrStageLimit stage 注册数量达到上限
var ErrStageLimit = errors.New("pipeline stage limit reached")

// Stage 定义了数据包处理阶段的行为
//
// stage 的私有状态由实现结构体自行持有 不经过任何无类型指针
// 单包粒度的状态则通过 Descriptor 的 scratch 槽位以 stage number 挂载
type Stage interface {
	// Name 返回 stage 名称 用于诊断与注册检索
	Name() string

	// Init 在注册时执行一次 失败则注册中止
	Init(pl *Pipeline, inst *Instance) error

	// Process 处理一个 Batch 返回非 nil 错误会中止当前 batch 的剩余 stage
	Process(pl *Pipeline, inst *Instance, batch *Batch) error
}

// Instance 表示 stage 在某条 pipeline 中的实例记录
//
// stage number 在注册时分配 且在 pipeline 生命周期内保持稳定
type Instance struct {
	stage Stage
	num   int
}

// Name 返回所属 stage 的名称
func (pi *Instance) Name() string {
	return pi.stage.Name()
}

// StageNum 返回分配到的 stage 序号 即 scratch 槽位下标
func (pi *Instance) StageNum() int {
	return pi.num
}

// Options pipeline 配置项
type Options struct {
	// MaxStages stage 数量上限 注册时检查
	MaxStages int `config:"maxStages"`

	// BatchSize master batch 的条目容量
	BatchSize int `config:"batchSize"`
}

func (o Options) Validate() Options {
	if o.MaxStages <= 0 {
		o.MaxStages = DefaultMaxStages
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 1
	}
	return o
}

// Pipeline 按注册顺序组织有限个 stage 并驱动 batch 依次通过
//
// 遍历为单线程顺序执行 batch 与其中的 Descriptor 在遍历期间
// 由 pipeline 独占 stage 之间除 batch 本身外不存在共享可变状态
type Pipeline struct {
	opts      Options
	linkType  layers.LinkType
	instances []*Instance
	master    *Batch
}

// New 创建并返回 Pipeline 实例
func New(opts Options) *Pipeline {
	opts = opts.Validate()
	return &Pipeline{
		opts:   opts,
		master: NewBatch(opts.BatchSize),
	}
}

// MaxStages 返回 stage 数量上限
func (p *Pipeline) MaxStages() int {
	return p.opts.MaxStages
}

// StageCount 返回已注册的 stage 数量
func (p *Pipeline) StageCount() int {
	return len(p.instances)
}

// StageNames 返回已注册的 stage 名称 按注册顺序
func (p *Pipeline) StageNames() []string {
	names := make([]string, 0, len(p.instances))
	for _, inst := range p.instances {
		names = append(names, inst.Name())
	}
	return names
}

// LinkType 返回接入 Source 的链路层类型
func (p *Pipeline) LinkType() layers.LinkType {
	return p.linkType
}

// SetLinkType 设置链路层类型 由 Source 在打开后调用
func (p *Pipeline) SetLinkType(lt layers.LinkType) {
	p.linkType = lt
}

// Master 返回归 pipeline 所有的 master batch 供 Source 复用
func (p *Pipeline) Master() *Batch {
	return p.master
}

// AddStage 将 stage 追加注册至 pipeline 末端
//
// 数量达到上限返回 ErrStageLimit；Init 失败则注册中止并返回其错误
// 该 stage 不会占据槽位 后续也不会有任何 Process 调用
func (p *Pipeline) AddStage(s Stage) (*Instance, error) {
	if len(p.instances) >= p.opts.MaxStages {
		return nil, errors.Wrapf(ErrStageLimit, "add stage (%s)", s.Name())
	}

	inst := &Instance{
		stage: s,
		num:   len(p.instances),
	}
	if err := s.Init(p, inst); err != nil {
		return nil, errors.Wrapf(err, "init stage (%s)", s.Name())
	}

	p.instances = append(p.instances, inst)
	logger.Infof("pipeline add stage (%s) at slot %d", s.Name(), inst.num)
	return inst, nil
}

// ProcessBatch 驱动 batch 依次通过所有 stage
//
// 注册顺序是唯一的执行顺序 某个 stage 返回错误时中止本轮剩余 stage
// 但不影响 pipeline 本身 下一个 batch 仍从 0 号 stage 开始
// 遍历结束后剩余的 Descriptor 统一退役
func (p *Pipeline) ProcessBatch(b *Batch) error {
	defer b.Release()

	batchesTotal.Inc()
	packetsTotal.Add(float64(b.Extent()))

	for _, inst := range p.instances {
		if err := inst.stage.Process(p, inst, b); err != nil {
			stageFailuresTotal.WithLabelValues(inst.Name()).Inc()
			return errors.Wrapf(err, "stage (%s) abort batch", inst.Name())
		}
	}
	return nil
}

// Close 关闭实现了 io.Closer 的 stage 并聚合错误
func (p *Pipeline) Close() error {
	var errs *multierror.Error
	for _, inst := range p.instances {
		closer, ok := inst.stage.(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			errs = multierror.Append(errs, errors.Wrapf(err, "close stage (%s)", inst.Name()))
		}
	}
	return errs.ErrorOrNil()
}
