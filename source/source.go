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

package source

import (
	"time"

	"github.com/gopacket/gopacket/layers"
	"github.com/pkg/errors"

	"github.com/pktdump/pktdump/confengine"
	"github.com/pktdump/pktdump/pipeline"
)

var (
	// ErrStopped 表示派发循环因 Close 调用而主动停止
	ErrStopped = errors.New("source stopped")

	// ErrOpen 表示外部捕获源打开失败 如文件不可读或格式不支持
	ErrOpen = errors.New("open source failed")
)

// Source 将外部捕获机制桥接至 pipeline 的 batch 遍历驱动
//
// Source 持有其 Pipeline 每收到一单位数据便组装 Batch 并驱动遍历
// 单个 stage 或单个 batch 的失败不会中止派发循环
// 只有源读取错误或 Close 请求才会让 Run 返回
type Source interface {
	// Name 返回人类可读的源名称 用于诊断
	Name() string

	// LinkType 返回源的链路层类型
	LinkType() layers.LinkType

	// Pipeline 返回归该 Source 所有的 Pipeline
	Pipeline() *pipeline.Pipeline

	// Run 阻塞执行派发循环
	//
	// 返回 nil 表示输入正常结束 ErrStopped 表示被 Close 中止
	// 其余错误为底层源读取失败
	Run() error

	// Close 中止派发循环并释放关联资源
	Close() error
}

// Config Source 配置项
type Config struct {
	// Engine 引擎名称 留空时依据 File 是否设置自动选择
	Engine string `config:"engine"`

	// File 回放的 pcap/pcapng 文件路径
	File string `config:"file"`

	// Iface 实时捕获监听的网卡
	Iface string `config:"iface"`

	// BPFFilter 实时捕获的 BPF 过滤表达式
	BPFFilter string `config:"bpfFilter"`

	// BatchSize 单个 batch 的最大数据包数 仅对实时捕获生效
	BatchSize int `config:"batchSize"`

	// PollTimeout 实时捕获的轮询超时 超时会冲刷未满的 batch
	PollTimeout time.Duration `config:"pollTimeout"`
}

// CreateFunc 创建 Source 的函数类型
type CreateFunc func(conf *Config, pl *pipeline.Pipeline) (Source, error)

var sourceFactory = map[string]CreateFunc{}

// Register 注册 Source 工厂函数
func Register(f CreateFunc, names ...string) {
	for _, name := range names {
		sourceFactory[name] = f
	}
}

// Get 获取 Source 工厂函数
func Get(name string) (CreateFunc, error) {
	f, ok := sourceFactory[name]
	if !ok {
		return nil, errors.Errorf("source factory (%s) not found", name)
	}
	return f, nil
}

// New 按配置创建 Source 并将 pl 的所有权移交给它
func New(conf *confengine.Config, pl *pipeline.Pipeline) (Source, error) {
	var cfg Config
	if err := conf.UnpackChild("source", &cfg); err != nil {
		return nil, err
	}

	if cfg.Engine == "" {
		switch {
		case cfg.File != "":
			cfg.Engine = "file"
		default:
			cfg.Engine = "kernel"
		}
	}

	f, err := Get(cfg.Engine)
	if err != nil {
		return nil, err
	}
	return f(&cfg, pl)
}
