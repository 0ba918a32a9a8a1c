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

package controller

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/pktdump/pktdump/common"
	"github.com/pktdump/pktdump/confengine"
	"github.com/pktdump/pktdump/internal/rescue"
	"github.com/pktdump/pktdump/logger"
	"github.com/pktdump/pktdump/pipeline"
	"github.com/pktdump/pktdump/server"
	"github.com/pktdump/pktdump/source"
)

// Config pipeline 装配配置
type Config struct {
	MaxStages int           `config:"maxStages"`
	BatchSize int           `config:"batchSize"`
	Stages    []StageConfig `config:"stages"`
}

// StageConfig 单个 stage 的装配项 按声明顺序注册
type StageConfig struct {
	Name   string         `config:"name"`
	Config map[string]any `config:"config"`
}

// Controller 是进程级别的 run 对象
//
// 持有 Source / Server 等所有顶层状态 不依赖任何包级全局变量
// 组装顺序固定为 输入源先于输出 stage 以保证 stage Init 时链路层类型已知
type Controller struct {
	runID     string
	buildInfo common.BuildInfo

	src  source.Source
	svr  *server.Server
	done chan error
}

func setupLogger(conf *confengine.Config) error {
	var opts logger.Options
	if conf.Has("logger") {
		if err := conf.UnpackChild("logger", &opts); err != nil {
			return err
		}
	}
	logger.SetOptions(opts)
	return nil
}

// New 创建并返回 Controller 实例
//
// 任何一个 stage 装配失败（容量超限或 Init 报错）都会使整个装配失败
func New(conf *confengine.Config, buildInfo common.BuildInfo) (*Controller, error) {
	if err := setupLogger(conf); err != nil {
		return nil, err
	}

	var cfg Config
	if err := conf.UnpackChild("pipeline", &cfg); err != nil {
		return nil, err
	}

	pl := pipeline.New(pipeline.Options{
		MaxStages: cfg.MaxStages,
		BatchSize: cfg.BatchSize,
	})

	src, err := source.New(conf, pl)
	if err != nil {
		return nil, err
	}

	for _, sc := range cfg.Stages {
		f, err := pipeline.GetFactory(sc.Name)
		if err != nil {
			return nil, err
		}
		stage, err := f(common.Options(sc.Config))
		if err != nil {
			return nil, errors.Wrapf(err, "create stage (%s)", sc.Name)
		}
		if _, err := pl.AddStage(stage); err != nil {
			return nil, err
		}
	}

	svr, err := server.New(conf)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		runID:     uuid.New().String(),
		buildInfo: buildInfo,
		src:       src,
		svr:       svr,
		done:      make(chan error, 1),
	}
	c.setupServer()
	return c, nil
}

// RunID 返回本次运行的唯一标识
func (c *Controller) RunID() string {
	return c.runID
}

// Source 返回归 Controller 所有的 Source
func (c *Controller) Source() source.Source {
	return c.src
}

// Start 启动派发循环与管理端服务
func (c *Controller) Start() {
	logger.Infof("controller started, runID=%s, source=%s, stages=%v",
		c.runID, c.src.Name(), c.src.Pipeline().StageNames())

	if c.svr != nil {
		go func() {
			defer rescue.HandleCrash()
			if err := c.svr.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf("failed to start server: %v", err)
			}
		}()
	}

	go func() {
		defer rescue.HandleCrash()
		c.done <- c.src.Run()
	}()
}

// Done 返回派发循环的结束通知
//
// nil 表示输入正常耗尽 source.ErrStopped 表示被 Stop 中止
func (c *Controller) Done() <-chan error {
	return c.done
}

// Stop 中止派发循环并释放所有资源
func (c *Controller) Stop() {
	if err := c.src.Close(); err != nil {
		logger.Warnf("close source (%s): %v", c.src.Name(), err)
	}
	if c.svr != nil {
		if err := c.svr.Close(); err != nil {
			logger.Warnf("close server: %v", err)
		}
	}
}
