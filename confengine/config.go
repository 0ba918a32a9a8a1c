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

package confengine

import (
	"github.com/elastic/go-ucfg"
	"github.com/elastic/go-ucfg/yaml"
)

// Config 是对 ucfg.Config 的封装 提供子树定位与反序列化的便捷操作
type Config struct {
	conf *ucfg.Config
}

func New(conf *ucfg.Config) *Config {
	return &Config{conf: conf}
}

// Has 判断配置项是否存在
func (c *Config) Has(s string) bool {
	ok, err := c.conf.Has(s, -1)
	if err != nil {
		return false
	}
	return ok
}

// Child 返回 s 对应的配置子树
func (c *Config) Child(s string) (*Config, error) {
	child, err := c.conf.Child(s, -1)
	if err != nil {
		return nil, err
	}
	return &Config{conf: child}, nil
}

// Unpack 将整棵配置树反序列化至 to
func (c *Config) Unpack(to any) error {
	return c.conf.Unpack(to)
}

// UnpackChild 将 s 配置子树反序列化至 to
//
// 子树不存在时返回错误 调用方可先用 Has 判断
func (c *Config) UnpackChild(s string, to any) error {
	child, err := c.conf.Child(s, -1)
	if err != nil {
		return err
	}
	return child.Unpack(to)
}

// LoadConfigPath 从文件加载 yaml 配置
func LoadConfigPath(path string) (*Config, error) {
	config, err := yaml.NewConfigWithFile(path, ucfg.PathSep("."))
	if err != nil {
		return nil, err
	}
	return New(config), nil
}

// LoadContent 从字节流加载 yaml 配置
func LoadContent(b []byte) (*Config, error) {
	config, err := yaml.NewConfig(b, ucfg.PathSep("."))
	if err != nil {
		return nil, err
	}
	return New(config), nil
}
