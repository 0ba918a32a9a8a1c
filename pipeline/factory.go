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
	"github.com/pkg/errors"

	"github.com/pktdump/pktdump/common"
)

// CreateFunc 创建 Stage 的函数类型
type CreateFunc func(opts common.Options) (Stage, error)

var stageFactory = map[string]CreateFunc{}

// Register 注册 Stage 工厂函数
func Register(name string, f CreateFunc) {
	stageFactory[name] = f
}

// GetFactory 获取 Stage 工厂函数
func GetFactory(name string) (CreateFunc, error) {
	f, ok := stageFactory[name]
	if !ok {
		return nil, errors.Errorf("stage factory (%s) not found", name)
	}
	return f, nil
}
