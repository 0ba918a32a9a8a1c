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

//go:build !linux || !cgo

package kernel

import (
	"github.com/pkg/errors"

	"github.com/pktdump/pktdump/pipeline"
	"github.com/pktdump/pktdump/source"
)

func init() {
	source.Register(New, Name)
}

// New 非 Linux 平台不支持 TPACKET_v3 实时捕获
func New(_ *source.Config, _ *pipeline.Pipeline) (source.Source, error) {
	return nil, errors.New("kernel source is only supported on linux")
}
