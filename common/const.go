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

package common

const (
	// App 应用程序名称
	App = "pktdump"

	// Version 应用程序版本
	Version = "v0.0.1"

	// MaxCaptureSize 单个数据包捕获字节数上限
	//
	// 与内核 TPACKET_v3 ring 单帧的数据区大小保持一致 超出部分会被静默截断
	// 截断只作用于捕获数据本身 wire length 仍记录原始报文长度
	MaxCaptureSize = 64 << 10
)

// 进程退出码
//
// 区分主机/参数错误 输出先于输入错误 以及文件打开错误 便于脚本化调用方判断
const (
	ExitSuccess     = 0
	ExitErrHost     = 1
	ExitErrNoInput  = 2
	ExitErrOpenFile = 3
)
