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
	_ "github.com/pktdump/pktdump/source/kernel"
	_ "github.com/pktdump/pktdump/source/pcapfile"
	_ "github.com/pktdump/pktdump/stages/dedup"
	_ "github.com/pktdump/pktdump/stages/hexdumpc"
	_ "github.com/pktdump/pktdump/stages/jsondump"
	_ "github.com/pktdump/pktdump/stages/pcapwrite"
	_ "github.com/pktdump/pktdump/stages/printer"
)
