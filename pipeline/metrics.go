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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pktdump/pktdump/common"
)

var (
	batchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: common.App,
			Subsystem: "pipeline",
			Name:      "batches_total",
			Help:      "Batches driven through the pipeline total",
		},
	)

	packetsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: common.App,
			Subsystem: "pipeline",
			Name:      "packets_total",
			Help:      "Packet descriptors entering traversal total",
		},
	)

	stageFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: common.App,
			Subsystem: "pipeline",
			Name:      "stage_failures_total",
			Help:      "Batches aborted by a stage failure total",
		},
		[]string{"stage"},
	)

	packetsStolenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: common.App,
			Subsystem: "pipeline",
			Name:      "packets_stolen_total",
			Help:      "Packet descriptors stolen by stages total",
		},
	)

	packetsRetiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: common.App,
			Subsystem: "pipeline",
			Name:      "packets_retired_total",
			Help:      "Packet descriptors retired total",
		},
	)
)
