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

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pktdump/pktdump/common"
)

var buildInfo = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: common.App,
		Name:      "build_info",
		Help:      "program build info",
	},
	[]string{"version", "githash", "time"},
)

func (c *Controller) setupServer() {
	if c.svr == nil {
		return
	}

	buildInfo.WithLabelValues(c.buildInfo.Version, c.buildInfo.GitHash, c.buildInfo.Time).Inc()

	// Metric Routes
	c.svr.RegisterGetRoute("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Admin Routes
	c.svr.RegisterGetRoute("/-/buildinfo", func(w http.ResponseWriter, r *http.Request) {
		b, _ := json.Marshal(c.buildInfo)
		w.Header().Set("Content-Type", "application/json")
		w.Write(b)
	})
	c.svr.RegisterGetRoute("/-/pipeline", func(w http.ResponseWriter, r *http.Request) {
		b, _ := json.Marshal(map[string]any{
			"runID":  c.runID,
			"source": c.src.Name(),
			"stages": c.src.Pipeline().StageNames(),
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(b)
	})
}
