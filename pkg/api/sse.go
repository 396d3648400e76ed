// Copyright 2026 TVFleet Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
)

// keepAliveInterval is how often a comment line is written so intermediate
// proxies do not drop an otherwise idle stream.
const keepAliveInterval = 15 * time.Second

// streamEvents serves the debounced event stream over server-sent events.
// Each event is tagged with its family so clients can route by type.
func (s *Server) streamEvents(c *gin.Context) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		respondError(c, http.StatusInternalServerError, "streaming_unsupported",
			fmt.Errorf("response writer does not support flushing"))
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub, unsubscribe := s.broadcaster.Subscribe()
	defer unsubscribe()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return

		case <-keepAlive.C:
			fmt.Fprint(c.Writer, ": keep-alive\n\n")
			flusher.Flush()

		case ev, open := <-sub:
			if !open {
				return
			}

			data, err := json.Marshal(ev.Payload)
			if err != nil {
				s.log.Warnf("marshalling %s event: %v", ev.Family, err)
				continue
			}

			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", ev.Family, data)
			flusher.Flush()
		}
	}
}
