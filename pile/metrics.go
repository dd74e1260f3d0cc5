// Copyright (C) 2024 Tribles Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package pile

import "github.com/prometheus/client_golang/prometheus"

var (
	blobsAppended = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tribles",
		Subsystem: "pile",
		Name:      "blobs_appended_total",
		Help:      "Number of blob records successfully appended across all open piles.",
	})
	branchCasFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tribles",
		Subsystem: "pile",
		Name:      "branch_cas_failures_total",
		Help:      "Number of UpdateBranch calls that lost the compare-and-swap race.",
	})
	refreshScans = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tribles",
		Subsystem: "pile",
		Name:      "refresh_scans_total",
		Help:      "Number of record scans (by Refresh, Restore or UpdateBranch) that indexed at least one new record.",
	})
)

// Collectors returns the package's prometheus collectors so callers
// can register them with their own registry; this package never
// registers with prometheus.DefaultRegisterer itself.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{blobsAppended, branchCasFailures, refreshScans}
}
