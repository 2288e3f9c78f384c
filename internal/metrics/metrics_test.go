// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestGrantCounters(t *testing.T) {
	before := testutil.ToFloat64(GrantsIssuedTotal.WithLabelValues("movie"))
	IncGrantIssued("movie")
	assert.Equal(t, before+1, testutil.ToFloat64(GrantsIssuedTotal.WithLabelValues("movie")))

	beforeRej := testutil.ToFloat64(GrantsRejectedTotal.WithLabelValues("expired"))
	IncGrantRejected("expired")
	assert.Equal(t, beforeRej+1, testutil.ToFloat64(GrantsRejectedTotal.WithLabelValues("expired")))
}

func TestRelayMetrics(t *testing.T) {
	before := testutil.ToFloat64(RelayBytesTotal)
	AddRelayBytes(1024)
	AddRelayBytes(-5)
	assert.Equal(t, before+1024, testutil.ToFloat64(RelayBytesTotal))

	IncActiveRelays()
	active := testutil.ToFloat64(ActiveRelays)
	DecActiveRelays()
	assert.Equal(t, active-1, testutil.ToFloat64(ActiveRelays))

	okBefore := testutil.ToFloat64(OriginRequestsTotal.WithLabelValues("ok", "206"))
	ObserveOrigin("ok", 206, 20*time.Millisecond)
	assert.Equal(t, okBefore+1, testutil.ToFloat64(OriginRequestsTotal.WithLabelValues("ok", "206")))

	IncDownloadLinks(true)
	assert.GreaterOrEqual(t, testutil.ToFloat64(DownloadLinksTotal.WithLabelValues("true")), 1.0)
}
