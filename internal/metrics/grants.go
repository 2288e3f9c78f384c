// Package metrics provides Prometheus metrics for grant issue and stream relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// No content ids or tokens in labels: cardinality stays bounded.

var (
	// GrantsIssuedTotal counts signed grants by media kind.
	GrantsIssuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelgate_grants_issued_total",
		Help: "Total number of stream grants issued, by media kind.",
	}, []string{"media_kind"})

	// GrantsRejectedTotal counts refused issue or redeem attempts by reason.
	GrantsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelgate_grants_rejected_total",
		Help: "Total number of rejected grant requests, by reason (validation, missing, malformed, bad_signature, expired).",
	}, []string{"reason"})

	// GrantsRedeemedTotal counts grants that passed verification at the gateway.
	GrantsRedeemedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reelgate_grants_redeemed_total",
		Help: "Total number of grants successfully verified by the streaming gateway.",
	})

	// DownloadLinksTotal counts generated download link pairs.
	DownloadLinksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelgate_download_links_total",
		Help: "Total number of download link pairs generated, by whether the direct link was shortened.",
	}, []string{"shortened"})
)

// IncGrantIssued records one issued grant.
func IncGrantIssued(kind string) {
	GrantsIssuedTotal.WithLabelValues(kind).Inc()
}

// IncGrantRejected records one rejected grant request.
func IncGrantRejected(reason string) {
	GrantsRejectedTotal.WithLabelValues(reason).Inc()
}

// IncGrantRedeemed records one verified grant.
func IncGrantRedeemed() {
	GrantsRedeemedTotal.Inc()
}

// IncDownloadLinks records one generated download link pair.
func IncDownloadLinks(shortened bool) {
	label := "false"
	if shortened {
		label = "true"
	}
	DownloadLinksTotal.WithLabelValues(label).Inc()
}
