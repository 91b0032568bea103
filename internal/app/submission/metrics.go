package submission

import "expvar"

var (
	metricSubmissionsTotal   = expvar.NewInt("submissions_total")
	metricAcceptedTotal      = expvar.NewInt("submissions_accepted_total")
	metricRejectedByClass    = expvar.NewMap("submissions_rejected_by_class")
	metricRejectedByReason   = expvar.NewMap("submissions_rejected_by_reason")
	metricInfraFailuresTotal = expvar.NewInt("submissions_infrastructure_failures_total")
	metricRewardIssuedTotal  = expvar.NewFloat("rewards_recorded_total")
)
