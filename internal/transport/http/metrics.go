package httptransport

import "expvar"

var (
	metricSubmitRequestsTotal    = expvar.NewInt("http_submit_requests_total")
	metricSubmitBadRequestTotal  = expvar.NewInt("http_submit_bad_request_total")
	metricSubmitUnavailableTotal = expvar.NewInt("http_submit_unavailable_total")
	metricQuoteRequestsTotal     = expvar.NewInt("http_quote_requests_total")
)
