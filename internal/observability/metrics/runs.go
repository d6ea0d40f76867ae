// Package metrics provides Prometheus instrumentation for solido-verify.
package metrics

// RunSubmit records a submitted verification run.
func RunSubmit(network, status string) {
	if !enabled {
		return
	}
	runSubmitTotal.WithLabelValues(network, status).Inc()
}

// RunReplayMismatch records a run whose claimed summary disagreed with
// the replayed one.
func RunReplayMismatch() {
	if !enabled {
		return
	}
	runReplayMismatchTotal.Inc()
}

// TransactionVerified records one replayed transaction verdict.
func TransactionVerified(instruction, status string) {
	if !enabled {
		return
	}
	transactionVerifiedTotal.WithLabelValues(instruction, status).Inc()
}
