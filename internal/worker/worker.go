// Package worker contains the background processes: the sequencer that
// sends due campaign steps and the mailbox poller that ingests and
// classifies replies. Workers talk to the database directly and report
// liveness through the workers table.
package worker

import "os"

func getHostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "outreach-worker"
	}
	return h
}
