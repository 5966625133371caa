// Package reply exposes classified inbound replies to operators.
//
// Replies are created by the mailbox poller worker; this package only
// reads them and records the operator's "actioned" acknowledgement for
// replies that need a human follow-up.
package reply
