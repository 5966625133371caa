package logger

import "strings"

// RedactEmail masks the local part of a lead or recipient address so
// log lines stay correlatable by domain without exposing the contact.
// Two leading characters survive when the local part is long enough;
// anything that does not look like an address is masked entirely.
func RedactEmail(addr string) string {
	at := strings.IndexByte(addr, '@')
	if at < 0 || strings.IndexByte(addr[at+1:], '@') >= 0 {
		return "***@***"
	}
	local, domain := addr[:at], addr[at+1:]
	if len(local) <= 2 {
		return "***@" + domain
	}
	return local[:2] + "***@" + domain
}
