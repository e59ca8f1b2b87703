// Package session implements spec.md §4.10–§4.12's orchestrators:
// TxSession drives a send, RxSession drives a receive, and VerifySession
// re-hashes local files against a journal.
package session

import (
	"net"
	"strconv"
)

// Target is one dial/listen endpoint: the control channel ("service")
// or one data channel, per SessionConfig in spec.md §4.10.
type Target struct {
	Host string
	Port int
}

// Addr returns the host:port form net.Dial/net.Listen expect.
func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}
