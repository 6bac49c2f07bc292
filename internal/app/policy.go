package app

import "strings"

// HostClaim is what a handshake asks for regarding the host slot.
type HostClaim int

const (
	ClaimNone HostClaim = iota
	// ClaimForce demotes any current host in favour of the new connection.
	ClaimForce
)

// Policy turns handshake parameters into a host claim.
type Policy interface {
	OnHandshake(forceHost, role string) HostClaim
}

// SimplePolicy forces host on ?force_host=<anything but 0> or ?role=host.
type SimplePolicy struct{}

func (SimplePolicy) OnHandshake(forceHost, role string) HostClaim {
	if (forceHost != "" && forceHost != "0") || strings.EqualFold(role, "host") {
		return ClaimForce
	}
	return ClaimNone
}
