package connectivity

import (
	"context"
	"net"
)

// HostLinkUp reports whether any non-loopback interface is up and has an
// address.
func HostLinkUp() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, ifc := range ifaces {
		if ifc.Flags&net.FlagUp == 0 || ifc.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := ifc.Addrs()
		if err == nil && len(addrs) > 0 {
			return true
		}
	}
	return false
}

// LinkPoller turns a polled link check into LinkUp/LinkDown events.
type LinkPoller struct {
	m     *Monitor
	check func() bool
	last  bool
}

// NewLinkPoller starts from the given initial link state; check defaults to
// HostLinkUp.
func NewLinkPoller(m *Monitor, initial bool, check func() bool) *LinkPoller {
	if check == nil {
		check = HostLinkUp
	}
	return &LinkPoller{m: m, check: check, last: initial}
}

// Poll is meant to run as a scheduler job.
func (p *LinkPoller) Poll(ctx context.Context) {
	up := p.check()
	if up == p.last {
		return
	}
	p.last = up
	if up {
		p.m.LinkUp(ctx)
	} else {
		p.m.LinkDown(ctx)
	}
}
