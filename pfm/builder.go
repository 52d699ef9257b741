// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pfm

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	errInvalidPort     = errors.New("invalid port identifier")
	errInvalidChannel  = errors.New("invalid channel identifier")
	errMissingTimeout  = errors.New("ibc hop requires a timeout")
	errUnknownRoute    = errors.New("unknown route kind")
	errTooDeep         = errors.New("forward memo exceeds hop bound")
	errRetriesExceeded = errors.New("next hop retries more than its parent allows")

	// ICS-24 identifier grammar.
	portPattern    = regexp.MustCompile(`^[a-zA-Z0-9._+\-#\[\]<>]{2,128}$`)
	channelPattern = regexp.MustCompile(`^channel-[0-9]{1,20}$`)
)

type RouteKind uint8

const (
	// RouteIBC is a generic bridging hop over an IBC channel.
	RouteIBC RouteKind = iota
	// RouteSubstrate is a hop inside a parachain ecosystem.
	RouteSubstrate
)

func (k RouteKind) String() string {
	switch k {
	case RouteIBC:
		return "ibc"
	case RouteSubstrate:
		return "substrate"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

func (k RouteKind) MarshalText() ([]byte, error) {
	if k != RouteIBC && k != RouteSubstrate {
		return nil, errUnknownRoute
	}
	return []byte(k.String()), nil
}

func (k *RouteKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "ibc":
		*k = RouteIBC
	case "substrate":
		*k = RouteSubstrate
	default:
		return fmt.Errorf("%w: %q", errUnknownRoute, b)
	}
	return nil
}

// Route holds the routing fields of a single hop. It is flat so that it can
// be persisted with the codec.
type Route struct {
	Kind    RouteKind `serialize:"true" json:"kind"`
	Port    string    `serialize:"true" json:"port,omitempty"`
	Channel string    `serialize:"true" json:"channel,omitempty"`
	Timeout string    `serialize:"true" json:"timeout,omitempty"`
	Retries uint8     `serialize:"true" json:"retries,omitempty"`
	// ParaID of the target parachain, 0 routes to the relay chain.
	ParaID uint32 `serialize:"true" json:"para_id,omitempty"`
}

func IBCRoute(port, channel, timeout string, retries uint8) Route {
	return Route{
		Kind:    RouteIBC,
		Port:    port,
		Channel: channel,
		Timeout: timeout,
		Retries: retries,
	}
}

// ParachainRoute routes to parachain [paraID], or to the relay chain when it
// is 0.
func ParachainRoute(paraID uint32) Route {
	return Route{Kind: RouteSubstrate, ParaID: paraID}
}

func (r Route) validate() error {
	switch r.Kind {
	case RouteIBC:
		if !portPattern.MatchString(r.Port) {
			return fmt.Errorf("%w: %q", errInvalidPort, r.Port)
		}
		if !channelPattern.MatchString(r.Channel) {
			return fmt.Errorf("%w: %q", errInvalidChannel, r.Channel)
		}
		if r.Timeout == "" {
			return errMissingTimeout
		}
		return nil
	case RouteSubstrate:
		return nil
	default:
		return errUnknownRoute
	}
}

func (r Route) node(receiver string) *Forward {
	f := &Forward{Receiver: receiver}
	switch r.Kind {
	case RouteIBC:
		port, channel, timeout, retries := r.Port, r.Channel, r.Timeout, r.Retries
		f.Port = &port
		f.Channel = &channel
		f.Timeout = &timeout
		f.Retries = &retries
	case RouteSubstrate:
		f.Substrate = &SubstrateRoute{}
		if r.ParaID != 0 {
			paraID := r.ParaID
			f.Substrate.ParaID = &paraID
		}
	}
	return f
}

// Hop is a route together with the receiver on the far side of it.
type Hop struct {
	Receiver string `serialize:"true" json:"receiver"`
	Route    Route  `serialize:"true" json:"route"`
}

// Build returns the memo node sending to [receiver] over [route] and, if
// [remaining] is not empty, the chain of nodes for the hops after it.
func Build(receiver string, route Route, remaining []Hop) (*Forward, error) {
	if receiver == "" {
		return nil, errMissingReceiver
	}
	if err := route.validate(); err != nil {
		return nil, err
	}
	node := route.node(receiver)
	if len(remaining) == 0 {
		return node, nil
	}

	next, err := Build(remaining[0].Receiver, remaining[0].Route, remaining[1:])
	if err != nil {
		return nil, err
	}
	if err := checkRetries(node, next); err != nil {
		return nil, err
	}
	node.Next = next
	return node, nil
}

// BuildPath builds the memo for a whole path of hops.
func BuildPath(hops []Hop) (*Forward, error) {
	if len(hops) == 0 {
		return nil, errors.New("empty forwarding path")
	}
	return Build(hops[0].Receiver, hops[0].Route, hops[1:])
}

func checkRetries(parent, child *Forward) error {
	if parent.Retries == nil || child.Retries == nil {
		return nil
	}
	if *child.Retries > *parent.Retries {
		return fmt.Errorf("%w: %d > %d", errRetriesExceeded, *child.Retries, *parent.Retries)
	}
	return nil
}

// Validate checks a memo received from outside against the same rules Build
// enforces, with at most [maxDepth] nodes.
func (f *Forward) Validate(maxDepth int) error {
	if depth := f.Depth(); depth > maxDepth {
		return fmt.Errorf("%w: %d > %d", errTooDeep, depth, maxDepth)
	}
	for node := f; node != nil; node = node.Next {
		if node.Receiver == "" {
			return errMissingReceiver
		}
		if node.Port != nil && !portPattern.MatchString(*node.Port) {
			return fmt.Errorf("%w: %q", errInvalidPort, *node.Port)
		}
		if node.Channel != nil && !channelPattern.MatchString(*node.Channel) {
			return fmt.Errorf("%w: %q", errInvalidChannel, *node.Channel)
		}
		if node.Next != nil {
			if err := checkRetries(node, node.Next); err != nil {
				return err
			}
		}
	}
	return nil
}
