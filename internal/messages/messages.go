// Package messages declares the message types exchanged between manager scripts.
package messages

import (
	"errors"
	"fmt"
	"slices"

	"github.com/agnivade/levenshtein"

	"github.com/hay-kot/portbus/internal/core/comms"
)

// GrowStatus is the lifecycle stage reported by a GrowEvent.
type GrowStatus string

const (
	GrowStarted  GrowStatus = "STARTED"
	GrowComplete GrowStatus = "COMPLETE"
)

// Grow is the payload of a grow event.
type Grow struct {
	Status  GrowStatus `json:"status,omitempty"`
	Target  string     `json:"target,omitempty"`
	Threads int        `json:"threads,omitempty"`
}

// ConfigChanged carries the configuration a manager switched to.
type ConfigChanged struct {
	Config map[string]any `json:"config,omitempty"`
}

// Listing is one stock symbol as seen by the listings manager.
type Listing struct {
	Symbol   string  `json:"symbol"`
	Price    float64 `json:"price"`
	Forecast float64 `json:"forecast,omitempty"`
	Shares   int64   `json:"shares,omitempty"`
}

// Listings is the payload of the listing event, request and response.
type Listings struct {
	Listings []Listing `json:"listings,omitempty"`
}

var (
	GrowEvent          = comms.Define[Grow]("grow", comms.KindEvent)
	ConfigChangedEvent = comms.Define[ConfigChanged]("config-changed", comms.KindEvent)

	ListingsChangedEvent = comms.Define[Listings]("stock-listings-changed", comms.KindEvent)
	ListingsRequest      = comms.Define[Listings]("stock-listings-request", comms.KindRequest)
	ListingsResponse     = comms.Define[Listings]("stock-listings-response", comms.KindResponse)
)

// Info describes a known message type.
type Info struct {
	Name string     `json:"name"`
	Kind comms.Kind `json:"kind"`
}

var known = []Info{
	{Name: GrowEvent.Name, Kind: GrowEvent.Kind},
	{Name: ConfigChangedEvent.Name, Kind: ConfigChangedEvent.Kind},
	{Name: ListingsChangedEvent.Name, Kind: ListingsChangedEvent.Kind},
	{Name: ListingsRequest.Name, Kind: ListingsRequest.Kind},
	{Name: ListingsResponse.Name, Kind: ListingsResponse.Kind},
}

// ErrUnknownType is returned by Lookup for names that are not declared here.
var ErrUnknownType = errors.New("unknown message type")

// All returns every declared message type.
func All() []Info {
	return slices.Clone(known)
}

// Lookup returns the declared type called name. For unknown names the error suggests
// the closest declared name.
func Lookup(name string) (Info, error) {
	for _, info := range known {
		if info.Name == name {
			return info, nil
		}
	}

	if s := Suggest(name); s != "" {
		return Info{}, fmt.Errorf("%w %q, did you mean %q?", ErrUnknownType, name, s)
	}
	return Info{}, fmt.Errorf("%w %q", ErrUnknownType, name)
}

// Suggest returns the declared name closest to name, or "" when nothing is close.
func Suggest(name string) string {
	best, bestDist := "", -1
	for _, info := range known {
		d := levenshtein.ComputeDistance(name, info.Name)
		if bestDist < 0 || d < bestDist {
			best, bestDist = info.Name, d
		}
	}

	if bestDist < 0 || bestDist > len(best)/3 {
		return ""
	}
	return best
}
