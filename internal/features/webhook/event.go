package webhook

import (
	"encoding/json"
	"strings"
)

const (
	KindDelivered = "delivered"
	KindOpen      = "open"
	KindClick     = "click"
)

// Event is the subset of a provider event the pipeline acts on.
type Event struct {
	Kind        string
	CampaignID  string
	UserAgent   string
	MachineOpen bool
	Country     string
}

type providerEvent struct {
	Event      string `json:"event"`
	CampaignID string `json:"campaignId"`
	CustomArgs *struct {
		CampaignID string `json:"campaignId"`
	} `json:"custom_args"`
	UserAgent   string `json:"useragent"`
	MachineOpen bool   `json:"sg_machine_open"`
	GeoIP       *struct {
		Country string `json:"country"`
	} `json:"geoip"`
}

// ParseEvent decodes one provider event. The campaign id is taken from the
// top level first, then from the custom arguments block.
func ParseEvent(raw json.RawMessage) (Event, error) {
	var pe providerEvent
	if err := json.Unmarshal(raw, &pe); err != nil {
		return Event{}, err
	}

	e := Event{
		Kind:        strings.ToLower(strings.TrimSpace(pe.Event)),
		CampaignID:  strings.TrimSpace(pe.CampaignID),
		UserAgent:   pe.UserAgent,
		MachineOpen: pe.MachineOpen,
	}
	if e.CampaignID == "" && pe.CustomArgs != nil {
		e.CampaignID = strings.TrimSpace(pe.CustomArgs.CampaignID)
	}
	if pe.GeoIP != nil {
		e.Country = strings.TrimSpace(pe.GeoIP.Country)
	}
	return e, nil
}
