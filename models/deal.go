// ABOUTME: This file defines CRM domain records used by the Buy funnel stage
// ABOUTME: Field values arrive as vendor property strings and are parsed on use

package models

import "strings"

// Deal is a CRM deal as returned by the deal search endpoint. CloseDate and
// Amount keep the vendor's string form; parsing happens per record so one
// malformed deal never aborts a whole fetch.
type Deal struct {
	ID        string
	Name      string
	Amount    string
	CloseDate string
	StageID   string
	OwnerID   string
}

// DealOwner identifies a CRM user who can own deals.
type DealOwner struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
}

// DisplayName derives a human-readable owner name, falling back to the email
// local part and then the raw ID.
func (o DealOwner) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(o.FirstName) + " " + strings.TrimSpace(o.LastName))
	if name != "" {
		return name
	}
	if o.Email != "" {
		if at := strings.Index(o.Email, "@"); at > 0 {
			return o.Email[:at]
		}
		return o.Email
	}
	return "Owner " + o.ID
}

// PipelineStage is one stage of a CRM deal pipeline.
type PipelineStage struct {
	ID            string
	Label         string
	PipelineID    string
	PipelineLabel string
	Probability   string
}

// DealWindowStats aggregates the deals closed inside one window.
type DealWindowStats struct {
	Count   int
	Revenue float64
	Daily   []TrendPoint
}
