// ABOUTME: This file defines content calendar records fed from the sheet feed
// ABOUTME: Status and funnel stage values are normalized from free-form input

package models

// Content calendar status values after normalization.
const (
	CalendarStatusPublished = "Published"
	CalendarStatusPending   = "Pending"
	CalendarStatusAssigned  = "Assigned"
	CalendarStatusUnset     = "Unset"
)

// FunnelStages is the display order of content funnel stages.
var FunnelStages = []string{"Awareness", "Consideration", "Conversion", "Retention"}

// CalendarRow is one content calendar entry within the requested month.
type CalendarRow struct {
	Sheet   string `json:"sheet"`
	Topic   string `json:"topic"`
	Type    string `json:"type"`
	Owner   string `json:"owner"`
	Status  string `json:"status"`
	Funnel  string `json:"funnel"`
	Date    string `json:"date"`
	LinkYT  string `json:"link_yt"`
	LinkIG  string `json:"link_insta"`
	LinkFB  string `json:"link_fb"`
	Remarks string `json:"remarks"`
}

// CalendarCourseSummary rolls up calendar rows per source sheet.
type CalendarCourseSummary struct {
	Name      string `json:"name"`
	Total     int    `json:"total"`
	Published int    `json:"published"`
	Pending   int    `json:"pending"`
}

// FunnelStageCount is the number of calendar rows per content funnel stage.
type FunnelStageCount struct {
	Stage string `json:"stage"`
	Count int    `json:"count"`
}

// CalendarPanel is the content calendar view for one month.
type CalendarPanel struct {
	Meta        WindowMeta              `json:"meta"`
	Total       int                     `json:"total"`
	Published   int                     `json:"published"`
	Pending     int                     `json:"pending"`
	Assigned    int                     `json:"assigned"`
	PublishRate int                     `json:"publish_rate"`
	Courses     []CalendarCourseSummary `json:"courses"`
	Funnel      []FunnelStageCount      `json:"funnel"`
	Rows        []CalendarRow           `json:"rows"`
}
