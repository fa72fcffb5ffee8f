package types

type Alert struct {
	ID              int64    `json:"id"`
	EmployeeID      string   `json:"employee_id"`
	ZoneID          *int64   `json:"zone_id,omitempty"`
	SampleID        *int64   `json:"sample_id,omitempty"`
	Kind            string   `json:"kind"`
	Severity        string   `json:"severity"`
	Title           string   `json:"title"`
	Message         string   `json:"message"`
	Status          string   `json:"status"`
	Resolved        bool     `json:"resolved"`
	Recipients      []string `json:"recipients"`
	CreatedAt       string   `json:"created_at"`
	AcknowledgedBy  string   `json:"acknowledged_by,omitempty"`
	AcknowledgedAt  string   `json:"acknowledged_at,omitempty"`
	ResolvedBy      string   `json:"resolved_by,omitempty"`
	ResolvedAt      string   `json:"resolved_at,omitempty"`
	ResolutionNotes string   `json:"resolution_notes,omitempty"`
}

type AlertsResponse struct {
	Alerts []Alert `json:"alerts"`
}

type SeverityGroup struct {
	Severity string  `json:"severity"`
	Count    int     `json:"count"`
	Alerts   []Alert `json:"alerts"`
}

type AlertsBySeverityResponse struct {
	Groups []SeverityGroup `json:"groups"`
}

// AlertActionRequest is the body of acknowledge, resolve and false-alarm.
// AlertID is only read by transports that do not carry it in the path.
type AlertActionRequest struct {
	AlertID int64  `json:"alert_id,omitempty"`
	ActorID string `json:"actor_id"`
	Notes   string `json:"notes,omitempty"`
}

// Query parameters for the gRPC read methods; HTTP carries them in the URL.

type LiveLocationsQuery struct {
	MaxAgeSeconds int64 `json:"max_age_s"`
}

type HistoryQuery struct {
	EmployeeID string `json:"employee_id"`
	From       string `json:"from,omitempty"`
	To         string `json:"to,omitempty"`
}

type AlertsQuery struct {
	Kind     string `json:"kind,omitempty"`
	Severity string `json:"severity,omitempty"`
}
