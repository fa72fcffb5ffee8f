package types

// RecordLocationRequest is one device fix.  Timestamp is RFC3339.
type RecordLocationRequest struct {
	EmployeeID string   `json:"employee_id,omitempty"`
	Lat        *float64 `json:"lat"`
	Lon        *float64 `json:"lon"`
	AccuracyM  float64  `json:"accuracy_m,omitempty"`
	AltitudeM  *float64 `json:"altitude_m,omitempty"`
	Timestamp  string   `json:"timestamp"`
	Source     string   `json:"source,omitempty"`
	BatteryPct *int     `json:"battery_pct,omitempty"`
	DeviceInfo string   `json:"device_info,omitempty"`
	ZoneID     *int64   `json:"zone_id,omitempty"`
}

type ZoneRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

type RecordLocationResponse struct {
	SampleID       int64    `json:"sample_id"`
	Duplicate      bool     `json:"duplicate"`
	WithinZone     bool     `json:"within_zone"`
	Zone           *ZoneRef `json:"zone,omitempty"`
	DistanceMeters *float64 `json:"distance_m,omitempty"`
	AlertCreated   bool     `json:"alert_created"`
	AlertID        *int64   `json:"alert_id,omitempty"`
	ServerTime     string   `json:"server_time"`
}

type RecordLocationsRequest struct {
	Samples []RecordLocationRequest `json:"samples"`
}

// BatchItem carries either a result or an error for one input sample.
type BatchItem struct {
	Index  int                     `json:"index"`
	Result *RecordLocationResponse `json:"result,omitempty"`
	Error  *ErrorBody              `json:"error,omitempty"`
}

type RecordLocationsResponse struct {
	Results []BatchItem `json:"results"`
}

type LiveLocation struct {
	EmployeeID string   `json:"employee_id"`
	Lat        float64  `json:"lat"`
	Lon        float64  `json:"lon"`
	Timestamp  string   `json:"timestamp"`
	Zone       *ZoneRef `json:"zone,omitempty"`
	WithinZone bool     `json:"within_zone"`
	BatteryPct *int     `json:"battery_pct,omitempty"`
}

type LiveLocationsResponse struct {
	Locations  []LiveLocation `json:"locations"`
	ServerTime string         `json:"server_time"`
}

// Sample is the full stored record including derived fields.
type Sample struct {
	ID             int64    `json:"id"`
	EmployeeID     string   `json:"employee_id,omitempty"`
	Lat            float64  `json:"lat"`
	Lon            float64  `json:"lon"`
	AccuracyM      float64  `json:"accuracy_m"`
	AltitudeM      *float64 `json:"altitude_m,omitempty"`
	Timestamp      string   `json:"timestamp"`
	ReceivedAt     string   `json:"received_at"`
	Source         string   `json:"source"`
	BatteryPct     *int     `json:"battery_pct,omitempty"`
	DeviceInfo     string   `json:"device_info,omitempty"`
	ZoneID         *int64   `json:"zone_id,omitempty"`
	WithinZone     bool     `json:"within_zone"`
	DistanceMeters *float64 `json:"distance_m,omitempty"`
	ActiveSession  bool     `json:"active_session"`
}

type HistoryResponse struct {
	EmployeeID string   `json:"employee_id"`
	From       string   `json:"from"`
	To         string   `json:"to"`
	Samples    []Sample `json:"samples"`
}

type StatsResponse struct {
	Ingested      uint64 `json:"ingested"`
	Duplicates    uint64 `json:"duplicates"`
	Unmonitored   uint64 `json:"unmonitored"`
	AlertFailures uint64 `json:"alert_failures"`
	ServerTime    string `json:"server_time"`
}

type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
