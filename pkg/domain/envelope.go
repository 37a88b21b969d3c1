package domain

// Inbound tags.
const (
	TagInitialize           = "initialize"
	TagSessionStateChanged  = "sessionStateChanged"
	TagSessionEvent         = "sessionEvent"
	TagNewReport            = "newReport"
	TagDelta                = "delta"
	TagReportFinished       = "reportFinished"
	TagUploadReportProgress = "uploadReportProgress"
	TagReportUploaded       = "reportUploaded"
)

// Outbound tags.
const (
	TagRerunScript  = "rerunScript"
	TagStopReport   = "stopReport"
	TagClearCache   = "clearCache"
	TagSetRunOnSave = "setRunOnSave"
	TagCloudUpload  = "cloudUpload"
	TagUpdateWidget = "updateWidget"
)

// Inbound is a message received from the server.
// The set of implementations is closed; UnknownInbound stands for any tag
// the codec did not recognise.
type Inbound interface {
	Tag() string
	isInbound()
}

// Outbound is a message sent to the server.
type Outbound interface {
	Tag() string
	isOutbound()
}

// SessionState is the server's account of the session.
type SessionState struct {
	ReportIsRunning bool `json:"report_is_running"`
	RunOnSave       bool `json:"run_on_save"`
}

// Initialize is the first envelope of a live connection.
type Initialize struct {
	SessionState   SessionState `json:"session_state"`
	SharingEnabled bool         `json:"sharing_enabled"`
	ServerVersion  string       `json:"server_version,omitempty"`
	InstallationID string       `json:"installation_id,omitempty"`
}

// SessionStateChanged reports a new SessionState.
type SessionStateChanged struct {
	SessionState
}

// SessionEventType names a SessionEvent variant.
type SessionEventType string

const (
	EventScriptCompilationException SessionEventType = "scriptCompilationException"
	EventReportChangedOnDisk        SessionEventType = "reportChangedOnDisk"
)

// ScriptException describes a script that failed to compile.
type ScriptException struct {
	Type       string   `json:"type,omitempty"`
	Message    string   `json:"message"`
	StackTrace []string `json:"stack_trace,omitempty"`
}

// SessionEvent is an out-of-band session notification.
type SessionEvent struct {
	Type      SessionEventType `json:"type"`
	Exception *ScriptException `json:"exception,omitempty"`
}

// NewReport announces a new execution of the script.
type NewReport struct {
	ID          ReportID `json:"id"`
	Name        string   `json:"name"`
	CommandLine []string `json:"command_line,omitempty"`
}

// Delta creates or extends the element at ID.
type Delta struct {
	ID   int       `json:"id"`
	Body DeltaBody `json:"-"`
}

// DeltaBody is either NewElement or AddRows.
type DeltaBody interface {
	isDeltaBody()
}

// NewElement replaces the slot with a fresh element.
type NewElement struct {
	Payload Payload
}

// AddRows appends rows to the tabular element in the slot.
type AddRows struct {
	Rows NamedDataSet
}

// ReportFinished marks the end of the current execution.
type ReportFinished struct{}

// UploadReportProgress reports the progress of a cloud upload, in percent.
type UploadReportProgress struct {
	Percent int `json:"percent"`
}

// ReportUploaded carries the URL of a shared report.
type ReportUploaded struct {
	URL string `json:"url"`
}

// UnknownInbound is produced by the codec for tags outside the known set.
type UnknownInbound struct {
	Name string
}

func (Initialize) Tag() string           { return TagInitialize }
func (SessionStateChanged) Tag() string  { return TagSessionStateChanged }
func (SessionEvent) Tag() string         { return TagSessionEvent }
func (NewReport) Tag() string            { return TagNewReport }
func (Delta) Tag() string                { return TagDelta }
func (ReportFinished) Tag() string       { return TagReportFinished }
func (UploadReportProgress) Tag() string { return TagUploadReportProgress }
func (ReportUploaded) Tag() string       { return TagReportUploaded }
func (u UnknownInbound) Tag() string     { return u.Name }

func (Initialize) isInbound()           {}
func (SessionStateChanged) isInbound()  {}
func (SessionEvent) isInbound()         {}
func (NewReport) isInbound()            {}
func (Delta) isInbound()                {}
func (ReportFinished) isInbound()       {}
func (UploadReportProgress) isInbound() {}
func (ReportUploaded) isInbound()       {}
func (UnknownInbound) isInbound()       {}

func (NewElement) isDeltaBody() {}
func (AddRows) isDeltaBody()    {}

// RerunScript asks the server to run the script again.
type RerunScript struct {
	CommandLine string `json:"command_line"`
}

// StopReport asks the server to stop the running script.
type StopReport struct{}

// ClearCache asks the server to drop its computation cache.
type ClearCache struct{}

// SetRunOnSave toggles rerunning the script when its source changes.
type SetRunOnSave struct {
	Value bool `json:"value"`
}

// CloudUpload asks the server to publish the current report.
type CloudUpload struct{}

// UpdateWidget sets the current value of a widget. Only the latest value matters.
type UpdateWidget struct {
	WidgetID string `json:"widget_id"`
	Value    any    `json:"value"`
}

func (RerunScript) Tag() string  { return TagRerunScript }
func (StopReport) Tag() string   { return TagStopReport }
func (ClearCache) Tag() string   { return TagClearCache }
func (SetRunOnSave) Tag() string { return TagSetRunOnSave }
func (CloudUpload) Tag() string  { return TagCloudUpload }
func (UpdateWidget) Tag() string { return TagUpdateWidget }

func (RerunScript) isOutbound()  {}
func (StopReport) isOutbound()   {}
func (ClearCache) isOutbound()   {}
func (SetRunOnSave) isOutbound() {}
func (CloudUpload) isOutbound()  {}
func (UpdateWidget) isOutbound() {}
