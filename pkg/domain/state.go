package domain

// ReportRunState is the client's view of the remote script's execution.
type ReportRunState string

const (
	RunNotRunning       ReportRunState = "NOT_RUNNING"
	RunRunning          ReportRunState = "RUNNING"
	RunRerunRequested   ReportRunState = "RERUN_REQUESTED"
	RunStopRequested    ReportRunState = "STOP_REQUESTED"
	RunCompilationError ReportRunState = "COMPILATION_ERROR"
)

// ConnectionState is owned by the gateway. The engine only reads it.
type ConnectionState string

const (
	ConnInitial      ConnectionState = "INITIAL"
	ConnConnecting   ConnectionState = "CONNECTING"
	ConnConnected    ConnectionState = "CONNECTED"
	ConnStatic       ConnectionState = "STATIC"
	ConnDisconnected ConnectionState = "DISCONNECTED"
	ConnError        ConnectionState = "ERROR"
)

// CanSend reports whether outbound envelopes are admitted in this state.
func (c ConnectionState) CanSend() bool {
	return c == ConnConnected || c == ConnStatic
}

// UserSettings are the operator preferences kept per session.
type UserSettings struct {
	WideMode  bool `json:"wide_mode" mapstructure:"wide_mode"`
	RunOnSave bool `json:"run_on_save" mapstructure:"run_on_save"`
}

// DialogKind names the dialog the session asks the host to show.
type DialogKind string

const (
	DialogCompileError   DialogKind = "compile_error"
	DialogScriptChanged  DialogKind = "script_changed"
	DialogUploadProgress DialogKind = "upload_progress"
	DialogUploaded       DialogKind = "uploaded"
	DialogWarning        DialogKind = "warning"
	DialogLogin          DialogKind = "login"
)

// Dialog is the single dialog currently open for a session.
type Dialog struct {
	Kind      DialogKind       `json:"kind"`
	Message   string           `json:"message,omitempty"`
	Exception *ScriptException `json:"exception,omitempty"`
	Progress  int              `json:"progress,omitempty"`
	URL       string           `json:"url,omitempty"`
}

// View is a read-only snapshot of a session, safe to hand to other goroutines.
type View struct {
	SessionID      string          `json:"session_id"`
	ReportID       ReportID        `json:"report_id"`
	ReportName     string          `json:"report_name,omitempty"`
	CommandLine    string          `json:"command_line,omitempty"`
	RunState       ReportRunState  `json:"run_state"`
	Connection     ConnectionState `json:"connection"`
	Settings       UserSettings    `json:"settings"`
	SharingEnabled bool            `json:"sharing_enabled"`
	ServerVersion  string          `json:"server_version,omitempty"`
	Dialog         *Dialog         `json:"dialog,omitempty"`
	Elements       []ElementView   `json:"elements"`
	Widgets        map[string]any  `json:"widgets,omitempty"`
}

// ElementView is an Element as exposed in a View.
type ElementView struct {
	Element Element `json:"element"`
	Stale   bool    `json:"stale,omitempty"`
}

// Credentials authenticate a live connection after the server asked for a login.
type Credentials struct {
	User  string `json:"user,omitempty"`
	Token string `json:"token"`
}
