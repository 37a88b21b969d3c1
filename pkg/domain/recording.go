package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Recording is an archived report: the envelopes that produced it, in arrival order.
// Replaying them against an empty session rebuilds the document.
type Recording struct {
	ReportID    ReportID  `json:"report_id"`
	Name        string    `json:"name"`
	CommandLine string    `json:"command_line,omitempty"`
	RecordedAt  time.Time `json:"recorded_at"`
	Envelopes   []Inbound `json:"-"`

	// Sealed holds the encrypted recording when an archive stores it sealed.
	// Envelopes and CommandLine are empty then.
	Sealed []byte `json:"-"`
}

// Summary returns the archive index entry for the recording.
func (r *Recording) Summary() ReportSummary {
	return ReportSummary{
		ReportID:   r.ReportID,
		Name:       r.Name,
		RecordedAt: r.RecordedAt,
		Envelopes:  len(r.Envelopes),
	}
}

// ReportSummary is what archives list without loading whole recordings.
type ReportSummary struct {
	ReportID   ReportID  `json:"report_id" yaml:"report_id" mapstructure:"report_id"`
	Name       string    `json:"name" yaml:"name" mapstructure:"name"`
	RecordedAt time.Time `json:"recorded_at" yaml:"recorded_at" mapstructure:"recorded_at"`
	Envelopes  int       `json:"envelopes" yaml:"envelopes" mapstructure:"envelopes"`
}

type recordingJSON struct {
	ReportID    ReportID          `json:"report_id"`
	Name        string            `json:"name"`
	CommandLine string            `json:"command_line,omitempty"`
	RecordedAt  time.Time         `json:"recorded_at"`
	Envelopes   []json.RawMessage `json:"envelopes"`
	Sealed      []byte            `json:"sealed,omitempty"`
}

// MarshalJSON encodes the recording with framed envelopes.
func (r Recording) MarshalJSON() ([]byte, error) {
	out := recordingJSON{
		ReportID:    r.ReportID,
		Name:        r.Name,
		CommandLine: r.CommandLine,
		RecordedAt:  r.RecordedAt,
		Envelopes:   make([]json.RawMessage, 0, len(r.Envelopes)),
		Sealed:      r.Sealed,
	}
	for i, env := range r.Envelopes {
		frame, err := EncodeInbound(env)
		if err != nil {
			return nil, fmt.Errorf("envelope %d: %w", i, err)
		}
		out.Envelopes = append(out.Envelopes, frame)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a recording written by MarshalJSON.
func (r *Recording) UnmarshalJSON(data []byte) error {
	var raw recordingJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.ReportID = raw.ReportID
	r.Name = raw.Name
	r.CommandLine = raw.CommandLine
	r.RecordedAt = raw.RecordedAt
	r.Sealed = raw.Sealed
	r.Envelopes = make([]Inbound, 0, len(raw.Envelopes))
	for i, frame := range raw.Envelopes {
		env, err := DecodeInbound(frame)
		if err != nil {
			return fmt.Errorf("envelope %d: %w", i, err)
		}
		r.Envelopes = append(r.Envelopes, env)
	}
	return nil
}
