package loam

import (
	"time"

	"github.com/aretw0/vitrine/pkg/domain"
)

// ReportMetadata is the frontmatter of an archived report.
// RecordedAt stays a string so YAML timestamp handling cannot reinterpret it.
type ReportMetadata struct {
	ID          string `json:"id" yaml:"id" mapstructure:"id"`
	Name        string `json:"name" yaml:"name" mapstructure:"name"`
	CommandLine string `json:"command_line,omitempty" yaml:"command_line,omitempty" mapstructure:"command_line"`
	RecordedAt  string `json:"recorded_at" yaml:"recorded_at" mapstructure:"recorded_at"`
	Envelopes   int    `json:"envelopes" yaml:"envelopes" mapstructure:"envelopes"`
}

// Summary converts the frontmatter into an index entry. An unparsable
// timestamp yields the zero time.
func (m ReportMetadata) Summary(id domain.ReportID) domain.ReportSummary {
	at, _ := time.Parse(time.RFC3339Nano, m.RecordedAt)
	return domain.ReportSummary{
		ReportID:   id,
		Name:       m.Name,
		RecordedAt: at,
		Envelopes:  m.Envelopes,
	}
}
