package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Envelopes travel as JSON objects tagged by a "type" field whose value also
// names the key that holds the body:
//
//	{"type": "delta", "delta": {"id": 3, "type": "newElement", "newElement": {...}}}
//
// Element payloads and delta bodies use the same layout one level down.

const (
	deltaNewElement = "newElement"
	deltaAddRows    = "addRows"
)

func tagged(tag string, body any) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	t, _ := json.Marshal(tag)
	return json.Marshal(map[string]json.RawMessage{
		"type": t,
		tag:    raw,
	})
}

func untag(data []byte) (string, json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return "", nil, err
	}
	var tag string
	if raw, ok := fields["type"]; ok {
		if err := json.Unmarshal(raw, &tag); err != nil {
			return "", nil, fmt.Errorf("invalid type field: %w", err)
		}
	}
	return tag, fields[tag], nil
}

func decodeBody(tag string, body json.RawMessage, v any) error {
	if len(body) == 0 || string(body) == "null" {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", tag, err)
	}
	return nil
}

// MarshalPayload encodes an element payload with its kind tag.
func MarshalPayload(p Payload) ([]byte, error) {
	if p == nil {
		p = Empty{}
	}
	return tagged(string(p.Kind()), p)
}

func decodeAs[T any](tag string, body json.RawMessage) (T, error) {
	var v T
	err := decodeBody(tag, body, &v)
	return v, err
}

func payloadAs[T Payload](tag string, body json.RawMessage) (Payload, error) {
	v, err := decodeAs[T](tag, body)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// UnmarshalPayload decodes a tagged element payload.
func UnmarshalPayload(data []byte) (Payload, error) {
	tag, body, err := untag(data)
	if err != nil {
		return nil, err
	}

	switch ElementKind(tag) {
	case KindText:
		return payloadAs[Text](tag, body)
	case KindDataFrame:
		return payloadAs[DataFrame](tag, body)
	case KindTable:
		return payloadAs[Table](tag, body)
	case KindChart:
		return payloadAs[Chart](tag, body)
	case KindVegaLiteChart:
		return payloadAs[VegaLiteChart](tag, body)
	case KindImageList:
		return payloadAs[ImageList](tag, body)
	case KindMap:
		return payloadAs[Map](tag, body)
	case KindDocString:
		return payloadAs[DocString](tag, body)
	case KindException:
		return payloadAs[Exception](tag, body)
	case KindProgress:
		return payloadAs[Progress](tag, body)
	case KindBalloons:
		return payloadAs[Balloons](tag, body)
	case KindEmpty:
		return Empty{}, nil
	default:
		return nil, fmt.Errorf("unknown element type %q", tag)
	}
}

type elementJSON struct {
	ID       int             `json:"id"`
	ReportID ReportID        `json:"report_id"`
	Payload  json.RawMessage `json:"payload"`
}

// MarshalJSON encodes the element with its tagged payload.
func (e Element) MarshalJSON() ([]byte, error) {
	payload, err := MarshalPayload(e.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(elementJSON{ID: e.ID, ReportID: e.ReportID, Payload: payload})
}

// UnmarshalJSON decodes an element written by MarshalJSON.
func (e *Element) UnmarshalJSON(data []byte) error {
	var raw elementJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.ID = raw.ID
	e.ReportID = raw.ReportID
	e.Payload = Empty{}
	if len(raw.Payload) > 0 {
		p, err := UnmarshalPayload(raw.Payload)
		if err != nil {
			return err
		}
		e.Payload = p
	}
	return nil
}

type deltaJSON struct {
	ID         int             `json:"id"`
	Type       string          `json:"type"`
	NewElement json.RawMessage `json:"newElement,omitempty"`
	AddRows    *NamedDataSet   `json:"addRows,omitempty"`
}

// MarshalJSON encodes the delta with its tagged body.
func (d Delta) MarshalJSON() ([]byte, error) {
	out := deltaJSON{ID: d.ID}
	switch b := d.Body.(type) {
	case NewElement:
		payload, err := MarshalPayload(b.Payload)
		if err != nil {
			return nil, err
		}
		out.Type, out.NewElement = deltaNewElement, payload
	case AddRows:
		rows := b.Rows
		out.Type, out.AddRows = deltaAddRows, &rows
	default:
		return nil, fmt.Errorf("delta %d has no body", d.ID)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a delta written by MarshalJSON.
func (d *Delta) UnmarshalJSON(data []byte) error {
	var raw deltaJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.ID = raw.ID
	switch raw.Type {
	case deltaNewElement:
		p, err := UnmarshalPayload(raw.NewElement)
		if err != nil {
			return err
		}
		d.Body = NewElement{Payload: p}
	case deltaAddRows:
		if raw.AddRows == nil {
			return fmt.Errorf("delta %d: addRows without data", raw.ID)
		}
		d.Body = AddRows{Rows: *raw.AddRows}
	default:
		return fmt.Errorf("delta %d: unknown body %q", raw.ID, raw.Type)
	}
	return nil
}

// EncodeInbound frames an inbound envelope.
func EncodeInbound(msg Inbound) ([]byte, error) {
	if u, ok := msg.(UnknownInbound); ok {
		return nil, &ProtocolError{Tag: u.Name}
	}
	return tagged(msg.Tag(), msg)
}

func inboundAs[T Inbound](tag string, body json.RawMessage) (Inbound, error) {
	v, err := decodeAs[T](tag, body)
	if err != nil {
		return nil, &ProtocolError{Tag: tag, Err: err}
	}
	return v, nil
}

// DecodeInbound parses an inbound frame.
// Unrecognised tags are returned as UnknownInbound without error so that the
// dispatcher reports them as protocol errors.
func DecodeInbound(data []byte) (Inbound, error) {
	tag, body, err := untag(data)
	if err != nil {
		return nil, fmt.Errorf("malformed envelope: %w", err)
	}

	switch tag {
	case TagInitialize:
		return inboundAs[Initialize](tag, body)
	case TagSessionStateChanged:
		return inboundAs[SessionStateChanged](tag, body)
	case TagSessionEvent:
		return inboundAs[SessionEvent](tag, body)
	case TagNewReport:
		return inboundAs[NewReport](tag, body)
	case TagDelta:
		if len(body) == 0 {
			return nil, &ProtocolError{Tag: tag, Err: errors.New("missing body")}
		}
		return inboundAs[Delta](tag, body)
	case TagReportFinished:
		return ReportFinished{}, nil
	case TagUploadReportProgress:
		return inboundAs[UploadReportProgress](tag, body)
	case TagReportUploaded:
		return inboundAs[ReportUploaded](tag, body)
	default:
		return UnknownInbound{Name: tag}, nil
	}
}

// EncodeOutbound frames an outbound envelope.
func EncodeOutbound(msg Outbound) ([]byte, error) {
	return tagged(msg.Tag(), msg)
}

func outboundAs[T Outbound](tag string, body json.RawMessage) (Outbound, error) {
	v, err := decodeAs[T](tag, body)
	if err != nil {
		return nil, &ProtocolError{Tag: tag, Err: err}
	}
	return v, nil
}

// DecodeOutbound parses an outbound frame. Servers and tests use it.
func DecodeOutbound(data []byte) (Outbound, error) {
	tag, body, err := untag(data)
	if err != nil {
		return nil, fmt.Errorf("malformed envelope: %w", err)
	}

	switch tag {
	case TagRerunScript:
		return outboundAs[RerunScript](tag, body)
	case TagStopReport:
		return StopReport{}, nil
	case TagClearCache:
		return ClearCache{}, nil
	case TagSetRunOnSave:
		return outboundAs[SetRunOnSave](tag, body)
	case TagCloudUpload:
		return CloudUpload{}, nil
	case TagUpdateWidget:
		return outboundAs[UpdateWidget](tag, body)
	default:
		return nil, &ProtocolError{Tag: tag}
	}
}
