package domain

// ReportID identifies one execution of the remote script.
// It is opaque to the client and only ever compared for equality.
type ReportID string

// NoReport is the ReportID used before the server announced any report.
const NoReport ReportID = "<null>"

// ElementKind names a Payload variant. The values double as wire tags.
type ElementKind string

const (
	KindText          ElementKind = "text"
	KindDataFrame     ElementKind = "dataFrame"
	KindChart         ElementKind = "chart"
	KindVegaLiteChart ElementKind = "vegaLiteChart"
	KindImageList     ElementKind = "imageList"
	KindMap           ElementKind = "map"
	KindTable         ElementKind = "table"
	KindDocString     ElementKind = "docString"
	KindException     ElementKind = "exception"
	KindProgress      ElementKind = "progress"
	KindBalloons      ElementKind = "balloons"
	KindEmpty         ElementKind = "empty"
)

// Payload is the closed set of element variants.
// Only types declared in this package implement it.
type Payload interface {
	Kind() ElementKind
	isPayload()
}

// Element is one slot of the document.
type Element struct {
	ID       int      `json:"id"`
	ReportID ReportID `json:"report_id"`
	Payload  Payload  `json:"-"`
}

// Kind returns the variant of the element payload.
// An element without payload reports KindEmpty.
func (e Element) Kind() ElementKind {
	if e.Payload == nil {
		return KindEmpty
	}
	return e.Payload.Kind()
}

// TextFormat selects how a Text body is presented.
type TextFormat string

const (
	FormatPlain    TextFormat = "plain"
	FormatMarkdown TextFormat = "markdown"
	FormatJSON     TextFormat = "json"
	FormatError    TextFormat = "error"
	FormatWarning  TextFormat = "warning"
	FormatInfo     TextFormat = "info"
	FormatSuccess  TextFormat = "success"
)

// Text is a block of text in one of the supported formats.
type Text struct {
	Body   string     `json:"body"`
	Format TextFormat `json:"format"`
}

// DataFrame is the tabular payload (also used as the table variant).
type DataFrame struct {
	Columns []Column `json:"columns"`
}

// Table shares the DataFrame layout but renders as a static table.
type Table struct {
	DataFrame
}

// Chart is a native chart built from a data frame.
type Chart struct {
	Type   string    `json:"type"`
	Data   DataFrame `json:"data"`
	Width  int       `json:"width,omitempty"`
	Height int       `json:"height,omitempty"`
}

// VegaLiteChart carries a Vega-Lite spec and the data it plots.
type VegaLiteChart struct {
	Spec string    `json:"spec"`
	Data DataFrame `json:"data"`
}

// Image is one entry of an ImageList.
type Image struct {
	URL     string `json:"url,omitempty"`
	Data    string `json:"data,omitempty"` // base64
	Caption string `json:"caption,omitempty"`
}

// ImageList is a row of images.
type ImageList struct {
	Images []Image `json:"images"`
	Width  int     `json:"width,omitempty"`
}

// Map plots geographic points.
type Map struct {
	Points DataFrame `json:"points"`
}

// DocString documents a remote object.
type DocString struct {
	Name      string `json:"name"`
	Module    string `json:"module,omitempty"`
	DocString string `json:"doc_string"`
	Type      string `json:"type,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// Exception renders a remote error with its stack.
type Exception struct {
	Type       string   `json:"type"`
	Message    string   `json:"message"`
	StackTrace []string `json:"stack_trace,omitempty"`
}

// Progress is a progress bar value in [0, 100].
type Progress struct {
	Value int `json:"value"`
}

// Balloons is the celebratory animation.
type Balloons struct {
	Type        string `json:"type,omitempty"`
	ExecutionID uint32 `json:"execution_id"`
}

// Empty is the inert placeholder. Swept slots hold it.
type Empty struct{}

func (Text) Kind() ElementKind          { return KindText }
func (DataFrame) Kind() ElementKind     { return KindDataFrame }
func (Table) Kind() ElementKind         { return KindTable }
func (Chart) Kind() ElementKind         { return KindChart }
func (VegaLiteChart) Kind() ElementKind { return KindVegaLiteChart }
func (ImageList) Kind() ElementKind     { return KindImageList }
func (Map) Kind() ElementKind           { return KindMap }
func (DocString) Kind() ElementKind     { return KindDocString }
func (Exception) Kind() ElementKind     { return KindException }
func (Progress) Kind() ElementKind      { return KindProgress }
func (Balloons) Kind() ElementKind      { return KindBalloons }
func (Empty) Kind() ElementKind         { return KindEmpty }

func (Text) isPayload()          {}
func (DataFrame) isPayload()     {}
func (Table) isPayload()         {}
func (Chart) isPayload()         {}
func (VegaLiteChart) isPayload() {}
func (ImageList) isPayload()     {}
func (Map) isPayload()           {}
func (DocString) isPayload()     {}
func (Exception) isPayload()     {}
func (Progress) isPayload()      {}
func (Balloons) isPayload()      {}
func (Empty) isPayload()         {}

// Rows returns the appendable frame of a payload.
// Only tabular and chart variants carry one.
func Rows(p Payload) (DataFrame, bool) {
	switch v := p.(type) {
	case DataFrame:
		return v, true
	case Table:
		return v.DataFrame, true
	case Chart:
		return v.Data, true
	case VegaLiteChart:
		return v.Data, true
	default:
		return DataFrame{}, false
	}
}

// WithRows returns a copy of p whose frame is replaced by df.
// It reports false for variants that do not carry rows.
func WithRows(p Payload, df DataFrame) (Payload, bool) {
	switch v := p.(type) {
	case DataFrame:
		return df, true
	case Table:
		return Table{DataFrame: df}, true
	case Chart:
		v.Data = df
		return v, true
	case VegaLiteChart:
		v.Data = df
		return v, true
	default:
		return p, false
	}
}
