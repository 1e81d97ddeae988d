package theme

// StyleInfo describes a code-highlight style.
type StyleInfo struct {
	Name       string `json:"name"`
	Display    string `json:"display"`
	Background string `json:"background"`
	Dark       bool   `json:"dark"`
}

// stylesheet is a rendered style with its cache validator.
type stylesheet struct {
	css  []byte
	etag string
}
