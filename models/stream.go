package models

// StreamSource is one playable stream variant for a title.
type StreamSource struct {
	URL     string `json:"url"`
	Quality string `json:"quality"`
	Type    string `json:"type"`
	Name    string `json:"name,omitempty"`
}

// Subtitle is a caption track attached to a stream.
type Subtitle struct {
	Lang string `json:"lang"`
	URL  string `json:"url"`
	Type string `json:"type,omitempty"`
}

// StreamResponse is the wire shape of the stream-extraction endpoints.
// Fallback tells the client to fall back to the iframe embed player when no
// direct stream could be extracted.
type StreamResponse struct {
	Success   bool           `json:"success"`
	Sources   []StreamSource `json:"sources,omitempty"`
	Subtitles []Subtitle     `json:"subtitles,omitempty"`
	Error     string         `json:"error,omitempty"`
	Fallback  bool           `json:"fallback,omitempty"`
}
