package bridge

// Message types sent by the browser.
const (
	MsgTranscript       = "transcript"
	MsgKey              = "key"
	MsgRecognitionError = "recognition_error"
	MsgLocation         = "location"
	MsgSpoken           = "spoken"
)

// Message types sent to the browser.
const (
	MsgHello         = "hello"
	MsgSpeak         = "speak"
	MsgCancelSpeech  = "cancel_speech"
	MsgListen        = "listen"
	MsgStopListening = "stop_listening"
	MsgNavigate      = "navigate"
	MsgFocus         = "focus"
	MsgSubmit        = "submit"
	MsgOpen          = "open"
)

// Inbound is a message from the browser.
type Inbound struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Final    bool   `json:"final,omitempty"`
	Key      string `json:"key,omitempty"`
	Error    string `json:"error,omitempty"`
	Location string `json:"location,omitempty"`
	// ID acknowledges a speak message.
	ID string `json:"id,omitempty"`
}

// Outbound is a message to the browser.
type Outbound struct {
	Type         string `json:"type"`
	ID           string `json:"id,omitempty"`
	ConnectionID string `json:"connection_id,omitempty"`
	Text         string `json:"text,omitempty"`
	Locale       string `json:"locale,omitempty"`
	Location     string `json:"location,omitempty"`
	Target       string `json:"target,omitempty"`
}
