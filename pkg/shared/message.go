package shared

// MessageType identifies a message sent from the interpreter to its host
// frontend (websocket terminal or local console runner).
type MessageType int

const (
	MessageTypeText         MessageType = 0  // text output
	MessageTypeClear        MessageType = 1  // clear screen
	MessageTypeBeep         MessageType = 2  // short beep
	MessageTypeSound        MessageType = 3  // tone with frequency/duration
	MessageTypeGraphics     MessageType = 4  // graphics command with params
	MessageTypeMode         MessageType = 5  // mode switch ("run", "idle")
	MessageTypeSession      MessageType = 6  // session ID announcement
	MessageTypeInputControl MessageType = 7  // enable/disable input line
	MessageTypePrompt       MessageType = 8  // prompt text for pending INPUT
	MessageTypeLocate       MessageType = 9  // set text cursor position
	MessageTypeColor        MessageType = 10 // set text color
	MessageTypeKeyDown      MessageType = 11 // key pressed (frontend -> engine)
	MessageTypeKeyUp        MessageType = 12 // key released (frontend -> engine)
	MessageTypeError        MessageType = 13 // unhandled runtime error report
)

// Message is the unit of communication on the interpreter's output channel.
// Field names mirror what the terminal frontend reads directly.
type Message struct {
	Type    MessageType `json:"type"`
	Content string      `json:"content,omitempty"`

	// For TEXT: suppress the trailing newline (PRINT ending in ';').
	NoNewline bool `json:"noNewline,omitempty"`

	SessionID string `json:"sessionId,omitempty"`

	// For GRAPHICS: command name ("PSET", "LINE", "RECT", "CIRCLE", "PAINT")
	// and its numeric parameters in statement order.
	Command string    `json:"command,omitempty"`
	Params  []float64 `json:"params,omitempty"`

	// For SOUND: frequency in Hz and duration in milliseconds.
	Frequency float64 `json:"frequency,omitempty"`
	Duration  float64 `json:"duration,omitempty"`

	// For LOCATE and COLOR.
	Row int `json:"row,omitempty"`
	Col int `json:"col,omitempty"`
	FG  int `json:"fg,omitempty"`
	BG  int `json:"bg,omitempty"`

	// For KEYDOWN/KEYUP: the key name as the frontend reports it.
	Key string `json:"key,omitempty"`
}
