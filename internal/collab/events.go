package collab

// Inbound event names.
const (
	EventJoin           = "join"
	EventCodeChange     = "codeChange"
	EventLeaveRoom      = "leaveRoom"
	EventTyping         = "typing"
	EventLanguageChange = "languageChange"
	EventCompileCode    = "compileCode"
)

// Outbound event names.
const (
	EventUserJoined     = "userJoined"
	EventCodeUpdate     = "codeUpdate"
	EventUserTyping     = "userTyping"
	EventLanguageUpdate = "languageUpdate"
	EventCodeResponse   = "codeResponse"
	EventLeftRoom       = "leftRoom"
	EventRoomFull       = "roomFull"
)

// JoinPayload is the body of a join event.
type JoinPayload struct {
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
	Email    string `json:"email"`
}

// CodeChangePayload is the body of a codeChange event.
type CodeChangePayload struct {
	RoomID string `json:"roomId"`
	Code   string `json:"code"`
}

// TypingPayload is the body of a typing event.
type TypingPayload struct {
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
}

// LanguagePayload is the body of a languageChange event.
type LanguagePayload struct {
	RoomID   string `json:"roomId"`
	Language string `json:"language"`
}

// CompilePayload is the body of a compileCode event.
type CompilePayload struct {
	Code     string `json:"code"`
	RoomID   string `json:"roomId"`
	Language string `json:"language"`
	Version  string `json:"version"`
	Input    string `json:"input"`
}

// RoomFullPayload tells a socket its join was refused.
type RoomFullPayload struct {
	RoomID string `json:"roomId"`
}

// errorResponse mirrors the shape of a run result so clients render it in
// the output pane.
type errorResponse struct {
	Run struct {
		Output string `json:"output"`
	} `json:"run"`
}

func newErrorResponse(msg string) errorResponse {
	var r errorResponse
	r.Run.Output = "Error: " + msg
	return r
}
