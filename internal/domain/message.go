package domain

// ChatMessage is one entry of a room's chat log, immutable once appended.
type ChatMessage struct {
	Username string `json:"username"`
	Content  string `json:"content"`
}
