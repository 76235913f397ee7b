package pkg

import "time"

// Session represents one consultation.  It is keyed by a UUID and carries
// the profile the user saved from the sidebar form.
type Session struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	Profile       Profile   `json:"profile"`
	ProfileSaved  bool      `json:"profile_saved"`
	GreetingSent  bool      `json:"greeting_sent"`
	MessageCap    int       `json:"message_cap"`
	LastMessageAt time.Time `json:"last_message_at,omitempty"`
}

// Profile is the user health profile.  All values are already normalised by
// the profile form handler, so empty strings never reach the prompts.
type Profile struct {
	Name        string `json:"name"`
	Age         int    `json:"age"`
	Gender      string `json:"gender"`
	Dosha       string `json:"dosha"`
	Stress      string `json:"stress"`
	Conditions  string `json:"conditions"`
	Medications string `json:"medications"`
}

// MessageRole describes who authored a message.  The assistant is stored as
// "model" to match the generation API's naming.
type MessageRole string

const (
	RoleUser  MessageRole = "user"
	RoleModel MessageRole = "model"
)

// Message represents one turn of the conversation.
type Message struct {
	ID        int64       `json:"id"`
	SessionID string      `json:"session_id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
}

// ProfileRequest is the body accepted by the profile endpoint, either as JSON
// or as form fields.
type ProfileRequest struct {
	Name        string `json:"name" form:"name"`
	Age         int    `json:"age" form:"age"`
	Gender      string `json:"gender" form:"gender"`
	Dosha       string `json:"dosha" form:"dosha"`
	Stress      string `json:"stress" form:"stress"`
	Conditions  string `json:"conditions" form:"conditions"`
	Medications string `json:"medications" form:"medications"`
}

// ChatRequest represents a request to send a message from the user.
type ChatRequest struct {
	Content string `json:"content" form:"content"`
}

// ChatResponse contains the assistant's reply, how many dataset rows backed
// it, and whether the session is capped due to exceeding the message limit.
type ChatResponse struct {
	Reply   string `json:"reply"`
	Matches int    `json:"matches"`
	Capped  bool   `json:"capped"`
}

// DatasetStatus is shown next to the chat so the user knows whether answers
// are backed by the condition table.
type DatasetStatus struct {
	Loaded     bool   `json:"loaded"`
	Conditions int    `json:"conditions"`
	Error      string `json:"error,omitempty"`
}
