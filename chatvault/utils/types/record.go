// chatvault/utils/types/record.go
package types

// RecordRequest is the inbound payload from the host bot, one per message.
type RecordRequest struct {
	ChatID     string `json:"chat_id"`
	Kind       string `json:"kind"`
	Role       string `json:"role"`
	Content    string `json:"content"`
	SenderID   string `json:"sender_id,omitempty"`
	SenderName string `json:"sender_name,omitempty"`
}

type RecordResponse struct {
	Status string `json:"status"`
}
