package controllers

import (
	"context"

	"chatvault/chatvault/sources/store"
	"chatvault/chatvault/utils/types"
)

type RecordController struct {
	writer *store.Writer
}

func NewRecordController(writer *store.Writer) *RecordController {
	return &RecordController{writer: writer}
}

// Record persists one message. The bool reports whether a line was actually
// appended; filtered conversations and empty content come back false, nil.
func (c *RecordController) Record(ctx context.Context, req types.RecordRequest) (bool, error) {
	kind := store.ChatKind(req.Kind)
	rec := store.MessageRecord{
		Role:       req.Role,
		Content:    req.Content,
		SenderID:   req.SenderID,
		SenderName: req.SenderName,
	}
	if err := c.writer.Record(req.ChatID, kind, rec); err != nil {
		return false, err
	}
	if req.Content == "" || !c.writer.ShouldRecord(req.ChatID, kind) {
		return false, nil
	}
	return true, nil
}
