package controllers

import (
	"context"

	"chatvault/chatvault/sources/store"
)

type ViewerController struct {
	reader *store.Reader
}

func NewViewerController(reader *store.Reader) *ViewerController {
	return &ViewerController{reader: reader}
}

func (c *ViewerController) ListChats(ctx context.Context) ([]store.ChatSummary, error) {
	return c.reader.ListChats()
}

func (c *ViewerController) GetChat(ctx context.Context, filename string, page, size int) (store.ChatPage, error) {
	return c.reader.ReadPage(filename, page, size)
}

func (c *ViewerController) Stats(ctx context.Context) (store.StatsSummary, error) {
	return c.reader.Stats()
}
