// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes attachsync tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/attachsync/internal/apperr"
	"github.com/starford/attachsync/internal/attachservice"
	"github.com/starford/attachsync/internal/capture"
	"github.com/starford/attachsync/internal/journal"
)

const (
	settingsURI  = "attachsync://settings"
	referenceURI = "attachsync://templates"
)

// Server wraps the MCP server with attachsync tools.
type Server struct {
	mcp *server.MCPServer
	svc *attachservice.Service
}

// New creates a new MCP server with all attachsync tools registered.
func New(svc *attachservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"attachsync",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("resolve_attachment_dir",
		mcp.WithDescription("Show the attachment directory and the next attachment file name for a note."),
		mcp.WithString("note", mcp.Required(), mcp.Description("Relative path to the note (e.g. folder/note.md)")),
	), s.resolveAttachmentDir)

	s.mcp.AddTool(mcp.NewTool("rename_note",
		mcp.WithDescription("Rename or move a note. Its attachment directory is moved along "+
			"and links to the moved attachments are updated."),
		mcp.WithString("old_path", mcp.Required(), mcp.Description("Current path of the note")),
		mcp.WithString("new_path", mcp.Required(), mcp.Description("New path of the note")),
	), s.renameNote)

	s.mcp.AddTool(mcp.NewTool("set_active_note",
		mcp.WithDescription("Make a note the active document. Pastes and drops are attached to the active note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note")),
	), s.setActiveNote)

	s.mcp.AddTool(mcp.NewTool("drop_attachment",
		mcp.WithDescription("Save a PNG or JPEG image as an attachment of the active note. "+
			"Accepts a base64 data URI or an http(s) URL. Returns the saved path and the reference to embed."),
		mcp.WithString("url", mcp.Required(), mcp.Description("data:image/png;base64,... or https://...")),
		mcp.WithString("name", mcp.Description("Original file name (optional)")),
		mcp.WithString("source", mcp.Description("editor for Markdown notes, area for canvases (default editor)")),
	), s.dropAttachment)

	s.mcp.AddTool(mcp.NewTool("list_relocations",
		mcp.WithDescription("List recent attachment relocations, newest first."),
		mcp.WithString("note", mcp.Description("Filter by note path")),
		mcp.WithString("operation", mcp.Description("Filter by operation: rename, paste or drop")),
		mcp.WithNumber("limit", mcp.Description("Max entries (default 50)")),
	), s.listRelocations)

	s.mcp.AddTool(mcp.NewTool("get_template_reference",
		mcp.WithDescription("Returns how attachment directories and file names are derived from templates."),
	), s.getTemplateReference)

	s.mcp.AddResource(
		mcp.NewResource(settingsURI, "Attachment Settings",
			mcp.WithResourceDescription("Path templates currently in use."),
			mcp.WithMIMEType("application/json"),
		),
		s.readSettingsResource,
	)
	s.mcp.AddResource(
		mcp.NewResource(referenceURI, "Template Reference",
			mcp.WithResourceDescription("Variables and root modes of attachment path templates."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readReferenceResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) resolveAttachmentDir(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	note, err := req.RequireString("note")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Resolve(note)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res), nil
}

func (s *Server) renameNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	oldPath, err := req.RequireString("old_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	newPath, err := req.RequireString("new_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := s.svc.RenameNote(ctx, oldPath, newPath)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if out.Err != nil && !out.IsSkipped() {
		return mcp.NewToolResultError(fmt.Sprintf("note renamed, attachments not moved: %v", out.Err)), nil
	}
	return jsonResult(out), nil
}

func (s *Server) setActiveNote(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.SetActive(path); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("active: %s", path)), nil
}

func (s *Server) dropAttachment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	source := capture.DropSource(req.GetString("source", string(capture.DropEditor)))
	if source != capture.DropEditor && source != capture.DropArea {
		return mcp.NewToolResultError(fmt.Sprintf("unsupported source: %s (editor or area)", source)), nil
	}

	data, err := fetchAsset(ctx, rawURL)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name := req.GetString("name", "")
	if name == "" {
		name = filenameFromURL(rawURL, data)
	}

	results, err := s.svc.Drop(ctx, source, []capture.DroppedFile{{Name: name, Data: data}})
	switch {
	case errors.Is(err, apperr.ErrNoActiveFile):
		return mcp.NewToolResultError("no active note: call set_active_note first"), nil
	case err != nil:
		return mcp.NewToolResultError(err.Error()), nil
	case len(results) == 0:
		return mcp.NewToolResultError("nothing saved: only PNG and JPEG images are accepted, " +
			"and the source must match the active note type"), nil
	}
	return jsonResult(results[0]), nil
}

func (s *Server) listRelocations(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, total, err := s.svc.Relocations(journal.Filter{
		Note:      req.GetString("note", ""),
		Operation: req.GetString("operation", ""),
		Limit:     req.GetInt("limit", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if total == 0 {
		return mcp.NewToolResultText("no relocations recorded"), nil
	}
	return jsonResult(map[string]any{"relocations": entries, "total": total}), nil
}

func (s *Server) getTemplateReference(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(TemplateReference), nil
}

func (s *Server) readSettingsResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	out, err := json.MarshalIndent(s.svc.Settings(), "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      settingsURI,
			MIMEType: "application/json",
			Text:     string(out),
		},
	}, nil
}

func (s *Server) readReferenceResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      referenceURI,
			MIMEType: "text/markdown",
			Text:     TemplateReference,
		},
	}, nil
}
