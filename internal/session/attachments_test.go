package session

import (
	"testing"

	"github.com/gatewaylink/client/internal/protocol"
)

func TestNormalizeAttachments(t *testing.T) {
	in := []protocol.Attachment{
		{MimeType: "image/png", FileName: "shot.png", Content: "aGk="},
		{MimeType: "application/pdf", FileName: "doc.pdf", Content: "aGk="},
		{MimeType: "image/png", FileName: "", Content: "aGk="},   // no name
		{MimeType: "", FileName: "x.bin", Content: "aGk="},       // no mime
		{MimeType: "text/plain", FileName: "y.txt", Content: ""}, // no content
	}
	out := NormalizeAttachments(in)
	if len(out) != 2 {
		t.Fatalf("kept %d attachments, want 2: %+v", len(out), out)
	}
	if out[0].Type != protocol.AttachmentTypeImage {
		t.Errorf("image/png classified as %q", out[0].Type)
	}
	if out[1].Type != protocol.AttachmentTypeFile {
		t.Errorf("application/pdf classified as %q", out[1].Type)
	}
}

func TestNormalizeAttachmentsAllDropped(t *testing.T) {
	out := NormalizeAttachments([]protocol.Attachment{{FileName: "x"}})
	if out != nil {
		t.Errorf("expected nil, got %+v", out)
	}
}
