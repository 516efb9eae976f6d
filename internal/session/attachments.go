package session

import (
	"strings"

	"github.com/gatewaylink/client/internal/protocol"
)

// NormalizeAttachments drops attachments missing a file name, mime type,
// or content, and classifies each survivor as image or file by its mime
// prefix. Explicit types on the input are ignored; the mime type decides.
func NormalizeAttachments(in []protocol.Attachment) []protocol.Attachment {
	if len(in) == 0 {
		return nil
	}
	out := make([]protocol.Attachment, 0, len(in))
	for _, a := range in {
		if a.FileName == "" || a.MimeType == "" || a.Content == "" {
			continue
		}
		if strings.HasPrefix(a.MimeType, "image/") {
			a.Type = protocol.AttachmentTypeImage
		} else {
			a.Type = protocol.AttachmentTypeFile
		}
		out = append(out, a)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
