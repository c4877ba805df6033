package schema

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"path"

	"github.com/viant/afs"
)

// NewFileAttachment loads the resource at URL (file path, file://, s3://,
// gs:// or any scheme the storage layer knows) and returns an inline
// attachment with base64 content and a mime type guessed from the extension.
func NewFileAttachment(ctx context.Context, URL string) (*Attachment, error) {
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load attachment %q: %w", URL, err)
	}
	name := path.Base(URL)
	return &Attachment{
		Type:     "file",
		URL:      URL,
		Name:     name,
		MimeType: mime.TypeByExtension(path.Ext(name)),
		Content:  base64.StdEncoding.EncodeToString(data),
	}, nil
}
