package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind classifies an attachment and fixes its key prefix and accepted media types.
type Kind string

// Attachment kinds.
const (
	KindSafetyDataSheet  Kind = "sds"
	KindIncidentEvidence Kind = "evidence"
	KindWasteManifest    Kind = "manifest"
	KindCompanyLogo      Kind = "logo"
)

type kindSpec struct {
	prefix string
	accept []string
}

var kinds = map[Kind]kindSpec{
	KindSafetyDataSheet:  {prefix: "chemicals", accept: []string{"application/pdf"}},
	KindIncidentEvidence: {prefix: "incidents", accept: []string{"image/"}},
	KindWasteManifest:    {prefix: "waste_logs", accept: []string{"application/pdf", "image/"}},
	KindCompanyLogo:      {prefix: "settings", accept: []string{"image/"}},
}

// MaxAttachmentBytes bounds a single upload.
const MaxAttachmentBytes = 10 << 20

// ErrRejected is returned when an upload has an unaccepted media type or size.
var ErrRejected = errors.New("attachment rejected")

// Attachments writes entity attachments under stable, collision-free keys.
type Attachments struct {
	store Store
	newID func() string
}

// NewAttachments wraps store.
func NewAttachments(store Store) *Attachments {
	return &Attachments{store: store, newID: uuid.NewString}
}

// Store returns the underlying backend.
func (a *Attachments) Store() Store { return a.store }

// Upload stores the content for owner and returns its info; Info.Key is the
// value kept on the owning entity.
func (a *Attachments) Upload(ctx context.Context, kind Kind, ownerID, filename, contentType string, r io.Reader) (Info, error) {
	k, ok := kinds[kind]
	if !ok {
		return Info{}, fmt.Errorf("%w: unknown kind %q", ErrRejected, kind)
	}
	if strings.TrimSpace(ownerID) == "" {
		return Info{}, fmt.Errorf("%w: owner id required", ErrRejected)
	}
	if !accepts(k.accept, contentType) {
		return Info{}, fmt.Errorf("%w: %s does not accept %q", ErrRejected, kind, contentType)
	}
	key := path.Join(k.prefix, ownerID, a.newID()+"-"+safeName(filename))
	limited := &io.LimitedReader{R: r, N: MaxAttachmentBytes + 1}
	info, err := a.store.Put(ctx, key, limited, PutOptions{
		ContentType: contentType,
		Metadata:    map[string]string{"kind": string(kind), "owner": ownerID},
	})
	if err != nil {
		return Info{}, err
	}
	if info.Size > MaxAttachmentBytes {
		_, _ = a.store.Delete(ctx, key)
		return Info{}, fmt.Errorf("%w: larger than %d bytes", ErrRejected, MaxAttachmentBytes)
	}
	return info, nil
}

// Open returns the attachment content; the caller closes the reader.
func (a *Attachments) Open(ctx context.Context, key string) (Info, io.ReadCloser, error) {
	return a.store.Get(ctx, key)
}

// Remove deletes key. Missing attachments are not an error.
func (a *Attachments) Remove(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	_, err := a.store.Delete(ctx, key)
	return err
}

// URL returns a download URL, falling back to the bare key when the backend
// cannot sign URLs.
func (a *Attachments) URL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	url, err := a.store.PresignURL(ctx, key, expiry)
	if errors.Is(err, ErrUnsupported) {
		return key, nil
	}
	return url, err
}

func accepts(accept []string, contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	for _, a := range accept {
		if strings.HasSuffix(a, "/") && strings.HasPrefix(ct, a) {
			return true
		}
		if ct == a {
			return true
		}
	}
	return false
}

func safeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "file"
	}
	return out
}
