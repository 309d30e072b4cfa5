package core

import (
	"context"
	"io"
	"time"

	"ehscore/internal/blob"
	"ehscore/pkg/domain"
)

// replaceAttachment uploads content and stores its key on the owner through
// swap inside one transaction. The new blob is removed when the transaction
// fails; the previous blob is removed after a successful commit.
func (s *Service) replaceAttachment(ctx context.Context, op, actorID string, perm domain.Permission, kind blob.Kind, ownerID, filename, contentType string, r io.Reader, swap func(tx *Transaction, key string) (string, error)) (blob.Info, error) {
	if s.attachments == nil {
		return blob.Info{}, ErrAttachmentsDisabled
	}
	var (
		info     blob.Info
		previous string
	)
	_, err := s.run(ctx, op, actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, perm, "upload attachments"); err != nil {
			return ownerID, err
		}
		var err error
		if info, err = s.attachments.Upload(ctx, kind, ownerID, filename, contentType, r); err != nil {
			return ownerID, err
		}
		previous, err = swap(tx, info.Key)
		return ownerID, err
	})
	if err != nil {
		if info.Key != "" {
			if rmErr := s.attachments.Remove(ctx, info.Key); rmErr != nil {
				s.logger.Warn("orphaned attachment", "key", info.Key, "error", rmErr)
			}
		}
		return blob.Info{}, err
	}
	s.dropAttachment(ctx, previous)
	return info, nil
}

// dropAttachment removes a blob that is no longer referenced.
func (s *Service) dropAttachment(ctx context.Context, key string) {
	if s.attachments == nil || key == "" {
		return
	}
	if err := s.attachments.Remove(ctx, key); err != nil {
		s.logger.Debug("attachment not removed", "key", key, "error", err)
	}
}

// AttachmentURL returns a time-limited URL for a stored attachment key.
func (s *Service) AttachmentURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if s.attachments == nil {
		return "", ErrAttachmentsDisabled
	}
	return s.attachments.URL(ctx, key, expiry)
}

// OpenAttachment streams a stored attachment.
func (s *Service) OpenAttachment(ctx context.Context, key string) (blob.Info, io.ReadCloser, error) {
	if s.attachments == nil {
		return blob.Info{}, nil, ErrAttachmentsDisabled
	}
	return s.attachments.Open(ctx, key)
}
