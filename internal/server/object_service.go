package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"tams/internal/api"
	"tams/internal/deletion"
	"tams/internal/models"
	"tams/internal/objectstore"
	"tams/internal/segindex"
	"tams/internal/store"
)

const maxAllocation = 1000

// ObjectService allocates upload targets and records uploaded payloads.
type ObjectService struct {
	store   store.CatalogStore
	objects objectstore.ObjectStore
	locks   deletion.ObjectLocker
}

func NewObjectService(catalog store.CatalogStore, objects objectstore.ObjectStore, locks deletion.ObjectLocker) *ObjectService {
	return &ObjectService{store: catalog, objects: objects, locks: locks}
}

// Allocate returns upload descriptors for a writable flow.
func (s *ObjectService) Allocate(ctx context.Context, flowID string, req api.StorageRequest) ([]models.StorageObject, error) {
	state, err := s.store.SegmentFlowState(ctx, flowID)
	if err != nil {
		return nil, flowNotFound(err)
	}
	if state.ReadOnly {
		return nil, fmt.Errorf("%w: %s", segindex.ErrReadOnlyFlow, flowID)
	}
	if len(req.ObjectIDs) > maxAllocation || req.Limit > maxAllocation {
		return nil, badRequest(fmt.Errorf("at most %d objects may be allocated at once", maxAllocation))
	}
	if req.Limit < 0 {
		return nil, badRequest(fmt.Errorf("limit must be >= 0"))
	}
	if err := validateObjectIDs(req.ObjectIDs); err != nil {
		return nil, err
	}
	return s.objects.Allocate(ctx, req.Limit, req.ObjectIDs)
}

// Get returns the object record with the flows referencing it and its
// download URLs. Payloads stored without a catalog record are described
// from the object store.
func (s *ObjectService) Get(ctx context.Context, id string, labels []string) (models.MediaObject, error) {
	obj, err := s.store.GetMediaObject(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		meta, metaErr := s.objects.Metadata(ctx, id)
		if metaErr != nil {
			return models.MediaObject{}, metaErr
		}
		refs, refErr := s.store.ObjectFlowReferences(ctx, id)
		if refErr != nil {
			return models.MediaObject{}, refErr
		}
		obj = &models.MediaObject{
			ObjectID:       id,
			SizeBytes:      meta.Size,
			MIMEType:       meta.MIMEType,
			FlowReferences: refs,
			CreatedAt:      meta.ModTime,
		}
	default:
		return models.MediaObject{}, err
	}

	if obj.FlowReferences == nil {
		obj.FlowReferences = []string{}
	}
	urls, err := s.objects.DownloadURLs(ctx, id, labels)
	if err != nil && !errors.Is(err, objectstore.ErrNotFound) {
		return models.MediaObject{}, err
	}
	obj.GetURLs = urls
	return *obj, nil
}

// Exists reports whether the payload is stored.
func (s *ObjectService) Exists(ctx context.Context, id string) (objectstore.Metadata, error) {
	return s.objects.Metadata(ctx, id)
}

// Upload stores the payload and records it in the catalog under the
// object's lock, so a concurrent reap cannot drop the fresh record. The
// declared content type wins over the sniffed one unless it is generic.
func (s *ObjectService) Upload(ctx context.Context, id string, body io.Reader, contentType string) (api.ObjectUploadResponse, error) {
	if err := objectstore.ValidateID(id); err != nil {
		return api.ObjectUploadResponse{}, err
	}
	unlock := s.locks.LockObject(id)
	defer unlock()

	size, err := s.objects.Put(ctx, id, body)
	if err != nil {
		return api.ObjectUploadResponse{}, err
	}

	mimeType := declaredMIMEType(contentType)
	if mimeType == "" {
		if meta, err := s.objects.Metadata(ctx, id); err == nil {
			mimeType = meta.MIMEType
		}
	}
	if err := s.store.UpsertMediaObject(ctx, &models.MediaObject{ObjectID: id, SizeBytes: size, MIMEType: mimeType}); err != nil {
		return api.ObjectUploadResponse{}, fmt.Errorf("record object %s: %w", id, err)
	}
	return api.ObjectUploadResponse{ObjectID: id, SizeBytes: size, MIMEType: mimeType}, nil
}

// Open returns the payload and its best-known content type.
func (s *ObjectService) Open(ctx context.Context, id string) (io.ReadCloser, objectstore.Metadata, error) {
	meta, err := s.objects.Metadata(ctx, id)
	if err != nil {
		return nil, objectstore.Metadata{}, err
	}
	if obj, err := s.store.GetMediaObject(ctx, id); err == nil && obj.MIMEType != "" {
		meta.MIMEType = obj.MIMEType
	}
	rc, err := s.objects.Open(ctx, id)
	if err != nil {
		return nil, objectstore.Metadata{}, err
	}
	return rc, meta, nil
}

func declaredMIMEType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType == "application/octet-stream" {
		return ""
	}
	return mediaType
}
