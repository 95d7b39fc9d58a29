package amsserver

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/function61/aitta/pkg/amsdb"
	"github.com/function61/aitta/pkg/amserrors"
	"github.com/function61/aitta/pkg/amstypes"
	"github.com/function61/aitta/pkg/amsutils"
	"github.com/function61/aitta/pkg/blobprovider"
	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/mime"
	"github.com/samber/lo"
	"go.etcd.io/bbolt"
)

type AssetsService struct {
	db   *bbolt.DB
	sets *SetsService
	logl *logex.Leveled
}

func NewAssetsService(db *bbolt.DB, sets *SetsService, logger *log.Logger) *AssetsService {
	return &AssetsService{
		db:   db,
		sets: sets,
		logl: logex.Levels(logex.NonNil(logger)),
	}
}

type AssetChanges struct {
	Name        *string              `json:"name"`
	Description *string              `json:"description"`
	State       *amstypes.AssetState `json:"state"`
	Filename    *string              `json:"filename"`
	Mimetype    *string              `json:"mimetype"`
	Tags        *[]amstypes.AssetTag `json:"tags"`
	Extra       *map[string]string   `json:"extra"`
}

// Create stores the binary first, metadata second. content is mandatory.
func (a *AssetsService) Create(
	ctx context.Context,
	asset *amstypes.Asset,
	content []byte,
	externalUserID string,
) (*amstypes.Asset, error) {
	if len(content) == 0 {
		return nil, amserrors.BinaryNotSupplied()
	}

	set, err := a.sets.GetByID(asset.SetID)
	if err != nil {
		return nil, err
	}

	if set.State != amstypes.SetStateUsable {
		return nil, amserrors.AssetUploadToInactiveSet()
	}

	if maxSize := a.sets.MaxAssetSize(set); maxSize > 0 && int64(len(content)) > maxSize {
		return nil, amserrors.AssetExceedsMaximumSizeForSet(int64(len(content)), maxSize)
	}

	if asset.State == "" {
		asset.State = amstypes.AssetStateDraft
	}

	if !validAssetState(asset.State) {
		return nil, amserrors.InvalidStateTransition(string(asset.State))
	}

	asset.Mimetype = detectMimetype(content, asset.Filename, asset.Mimetype)

	provider, err := a.sets.ProviderForSet(set)
	if err != nil {
		return nil, err
	}

	mediaID, err := provider.Put(ctx, bytes.NewReader(content), asset.Filename, asset.Mimetype)
	if err != nil {
		return nil, err
	}

	asset.ID = amsutils.NewAssetID()
	asset.MediaID = mediaID
	asset.Length = int64(len(content))
	asset.FirstCreated = time.Now().UTC()
	asset.VersionCreated = asset.FirstCreated
	asset.OriginalCreator = externalUserID
	asset.VersionCreator = externalUserID
	asset.Renditions = nil

	// non-images just don't get an "original" rendition
	captureOriginalRendition(asset, content)

	if err := a.db.Update(func(tx *bbolt.Tx) error {
		return amsdb.AssetRepository.Update(asset, tx)
	}); err != nil {
		// metadata write failed => blob is now orphaned, reclaim it
		if cleanupErr := provider.Delete(ctx, mediaID); cleanupErr != nil {
			a.logl.Error.Printf("orphan blob cleanup %s: %v", mediaID, cleanupErr)
		}

		return nil, err
	}

	a.logl.Debug.Printf("created asset %s in set %s (%d bytes)", asset.ID, asset.SetID, asset.Length)

	return asset, nil
}

// Update applies metadata changes, and when content is non-nil, replaces the binary.
// The new blob is uploaded before the old one is deleted so a reader can never observe
// neither.
func (a *AssetsService) Update(
	ctx context.Context,
	id string,
	changes AssetChanges,
	content []byte,
	externalUserID string,
) (*amstypes.Asset, error) {
	original, err := a.GetByID(id)
	if err != nil {
		return nil, err
	}

	merged := *original
	applyAssetChanges(&merged, changes)

	if !validAssetState(merged.State) {
		return nil, amserrors.InvalidStateTransition(string(merged.State))
	}

	set, err := a.sets.GetByID(merged.SetID)
	if err != nil {
		return nil, err
	}

	oldMediaID := ""
	oldRenditions := []amstypes.Rendition(nil)

	if content != nil { // binary replace
		if set.State != amstypes.SetStateUsable {
			return nil, amserrors.AssetUploadToInactiveSet()
		}

		if maxSize := a.sets.MaxAssetSize(set); maxSize > 0 && int64(len(content)) > maxSize {
			return nil, amserrors.AssetExceedsMaximumSizeForSet(int64(len(content)), maxSize)
		}

		merged.Mimetype = detectMimetype(content, merged.Filename, merged.Mimetype)

		provider, err := a.sets.ProviderForSet(set)
		if err != nil {
			return nil, err
		}

		mediaID, err := provider.Put(ctx, bytes.NewReader(content), merged.Filename, merged.Mimetype)
		if err != nil {
			return nil, err
		}

		oldMediaID = original.MediaID
		oldRenditions = original.Renditions

		merged.MediaID = mediaID
		merged.Length = int64(len(content))
		merged.Renditions = nil

		captureOriginalRendition(&merged, content)
	}

	merged.VersionCreated = time.Now().UTC()
	if externalUserID != "" {
		merged.VersionCreator = externalUserID
	}

	if err := a.db.Update(func(tx *bbolt.Tx) error {
		return amsdb.AssetRepository.Update(&merged, tx)
	}); err != nil {
		return nil, err
	}

	// only now is the old binary unreferenced
	if oldMediaID != "" {
		provider, err := a.sets.ProviderForSet(set)
		if err == nil {
			a.deleteBlobs(ctx, provider, oldMediaID, oldRenditions)
		}
	}

	return &merged, nil
}

func applyAssetChanges(asset *amstypes.Asset, changes AssetChanges) {
	if changes.Name != nil {
		asset.Name = *changes.Name
	}

	if changes.Description != nil {
		asset.Description = *changes.Description
	}

	if changes.State != nil {
		asset.State = *changes.State
	}

	if changes.Filename != nil {
		asset.Filename = *changes.Filename
	}

	if changes.Mimetype != nil {
		asset.Mimetype = *changes.Mimetype
	}

	if changes.Tags != nil {
		asset.Tags = *changes.Tags
	}

	if changes.Extra != nil {
		asset.Extra = *changes.Extra
	}
}

func validAssetState(state amstypes.AssetState) bool {
	switch state {
	case amstypes.AssetStateDraft, amstypes.AssetStateInternal, amstypes.AssetStatePublic:
		return true
	default:
		return false
	}
}

func (a *AssetsService) Delete(ctx context.Context, id string) error {
	asset, err := a.GetByID(id)
	if err != nil {
		return err
	}

	set, err := a.sets.GetByID(asset.SetID)
	if err != nil {
		return err
	}

	provider, err := a.sets.ProviderForSet(set)
	if err != nil {
		return err
	}

	a.deleteBlobs(ctx, provider, asset.MediaID, asset.Renditions)

	return a.db.Update(func(tx *bbolt.Tx) error {
		return amsdb.AssetRepository.Delete(asset, tx)
	})
}

func (a *AssetsService) GetByID(id string) (*amstypes.Asset, error) {
	var asset *amstypes.Asset

	if err := a.db.View(func(tx *bbolt.Tx) error {
		found, err := amsdb.Read(tx).Asset(id)
		if err != nil {
			return translateAssetNotFound(err, id)
		}

		asset = found

		return nil
	}); err != nil {
		return nil, err
	}

	return asset, nil
}

func (a *AssetsService) Download(ctx context.Context, id string) (*amstypes.Asset, io.ReadCloser, error) {
	asset, err := a.GetByID(id)
	if err != nil {
		return nil, nil, err
	}

	set, err := a.sets.GetByID(asset.SetID)
	if err != nil {
		return nil, nil, err
	}

	provider, err := a.sets.ProviderForSet(set)
	if err != nil {
		return nil, nil, err
	}

	content, err := provider.Get(ctx, asset.MediaID)
	if err != nil {
		return nil, nil, err
	}

	return asset, content, nil
}

type AssetFilter struct {
	SetID    string
	State    amstypes.AssetState
	Mimetype string // prefix match, "image/" finds all images
	Name     string // substring match, case-insensitive
	Filename string // prefix match
	Tag      string // exact tag code match
}

func (a *AssetsService) Search(filter AssetFilter) ([]amstypes.Asset, error) {
	assets := []amstypes.Asset{}

	if err := a.db.View(func(tx *bbolt.Tx) error {
		if filter.SetID != "" { // narrow by index
			found, err := amsdb.Read(tx).AssetsBySet(filter.SetID)
			if err != nil {
				return err
			}

			assets = found

			return nil
		}

		return amsdb.AssetRepository.Each(func(record any) error {
			assets = append(assets, *record.(*amstypes.Asset))
			return nil
		}, tx)
	}); err != nil {
		return nil, err
	}

	return lo.Filter(assets, func(asset amstypes.Asset, _ int) bool {
		if filter.State != "" && asset.State != filter.State {
			return false
		}

		if filter.Mimetype != "" && !strings.HasPrefix(asset.Mimetype, filter.Mimetype) {
			return false
		}

		if filter.Name != "" && !strings.Contains(
			strings.ToLower(asset.Name),
			strings.ToLower(filter.Name),
		) {
			return false
		}

		if filter.Filename != "" && !strings.HasPrefix(asset.Filename, filter.Filename) {
			return false
		}

		if filter.Tag != "" && !lo.ContainsBy(asset.Tags, func(tag amstypes.AssetTag) bool {
			return tag.Code == filter.Tag
		}) {
			return false
		}

		return true
	}), nil
}

func (a *AssetsService) deleteBlobs(
	ctx context.Context,
	provider blobprovider.Provider,
	mediaID string,
	renditions []amstypes.Rendition,
) {
	if err := provider.Delete(ctx, mediaID); err != nil {
		a.logl.Error.Printf("delete blob %s: %v", mediaID, err)
	}

	for _, rendition := range renditions {
		if rendition.MediaID == mediaID { // "original" shares the asset's blob
			continue
		}

		if err := provider.Delete(ctx, rendition.MediaID); err != nil {
			a.logl.Error.Printf("delete rendition blob %s: %v", rendition.MediaID, err)
		}
	}
}

func translateAssetNotFound(err error, id string) error {
	if errors.Is(err, amsdb.ErrNotFound) {
		return amserrors.AssetNotFound(id)
	}

	return err
}

// priority: sniffed content type, then filename extension, then what the client declared
func detectMimetype(content []byte, filename string, declared string) string {
	if sniffed := http.DetectContentType(content); sniffed != mime.OctetStream &&
		!strings.HasPrefix(sniffed, "text/plain") { // sniffer's "don't know" answers
		return sniffed
	}

	if byExtension := mime.TypeByExtension(path.Ext(filename), mime.NoFallback); byExtension != "" {
		return byExtension
	}

	if declared != "" {
		return declared
	}

	return mime.OctetStream
}
