package amsserver

// below side effects have to be imported to transparently support their decoding

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"path"
	"strings"
	"time"

	"github.com/disintegration/imageorient"
	"github.com/function61/aitta/pkg/amsdb"
	"github.com/function61/aitta/pkg/amserrors"
	"github.com/function61/aitta/pkg/amstypes"
	"go.etcd.io/bbolt"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// GetRendition returns the cached rendition matching params, or nil on miss. A
// dimension the caller left zero acts as a wildcard; KeepProportions must match
// exactly.
func (a *AssetsService) GetRendition(asset *amstypes.Asset, params amstypes.RenditionParams) (*amstypes.Rendition, error) {
	if params.Width == 0 && params.Height == 0 {
		return nil, amserrors.RenditionDimensionsNotProvided()
	}

	return amstypes.FindRendition(asset.Renditions, params), nil
}

// EnsureRendition returns the matching rendition, generating and caching it on miss.
// The resized blob goes to the same Destination as the original; the original blob is
// never touched.
func (a *AssetsService) EnsureRendition(
	ctx context.Context,
	assetID string,
	params amstypes.RenditionParams,
) (*amstypes.Rendition, error) {
	asset, err := a.GetByID(assetID)
	if err != nil {
		return nil, err
	}

	cached, err := a.GetRendition(asset, params)
	if err != nil {
		return nil, err
	}

	if cached != nil {
		return cached, nil
	}

	set, err := a.sets.GetByID(asset.SetID)
	if err != nil {
		return nil, err
	}

	provider, err := a.sets.ProviderForSet(set)
	if err != nil {
		return nil, err
	}

	originalStream, err := provider.Get(ctx, asset.MediaID)
	if err != nil {
		return nil, err
	}
	defer originalStream.Close()

	// needed to correctly open JPEGs with EXIF "you should rotate this image" -metadata
	original, _, err := imageorient.Decode(originalStream)
	if err != nil {
		return nil, fmt.Errorf("rendition decode %s: %w", assetID, err)
	}

	originalBounds := original.Bounds()

	resizedWidth, resizedHeight := targetDimensions(
		originalBounds.Dx(),
		originalBounds.Dy(),
		params)

	resized := image.NewRGBA(image.Rect(0, 0, resizedWidth, resizedHeight))

	// - NearestNeighbor is fast but usually looks worst.
	// - CatmullRom is slow but usually looks best.
	// - ApproxBiLinear has reasonable speed and quality.
	draw.ApproxBiLinear.Scale(resized, resized.Bounds(), original, originalBounds, draw.Over, nil)

	format := renditionFormatFor(asset.Filename)
	filename := renditionFilename(asset.Filename, resizedWidth, resizedHeight, format.ext)

	encoded := &bytes.Buffer{}
	if err := format.encode(encoded, resized); err != nil {
		return nil, err
	}

	mediaID, err := provider.Put(ctx, bytes.NewReader(encoded.Bytes()), filename, format.mimetype)
	if err != nil {
		return nil, err
	}

	rendition := amstypes.Rendition{
		Name:           fmt.Sprintf("%dx%d", resizedWidth, resizedHeight),
		MediaID:        mediaID,
		Width:          resizedWidth,
		Height:         resizedHeight,
		Params:         params,
		Filename:       filename,
		Length:         int64(encoded.Len()),
		VersionCreated: time.Now().UTC(),
	}

	if err := a.db.Update(func(tx *bbolt.Tx) error {
		// re-read so a concurrent metadata update is not clobbered
		current, err := amsdb.Read(tx).Asset(assetID)
		if err != nil {
			return translateAssetNotFound(err, assetID)
		}

		current.Renditions = append(current.Renditions, rendition)

		return amsdb.AssetRepository.Update(current, tx)
	}); err != nil {
		if cleanupErr := provider.Delete(ctx, mediaID); cleanupErr != nil {
			a.logl.Error.Printf("orphan rendition cleanup %s: %v", mediaID, cleanupErr)
		}

		return nil, err
	}

	return &rendition, nil
}

func (a *AssetsService) DownloadRendition(
	ctx context.Context,
	assetID string,
	params amstypes.RenditionParams,
) (*amstypes.Rendition, io.ReadCloser, error) {
	rendition, err := a.EnsureRendition(ctx, assetID, params)
	if err != nil {
		return nil, nil, err
	}

	asset, err := a.GetByID(assetID)
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

	content, err := provider.Get(ctx, rendition.MediaID)
	if err != nil {
		return nil, nil, err
	}

	return rendition, content, nil
}

// records the image's native dimensions as the first rendition, sharing the asset's
// blob. not-an-image is not an error.
func captureOriginalRendition(asset *amstypes.Asset, content []byte) {
	decoded, _, err := imageorient.Decode(bytes.NewReader(content))
	if err != nil {
		return
	}

	bounds := decoded.Bounds()

	asset.Renditions = append(asset.Renditions, amstypes.Rendition{
		Name:           amstypes.RenditionNameOriginal,
		MediaID:        asset.MediaID,
		Width:          bounds.Dx(),
		Height:         bounds.Dy(),
		Filename:       asset.Filename,
		Length:         int64(len(content)),
		VersionCreated: time.Now().UTC(),
	})
}

// an unspecified target dimension is derived from the other one (proportional) or kept
// at the original size (stretch)
func targetDimensions(width int, height int, params amstypes.RenditionParams) (int, int) {
	if !params.KeepProportions {
		resizedWidth := params.Width
		if resizedWidth == 0 {
			resizedWidth = width
		}

		resizedHeight := params.Height
		if resizedHeight == 0 {
			resizedHeight = height
		}

		return resizedWidth, resizedHeight
	}

	ratioWidth := math.Inf(1)
	if params.Width != 0 {
		ratioWidth = float64(params.Width) / float64(width)
	}

	ratioHeight := math.Inf(1)
	if params.Height != 0 {
		ratioHeight = float64(params.Height) / float64(height)
	}

	ratio := math.Min(ratioWidth, ratioHeight)

	return int(float64(width) * ratio), int(float64(height) * ratio)
}

func renditionFilename(filename string, width int, height int, ext string) string {
	base := strings.TrimSuffix(filename, path.Ext(filename))

	return fmt.Sprintf("%s-%dx%d%s", base, width, height, ext)
}

type renditionFormat struct {
	ext      string
	mimetype string
	encode   func(io.Writer, image.Image) error
}

// resized PNGs stay PNG (alpha survives); everything else, GIF and BMP originals
// included, re-encodes as JPEG. the returned ext/mimetype describe the encoder so the
// stored blob, its filename and its declared type always agree.
func renditionFormatFor(filename string) renditionFormat {
	if strings.EqualFold(path.Ext(filename), ".png") {
		return renditionFormat{ext: ".png", mimetype: "image/png", encode: png.Encode}
	}

	return renditionFormat{ext: ".jpg", mimetype: "image/jpeg", encode: func(destination io.Writer, img image.Image) error {
		return jpeg.Encode(destination, img, nil)
	}}
}
