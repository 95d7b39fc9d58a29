package amsserver

import (
	"bytes"
	"context"
	"image"
	"image/gif"
	"io"
	"testing"

	"github.com/disintegration/imageorient"
	"github.com/function61/aitta/pkg/amserrors"
	"github.com/function61/aitta/pkg/amstypes"
	"github.com/function61/gokit/assert"
)

func TestTargetDimensions(t *testing.T) {
	for _, tc := range []struct {
		params         amstypes.RenditionParams
		expectedWidth  int
		expectedHeight int
	}{
		// proportional: stricter ratio wins
		{amstypes.RenditionParams{Width: 300, Height: 533, KeepProportions: true}, 300, 225},
		{amstypes.RenditionParams{Width: 800, Height: 150, KeepProportions: true}, 200, 150},
		// proportional with one dimension: the other is derived
		{amstypes.RenditionParams{Width: 200, KeepProportions: true}, 200, 150},
		{amstypes.RenditionParams{Height: 300, KeepProportions: true}, 400, 300},
		// stretch: requested dimensions taken as-is, missing one kept at original
		{amstypes.RenditionParams{Width: 300, Height: 533}, 300, 533},
		{amstypes.RenditionParams{Width: 300}, 300, 480},
		{amstypes.RenditionParams{Height: 100}, 640, 100},
	} {
		width, height := targetDimensions(640, 480, tc.params)

		if width != tc.expectedWidth || height != tc.expectedHeight {
			t.Errorf(
				"targetDimensions(640, 480, %+v) = %dx%d, expected %dx%d",
				tc.params, width, height, tc.expectedWidth, tc.expectedHeight)
		}
	}
}

func TestRenditionFilename(t *testing.T) {
	assert.EqualString(t, renditionFilename("photo.jpg", 300, 200, ".jpg"), "photo-300x200.jpg")
	assert.EqualString(t, renditionFilename("archive.2024.png", 10, 10, ".png"), "archive.2024-10x10.png")
	assert.EqualString(t, renditionFilename("noextension", 10, 10, ".jpg"), "noextension-10x10.jpg")
}

func TestRenditionFormatFollowsEncoder(t *testing.T) {
	png := renditionFormatFor("photo.PNG")
	assert.EqualString(t, png.ext, ".png")
	assert.EqualString(t, png.mimetype, "image/png")

	for _, filename := range []string{"photo.jpg", "anim.gif", "scan.bmp", "noextension"} {
		format := renditionFormatFor(filename)
		assert.EqualString(t, format.ext, ".jpg")
		assert.EqualString(t, format.mimetype, "image/jpeg")
	}
}

func TestEnsureRenditionGeneratesAndCaches(t *testing.T) {
	sets, assets := servicesForTest(t)
	set := usableSetForTest(t, sets)

	created, err := assets.Create(context.Background(), &amstypes.Asset{
		SetID:    set.ID,
		Filename: "photo.png",
	}, pngBytesForTest(t, 640, 480), "")
	assert.Ok(t, err)

	params := amstypes.RenditionParams{Width: 320, KeepProportions: true}

	generated, err := assets.EnsureRendition(context.Background(), created.ID, params)
	assert.Ok(t, err)

	assert.Assert(t, generated.Width == 320)
	assert.Assert(t, generated.Height == 240)
	assert.EqualString(t, generated.Filename, "photo-320x240.png")
	assert.Assert(t, generated.MediaID != created.MediaID)

	// second request hits the cache: same media, still just one generated record
	cached, err := assets.EnsureRendition(context.Background(), created.ID, params)
	assert.Ok(t, err)

	assert.EqualString(t, cached.MediaID, generated.MediaID)

	reloaded, err := assets.GetByID(created.ID)
	assert.Ok(t, err)

	assert.Assert(t, len(reloaded.Renditions) == 2) // original + the one generated
}

func TestEnsureRenditionRequiresDimension(t *testing.T) {
	sets, assets := servicesForTest(t)
	set := usableSetForTest(t, sets)

	created, err := assets.Create(context.Background(), &amstypes.Asset{
		SetID:    set.ID,
		Filename: "photo.png",
	}, pngBytesForTest(t, 640, 480), "")
	assert.Ok(t, err)

	_, err = assets.EnsureRendition(context.Background(), created.ID, amstypes.RenditionParams{})

	assert.EqualString(t, amserrors.Code(err), "rendition.dimensions-not-provided")
}

func TestRenditionOfGifReencodesAsJpeg(t *testing.T) {
	sets, assets := servicesForTest(t)
	set := usableSetForTest(t, sets)

	gifBytes := &bytes.Buffer{}
	assert.Ok(t, gif.Encode(gifBytes, image.NewRGBA(image.Rect(0, 0, 64, 64)), nil))

	created, err := assets.Create(context.Background(), &amstypes.Asset{
		SetID:    set.ID,
		Filename: "anim.gif",
	}, gifBytes.Bytes(), "")
	assert.Ok(t, err)
	assert.EqualString(t, created.Mimetype, "image/gif")

	rendition, content, err := assets.DownloadRendition(
		context.Background(),
		created.ID,
		amstypes.RenditionParams{Width: 32, KeepProportions: true})
	assert.Ok(t, err)
	defer content.Close()

	// blob content, filename and mimetype all follow the JPEG encoder
	assert.EqualString(t, rendition.Filename, "anim-32x32.jpg")

	buf, err := io.ReadAll(content)
	assert.Ok(t, err)

	_, formatName, err := image.Decode(bytes.NewReader(buf))
	assert.Ok(t, err)
	assert.EqualString(t, formatName, "jpeg")
}

func TestDownloadRenditionIsDecodableImage(t *testing.T) {
	sets, assets := servicesForTest(t)
	set := usableSetForTest(t, sets)

	created, err := assets.Create(context.Background(), &amstypes.Asset{
		SetID:    set.ID,
		Filename: "photo.png",
	}, pngBytesForTest(t, 640, 480), "")
	assert.Ok(t, err)

	rendition, content, err := assets.DownloadRendition(
		context.Background(),
		created.ID,
		amstypes.RenditionParams{Width: 100, Height: 100, KeepProportions: false})
	assert.Ok(t, err)
	defer content.Close()

	assert.Assert(t, rendition.Width == 100)
	assert.Assert(t, rendition.Height == 100)

	buf, err := io.ReadAll(content)
	assert.Ok(t, err)

	decoded, _, err := imageorient.Decode(bytes.NewReader(buf))
	assert.Ok(t, err)

	assert.Assert(t, decoded.Bounds() == image.Rect(0, 0, 100, 100))
}
