// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package identify_test

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"codeberg.org/oliverandrich/productscan/internal/imagedata"
	"codeberg.org/oliverandrich/productscan/internal/models"
	"codeberg.org/oliverandrich/productscan/internal/services/identify"
	"codeberg.org/oliverandrich/productscan/internal/services/session"
	"codeberg.org/oliverandrich/productscan/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngPayload = "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("\x89PNG\r\n\x1a\nfake"))

type fakeExtractor struct {
	text  string
	err   error
	calls int
}

func (f *fakeExtractor) ExtractText(ctx context.Context, _ imagedata.Image) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if _, ok := ctx.Deadline(); !ok {
		return "", errors.New("extraction without deadline")
	}
	return f.text, nil
}

type fakeClassifier struct {
	attrs models.ProductAttributes
	err   error
	calls int
}

func (f *fakeClassifier) Classify(_ context.Context, _ imagedata.Image, _ string) (models.ProductAttributes, error) {
	f.calls++
	return f.attrs, f.err
}

type fakeProducts struct {
	err   error
	saved []*models.Product
}

func (f *fakeProducts) CreateProduct(_ context.Context, p *models.Product) error {
	if f.err != nil {
		return f.err
	}
	p.ID = int64(len(f.saved) + 1)
	f.saved = append(f.saved, p)
	return nil
}

type fakeImages struct {
	err    error
	keys   []string
	stored map[string]string
}

func (f *fakeImages) Put(_ context.Context, key, contentType string, _ []byte) error {
	if f.err != nil {
		return f.err
	}
	if f.stored == nil {
		f.stored = make(map[string]string)
	}
	f.keys = append(f.keys, key)
	f.stored[key] = contentType
	return nil
}

func (f *fakeImages) URL(_ context.Context, key string) (string, error) {
	return "https://cdn.example.com/" + key, nil
}

func (f *fakeImages) Delete(_ context.Context, key string) error {
	delete(f.stored, key)
	return nil
}

type fakePublisher struct {
	mu       sync.Mutex
	events   []string
	payloads []any
}

func (f *fakePublisher) Publish(_ int64, name string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, name)
	f.payloads = append(f.payloads, payload)
}

type fixture struct {
	extractor  *fakeExtractor
	classifier *fakeClassifier
	products   *fakeProducts
	images     *fakeImages
	publisher  *fakePublisher
	svc        *identify.Service
}

func newFixture() *fixture {
	f := &fixture{
		extractor: &fakeExtractor{text: "NVIDIA RTX 4080"},
		classifier: &fakeClassifier{attrs: models.ProductAttributes{
			Name: "GeForce RTX 4080", Description: "Graphics card", Brand: "NVIDIA", Category: "GPU",
		}},
		products:  &fakeProducts{},
		images:    &fakeImages{},
		publisher: &fakePublisher{},
	}
	f.svc = identify.NewService(f.extractor, f.classifier, f.products, f.images,
		identify.WithTimeouts(time.Second, time.Second),
		identify.WithPublisher(f.publisher),
	)
	return f
}

func TestIdentify_Authenticated(t *testing.T) {
	f := newFixture()

	res, err := f.svc.Identify(context.Background(), session.Authenticated(3), pngPayload)

	require.NoError(t, err)
	assert.False(t, res.Temporary)
	assert.Empty(t, res.Message)
	assert.Equal(t, int64(1), res.Product.ID)
	assert.Equal(t, int64(3), res.Product.UserID)
	assert.Equal(t, "GeForce RTX 4080", res.Product.Name)
	assert.Equal(t, "NVIDIA RTX 4080", res.Product.IdentifiedText)
	assert.Equal(t, "llm", res.Product.Metadata["classifier"])
	require.Len(t, f.images.keys, 1)
	assert.True(t, strings.HasPrefix(f.images.keys[0], "products/3/"))
	assert.True(t, strings.HasSuffix(f.images.keys[0], ".png"))
	assert.Equal(t, f.images.keys[0], res.Product.ImageURL)
	assert.Equal(t, "image/png", f.images.stored[f.images.keys[0]])
	assert.Equal(t, []string{"product_created"}, f.publisher.events)
}

func TestIdentify_EventCarriesImageURL(t *testing.T) {
	f := newFixture()

	res, err := f.svc.Identify(context.Background(), session.Authenticated(3), pngPayload)
	require.NoError(t, err)

	require.Len(t, f.publisher.payloads, 1)
	event, ok := f.publisher.payloads[0].(models.Product)
	require.True(t, ok)
	assert.Equal(t, res.Product.ID, event.ID)
	assert.Equal(t, "https://cdn.example.com/"+f.images.keys[0], event.ImageURL)
	assert.Equal(t, f.images.keys[0], res.Product.ImageURL, "the result keeps the storage key")
}

func TestIdentify_FallbackOnClassificationFailure(t *testing.T) {
	f := newFixture()
	f.classifier.err = errors.New("upstream 503")

	res, err := f.svc.Identify(context.Background(), session.Authenticated(3), pngPayload)

	require.NoError(t, err)
	assert.False(t, res.Temporary)
	assert.Equal(t, "NVIDIA", res.Product.Brand)
	assert.Equal(t, "Electronics", res.Product.Category)
	assert.Equal(t, "NVIDIA RTX 4080", res.Product.Name)
	assert.Equal(t, "fallback", res.Product.Metadata["classifier"])
	require.Len(t, f.products.saved, 1)
	assert.Equal(t, int64(3), f.products.saved[0].UserID)
}

func TestIdentify_FallbackOnEmptyName(t *testing.T) {
	f := newFixture()
	f.classifier.attrs = models.ProductAttributes{}

	res, err := f.svc.Identify(context.Background(), session.Authenticated(3), pngPayload)

	require.NoError(t, err)
	assert.Equal(t, "fallback", res.Product.Metadata["classifier"])
}

func TestIdentify_Guest(t *testing.T) {
	f := newFixture()

	res, err := f.svc.Identify(context.Background(), session.Guest(time.Now()), pngPayload)

	require.NoError(t, err)
	assert.True(t, res.Temporary)
	assert.Equal(t, identify.GuestMessage, res.Message)
	assert.Zero(t, res.Product.ID)
	assert.Zero(t, res.Product.UserID)
	assert.Empty(t, f.products.saved)
	assert.Empty(t, f.images.keys)
	assert.Empty(t, f.publisher.events)
}

func TestIdentify_Anonymous(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Identify(context.Background(), session.Anonymous(), pngPayload)

	require.ErrorIs(t, err, identify.ErrUnauthorized)
	assert.Zero(t, f.extractor.calls)
	assert.Zero(t, f.classifier.calls)
	assert.Empty(t, f.products.saved)
}

func TestIdentify_MissingImage(t *testing.T) {
	for _, caller := range []session.Identity{session.Anonymous(), session.Guest(time.Now()), session.Authenticated(1)} {
		t.Run(caller.Kind.String(), func(t *testing.T) {
			f := newFixture()

			_, err := f.svc.Identify(context.Background(), caller, "")

			require.ErrorIs(t, err, identify.ErrNoImage)
			assert.Zero(t, f.extractor.calls)
		})
	}
}

func TestIdentify_InvalidImage(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Identify(context.Background(), session.Authenticated(1), "not base64!!")

	require.ErrorIs(t, err, identify.ErrInvalidImage)
}

func TestIdentify_NonImagePayloadRejected(t *testing.T) {
	f := newFixture()
	html := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte("<script>alert(1)</script>"))

	_, err := f.svc.Identify(context.Background(), session.Authenticated(1), html)

	require.ErrorIs(t, err, identify.ErrInvalidImage)
	require.ErrorIs(t, err, imagedata.ErrNotImage)
	assert.Zero(t, f.extractor.calls)
	assert.Zero(t, f.classifier.calls)
	assert.Empty(t, f.images.keys)
}

func TestIdentify_ExtractionFailure(t *testing.T) {
	f := newFixture()
	f.extractor.err = errors.New("tesseract crashed")

	_, err := f.svc.Identify(context.Background(), session.Authenticated(1), pngPayload)

	require.ErrorIs(t, err, identify.ErrExtraction)
	assert.Zero(t, f.classifier.calls, "no fallback for extraction failures")
}

func TestIdentify_PersistenceFailure(t *testing.T) {
	f := newFixture()
	f.products.err = errors.New("database is locked")

	res, err := f.svc.Identify(context.Background(), session.Authenticated(1), pngPayload)

	require.NoError(t, err)
	assert.True(t, res.Temporary)
	assert.Equal(t, identify.SaveFailedMessage, res.Message)
	assert.Zero(t, res.Product.ID)
	assert.Empty(t, res.Product.ImageURL)
	assert.Empty(t, f.publisher.events)

	require.Len(t, f.images.keys, 1, "the image was uploaded before the insert")
	assert.Empty(t, f.images.stored, "and removed after the insert failed")
}

func TestIdentify_ImageStoreFailure(t *testing.T) {
	f := newFixture()
	f.images.err = errors.New("bucket missing")

	res, err := f.svc.Identify(context.Background(), session.Authenticated(1), pngPayload)

	require.NoError(t, err)
	assert.True(t, res.Temporary)
	assert.Equal(t, identify.SaveFailedMessage, res.Message)
	assert.Empty(t, f.products.saved)
}

func TestIdentify_WithRepository(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	user := testutil.NewTestUser(t, repo, "alice")
	f := newFixture()
	f.classifier.err = errors.New("timeout")
	svc := identify.NewService(f.extractor, f.classifier, repo, f.images)

	guest, err := svc.Identify(context.Background(), session.Guest(time.Now()), pngPayload)
	require.NoError(t, err)
	assert.True(t, guest.Temporary)

	res, err := svc.Identify(context.Background(), session.Authenticated(user.ID), pngPayload)
	require.NoError(t, err)
	require.False(t, res.Temporary)

	products, err := repo.ListProductsByUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "NVIDIA", products[0].Brand)
	assert.Equal(t, "Electronics", products[0].Category)
	assert.Equal(t, user.ID, products[0].UserID)
	assert.Equal(t, "fallback", products[0].Metadata["classifier"])
}
