// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package identify turns an uploaded product image into product attributes
// and persists them for authenticated callers.
package identify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/productscan/internal/imagedata"
	"codeberg.org/oliverandrich/productscan/internal/models"
	"codeberg.org/oliverandrich/productscan/internal/services/session"
	"codeberg.org/oliverandrich/productscan/internal/services/storage"
	"codeberg.org/oliverandrich/productscan/internal/sse"
)

const (
	GuestMessage      = "Guest mode: results are not saved. Create an account to keep your scans."
	SaveFailedMessage = "The product was identified but could not be saved. Please try again."

	ClassifierLLM      = "llm"
	ClassifierFallback = "fallback"

	defaultTimeout = 30 * time.Second
	imageKeyPrefix = "products"
)

type TextExtractor interface {
	ExtractText(ctx context.Context, img imagedata.Image) (string, error)
}

type Classifier interface {
	Classify(ctx context.Context, img imagedata.Image, text string) (models.ProductAttributes, error)
}

type ProductStore interface {
	CreateProduct(ctx context.Context, p *models.Product) error
}

type ImageStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	URL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

type Publisher interface {
	Publish(userID int64, name string, payload any)
}

// Result is the outcome of an identification. Temporary results were not
// persisted and carry no product ID.
type Result struct {
	Product   models.Product
	Temporary bool
	Message   string
}

// Service orchestrates extraction, classification and persistence.
type Service struct {
	extractor  TextExtractor
	classifier Classifier
	products   ProductStore
	images     ImageStore
	publisher  Publisher

	ocrTimeout time.Duration
	llmTimeout time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithTimeouts bounds the extraction and classification steps.
func WithTimeouts(ocr, llm time.Duration) Option {
	return func(s *Service) {
		if ocr > 0 {
			s.ocrTimeout = ocr
		}
		if llm > 0 {
			s.llmTimeout = llm
		}
	}
}

// WithPublisher sends a product_created event after each saved product.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func NewService(extractor TextExtractor, classifier Classifier, products ProductStore, images ImageStore, opts ...Option) *Service {
	s := &Service{
		extractor:  extractor,
		classifier: classifier,
		products:   products,
		images:     images,
		ocrTimeout: defaultTimeout,
		llmTimeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Identify runs the pipeline for payload on behalf of caller. Payload
// validation happens before the identity check so a missing image is a
// validation error for every caller. No adapter runs for anonymous callers.
func (s *Service) Identify(ctx context.Context, caller session.Identity, payload string) (*Result, error) {
	img, err := imagedata.Parse(payload)
	if err != nil {
		if errors.Is(err, imagedata.ErrEmpty) {
			return nil, ErrNoImage
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}

	if caller.IsAnonymous() {
		return nil, ErrUnauthorized
	}

	text, err := s.extract(ctx, img)
	if err != nil {
		return nil, err
	}

	attrs, classifier := s.classify(ctx, img, text)

	product := models.Product{
		Name:           attrs.Name,
		Description:    attrs.Description,
		Brand:          attrs.Brand,
		Category:       attrs.Category,
		IdentifiedText: text,
		Metadata:       models.Metadata{"classifier": classifier},
		CreatedAt:      time.Now().UTC(),
	}

	userID, ok := caller.CurrentUserID()
	if !ok {
		slog.Info("identify_completed", "guest", true, "classifier", classifier, "temporary", true)
		return &Result{Product: product, Temporary: true, Message: GuestMessage}, nil
	}

	product.UserID = userID
	if err := s.save(ctx, img, &product); err != nil {
		slog.Error("product_save_failed", "user_id", userID, "error", err)
		product.ID = 0
		product.UserID = 0
		return &Result{Product: product, Temporary: true, Message: SaveFailedMessage}, nil
	}

	if s.publisher != nil {
		s.publisher.Publish(userID, sse.EventProductCreated, s.eventPayload(ctx, product))
	}

	slog.Info("identify_completed", "user_id", userID, "product_id", product.ID, "classifier", classifier, "temporary", false)
	return &Result{Product: product}, nil
}

func (s *Service) extract(ctx context.Context, img imagedata.Image) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.ocrTimeout)
	defer cancel()

	text, err := s.extractor.ExtractText(ctx, img)
	if err != nil {
		slog.Error("extraction_failed", "error", err)
		return "", fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	return text, nil
}

func (s *Service) classify(ctx context.Context, img imagedata.Image, text string) (models.ProductAttributes, string) {
	ctx, cancel := context.WithTimeout(ctx, s.llmTimeout)
	defer cancel()

	attrs, err := s.classifier.Classify(ctx, img, text)
	if err == nil && attrs.Name != "" {
		return attrs, ClassifierLLM
	}
	if err == nil {
		err = errors.New("empty product name")
	}

	slog.Warn("classification_failed", "error", fmt.Errorf("%w: %w", ErrClassification, err))
	return Fallback(text), ClassifierFallback
}

func (s *Service) save(ctx context.Context, img imagedata.Image, product *models.Product) error {
	key := storage.NewKey(imageKeyPrefix, product.UserID, img.Extension())
	if err := s.images.Put(ctx, key, img.MIMEType, img.Data); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	product.ImageURL = key

	if err := s.products.CreateProduct(ctx, product); err != nil {
		if delErr := s.images.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			slog.Error("orphan_image_delete_failed", "key", key, "error", delErr)
		}
		product.ImageURL = ""
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// eventPayload returns product with its image key resolved to a URL. The
// image is left out when it cannot be resolved.
func (s *Service) eventPayload(ctx context.Context, product models.Product) models.Product {
	if product.ImageURL == "" {
		return product
	}
	url, err := s.images.URL(ctx, product.ImageURL)
	if err != nil {
		slog.Warn("event_image_url_failed", "product_id", product.ID, "error", err)
		url = ""
	}
	product.ImageURL = url
	return product
}
