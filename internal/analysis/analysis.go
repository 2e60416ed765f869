// Package analysis runs one uploaded face photo through decoding, inference and the lookups.
package analysis

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/Brownie44l1/hairstyle-api/internal/gallery"
	"github.com/Brownie44l1/hairstyle-api/internal/logging"
	"github.com/Brownie44l1/hairstyle-api/internal/model"
	"github.com/Brownie44l1/hairstyle-api/internal/preprocess"
	"github.com/Brownie44l1/hairstyle-api/internal/recommend"
)

// Classifier runs a forward pass over a preprocessed tensor.
type Classifier interface {
	Infer(ctx context.Context, input []float32) ([]float32, error)
}

// SampleFinder lists example images for a gender and facial shape.
type SampleFinder interface {
	Samples(gender gallery.Gender, shape model.FacialShape) ([]string, error)
}

// Recorder receives prediction metrics.
type Recorder interface {
	ObservePrediction(shape string)
	ObserveCacheHit()
}

type Options struct {
	ImageSize int
	Layout    model.Layout
	// CacheSize bounds the per-image prediction cache; 0 disables it.
	CacheSize int
	// MaxPixels caps decoded image area; 0 means preprocess.MaxPixels.
	MaxPixels int
	Recorder  Recorder
}

// Result is the response body of a successful prediction.
type Result struct {
	FacialShape          string   `json:"facial_shape"`
	Confidence           string   `json:"confidence"`
	FemaleRecommendation string   `json:"female_recommendation"`
	MaleRecommendation   string   `json:"male_recommendation"`
	FemaleImages         []string `json:"female_images"`
	MaleImages           []string `json:"male_images"`
}

type Analyzer struct {
	classifier      Classifier
	recommendations recommend.Table
	samples         SampleFinder
	opts            Options
	cache           *lru.Cache[string, model.Prediction]
	logger          *zap.Logger
}

// New validates the recommendation table so a missing shape fails at startup, not per request.
func New(classifier Classifier, recommendations recommend.Table, samples SampleFinder, opts Options, logger *zap.Logger) (*Analyzer, error) {
	if err := recommendations.Validate(); err != nil {
		return nil, fmt.Errorf("invalid recommendation table: %w", err)
	}
	if opts.ImageSize == 0 {
		opts.ImageSize = preprocess.DefaultSize
	}
	if opts.Layout == "" {
		opts.Layout = model.LayoutNHWC
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = preprocess.MaxPixels
	}

	a := &Analyzer{
		classifier:      classifier,
		recommendations: recommendations,
		samples:         samples,
		opts:            opts,
		logger:          logger.Named("analysis"),
	}
	if opts.CacheSize > 0 {
		cache, err := lru.New[string, model.Prediction](opts.CacheSize)
		if err != nil {
			return nil, err
		}
		a.cache = cache
	}
	return a, nil
}

// Analyze classifies the image in payload (a base64 data URI) and assembles the response.
func (a *Analyzer) Analyze(ctx context.Context, requestID, payload string) (*Result, error) {
	opLogger := logging.WithOperation(a.logger, "analysis.analyze", requestID)

	imageBytes, err := preprocess.DecodeDataURI(payload)
	if err != nil {
		return nil, logging.NewOperationError("analysis.decode_base64", requestID, err)
	}

	prediction, err := a.predict(ctx, requestID, imageBytes, opLogger)
	if err != nil {
		return nil, err
	}

	rec, err := a.recommendations.Lookup(prediction.Shape)
	if err != nil {
		return nil, logging.NewOperationError("analysis.recommend", requestID, err)
	}
	opLogger.Debug("recommendation selected", zap.String("key", prediction.Shape.Key()), zap.String("female", rec.Female))

	femaleImages, err := a.samples.Samples(gallery.Female, prediction.Shape)
	if err != nil {
		return nil, logging.NewOperationError("analysis.samples", requestID, err)
	}
	maleImages, err := a.samples.Samples(gallery.Male, prediction.Shape)
	if err != nil {
		return nil, logging.NewOperationError("analysis.samples", requestID, err)
	}

	if a.opts.Recorder != nil {
		a.opts.Recorder.ObservePrediction(prediction.Shape.String())
	}

	return &Result{
		FacialShape:          prediction.Shape.String(),
		Confidence:           prediction.ConfidenceString(),
		FemaleRecommendation: rec.Female,
		MaleRecommendation:   rec.Male,
		FemaleImages:         nonNil(femaleImages),
		MaleImages:           nonNil(maleImages),
	}, nil
}

func nonNil(images []string) []string {
	if images == nil {
		return []string{}
	}
	return images
}

func (a *Analyzer) predict(ctx context.Context, requestID string, imageBytes []byte, opLogger *zap.Logger) (model.Prediction, error) {
	var key string
	if a.cache != nil {
		sum := sha1.Sum(imageBytes)
		key = hex.EncodeToString(sum[:])
		if cached, ok := a.cache.Get(key); ok {
			opLogger.Debug("prediction cache hit", zap.String("sha1", key))
			if a.opts.Recorder != nil {
				a.opts.Recorder.ObserveCacheHit()
			}
			return cached, nil
		}
	}

	img, format, err := preprocess.DecodeImageLimit(imageBytes, a.opts.MaxPixels)
	if err != nil {
		return model.Prediction{}, logging.NewOperationError("analysis.decode_image", requestID, err)
	}

	tensor, err := preprocess.ToTensor(img, a.opts.ImageSize, a.opts.Layout)
	if err != nil {
		return model.Prediction{}, logging.NewOperationError("analysis.preprocess", requestID, err)
	}

	probs, err := a.classifier.Infer(ctx, tensor)
	if err != nil {
		return model.Prediction{}, logging.NewOperationError("analysis.infer", requestID, err)
	}
	opLogger.Debug("raw prediction", zap.Float32s("probabilities", probs), zap.String("format", format))

	prediction, err := model.Classify(probs)
	if err != nil {
		return model.Prediction{}, logging.NewOperationError("analysis.classify", requestID, err)
	}
	opLogger.Info("image classified",
		zap.String("facial_shape", prediction.Shape.String()),
		zap.Float64("confidence", prediction.Confidence))

	if a.cache != nil {
		a.cache.Add(key, prediction)
	}
	return prediction, nil
}
