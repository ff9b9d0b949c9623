package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/pageza/foodgram/backend/internal/logging"
	"github.com/pageza/foodgram/backend/internal/metrics"
)

// ErrUnavailable wraps calls rejected while the circuit is open.
var ErrUnavailable = errors.New("object storage unavailable")

// S3API is the subset of the S3 client the store uses.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3Store struct {
	client  S3API
	bucket  string
	baseURL string
	cb      *gobreaker.CircuitBreaker[any]
}

const breakerName = "s3-storage"

// NewS3Store wraps client calls in a circuit breaker that opens after five
// consecutive failures and probes again after thirty seconds.
func NewS3Store(client S3API, bucket, publicBaseURL string) *S3Store {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})

	return &S3Store{
		client:  client,
		bucket:  bucket,
		baseURL: strings.TrimSuffix(publicBaseURL, "/") + "/",
		cb:      cb,
	}
}

func (s *S3Store) Save(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.execute("save", func() (any, error) {
		return s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(contentType),
		})
	})
	if err != nil {
		return "", err
	}
	logging.Ctx(ctx).Debug().Str("key", key).Int("bytes", len(data)).Msg("uploaded image to s3")
	return s.baseURL + key, nil
}

func (s *S3Store) Delete(ctx context.Context, url string) error {
	if !s.Owns(url) {
		return ErrNotOwned
	}
	key := strings.TrimPrefix(url, s.baseURL)
	_, err := s.execute("delete", func() (any, error) {
		return s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
	})
	return err
}

func (s *S3Store) Owns(url string) bool {
	return strings.HasPrefix(url, s.baseURL) && len(url) > len(s.baseURL)
}

func (s *S3Store) State() gobreaker.State {
	return s.cb.State()
}

func (s *S3Store) execute(op string, fn func() (any, error)) (any, error) {
	out, err := s.cb.Execute(fn)
	metrics.StorageOperationsTotal.WithLabelValues("s3", op, metrics.Result(err)).Inc()
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		return nil, fmt.Errorf("s3 %s: %w", op, err)
	}
	return out, nil
}

func stateValue(st gobreaker.State) float64 {
	switch st {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
