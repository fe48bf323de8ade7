package simplestore

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/tendant/simple-store/pkg/simplestore/objectkey"
)

// service implements the Service interface
type service struct {
	users    UserRepository
	objects  ObjectStore
	keys     objectkey.Generator
	now      func() time.Time
	validate *validator.Validate
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithUserRepository sets the repository backing the user directory
func WithUserRepository(repo UserRepository) Option {
	return func(s *service) {
		s.users = repo
	}
}

// WithObjectStore sets the object store backing the file gateway
func WithObjectStore(store ObjectStore) Option {
	return func(s *service) {
		s.objects = store
	}
}

// WithKeyGenerator sets how keys are synthesized for form uploads without a path
func WithKeyGenerator(gen objectkey.Generator) Option {
	return func(s *service) {
		s.keys = gen
	}
}

// WithClock overrides the time source used for upload timestamps
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		keys:     objectkey.NewTimestampGenerator(),
		now:      time.Now,
		validate: newValidator(),
	}

	for _, option := range options {
		option(s)
	}

	if s.users == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if s.objects == nil {
		return nil, fmt.Errorf("object store is required")
	}

	return s, nil
}

// newValidator reports field names by their JSON tag so validation
// messages match the wire format.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
