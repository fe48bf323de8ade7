package simplestore

import (
	"context"
	"io"
)

// UserRepository persists users. Implementations must report duplicate
// emails as *UniqueViolationError and missing rows as ErrUserNotFound.
type UserRepository interface {
	// CreateUser inserts a user and returns the stored row with its
	// assigned id and timestamps
	CreateUser(ctx context.Context, email, name string) (*User, error)

	// GetUser returns the user with the given id
	GetUser(ctx context.Context, id int64) (*User, error)

	// ListUsers returns all users, most recently created first
	ListUsers(ctx context.Context) ([]*User, error)

	// UpdateUser applies the patch, refreshes updated_at and returns the row
	UpdateUser(ctx context.Context, id int64, patch UserPatch) (*User, error)

	// UserExists reports whether a user with the given id exists
	UserExists(ctx context.Context, id int64) (bool, error)

	// DeleteUser removes the user with the given id
	DeleteUser(ctx context.Context, id int64) error
}

// ObjectStore defines the interface for binary object backends
type ObjectStore interface {
	// Put writes the object, replacing any existing object at key
	Put(ctx context.Context, key string, reader io.Reader, opts PutOptions) (*ObjectInfo, error)

	// Get returns the object and a body stream, or ErrObjectNotFound
	Get(ctx context.Context, key string) (*Object, error)

	// Head returns object metadata without reading the body
	Head(ctx context.Context, key string) (*ObjectInfo, error)

	// Delete removes the object at key
	Delete(ctx context.Context, key string) error

	// List returns one page of objects whose key starts with opts.Prefix
	List(ctx context.Context, opts ListOptions) (*ListResult, error)
}

// UserService is the user directory.
type UserService interface {
	ListUsers(ctx context.Context) ([]*User, error)
	GetUser(ctx context.Context, id int64) (*User, error)
	CreateUser(ctx context.Context, req CreateUserRequest) (*User, error)
	UpdateUser(ctx context.Context, req UpdateUserRequest) (*User, error)
	DeleteUser(ctx context.Context, id int64) (int64, error)
}

// FileService is the object store gateway.
type FileService interface {
	ListFiles(ctx context.Context, opts ListOptions) (*ListResult, error)
	DownloadFile(ctx context.Context, key string) (*Object, error)
	UploadFile(ctx context.Context, input UploadInput) (*UploadResult, error)
	DeleteFile(ctx context.Context, key string) error
}

// Service combines the user directory and the file gateway.
type Service interface {
	UserService
	FileService
}
