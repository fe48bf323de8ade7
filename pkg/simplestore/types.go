package simplestore

import (
	"io"
	"time"
)

// DefaultContentType is recorded when an upload does not declare a media type.
const DefaultContentType = "application/octet-stream"

// DefaultListLimit caps a single object listing page.
const DefaultListLimit = 100

// MetadataUploadedAt is the custom metadata key stamped on every upload.
const MetadataUploadedAt = "uploadedAt"

// User is a row of the users table.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserField names a column that may be changed by an update.
type UserField string

// Updatable user fields.
const (
	UserFieldName  UserField = "name"
	UserFieldEmail UserField = "email"
)

// UserFields lists updatable fields in the order repositories apply them.
var UserFields = []UserField{UserFieldName, UserFieldEmail}

// UserPatch maps the fields to change onto their new values.
// Absent keys are left untouched.
type UserPatch map[UserField]string

// Valid reports whether every key of the patch is an updatable field.
func (p UserPatch) Valid() bool {
	for field := range p {
		switch field {
		case UserFieldName, UserFieldEmail:
		default:
			return false
		}
	}
	return true
}

// CreateUserRequest carries the fields for a new user.
type CreateUserRequest struct {
	Email string `json:"email" validate:"required"`
	Name  string `json:"name" validate:"required"`
}

// UpdateUserRequest carries an id and the optional fields to change.
// Nil or empty fields are not updated.
type UpdateUserRequest struct {
	ID    int64   `json:"id" validate:"required,gt=0"`
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
}

// Patch builds the field patch described by the request.
func (r UpdateUserRequest) Patch() UserPatch {
	patch := UserPatch{}
	if r.Name != nil && *r.Name != "" {
		patch[UserFieldName] = *r.Name
	}
	if r.Email != nil && *r.Email != "" {
		patch[UserFieldEmail] = *r.Email
	}
	return patch
}

// ObjectInfo describes a stored object without its body.
type ObjectInfo struct {
	Key            string            `json:"key"`
	Size           int64             `json:"size"`
	ContentType    string            `json:"contentType"`
	ETag           string            `json:"etag"`
	UploadedAt     time.Time         `json:"uploaded"`
	CustomMetadata map[string]string `json:"customMetadata,omitempty"`
}

// Object is a stored object together with its body stream.
// Callers must close Body.
type Object struct {
	ObjectInfo
	Body io.ReadCloser
}

// PutOptions controls how an object is written.
type PutOptions struct {
	ContentType    string
	CustomMetadata map[string]string
}

// ListOptions filters and pages an object listing.
type ListOptions struct {
	Prefix string
	Limit  int
	Cursor string
}

// ListResult is one page of an object listing. Cursor is set only when
// Truncated is true and is opaque to callers.
type ListResult struct {
	Objects   []ObjectInfo
	Truncated bool
	Cursor    string
}

// UploadInput is the parsed shape of an upload request. It is either a
// FormUpload or a RawUpload.
type UploadInput interface {
	uploadInput()
}

// FormUpload is a multipart upload: the file part plus an optional
// destination key. An empty Key is synthesized from the filename.
type FormUpload struct {
	Key         string
	FileName    string
	ContentType string
	Body        io.Reader
}

// RawUpload is a direct upload where the request body is the payload and
// the key was supplied out of band.
type RawUpload struct {
	Key         string
	ContentType string
	Body        io.Reader
}

func (FormUpload) uploadInput() {}
func (RawUpload) uploadInput()  {}

// UploadResult summarizes a stored object.
type UploadResult struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
	ETag string `json:"etag"`
}
