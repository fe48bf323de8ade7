// Package simplestore provides the request-independent core of two small
// resources: a user directory backed by a relational table and a file
// gateway backed by a key-addressed binary object store.
//
// The Service interface validates input, classifies failures into a small
// error taxonomy (invalid input, not found, unique violation, backend) and
// delegates persistence to a UserRepository and an ObjectStore. Repository
// implementations (memory, Postgres) and object stores (memory, filesystem,
// S3-compatible) live in subpackages; the HTTP surface lives in the api
// subpackage.
//
// Field patches
//
// Partial user updates are expressed as a UserPatch, a mapping from a closed
// set of UserField names to new values. Repositories translate only the
// present keys into a parameterized update and always refresh updated_at,
// so callers never resend unchanged fields.
package simplestore
