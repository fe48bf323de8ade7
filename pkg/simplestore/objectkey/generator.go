package objectkey

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultPrefix is the key prefix for uploads that did not name a destination.
const DefaultPrefix = "uploads"

// Generator defines the interface for synthesizing upload keys
type Generator interface {
	// GenerateKey creates an object key for a file uploaded at the given time
	GenerateKey(fileName string, uploadedAt time.Time) string
}

// TimestampGenerator produces {prefix}/{unix-millis}-{filename}
type TimestampGenerator struct {
	Prefix string
}

func NewTimestampGenerator() *TimestampGenerator {
	return &TimestampGenerator{
		Prefix: DefaultPrefix,
	}
}

func (g *TimestampGenerator) GenerateKey(fileName string, uploadedAt time.Time) string {
	name := sanitizeFilename(fileName)
	if name == "" {
		name = "file"
	}
	return joinPrefix(g.Prefix, fmt.Sprintf("%d-%s", uploadedAt.UnixMilli(), name))
}

// UUIDGenerator produces {prefix}/{uuid}-{filename}; useful when many
// uploads of the same name can land within one millisecond.
type UUIDGenerator struct {
	Prefix string
}

func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{
		Prefix: DefaultPrefix,
	}
}

func (g *UUIDGenerator) GenerateKey(fileName string, _ time.Time) string {
	name := sanitizeFilename(fileName)
	if name == "" {
		return joinPrefix(g.Prefix, uuid.NewString())
	}
	return joinPrefix(g.Prefix, fmt.Sprintf("%s-%s", uuid.NewString(), name))
}

// CustomFuncGenerator allows users to provide their own key generation function
type CustomFuncGenerator struct {
	GenerateFunc func(fileName string, uploadedAt time.Time) string
}

func NewCustomFuncGenerator(fn func(fileName string, uploadedAt time.Time) string) *CustomFuncGenerator {
	return &CustomFuncGenerator{
		GenerateFunc: fn,
	}
}

func (g *CustomFuncGenerator) GenerateKey(fileName string, uploadedAt time.Time) string {
	return g.GenerateFunc(fileName, uploadedAt)
}

func joinPrefix(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// sanitizeFilename keeps the trailing path element and replaces characters
// that are unsafe in object keys
func sanitizeFilename(filename string) string {
	if i := strings.LastIndexAny(filename, `/\`); i >= 0 {
		filename = filename[i+1:]
	}
	replacer := strings.NewReplacer(
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
		"\x00", "",
	)
	return replacer.Replace(filename)
}
