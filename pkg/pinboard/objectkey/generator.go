package objectkey

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Generator defines the interface for asset key generation strategies
type Generator interface {
	// GenerateKey creates the storage key for a newly uploaded asset
	GenerateKey(assetID uuid.UUID, metadata *KeyMetadata) string
}

// KeyMetadata contains information that influences key generation
type KeyMetadata struct {
	FileName    string
	ContentType string
	OwnerID     string
}

// FlatGenerator stores every asset under one prefix: images/{id}/{filename}
type FlatGenerator struct {
	Prefix string
}

func NewFlatGenerator() *FlatGenerator {
	return &FlatGenerator{Prefix: "images"}
}

func (g *FlatGenerator) GenerateKey(assetID uuid.UUID, metadata *KeyMetadata) string {
	if metadata != nil && metadata.FileName != "" {
		return fmt.Sprintf("%s/%s/%s", g.Prefix, assetID, sanitizeFilename(metadata.FileName))
	}
	return fmt.Sprintf("%s/%s", g.Prefix, assetID)
}

// GitLikeGenerator provides Git-style sharded storage
// images/objects/ab/cd1234ef5678_filename
type GitLikeGenerator struct {
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
}

func NewGitLikeGenerator() *GitLikeGenerator {
	return &GitLikeGenerator{ShardLength: 2}
}

func (g *GitLikeGenerator) GenerateKey(assetID uuid.UUID, metadata *KeyMetadata) string {
	idStr := strings.ReplaceAll(assetID.String(), "-", "")

	shard := g.ShardLength
	if shard <= 0 || shard > len(idStr) {
		shard = 2
	}
	shardDir := idStr[:shard]
	filename := idStr[shard:]
	if metadata != nil && metadata.FileName != "" {
		filename = fmt.Sprintf("%s_%s", filename, sanitizeFilename(metadata.FileName))
	}

	return fmt.Sprintf("images/objects/%s/%s", shardDir, filename)
}

// OwnerAwareGenerator prefixes a base key with the uploading user:
// users/{owner}/images/objects/ab/cd1234ef5678_filename
type OwnerAwareGenerator struct {
	BaseGenerator Generator
	DefaultOwner  string
}

func NewOwnerAwareGenerator() *OwnerAwareGenerator {
	return &OwnerAwareGenerator{
		BaseGenerator: NewGitLikeGenerator(),
		DefaultOwner:  "anonymous",
	}
}

func (g *OwnerAwareGenerator) GenerateKey(assetID uuid.UUID, metadata *KeyMetadata) string {
	owner := g.DefaultOwner
	if metadata != nil && metadata.OwnerID != "" {
		owner = sanitizePathComponent(metadata.OwnerID)
	}
	return fmt.Sprintf("users/%s/%s", owner, g.BaseGenerator.GenerateKey(assetID, metadata))
}

// FuncGenerator allows callers to provide their own key generation function
type FuncGenerator func(assetID uuid.UUID, metadata *KeyMetadata) string

func (f FuncGenerator) GenerateKey(assetID uuid.UUID, metadata *KeyMetadata) string {
	return f(assetID, metadata)
}

// ByName returns the generator registered under name: "flat", "git" or
// "owner". An empty name selects the recommended generator.
func ByName(name string) (Generator, error) {
	switch name {
	case "", "git":
		return NewRecommendedGenerator(), nil
	case "flat":
		return NewFlatGenerator(), nil
	case "owner":
		return NewOwnerAwareGenerator(), nil
	}
	return nil, fmt.Errorf("unknown object key generator %q", name)
}

// NewRecommendedGenerator returns the recommended generator for new installations
func NewRecommendedGenerator() Generator {
	return NewGitLikeGenerator()
}

// IsSafeKey reports whether key is a relative path that stays inside its root.
func IsSafeKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	cleaned := path.Clean(key)
	return cleaned == key && cleaned != "." && cleaned != ".." && !strings.HasPrefix(cleaned, "../")
}

var unsafeChars = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	" ", "_",
	"#", "_",
	"%", "_",
)

func sanitizeFilename(filename string) string {
	name := unsafeChars.Replace(filename)
	if name == "." || name == ".." {
		return "_"
	}
	return name
}

func sanitizePathComponent(component string) string {
	return strings.ToLower(sanitizeFilename(component))
}
