// Package namespace handles variant isolation inside the vector store.
//
// Every variant maps deterministically to its own namespace, so two
// experiments never read each other's vectors. The package also keeps a
// local JSON history of namespaces and the variant that produced each,
// for discovery and reuse across runs.
package namespace

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/resumelab/ragsweep/pkg/models"
)

// Resolve maps a variant to its namespace name. Pure function of the
// descriptor fields in canonical order: a readable sanitized prefix for
// discovery, plus a digest of the unsanitized canonical key. The digest
// keeps distinct variants distinct even when their tags differ only in
// characters the sanitizer strips (e.g. two model ids that collapse to
// the same [a-z0-9] form).
func Resolve(v models.Variant) string {
	parts := []string{
		sanitize(v.Parser),
		sanitize(v.Chunking),
		sanitize(v.EmbeddingModel),
		sanitize(v.Reranker),
		sanitize(v.Prompt),
		fmt.Sprintf("k%d", v.K),
	}
	sum := sha256.Sum256([]byte(v.Key()))
	parts = append(parts, hex.EncodeToString(sum[:4]))
	return strings.Join(parts, "_")
}

// sanitize lowercases a tag and strips everything outside [a-z0-9], the
// same scheme the namespace history has always used for embedding model
// ids ("text-embedding-3-small" -> "textembedding3small").
func sanitize(tag string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(tag) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	if sb.Len() == 0 {
		return "x"
	}
	return sb.String()
}

// DescriptorMismatchError reports an attempt to record a namespace with
// a variant descriptor different from the one already on file. The
// history is never silently overwritten; a mismatch means two different
// experiments are about to share an index.
type DescriptorMismatchError struct {
	Namespace string
	Existing  models.Variant
	Incoming  models.Variant
}

func (e *DescriptorMismatchError) Error() string {
	return fmt.Sprintf("namespace %q already recorded for variant %s, refusing to record %s",
		e.Namespace, e.Existing.Key(), e.Incoming.Key())
}
