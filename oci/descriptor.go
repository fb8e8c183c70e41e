package oci

import (
	"fmt"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/puzzlefs/puzzlefs/digest"
)

// descriptorFor builds an OCI descriptor for buf, stored under the given
// media type. Size and Digest describe buf exactly as it is about to be
// written; callers are responsible for actually writing it to the blob
// directory under that digest.
func descriptorFor(buf []byte, mediaType string) ocispec.Descriptor {
	d := digest.Of(buf)
	return ocispec.Descriptor{
		MediaType: mediaType,
		Digest:    d.OCI(),
		Size:      int64(len(buf)),
	}
}

// rootfsVerityAnnotation returns the annotation map recording rootDigest on
// the rootfs descriptor, since the manifest blob cannot record a
// measurement of itself.
func rootfsVerityAnnotation(rootDigest [digest.Size]byte) map[string]string {
	return map[string]string{
		VerityRootHashAnnotation: fmt.Sprintf("%x", rootDigest),
	}
}
