package hashing

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/crc32"
	"io"

	"romcurator/internal/catalog"
	"romcurator/internal/faults"
)

// DefaultChunkBytes is the read size used when none is configured.
const DefaultChunkBytes = 32 << 20

// ComputeDigests reads r once, feeding every chunk to all digest functions.
// The digests are the ones reference catalogs publish, so they are fixed:
// sha1 is the dedupe key, crc32 and md5 corroborate, sha256 future-proofs.
func ComputeDigests(ctx context.Context, r io.Reader, chunkBytes int) (catalog.Digests, error) {
	if chunkBytes <= 0 {
		chunkBytes = DefaultChunkBytes
	}

	sha1Hash := sha1.New()
	md5Hash := md5.New()
	sha256Hash := sha256.New()
	crcHash := crc32.NewIEEE()
	sink := io.MultiWriter(sha1Hash, md5Hash, sha256Hash, crcHash)

	buf := make([]byte, chunkBytes)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return catalog.Digests{}, faults.Wrap(faults.ErrTimeout, "hash", "read", "hashing interrupted", err)
		}
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := sink.Write(buf[:n]); werr != nil {
				return catalog.Digests{}, fmt.Errorf("feed digests: %w", werr)
			}
			total += int64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return catalog.Digests{}, faults.Wrap(faults.ErrContent, "hash", "read", "read source", err)
		}
	}

	return catalog.Digests{
		SHA1:      hex.EncodeToString(sha1Hash.Sum(nil)),
		CRC32:     fmt.Sprintf("%08x", crcHash.Sum32()),
		MD5:       hex.EncodeToString(md5Hash.Sum(nil)),
		SHA256:    hex.EncodeToString(sha256Hash.Sum(nil)),
		SizeBytes: total,
	}, nil
}
