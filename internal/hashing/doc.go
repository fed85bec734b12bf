// Package hashing drains pending discovery candidates: each file is read
// once in large chunks while sha1, crc32, md5, and sha256 digests are
// computed in a single pass. Results commit in batches that promote the
// candidate, deduplicate content by sha1, and refresh the digest cache so
// unchanged files are never re-read.
package hashing
