package s3fs

import "strings"

// ResolveBucketPath maps a virtual path, or a full URL under the bucket
// host, to an object key. It never fails; the result carries the bucket
// prefix and no leading "/".
func (c BucketConfig) ResolveBucketPath(path string) string {
	if path == "" {
		return c.bucketPrefix
	}
	if hasPrefixFold(path, c.bucketHostName) {
		path = path[len(c.bucketHostName):]
	}

	path = strings.ReplaceAll(path, `\`, Delimiter)
	if path == Delimiter {
		return c.bucketPrefix
	}
	path = strings.TrimPrefix(path, Delimiter)

	return c.bucketPrefix + path
}

// IsRoot reports whether path resolves to the bucket prefix itself.
func (c BucketConfig) IsRoot(path string) bool {
	return c.ResolveBucketPath(path) == c.bucketPrefix
}

// GetURL returns the public URL of the object a path resolves to.
func (c BucketConfig) GetURL(path string) string {
	return c.bucketHostName + c.ResolveBucketPath(path)
}

// GetRelativePath returns absolute URLs unchanged and turns anything else
// into the URL GetURL would build.
func (c BucketConfig) GetRelativePath(fullPathOrURL string) string {
	if fullPathOrURL == "" {
		return ""
	}
	if strings.HasPrefix(fullPathOrURL, "http") {
		return fullPathOrURL
	}
	return c.GetURL(fullPathOrURL)
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
