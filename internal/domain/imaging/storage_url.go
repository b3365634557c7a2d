package imaging

import (
	"net/url"
	"strings"
)

// Provider identifies a known object-storage host
type Provider string

const (
	ProviderFirebase Provider = "firebase"
	ProviderGCS      Provider = "gcs"
	ProviderSupabase Provider = "supabase"
	ProviderS3       Provider = "s3"
)

const (
	firebaseHost = "firebasestorage.googleapis.com"
	gcsHost      = "storage.googleapis.com"
	supabasePath = "/storage/v1/object/"
)

// StorageLocation is a parsed object-storage URL
type StorageLocation struct {
	Provider Provider
	Scheme   string
	Host     string
	Bucket   string
	// Path is the decoded object key inside the bucket
	Path string
}

// ParseStorageURL recognizes Firebase, Google Cloud Storage and Supabase
// storage URLs. S3-style hosts are matched by the caller because their
// endpoint is deployment specific.
func ParseStorageURL(raw string) (StorageLocation, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return StorageLocation{}, false
	}
	loc := StorageLocation{Scheme: u.Scheme, Host: u.Host}
	if loc.Scheme == "" {
		loc.Scheme = "https"
	}

	switch {
	case u.Host == firebaseHost:
		// /v0/b/<bucket>/o/<escaped path>
		parts := strings.SplitN(strings.TrimPrefix(u.EscapedPath(), "/"), "/", 5)
		if len(parts) < 5 || parts[0] != "v0" || parts[1] != "b" || parts[3] != "o" {
			return StorageLocation{}, false
		}
		path, err := url.PathUnescape(parts[4])
		if err != nil {
			return StorageLocation{}, false
		}
		loc.Provider = ProviderFirebase
		loc.Bucket = parts[2]
		loc.Path = path
	case u.Host == gcsHost:
		bucket, path, ok := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
		if !ok || bucket == "" || path == "" {
			return StorageLocation{}, false
		}
		loc.Provider = ProviderGCS
		loc.Bucket = bucket
		loc.Path = path
	case strings.Contains(u.Path, supabasePath):
		// /storage/v1/object/{public|sign|authenticated}/<bucket>/<path>
		rest := u.Path[strings.Index(u.Path, supabasePath)+len(supabasePath):]
		parts := strings.SplitN(rest, "/", 3)
		if len(parts) < 3 || parts[1] == "" || parts[2] == "" {
			return StorageLocation{}, false
		}
		loc.Provider = ProviderSupabase
		loc.Bucket = parts[1]
		loc.Path = parts[2]
	default:
		return StorageLocation{}, false
	}
	return loc, true
}

// FirebaseURL returns the Firebase download URL without a token
func (l StorageLocation) FirebaseURL() string {
	return "https://" + firebaseHost + "/v0/b/" + l.Bucket + "/o/" + url.PathEscape(l.Path) + "?alt=media"
}

// GCSURL returns the public Google Cloud Storage URL
func (l StorageLocation) GCSURL() string {
	return "https://" + gcsHost + "/" + l.Bucket + "/" + escapeSegments(l.Path)
}

// SupabasePublicURL returns the public-bucket URL on the same project host
func (l StorageLocation) SupabasePublicURL() string {
	return l.Scheme + "://" + l.Host + supabasePath + "public/" + l.Bucket + "/" + escapeSegments(l.Path)
}

// AlternateHostURLs returns the same object addressed through the other
// public hosts of the provider
func (l StorageLocation) AlternateHostURLs() []string {
	switch l.Provider {
	case ProviderFirebase:
		return []string{l.GCSURL()}
	case ProviderGCS:
		return []string{l.FirebaseURL()}
	case ProviderSupabase:
		return []string{l.SupabasePublicURL()}
	default:
		return nil
	}
}

func escapeSegments(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
