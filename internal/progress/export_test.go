package progress

// ObjectAPI exposes objectAPI for fakes in tests.
type ObjectAPI = objectAPI

// NewTestS3Store builds an S3Store around a fake client.
func NewTestS3Store(client ObjectAPI, bucket, prefix string, opts ...Option) *S3Store {
	return newS3Store(client, bucket, prefix, opts...)
}
