package posts

import "errors"

var (
	// ErrMissingOwner means a platform post carries neither a posted
	// nor a draft user id, so no author can be determined. Fatal, never
	// retried.
	ErrMissingOwner = errors.New("platform post has no owner user id")

	// ErrIntegrity means a platform post exists without its canonical
	// post back-link. Signals data corruption requiring manual repair.
	ErrIntegrity = errors.New("platform post has no canonical post back-link")
)
