package domain

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrSuggestionNotFound = errors.New("suggestion not found")
	ErrVoteNotFound       = errors.New("no vote found for this suggestion")
	ErrDuplicateUser      = errors.New("username or email already registered")
	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrInactiveUser       = errors.New("inactive user")
	ErrInvalidToken       = errors.New("could not validate credentials")
	ErrRateLimited        = errors.New("vote rate limit exceeded")

	// ErrForbidden means the caller lacks rights over the resource.
	ErrForbidden = errors.New("forbidden")
	// ErrSelfVote is the Forbidden case for voting on one's own suggestion.
	ErrSelfVote = &selfVoteError{}

	// ErrInvalidTransition is returned for status changes away from a
	// non-active suggestion or towards a status that is not terminal.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrConflict reports a concurrent mutation the caller may retry.
	ErrConflict = errors.New("concurrent modification, retry")
)

type selfVoteError struct{}

func (*selfVoteError) Error() string { return "cannot vote on your own suggestion" }

// Is lets errors.Is(err, ErrForbidden) match a self-vote.
func (*selfVoteError) Is(target error) bool { return target == ErrForbidden }

// IsExpected reports whether err is a domain outcome rather than an
// infrastructure failure.
func IsExpected(err error) bool {
	for _, target := range []error{
		ErrUserNotFound, ErrSuggestionNotFound, ErrVoteNotFound, ErrDuplicateUser,
		ErrForbidden, ErrInvalidTransition,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
