package fib

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// InvalidRequestReply is sent, newline included, for any request that is not
// a non-negative decimal integer within the configured limit.
const InvalidRequestReply = "Must send a valid number >= 0\n"

// ErrInvalidRequest is returned by ParseIndex for payloads that must be
// answered with InvalidRequestReply.
var ErrInvalidRequest = errors.New("invalid request")

// ParseIndex decodes a request payload into a Fibonacci index.
//
// Leading and trailing whitespace is ignored. The remainder must parse as a
// base-10 integer that is >= 0 and, when maxIndex is positive, <= maxIndex.
func ParseIndex(payload []byte, maxIndex int) (int, error) {
	text := strings.TrimSpace(string(payload))
	if text == "" {
		return 0, fmt.Errorf("%w: empty payload", ErrInvalidRequest)
	}

	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidRequest, text)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: negative index %d", ErrInvalidRequest, n)
	}
	if maxIndex > 0 && n > maxIndex {
		return 0, fmt.Errorf("%w: index %d exceeds limit %d", ErrInvalidRequest, n, maxIndex)
	}
	return n, nil
}

// FormatReply renders value as decimal followed by a single newline.
func FormatReply(value *big.Int) []byte {
	return append(value.Append(nil, 10), '\n')
}
