package tracker

import (
	"fmt"

	"github.com/teris-io/shortid"
)

// GenerateUserID returns a short random opaque user id.
func GenerateUserID() (string, error) {
	id, err := shortid.Generate()
	if err != nil {
		return "", fmt.Errorf("generate short id: %w", err)
	}
	return id, nil
}
