package service

import "context"

// Publisher transmits an approved post to the social platform. The lifecycle
// treats it as an external collaborator: it only consumes the reported
// outcome, never the transmission details.
type Publisher interface {
	Publish(ctx context.Context, accessToken, content string) (externalPostID string, err error)
}
