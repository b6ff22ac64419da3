// Package notifications delivers deployment events via ntfy.
//
// NewService publishes to the topic URL configured under [notifications]
// and degrades to a no-op when no topic is set. Deploy code depends only on
// the Service interface, so delivery failures are logged by the caller and
// never change a deployment outcome.
package notifications
